package util

import (
	"bytes"
	"testing"
)

func TestHexToBytes(t *testing.T) {
	tests := []struct {
		input   string
		want    []byte
		wantErr bool
	}{
		{"deadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"0xdeadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"", []byte{}, false},
		{"zz", nil, true},
		{"abc", nil, true}, // odd length
	}

	for _, tt := range tests {
		got, err := HexToBytes(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("HexToBytes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !bytes.Equal(got, tt.want) {
			t.Errorf("HexToBytes(%q) = %x, want %x", tt.input, got, tt.want)
		}
	}
}

func TestValidateNonce(t *testing.T) {
	tests := []struct {
		nonce string
		want  bool
	}{
		{"cafedeadbeef1234", true},
		{"0000000000000000", true},
		{"cafedeadbeef12", false},     // too short
		{"cafedeadbeef123456", false}, // too long
		{"cafedeadbeef12zz", false},   // not hex
	}

	for _, tt := range tests {
		if got := ValidateNonce(tt.nonce); got != tt.want {
			t.Errorf("ValidateNonce(%q) = %v, want %v", tt.nonce, got, tt.want)
		}
	}
}

func TestValidateHash(t *testing.T) {
	valid := "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	if !ValidateHash(valid) {
		t.Error("64 hex chars should validate")
	}
	if ValidateHash(valid[:62]) {
		t.Error("short hash should not validate")
	}
}

func TestReverseBytes(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	ReverseBytes(b)
	if !bytes.Equal(b, []byte{4, 3, 2, 1}) {
		t.Errorf("ReverseBytes = %v", b)
	}
}
