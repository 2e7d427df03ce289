package sha3x

import (
	"bytes"
	"encoding/binary"
	"math/bits"
	"math/rand"
	"testing"

	"golang.org/x/crypto/sha3"
)

// reference computes the triple SHA3-256 of LE(nonce) || header || 0x01
// independently of the implementation under test.
func reference(header []byte, nonce uint64) []byte {
	input := make([]byte, 0, len(header)+9)
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], nonce)
	input = append(input, n[:]...)
	input = append(input, header...)
	input = append(input, 0x01)

	h1 := sha3.Sum256(input)
	h2 := sha3.Sum256(h1[:])
	h3 := sha3.Sum256(h2[:])
	return h3[:]
}

func TestHashVectorZero(t *testing.T) {
	// All-zero header, nonce 0: input is 8 zero bytes, 32 zero bytes, 0x01
	header := make([]byte, HeaderSize)
	got := Hash(header, 0)
	want := reference(header, 0)

	if !bytes.Equal(got, want) {
		t.Errorf("Hash(zero, 0) = %x, want %x", got, want)
	}
}

func TestHashVectorSequentialHeader(t *testing.T) {
	header := make([]byte, HeaderSize)
	for i := range header {
		header[i] = byte(i)
	}
	got := Hash(header, 12345)
	want := reference(header, 12345)

	if !bytes.Equal(got, want) {
		t.Errorf("Hash(seq, 12345) = %x, want %x", got, want)
	}
}

func TestBatchEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	header := make([]byte, HeaderSize)

	for trial := 0; trial < 2000; trial++ {
		rng.Read(header)
		nonce := rng.Uint64()

		results := HashBatch(header, nonce)
		for i, r := range results {
			wantNonce := nonce + uint64(i)
			if r.Nonce != wantNonce {
				t.Fatalf("batch[%d].Nonce = %d, want %d", i, r.Nonce, wantNonce)
			}
			scalar := Hash(header, wantNonce)
			if !bytes.Equal(r.Hash[:], scalar) {
				t.Fatalf("batch[%d] hash mismatch for nonce %d", i, wantNonce)
			}
		}
	}
}

func TestHashDeterminism(t *testing.T) {
	header := make([]byte, HeaderSize)
	for i := range header {
		header[i] = byte(i * 7)
	}

	a := Hash(header, 42)
	b := Hash(header, 42)
	if !bytes.Equal(a, b) {
		t.Error("same input produced different hashes")
	}
}

func TestHashAvalanche(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	header := make([]byte, HeaderSize)

	var totalFlipped, samples int
	for trial := 0; trial < 1000; trial++ {
		rng.Read(header)
		nonce := rng.Uint64()
		base := Hash(header, nonce)

		// Flip one random header bit
		mutated := make([]byte, HeaderSize)
		copy(mutated, header)
		bit := rng.Intn(HeaderSize * 8)
		mutated[bit/8] ^= 1 << (bit % 8)

		flipped := Hash(mutated, nonce)
		for i := range base {
			totalFlipped += bits.OnesCount8(base[i] ^ flipped[i])
		}
		samples++
	}

	mean := float64(totalFlipped) / float64(samples)
	if mean < 108 || mean > 148 {
		t.Errorf("avalanche mean = %.1f bits, want ~128±20", mean)
	}
}

func TestCalculateDifficultyMonotonic(t *testing.T) {
	a := make([]byte, HashSize)
	b := make([]byte, HashSize)
	a[7] = 0x10 // top64(a) < top64(b)
	b[7] = 0x40

	da := CalculateDifficulty(a)
	db := CalculateDifficulty(b)
	if da <= db {
		t.Errorf("difficulty not monotonic: diff(low hash)=%d, diff(high hash)=%d", da, db)
	}
}

func TestCalculateDifficultyEdges(t *testing.T) {
	zero := make([]byte, HashSize)
	if d := CalculateDifficulty(zero); d != ^uint64(0) {
		t.Errorf("zero top word should give max difficulty, got %d", d)
	}

	ones := bytes.Repeat([]byte{0xff}, HashSize)
	if d := CalculateDifficulty(ones); d != 1 {
		t.Errorf("all-ones hash should give difficulty 1, got %d", d)
	}

	if d := CalculateDifficulty([]byte{1, 2, 3}); d != 0 {
		t.Errorf("short hash should give difficulty 0, got %d", d)
	}
}

func TestParseTargetDifficulty(t *testing.T) {
	tests := []struct {
		target string
		want   uint64
	}{
		// 0x00000000ffffffff little-endian -> t = 0xffffffff00000000
		{"00000000ffffffff", ^uint64(0) / 0xffffffff00000000},
		// t = 1
		{"0100000000000000", ^uint64(0)},
		// malformed inputs fall back to difficulty 1
		{"zzzz", 1},
		{"abcd", 1},
		{"0000000000000000", 1},
		{"", 1},
	}

	for _, tt := range tests {
		if got := ParseTargetDifficulty(tt.target); got != tt.want {
			t.Errorf("ParseTargetDifficulty(%q) = %d, want %d", tt.target, got, tt.want)
		}
	}
}

func BenchmarkHash(b *testing.B) {
	header := make([]byte, HeaderSize)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Hash(header, uint64(i))
	}
}

func BenchmarkHashBatch(b *testing.B) {
	header := make([]byte, HeaderSize)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashBatch(header, uint64(i)*4)
	}
}
