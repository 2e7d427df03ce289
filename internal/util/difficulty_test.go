package util

import (
	"math/big"
	"testing"
)

func TestDifficultyToTarget(t *testing.T) {
	tests := []struct {
		difficulty uint64
	}{
		{1},
		{1000},
		{1000000},
		{1000000000000},
	}

	for _, tt := range tests {
		target := DifficultyToTarget(tt.difficulty)
		if target == nil {
			t.Errorf("DifficultyToTarget(%d) returned nil", tt.difficulty)
			continue
		}
		if target.Sign() <= 0 {
			t.Errorf("DifficultyToTarget(%d) returned non-positive target", tt.difficulty)
		}
	}

	// Zero difficulty means accept everything
	target := DifficultyToTarget(0)
	if target.Cmp(MaxTarget) != 0 {
		t.Error("DifficultyToTarget(0) should return MaxTarget")
	}
}

func TestTargetToDifficultyRoundTrip(t *testing.T) {
	difficulties := []uint64{1, 100, 10000, 1000000}

	for _, diff := range difficulties {
		target := DifficultyToTarget(diff)
		recovered := TargetToDifficulty(target)

		// Allow rounding error from integer division
		if recovered < diff/2 || recovered > diff*2 {
			t.Errorf("round-trip failed for difficulty %d: got %d", diff, recovered)
		}
	}

	if TargetToDifficulty(big.NewInt(0)) != 0 {
		t.Error("TargetToDifficulty(0) should return 0")
	}
}

func TestHashToDifficulty(t *testing.T) {
	// Zero hash represents infinite work
	zeroHash := make([]byte, 32)
	if diff := HashToDifficulty(zeroHash); diff != ^uint64(0) {
		t.Errorf("HashToDifficulty(zero) = %d, want max", diff)
	}

	// All-ones hash is difficulty 1
	ones := make([]byte, 32)
	for i := range ones {
		ones[i] = 0xff
	}
	if diff := HashToDifficulty(ones); diff != 1 {
		t.Errorf("HashToDifficulty(all-ones) = %d, want 1", diff)
	}

	// Wrong length is rejected
	if diff := HashToDifficulty(make([]byte, 16)); diff != 0 {
		t.Error("HashToDifficulty with invalid length should return 0")
	}
}

func TestHashMeetsTarget(t *testing.T) {
	lowHash := make([]byte, 32)
	lowHash[31] = 0x01

	highTarget := new(big.Int).SetBytes([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if !HashMeetsTarget(lowHash, highTarget) {
		t.Error("low hash should meet high target")
	}

	highHash := make([]byte, 32)
	highHash[0] = 0xFF

	lowTarget := new(big.Int).SetBytes([]byte{0x00, 0x00, 0x01})
	if HashMeetsTarget(highHash, lowTarget) {
		t.Error("high hash should not meet low target")
	}
}

func TestCompactRoundTrip(t *testing.T) {
	tests := []uint32{
		0x1d00ffff, // Bitcoin genesis difficulty
		0x1b0404cb,
		0x207fffff,
	}

	for _, compact := range tests {
		target := CompactToTarget(compact)
		if target.Sign() <= 0 {
			t.Errorf("CompactToTarget(%08x) should give positive target", compact)
			continue
		}
		back := TargetToCompact(target)
		if back != compact {
			t.Errorf("compact round-trip: %08x -> %08x", compact, back)
		}
	}

	if CompactToTarget(0).Sign() != 0 {
		t.Error("CompactToTarget(0) should return zero target")
	}
}

func BenchmarkHashToDifficulty(b *testing.B) {
	hash := make([]byte, 32)
	hash[2] = 0x01

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashToDifficulty(hash)
	}
}
