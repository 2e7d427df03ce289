package util

import (
	"math/big"
)

var (
	// MaxTarget is the maximum target value for SHA3x (difficulty 1, all ones)
	MaxTarget = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// DifficultyToTarget converts difficulty to a 256-bit target
func DifficultyToTarget(difficulty uint64) *big.Int {
	if difficulty == 0 {
		return new(big.Int).Set(MaxTarget)
	}
	return new(big.Int).Div(MaxTarget, new(big.Int).SetUint64(difficulty))
}

// TargetToDifficulty converts a 256-bit target to difficulty
func TargetToDifficulty(target *big.Int) uint64 {
	if target.Sign() == 0 {
		return 0
	}
	difficulty := new(big.Int).Div(MaxTarget, target)
	if !difficulty.IsUint64() {
		return ^uint64(0)
	}
	return difficulty.Uint64()
}

// HashToDifficulty calculates full-precision difficulty from a 32-byte hash
func HashToDifficulty(hash []byte) uint64 {
	if len(hash) != 32 {
		return 0
	}

	hashInt := new(big.Int).SetBytes(hash)
	if hashInt.Sign() == 0 {
		return ^uint64(0)
	}

	difficulty := new(big.Int).Div(MaxTarget, hashInt)
	if !difficulty.IsUint64() {
		return ^uint64(0)
	}
	return difficulty.Uint64()
}

// HashMeetsTarget checks if a 32-byte big-endian hash meets the target
func HashMeetsTarget(hash []byte, target *big.Int) bool {
	if len(hash) != 32 {
		return false
	}
	hashInt := new(big.Int).SetBytes(hash)
	return hashInt.Cmp(target) <= 0
}

// HashMeetsDifficulty checks if hash meets the difficulty requirement
func HashMeetsDifficulty(hash []byte, difficulty uint64) bool {
	return HashMeetsTarget(hash, DifficultyToTarget(difficulty))
}

// CompactToTarget converts compact nBits representation to a 256-bit target.
// Legacy code path: mantissa × 256^(exponent-3).
func CompactToTarget(compact uint32) *big.Int {
	exponent := int(compact >> 24)
	mantissa := int64(compact & 0x00ffffff)
	if exponent <= 0 || mantissa == 0 {
		return new(big.Int)
	}

	target := big.NewInt(mantissa)
	shift := exponent - 3
	if shift >= 0 {
		target.Lsh(target, uint(shift)*8)
	} else {
		target.Rsh(target, uint(-shift)*8)
	}
	return target
}

// TargetToCompact converts a 256-bit target to compact nBits representation
func TargetToCompact(target *big.Int) uint32 {
	if target.Sign() <= 0 {
		return 0
	}

	bytes := target.Bytes()
	size := uint32(len(bytes))

	var compact uint32
	if size <= 3 {
		compact = uint32(target.Uint64()) << (8 * (3 - size))
	} else {
		compact = uint32(new(big.Int).Rsh(target, 8*(uint(size)-3)).Uint64())
	}

	if compact&0x00800000 != 0 {
		compact >>= 8
		size++
	}

	return compact | size<<24
}
