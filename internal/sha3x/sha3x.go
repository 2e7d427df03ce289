// Package sha3x implements the SHA3x triple-hash proof of work used by Tari.
package sha3x

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/tari-project/graxil/internal/util"
)

const (
	// NonceSize is the wire nonce size in bytes
	NonceSize = 8

	// HeaderSize is the block header template size in bytes
	HeaderSize = 32

	// HashSize is the output hash size in bytes
	HashSize = 32

	// BatchSize is the number of nonces hashed per batch call
	BatchSize = 4

	// markerByte terminates the hash input per the Tari wire contract
	markerByte = 0x01
)

// BatchResult is one entry of a batch hash call
type BatchResult struct {
	Hash  [HashSize]byte
	Nonce uint64
}

// Hash computes the SHA3x hash (triple SHA3-256) of a header template with
// the given nonce. The input is little-endian nonce, header, then a 0x01
// marker byte.
func Hash(header []byte, nonce uint64) []byte {
	input := make([]byte, NonceSize+len(header)+1)
	binary.LittleEndian.PutUint64(input[0:NonceSize], nonce)
	copy(input[NonceSize:], header)
	input[len(input)-1] = markerByte

	return tripleHash(input)
}

// HashBatch computes SHA3x for nonce, nonce+1, nonce+2, nonce+3, reusing the
// input buffer between iterations. This is the CPU mining hot path.
func HashBatch(header []byte, nonce uint64) [BatchSize]BatchResult {
	input := make([]byte, NonceSize+len(header)+1)
	copy(input[NonceSize:], header)
	input[len(input)-1] = markerByte

	var results [BatchSize]BatchResult
	for i := 0; i < BatchSize; i++ {
		n := nonce + uint64(i)
		binary.LittleEndian.PutUint64(input[0:NonceSize], n)

		h := tripleHash(input)
		copy(results[i].Hash[:], h)
		results[i].Nonce = n
	}

	return results
}

func tripleHash(input []byte) []byte {
	h1 := sha3.Sum256(input)
	h2 := sha3.Sum256(h1[:])
	h3 := sha3.Sum256(h2[:])
	return h3[:]
}

// CalculateDifficulty derives the difficulty of a hash from its first 8
// big-endian bytes: difficulty = 2^64-1 / top. A zero top word counts as
// maximum difficulty.
func CalculateDifficulty(hash []byte) uint64 {
	if len(hash) < 8 {
		util.Warnf("Invalid SHA3x hash: too short (%d bytes)", len(hash))
		return 0
	}
	top := binary.BigEndian.Uint64(hash[:8])
	if top == 0 {
		return ^uint64(0)
	}
	return ^uint64(0) / top
}

// ParseTargetDifficulty converts the pool's hex-encoded 8-byte little-endian
// target into a difficulty. Malformed input yields difficulty 1 so mining
// can continue against a safe floor.
func ParseTargetDifficulty(targetHex string) uint64 {
	targetBytes, err := util.HexToBytes(targetHex)
	if err != nil {
		util.Warnf("Failed to decode SHA3x target hex %q: %v", targetHex, err)
		return 1
	}
	if len(targetBytes) < 8 {
		util.Warnf("Invalid SHA3x target: too short (%d bytes)", len(targetBytes))
		return 1
	}

	target := binary.LittleEndian.Uint64(targetBytes[:8])
	if target == 0 {
		util.Warnf("Invalid SHA3x target: zero value")
		return 1
	}
	return ^uint64(0) / target
}
