// Package job defines mining work units and their distribution to workers.
package job

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/tari-project/graxil/internal/sha3x"
	"github.com/tari-project/graxil/internal/util"
)

// PoolJob is the raw job notification received from the pool
type PoolJob struct {
	JobID      string `json:"job_id"`
	Blob       string `json:"blob"`
	Target     string `json:"target"`
	Algo       string `json:"algo"`
	Height     uint64 `json:"height"`
	Difficulty uint64 `json:"difficulty,omitempty"`
	XN         string `json:"xn,omitempty"`
	SeedHash   string `json:"seed_hash,omitempty"`
}

// MiningJob is the decoded work unit handed to workers. It is immutable;
// a new job replaces the old one, never mutates it.
type MiningJob struct {
	JobID            string
	MiningHash       []byte
	TargetDifficulty uint64
	Height           uint64

	// XN is the pool-assigned 2-byte extranonce prefix. When present every
	// submitted nonce must begin with these bytes and workers vary only the
	// remaining 6 bytes.
	XN []byte
}

// Decode converts a PoolJob into a MiningJob, validating the header blob
func Decode(pj *PoolJob) (*MiningJob, error) {
	miningHash, err := util.HexToBytes(pj.Blob)
	if err != nil {
		return nil, fmt.Errorf("invalid job blob hex: %w", err)
	}
	if len(miningHash) != sha3x.HeaderSize {
		return nil, fmt.Errorf("invalid job blob length: %d bytes, expected %d", len(miningHash), sha3x.HeaderSize)
	}

	targetDifficulty := pj.Difficulty
	if targetDifficulty == 0 {
		targetDifficulty = sha3x.ParseTargetDifficulty(pj.Target)
	}

	var xn []byte
	if pj.XN != "" {
		xn, err = util.HexToBytes(pj.XN)
		if err != nil || len(xn) != 2 {
			util.Warnf("Ignoring malformed job xn %q", pj.XN)
			xn = nil
		}
	}

	return &MiningJob{
		JobID:            pj.JobID,
		MiningHash:       miningHash,
		TargetDifficulty: targetDifficulty,
		Height:           pj.Height,
		XN:               xn,
	}, nil
}

// WireNonce builds the 8-byte wire nonce hex for a share. With an extranonce
// prefix the nonce is prefix[0:2] || LE(nonce)[0:6]; without one it is the
// full little-endian 8 bytes.
func (j *MiningJob) WireNonce(nonce uint64) string {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], nonce)

	if len(j.XN) == 2 {
		var wire [8]byte
		wire[0] = j.XN[0]
		wire[1] = j.XN[1]
		copy(wire[2:], le[0:6])
		return hex.EncodeToString(wire[:])
	}
	return hex.EncodeToString(le[:])
}
