// Package miner implements the CPU worker pool: nonce-space partitioning,
// the inner mining loop, and share emission.
package miner

import (
	"encoding/hex"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tari-project/graxil/internal/job"
	"github.com/tari-project/graxil/internal/pool"
	"github.com/tari-project/graxil/internal/sha3x"
	"github.com/tari-project/graxil/internal/stats"
	"github.com/tari-project/graxil/internal/util"
)

const (
	// batchesPerRound is how many 4-hash batches a worker runs between
	// checks for a new job or the stop flag (1000 hashes per round)
	batchesPerRound = 250

	// statFlushInterval is how often accumulated hash counts are published
	statFlushInterval = time.Second

	// idleSleep is the wait while no job is available
	idleSleep = 10 * time.Millisecond
)

// ShareSink receives found shares. Satisfied by *pool.Submitter.
type ShareSink interface {
	Submit(pool.Share)
}

// CPUMiner runs N dedicated mining workers against the current job
type CPUMiner struct {
	numThreads   int
	threadOffset int // first thread id; GPU workers occupy lower ids in hybrid mode

	jobs  *job.Broadcaster
	stats *stats.MinerStats
	sink  ShareSink

	stop atomic.Bool
	wg   sync.WaitGroup
}

// NewCPUMiner creates a worker pool of numThreads workers whose thread ids
// start at threadOffset.
func NewCPUMiner(numThreads, threadOffset int, jobs *job.Broadcaster, minerStats *stats.MinerStats, sink ShareSink) *CPUMiner {
	return &CPUMiner{
		numThreads:   numThreads,
		threadOffset: threadOffset,
		jobs:         jobs,
		stats:        minerStats,
		sink:         sink,
	}
}

// Start launches the mining workers
func (m *CPUMiner) Start() {
	util.Infof("Starting %d CPU mining threads (ids %d-%d)",
		m.numThreads, m.threadOffset, m.threadOffset+m.numThreads-1)

	for i := 0; i < m.numThreads; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
}

// Stop signals all workers to finish and waits for them
func (m *CPUMiner) Stop() {
	m.stop.Store(true)
	m.wg.Wait()
}

// startNonce picks the starting nonce for one job. The random base is
// aligned to the 4·N stride and offset by 4·localID, so any two workers'
// nonce sequences stay disjoint modulo 4·N.
func startNonce(rng *rand.Rand, localID, numThreads int) uint64 {
	stride := uint64(4 * numThreads)
	base := rng.Uint64()
	return base - base%stride + uint64(4*localID)
}

// worker is the mining loop for one thread. It is pure blocking compute;
// the only pauses are the idle sleep while no job exists.
func (m *CPUMiner) worker(localID int) {
	defer m.wg.Done()

	threadID := m.threadOffset + localID
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(threadID)<<17))
	jobCh := m.jobs.Subscribe()

	var current *job.MiningJob
	var nonce uint64
	var hashCount uint64
	lastFlush := time.Now()

	threadStats := (*stats.ThreadStats)(nil)
	if threadID < len(m.stats.ThreadStats) {
		threadStats = m.stats.ThreadStats[threadID]
	}

	flush := func() {
		if hashCount > 0 {
			m.stats.UpdateHashrate(threadID, hashCount)
			hashCount = 0
		}
		lastFlush = time.Now()
	}
	defer flush()

	for {
		if m.stop.Load() {
			return
		}

		// Adopt a new job if one arrived; restart the nonce space
		select {
		case j := <-jobCh:
			current = j
			nonce = startNonce(rng, localID, m.numThreads)
			if threadStats != nil {
				threadStats.CurrentTargetDifficulty.Store(j.TargetDifficulty)
			}
			util.Debugf("Thread %d: job %s, target difficulty %d", threadID, j.JobID, j.TargetDifficulty)
		default:
		}

		if current == nil {
			time.Sleep(idleSleep)
			continue
		}

		for batch := 0; batch < batchesPerRound; batch++ {
			if m.stop.Load() {
				return
			}

			results := sha3x.HashBatch(current.MiningHash, nonce)
			for i := range results {
				r := &results[i]
				difficulty := sha3x.CalculateDifficulty(r.Hash[:])
				hashCount++

				// A zero target means accept everything
				if difficulty >= current.TargetDifficulty || current.TargetDifficulty == 0 {
					m.emitShare(threadID, current, r, difficulty)
				}
			}

			nonce += uint64(4 * m.numThreads)
		}

		if time.Since(lastFlush) >= statFlushInterval {
			flush()
		}
	}
}

// emitShare records a found share locally, then hands it to the submitter.
// The local recording must happen before the wire send.
func (m *CPUMiner) emitShare(threadID int, j *job.MiningJob, r *sha3x.BatchResult, difficulty uint64) {
	m.stats.RecordShareFound(threadID, difficulty, j.TargetDifficulty)
	m.stats.AddActivity("Thread " + strconv.Itoa(threadID) + " found share, difficulty " + util.FormatNumber(difficulty))
	util.Infof("Thread %d found share: difficulty %s, target %s",
		threadID, util.FormatNumber(difficulty), util.FormatNumber(j.TargetDifficulty))

	m.stats.AddSubmitted()
	m.sink.Submit(pool.Share{
		JobID:      j.JobID,
		NonceHex:   j.WireNonce(r.Nonce),
		HashHex:    hex.EncodeToString(r.Hash[:]),
		ThreadID:   threadID,
		Difficulty: difficulty,
		Target:     j.TargetDifficulty,
		Kind:       pool.KindCPU,
	})
}
