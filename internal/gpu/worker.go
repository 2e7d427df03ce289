package gpu

import (
	"encoding/hex"
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
	// jobWaitTimeout is how long a worker blocks on the job channel while
	// it has no work
	jobWaitTimeout = 100 * time.Millisecond

	// errorSleep is the pause after a kernel error before retrying. The
	// worker never sleeps on the hot path while a job is available.
	errorSleep = 10 * time.Millisecond

	// statFlushInterval matches the CPU workers' reporting cadence
	statFlushInterval = time.Second
)

// ShareSink receives found shares. Satisfied by *pool.Submitter.
type ShareSink interface {
	Submit(pool.Share)
}

// Worker drives one OpenCL device against the current job. One Worker per
// detected device; each runs on its own dedicated goroutine.
type Worker struct {
	engine   *Engine
	threadID int

	jobs  *job.Broadcaster
	stats *stats.MinerStats
	sink  ShareSink

	stop atomic.Bool
	wg   sync.WaitGroup
}

// NewWorker creates a GPU worker for an initialized engine. threadID is the
// worker's slot in the shared stats array (GPU workers occupy the low ids).
func NewWorker(engine *Engine, threadID int, jobs *job.Broadcaster, minerStats *stats.MinerStats, sink ShareSink) *Worker {
	return &Worker{
		engine:   engine,
		threadID: threadID,
		jobs:     jobs,
		stats:    minerStats,
		sink:     sink,
	}
}

// Start launches the worker loop
func (w *Worker) Start() {
	util.Infof("Starting GPU worker %d on %s", w.threadID, w.engine.Device().Info())
	w.wg.Add(1)
	go w.run()
}

// Stop signals the worker to finish and waits for it
func (w *Worker) Stop() {
	w.stop.Store(true)
	w.wg.Wait()
	w.engine.Release()
}

func (w *Worker) run() {
	defer w.wg.Done()

	jobCh := w.jobs.Subscribe()
	batchSize := w.engine.SuggestedBatchSize()

	var current *job.MiningJob
	var nonceStart uint64
	var hashCount uint64
	lastFlush := time.Now()

	threadStats := (*stats.ThreadStats)(nil)
	if w.threadID < len(w.stats.ThreadStats) {
		threadStats = w.stats.ThreadStats[w.threadID]
	}

	flush := func() {
		if hashCount > 0 {
			w.stats.UpdateHashrate(w.threadID, hashCount)
			hashCount = 0
		}
		lastFlush = time.Now()
	}
	defer flush()

	for !w.stop.Load() {
		// Pick up a job change without blocking when mining
		select {
		case j := <-jobCh:
			current = j
			nonceStart = uint64(w.threadID)
			if threadStats != nil {
				threadStats.CurrentTargetDifficulty.Store(j.TargetDifficulty)
			}
			util.Debugf("GPU %d: job %s, target difficulty %d", w.threadID, j.JobID, j.TargetDifficulty)
		default:
		}

		if current == nil {
			// Block briefly while waiting for the first job
			select {
			case j := <-jobCh:
				current = j
				nonceStart = uint64(w.threadID)
				if threadStats != nil {
					threadStats.CurrentTargetDifficulty.Store(j.TargetDifficulty)
				}
			case <-time.After(jobWaitTimeout):
			}
			continue
		}

		result, err := w.engine.Mine(current, nonceStart, batchSize)
		if err != nil {
			util.Errorf("GPU %d kernel error: %v", w.threadID, err)
			time.Sleep(errorSleep)
			continue
		}

		hashCount += result.HashesProcessed
		nonceStart += result.HashesProcessed

		if result.Found {
			w.emitShare(current, result)
		}

		if time.Since(lastFlush) >= statFlushInterval {
			flush()
		}
	}
}

// emitShare reconstructs the full hash on the host and submits the share.
// The kernel only returns the hash's top word; the host hasher is the
// single source of truth for the 32-byte result the pool will recompute.
func (w *Worker) emitShare(j *job.MiningJob, result MineResult) {
	hash := sha3x.Hash(j.MiningHash, result.FoundNonce)
	difficulty := sha3x.CalculateDifficulty(hash)

	if difficulty < j.TargetDifficulty && j.TargetDifficulty > 0 {
		// Kernel and host disagree; trust the host and drop the share
		util.Warnf("GPU %d share failed host verification: difficulty %d < target %d",
			w.threadID, difficulty, j.TargetDifficulty)
		return
	}

	w.stats.RecordShareFound(w.threadID, difficulty, j.TargetDifficulty)
	w.stats.AddActivity("GPU " + w.engine.Device().Name() + " found share, difficulty " + util.FormatNumber(difficulty))
	util.Infof("GPU %d found share: nonce %d, difficulty %s",
		w.threadID, result.FoundNonce, util.FormatNumber(difficulty))

	w.stats.AddSubmitted()
	w.sink.Submit(pool.Share{
		JobID:      j.JobID,
		NonceHex:   j.WireNonce(result.FoundNonce),
		HashHex:    hex.EncodeToString(hash),
		ThreadID:   w.threadID,
		Difficulty: difficulty,
		Target:     j.TargetDifficulty,
		Kind:       pool.KindGPU,
	})
}
