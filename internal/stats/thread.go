// Package stats aggregates per-thread and session mining statistics.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// ThreadStats tracks counters for a single mining worker. Counter fields are
// lock-free; the hashrate float and last-share timestamp sit behind a short
// mutex.
type ThreadStats struct {
	threadID int

	HashesComputed          atomic.Uint64
	SharesFound             atomic.Uint64
	SharesRejected          atomic.Uint64
	PeakHashrate            atomic.Uint64
	BestDifficulty          atomic.Uint64
	CurrentTargetDifficulty atomic.Uint64

	mu              sync.Mutex
	currentHashrate float64
	lastShareTime   time.Time
	startTime       time.Time
}

// NewThreadStats creates stats for one worker thread
func NewThreadStats(threadID int) *ThreadStats {
	return &ThreadStats{
		threadID:  threadID,
		startTime: time.Now(),
	}
}

// ThreadID returns the worker index this stats block belongs to
func (t *ThreadStats) ThreadID() int {
	return t.threadID
}

// RecordShare records a found or rejected share for this thread
func (t *ThreadStats) RecordShare(difficulty uint64, accepted bool) {
	if accepted {
		t.SharesFound.Add(1)
	} else {
		t.SharesRejected.Add(1)
	}

	t.mu.Lock()
	t.lastShareTime = time.Now()
	t.mu.Unlock()

	monotonicMax(&t.BestDifficulty, difficulty)
}

// UpdateHashrate folds a batch of computed hashes into the thread counters
// and refreshes the current and peak hashrate.
func (t *ThreadStats) UpdateHashrate(hashes uint64) {
	total := t.HashesComputed.Add(hashes)

	elapsed := time.Since(t.startTime).Seconds()
	if elapsed <= 0 {
		return
	}
	rate := float64(total) / elapsed

	t.mu.Lock()
	t.currentHashrate = rate
	t.mu.Unlock()

	monotonicMax(&t.PeakHashrate, uint64(rate))
}

// Hashrate returns the thread's current hashrate in H/s
func (t *ThreadStats) Hashrate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentHashrate
}

// LastShareTime returns when this thread last recorded a share
func (t *ThreadStats) LastShareTime() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastShareTime, !t.lastShareTime.IsZero()
}

// monotonicMax raises v to candidate if candidate is larger
func monotonicMax(v *atomic.Uint64, candidate uint64) {
	for {
		current := v.Load()
		if candidate <= current || v.CompareAndSwap(current, candidate) {
			return
		}
	}
}
