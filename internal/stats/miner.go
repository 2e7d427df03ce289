package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tari-project/graxil/internal/util"
)

// Ring buffer bounds
const (
	maxRecentShares   = 100
	maxRecentActivity = 50
	maxRecentJobs     = 5

	// hashrateHistoryWindow is the time-based eviction horizon
	hashrateHistoryWindow = 5 * time.Minute
)

// ShareInfo is one entry of the recent-share ring
type ShareInfo struct {
	Time       time.Time
	ThreadID   int
	Difficulty uint64
	Target     uint64
	Accepted   bool
}

// JobInfo describes a job for display purposes
type JobInfo struct {
	JobID      string `json:"job_id"`
	Height     uint64 `json:"height"`
	Difficulty uint64 `json:"difficulty"`
	Timestamp  uint64 `json:"timestamp"` // seconds since session start
}

// ActivityEntry is one entry of the activity ring
type ActivityEntry struct {
	Time    time.Time
	Message string
}

// HashratePoint is one sample of the cumulative hash counter
type HashratePoint struct {
	Time        time.Time
	TotalHashes uint64
}

// MinerStats holds session-wide mining statistics. Global counters are
// lock-free atomics; ring buffers sit behind a short mutex. Every worker,
// the pool session, and the dashboard snapshot producer share one instance.
type MinerStats struct {
	SharesSubmitted    atomic.Uint64
	SharesAccepted     atomic.Uint64
	SharesRejected     atomic.Uint64
	HashesComputed     atomic.Uint64
	TotalWorkSubmitted atomic.Uint64

	startTime time.Time

	// ThreadStats is indexed by worker thread id and sized at construction
	ThreadStats []*ThreadStats

	mu              sync.Mutex
	recentShares    []ShareInfo
	recentActivity  []ActivityEntry
	hashrateHistory []HashratePoint
	currentJob      JobInfo
	recentJobs      []JobInfo

	poolInfo PoolInfoSource
	gpuMu    sync.Mutex
	gpuInfo  []GPUDeviceInfo

	// Optional observers, set once at startup before mining begins
	OnShareFound  func(threadID int, difficulty, target uint64)
	OnShareResult func(threadID int, difficulty uint64, accepted bool)
}

// New creates session statistics for the given worker count
func New(numThreads int) *MinerStats {
	threadStats := make([]*ThreadStats, numThreads)
	for i := range threadStats {
		threadStats[i] = NewThreadStats(i)
	}

	return &MinerStats{
		startTime:   time.Now(),
		ThreadStats: threadStats,
		currentJob:  JobInfo{JobID: "none"},
	}
}

// SessionStart returns when this mining session began
func (m *MinerStats) SessionStart() time.Time {
	return m.startTime
}

// SessionElapsed returns the session age
func (m *MinerStats) SessionElapsed() time.Duration {
	return time.Since(m.startTime)
}

// thread returns the stats block for a worker id, or nil if the id is out
// of range. Out-of-range ids are logged and skipped rather than corrupting
// shared state.
func (m *MinerStats) thread(threadID int) *ThreadStats {
	if threadID < 0 || threadID >= len(m.ThreadStats) {
		util.Errorf("Thread id %d out of range (have %d threads), dropping stats update",
			threadID, len(m.ThreadStats))
		return nil
	}
	return m.ThreadStats[threadID]
}

// RecordShareFound records a share at discovery time: per-thread counters,
// best difficulty, last-share timestamp, and the recent-share ring. The
// accepted/rejected session counters are NOT touched here; they belong to
// the pool response router.
func (m *MinerStats) RecordShareFound(threadID int, difficulty, target uint64) {
	if t := m.thread(threadID); t != nil {
		t.RecordShare(difficulty, true)
	}

	m.mu.Lock()
	m.recentShares = append(m.recentShares, ShareInfo{
		Time:       time.Now(),
		ThreadID:   threadID,
		Difficulty: difficulty,
		Target:     target,
		Accepted:   true,
	})
	if len(m.recentShares) > maxRecentShares {
		m.recentShares = m.recentShares[len(m.recentShares)-maxRecentShares:]
	}
	m.mu.Unlock()

	if m.OnShareFound != nil {
		m.OnShareFound(threadID, difficulty, target)
	}
}

// RecordShareResult applies a pool accept/reject verdict for a previously
// submitted share.
func (m *MinerStats) RecordShareResult(threadID int, difficulty uint64, accepted bool) {
	if accepted {
		m.SharesAccepted.Add(1)
		m.TotalWorkSubmitted.Add(difficulty)
	} else {
		m.SharesRejected.Add(1)
		if t := m.thread(threadID); t != nil {
			t.SharesRejected.Add(1)
		}
	}

	if m.OnShareResult != nil {
		m.OnShareResult(threadID, difficulty, accepted)
	}
}

// AddSubmitted bumps the submitted-share counter; called by workers when a
// share is handed to the submitter queue.
func (m *MinerStats) AddSubmitted() {
	m.SharesSubmitted.Add(1)
}

// UpdateHashrate folds a batch of hashes into a worker's counters and the
// session total, and samples the hashrate history.
func (m *MinerStats) UpdateHashrate(threadID int, batchHashes uint64) {
	if t := m.thread(threadID); t != nil {
		t.UpdateHashrate(batchHashes)
	}
	total := m.HashesComputed.Add(batchHashes)
	m.UpdateHashrateHistory(total)
}

// UpdateHashrateHistory appends a cumulative-hash sample and evicts entries
// older than the history window.
func (m *MinerStats) UpdateHashrateHistory(totalHashes uint64) {
	now := time.Now()
	cutoff := now.Add(-hashrateHistoryWindow)

	m.mu.Lock()
	m.hashrateHistory = append(m.hashrateHistory, HashratePoint{Time: now, TotalHashes: totalHashes})
	idx := 0
	for idx < len(m.hashrateHistory) && m.hashrateHistory[idx].Time.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		m.hashrateHistory = m.hashrateHistory[idx:]
	}
	m.mu.Unlock()
}

// AddActivity appends a message to the activity ring
func (m *MinerStats) AddActivity(message string) {
	m.mu.Lock()
	m.recentActivity = append(m.recentActivity, ActivityEntry{Time: time.Now(), Message: message})
	if len(m.recentActivity) > maxRecentActivity {
		m.recentActivity = m.recentActivity[len(m.recentActivity)-maxRecentActivity:]
	}
	m.mu.Unlock()
}

// UpdateJob replaces the current job and appends it to the recent-job ring
func (m *MinerStats) UpdateJob(jobID string, height, difficulty uint64) {
	info := JobInfo{
		JobID:      jobID,
		Height:     height,
		Difficulty: difficulty,
		Timestamp:  uint64(m.SessionElapsed().Seconds()),
	}

	m.mu.Lock()
	m.currentJob = info
	m.recentJobs = append(m.recentJobs, info)
	if len(m.recentJobs) > maxRecentJobs {
		m.recentJobs = m.recentJobs[len(m.recentJobs)-maxRecentJobs:]
	}
	m.mu.Unlock()
}

// CurrentJob returns the job the miner is currently working
func (m *MinerStats) CurrentJob() JobInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentJob
}

// RecentJobs returns the last jobs received, oldest first
func (m *MinerStats) RecentJobs() []JobInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JobInfo, len(m.recentJobs))
	copy(out, m.recentJobs)
	return out
}

// RecentShares returns up to n most recent shares, newest first
func (m *MinerStats) RecentShares(n int) []ShareInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.recentShares)
	if n > count {
		n = count
	}
	out := make([]ShareInfo, 0, n)
	for i := count - 1; i >= count-n; i-- {
		out = append(out, m.recentShares[i])
	}
	return out
}

// RecentActivity returns the activity ring, oldest first
func (m *MinerStats) RecentActivity() []ActivityEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ActivityEntry, len(m.recentActivity))
	copy(out, m.recentActivity)
	return out
}

// TotalHashrate returns the session-average hashrate in H/s
func (m *MinerStats) TotalHashrate() float64 {
	elapsed := m.SessionElapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.HashesComputed.Load()) / elapsed
}

// ActiveThreadCount returns the number of workers currently producing hashes
func (m *MinerStats) ActiveThreadCount() int {
	count := 0
	for _, t := range m.ThreadStats {
		if t.Hashrate() > 0 {
			count++
		}
	}
	return count
}

// AcceptanceRate returns the percentage of submitted shares the pool accepted
func (m *MinerStats) AcceptanceRate() float64 {
	submitted := m.SharesSubmitted.Load()
	if submitted == 0 {
		return 0
	}
	return float64(m.SharesAccepted.Load()) / float64(submitted) * 100
}

// AverageLuck returns the mean difficulty/target ratio over the recent-share
// ring. Values above 1 mean shares overshot their target.
func (m *MinerStats) AverageLuck() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.recentShares) == 0 {
		return 0
	}
	var total float64
	for _, s := range m.recentShares {
		if s.Target > 0 {
			total += float64(s.Difficulty) / float64(s.Target)
		}
	}
	return total / float64(len(m.recentShares))
}

// TopShareDifficulties returns the n highest share difficulties seen in the
// recent-share ring, descending.
func (m *MinerStats) TopShareDifficulties(n int) []uint64 {
	m.mu.Lock()
	diffs := make([]uint64, 0, len(m.recentShares))
	for _, s := range m.recentShares {
		diffs = append(diffs, s.Difficulty)
	}
	m.mu.Unlock()

	// Selection keeps this O(n·len) with tiny n
	out := make([]uint64, 0, n)
	for len(out) < n && len(diffs) > 0 {
		best := 0
		for i, d := range diffs {
			if d > diffs[best] {
				best = i
			}
		}
		out = append(out, diffs[best])
		diffs = append(diffs[:best], diffs[best+1:]...)
	}
	return out
}

// ThreadHashrates returns each worker's current hashrate in thread-id order
func (m *MinerStats) ThreadHashrates() []uint64 {
	out := make([]uint64, len(m.ThreadStats))
	for i, t := range m.ThreadStats {
		out[i] = uint64(t.Hashrate())
	}
	return out
}

// LogSummary writes a periodic dashboard line through the global logger
func (m *MinerStats) LogSummary() {
	util.Infof("Hashrate %s | shares %d/%d accepted (%.1f%%) | best %s | threads %d/%d active | uptime %s",
		util.FormatHashrate(m.TotalHashrate()),
		m.SharesAccepted.Load(),
		m.SharesSubmitted.Load(),
		m.AcceptanceRate(),
		util.FormatNumber(m.bestDifficulty()),
		m.ActiveThreadCount(),
		len(m.ThreadStats),
		util.FormatDuration(m.SessionElapsed()))
}

func (m *MinerStats) bestDifficulty() uint64 {
	var best uint64
	for _, t := range m.ThreadStats {
		if d := t.BestDifficulty.Load(); d > best {
			best = d
		}
	}
	return best
}
