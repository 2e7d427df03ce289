package stats

import (
	"time"
)

// PoolInfo summarizes pool connectivity for the dashboard
type PoolInfo struct {
	Address            string `json:"pool_address"`
	Connected          bool   `json:"is_connected"`
	LatencyMS          uint64 `json:"latency_ms"`
	ConnectionAttempts uint32 `json:"connection_attempts"`
	UptimeSeconds      uint64 `json:"uptime_seconds"`
	SessionID          string `json:"session_id,omitempty"`
}

// PoolInfoSource supplies live pool connection state. Implemented by the
// pool client; stats holds only the read side.
type PoolInfoSource interface {
	PoolInfo() PoolInfo
}

// GPUDeviceInfo describes one OpenCL device for the dashboard
type GPUDeviceInfo struct {
	Name         string `json:"name"`
	PlatformName string `json:"platform_name"`
	ComputeUnits uint32 `json:"compute_units"`
	GlobalMemMB  uint64 `json:"global_mem_mb"`
}

// SetPoolInfoSource wires the pool client into snapshot production
func (m *MinerStats) SetPoolInfoSource(src PoolInfoSource) {
	m.mu.Lock()
	m.poolInfo = src
	m.mu.Unlock()
}

// SetGPUInfo records the detected GPU devices for the dashboard
func (m *MinerStats) SetGPUInfo(devices []GPUDeviceInfo) {
	m.gpuMu.Lock()
	m.gpuInfo = append([]GPUDeviceInfo(nil), devices...)
	m.gpuMu.Unlock()
}

// SnapshotShare is a recent share as exposed to dashboard clients
type SnapshotShare struct {
	ThreadID   int     `json:"thread_id"`
	Difficulty uint64  `json:"difficulty"`
	Target     uint64  `json:"target"`
	AgeSeconds uint64  `json:"age_seconds"`
	LuckFactor float64 `json:"luck_factor"`
	Accepted   bool    `json:"accepted"`
}

// Snapshot is the dashboard view of the statistics core. Producing one is a
// pure read; mining is unaffected.
type Snapshot struct {
	CurrentHashrate uint64 `json:"current_hashrate"`
	SessionAverage  uint64 `json:"session_average"`

	SharesSubmitted uint64  `json:"submitted_shares"`
	SharesAccepted  uint64  `json:"accepted_shares"`
	SharesRejected  uint64  `json:"rejected_shares"`
	AcceptanceRate  float64 `json:"acceptance_rate"`
	AverageLuck     float64 `json:"average_luck"`
	TotalWork       uint64  `json:"total_work"`

	ThreadHashrates []uint64 `json:"thread_hashrates"`
	ActiveThreads   int      `json:"active_threads"`

	CurrentJob JobInfo   `json:"current_job"`
	RecentJobs []JobInfo `json:"recent_jobs"`

	RecentShares []SnapshotShare `json:"recent_shares"`
	TopShares    []uint64        `json:"top_shares"`

	UptimeSeconds uint64 `json:"uptime"`

	Pool   PoolInfo        `json:"pool_info"`
	System SystemInfo      `json:"system_info"`
	GPUs   []GPUDeviceInfo `json:"gpu_info"`
}

// Snapshot composes the current dashboard view
func (m *MinerStats) Snapshot() Snapshot {
	now := time.Now()

	recent := m.RecentShares(20)
	shares := make([]SnapshotShare, 0, len(recent))
	for _, s := range recent {
		luck := 0.0
		if s.Target > 0 {
			luck = float64(s.Difficulty) / float64(s.Target)
		}
		shares = append(shares, SnapshotShare{
			ThreadID:   s.ThreadID,
			Difficulty: s.Difficulty,
			Target:     s.Target,
			AgeSeconds: uint64(now.Sub(s.Time).Seconds()),
			LuckFactor: luck,
			Accepted:   s.Accepted,
		})
	}

	m.mu.Lock()
	poolSrc := m.poolInfo
	m.mu.Unlock()

	var pool PoolInfo
	if poolSrc != nil {
		pool = poolSrc.PoolInfo()
	} else {
		pool.Address = "not configured"
	}

	m.gpuMu.Lock()
	gpus := append([]GPUDeviceInfo(nil), m.gpuInfo...)
	m.gpuMu.Unlock()

	rate := uint64(m.TotalHashrate())
	return Snapshot{
		CurrentHashrate: rate,
		SessionAverage:  rate,
		SharesSubmitted: m.SharesSubmitted.Load(),
		SharesAccepted:  m.SharesAccepted.Load(),
		SharesRejected:  m.SharesRejected.Load(),
		AcceptanceRate:  m.AcceptanceRate(),
		AverageLuck:     m.AverageLuck(),
		TotalWork:       m.TotalWorkSubmitted.Load(),
		ThreadHashrates: m.ThreadHashrates(),
		ActiveThreads:   m.ActiveThreadCount(),
		CurrentJob:      m.CurrentJob(),
		RecentJobs:      m.RecentJobs(),
		RecentShares:    shares,
		TopShares:       m.TopShareDifficulties(5),
		UptimeSeconds:   uint64(m.SessionElapsed().Seconds()),
		Pool:            pool,
		System:          collectSystemInfo(),
		GPUs:            gpus,
	}
}
