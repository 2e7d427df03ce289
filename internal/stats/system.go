package stats

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo describes the host machine for the dashboard
type SystemInfo struct {
	CPUUsage    float64 `json:"cpu_usage"`
	CPUCores    int     `json:"cpu_cores"`
	CPUName     string  `json:"cpu_name"`
	MemoryTotal uint64  `json:"memory_total"`
	MemoryUsed  uint64  `json:"memory_used"`
	MemoryUsage float64 `json:"memory_usage"`
	OSName      string  `json:"os_name"`
	Hostname    string  `json:"hostname"`
}

// System probing is comparatively expensive, so results are cached briefly;
// snapshot producers can call at any rate.
var (
	sysMu        sync.Mutex
	sysCached    SystemInfo
	sysRefreshed time.Time
)

const systemInfoTTL = 5 * time.Second

func collectSystemInfo() SystemInfo {
	sysMu.Lock()
	defer sysMu.Unlock()

	if time.Since(sysRefreshed) < systemInfoTTL && sysCached.CPUCores > 0 {
		return sysCached
	}

	info := SystemInfo{}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUUsage = percents[0]
	}
	if cores, err := cpu.Counts(true); err == nil {
		info.CPUCores = cores
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUName = cpus[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryUsed = vm.Used
		info.MemoryUsage = vm.UsedPercent
	}
	if h, err := host.Info(); err == nil {
		info.OSName = h.Platform
		info.Hostname = h.Hostname
	}

	sysCached = info
	sysRefreshed = time.Now()
	return info
}
