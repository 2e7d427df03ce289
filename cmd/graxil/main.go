// Graxil - SHA3x (Tari) CPU/GPU pool miner
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tari-project/graxil/internal/config"
	"github.com/tari-project/graxil/internal/dashboard"
	"github.com/tari-project/graxil/internal/gpu"
	"github.com/tari-project/graxil/internal/job"
	"github.com/tari-project/graxil/internal/miner"
	"github.com/tari-project/graxil/internal/newrelic"
	"github.com/tari-project/graxil/internal/notify"
	"github.com/tari-project/graxil/internal/pool"
	"github.com/tari-project/graxil/internal/profiling"
	"github.com/tari-project/graxil/internal/stats"
	"github.com/tari-project/graxil/internal/util"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	walletFlag := flag.String("wallet", "", "Wallet address (supports solo:, .WORKER and =DIFF forms)")
	poolFlag := flag.String("pool", "", "Pool address (HOST:PORT)")
	threadsFlag := flag.Int("threads", -1, "CPU mining threads (0 = one per logical CPU)")
	gpuFlag := flag.Bool("gpu", false, "Enable GPU mining on all detected OpenCL devices")
	workerFlag := flag.String("worker", "", "Worker name")
	detect := flag.Bool("detect", false, "Detect GPU devices, write the information file, and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Graxil v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override the config file
	if *walletFlag != "" {
		cfg.Pool.Wallet = *walletFlag
	}
	if *poolFlag != "" {
		cfg.Pool.Address = *poolFlag
	}
	if *threadsFlag >= 0 {
		cfg.Mining.Threads = *threadsFlag
	}
	if *gpuFlag {
		cfg.GPU.Enabled = true
	}
	if *workerFlag != "" {
		cfg.Pool.Worker = *workerFlag
	}

	if err := util.InitLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	if *detect {
		os.Exit(runDetect(cfg))
	}

	if err := cfg.Validate(); err != nil {
		util.Errorf("Configuration error: %v", err)
		os.Exit(1)
	}

	wallet, err := config.ParseWallet(cfg.Pool.Wallet)
	if err != nil {
		util.Errorf("Invalid wallet: %v", err)
		os.Exit(1)
	}

	numThreads := cfg.Mining.Threads
	if numThreads == 0 {
		numThreads = runtime.NumCPU()
	}

	util.Infof("Graxil v%s starting", version)
	util.Infof("Pool: %s, worker: %s", cfg.Pool.Address, cfg.Pool.Worker)
	if wallet.Solo {
		util.Info("Solo mining mode requested")
	}
	if wallet.DifficultyHint > 0 {
		util.Infof("Static difficulty hint: %s", util.FormatNumber(wallet.DifficultyHint))
	}

	// GPU engines come up first so their workers claim the low thread ids
	var engines []*gpu.Engine
	if cfg.GPU.Enabled {
		devices, err := gpu.DetectDevices()
		if err != nil {
			util.Errorf("GPU detection failed: %v, continuing with CPU only", err)
		}
		for _, device := range devices {
			engine, err := gpu.NewEngine(device)
			if err != nil {
				// Fatal for this device only; the rest keep mining
				util.Errorf("Skipping GPU %s: %v", device.Name(), err)
				continue
			}
			engines = append(engines, engine)
		}
	}
	gpuCount := len(engines)
	totalThreads := gpuCount + numThreads

	minerStats := stats.New(totalThreads)
	jobs := job.NewBroadcaster()

	client := pool.NewClient(cfg.Pool.Address)
	minerStats.SetPoolInfoSource(client)

	if gpuCount > 0 {
		infos := make([]stats.GPUDeviceInfo, 0, gpuCount)
		for _, e := range engines {
			d := e.Device()
			infos = append(infos, stats.GPUDeviceInfo{
				Name:         d.Name(),
				PlatformName: d.PlatformName(),
				ComputeUnits: uint32(d.MaxComputeUnits()),
				GlobalMemMB:  uint64(d.GlobalMemSize()) / (1024 * 1024),
			})
		}
		minerStats.SetGPUInfo(infos)
	}

	session := pool.NewSession(client, wallet.Login(), cfg.Pool.Worker, jobs, minerStats)
	submitter := pool.NewSubmitter(session)

	// Optional observers
	nrAgent := newrelic.NewAgent(&cfg.NewRelic)
	if err := nrAgent.Start(); err != nil {
		util.Errorf("Failed to start New Relic agent: %v", err)
	}
	notifier := notify.NewNotifier(&cfg.Webhook)

	minerStats.OnShareFound = func(threadID int, difficulty, target uint64) {
		nrAgent.RecordShareSubmitted(threadID, difficulty)
		notifier.NotifyHighDifficultyShare(threadID, difficulty, target)
	}
	minerStats.OnShareResult = func(threadID int, difficulty uint64, accepted bool) {
		nrAgent.RecordShareResult(threadID, difficulty, accepted)
	}
	session.OnReconnect = func() {
		notifier.NotifyReconnect(cfg.Pool.Address)
	}

	pprofServer := profiling.NewServer(&cfg.Profiling)
	if err := pprofServer.Start(); err != nil {
		util.Errorf("Failed to start pprof server: %v", err)
	}

	var dashboardServer *dashboard.Server
	if cfg.Dashboard.Enabled {
		dashboardServer = dashboard.NewServer(&cfg.Dashboard, minerStats)
		if err := dashboardServer.Start(); err != nil {
			util.Errorf("Failed to start dashboard: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go submitter.Run(ctx)

	// Workers: GPU first (ids 0..gpuCount-1), then CPU
	gpuWorkers := make([]*gpu.Worker, 0, gpuCount)
	for i, engine := range engines {
		worker := gpu.NewWorker(engine, i, jobs, minerStats, submitter)
		worker.Start()
		gpuWorkers = append(gpuWorkers, worker)
	}

	cpuMiner := miner.NewCPUMiner(numThreads, gpuCount, jobs, minerStats, submitter)
	cpuMiner.Start()

	// The session owns the socket; a first-connect failure is unrecoverable
	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- session.Run(ctx)
	}()

	// Periodic dashboard log line and telemetry push
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				minerStats.LogSummary()
				nrAgent.UpdateMinerMetrics(
					minerStats.TotalHashrate(),
					minerStats.ActiveThreadCount(),
					minerStats.SharesAccepted.Load(),
					minerStats.SharesRejected.Load(),
				)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		util.Info("Shutting down...")
	case err := <-sessionErr:
		if err != nil {
			util.Errorf("Unrecoverable pool connection failure: %v", err)
			exitCode = 1
		}
	}

	cancel()
	cpuMiner.Stop()
	for _, worker := range gpuWorkers {
		worker.Stop()
	}
	if dashboardServer != nil {
		dashboardServer.Stop()
	}
	pprofServer.Stop()
	nrAgent.Stop()

	util.Info("Miner stopped")
	os.Exit(exitCode)
}

// runDetect enumerates OpenCL devices and writes the device descriptor file
func runDetect(cfg *config.Config) int {
	devices, err := gpu.DetectDevices()
	if err != nil {
		util.Errorf("Device detection failed: %v", err)
		return 1
	}

	descriptors := make([]gpu.DeviceDescriptor, 0, len(devices))
	for _, d := range devices {
		util.Infof("Found device %d: %s", d.DeviceID(), d.Info())
		descriptors = append(descriptors, d.Descriptor())
	}

	if err := gpu.WriteInformationFile(cfg.GPU.InformationFile, descriptors); err != nil {
		util.Errorf("Failed to write device information file: %v", err)
		return 1
	}
	util.Infof("Wrote %d device descriptors to %s", len(descriptors), cfg.GPU.InformationFile)
	return 0
}
