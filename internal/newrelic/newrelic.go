// Package newrelic provides optional New Relic APM telemetry for the miner.
package newrelic

import (
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/tari-project/graxil/internal/config"
	"github.com/tari-project/graxil/internal/util"
)

// Agent wraps the New Relic application for mining telemetry
type Agent struct {
	cfg *config.NewRelicConfig
	mu  sync.RWMutex
	app *newrelic.Application
}

// NewAgent creates a new New Relic agent
func NewAgent(cfg *config.NewRelicConfig) *Agent {
	return &Agent{cfg: cfg}
}

// Start initializes the New Relic agent
func (a *Agent) Start() error {
	if !a.cfg.Enabled {
		util.Info("New Relic APM disabled")
		return nil
	}
	if a.cfg.LicenseKey == "" {
		util.Warn("New Relic license key not configured, APM disabled")
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(a.cfg.AppName),
		newrelic.ConfigLicense(a.cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return err
	}

	if err := app.WaitForConnection(5 * time.Second); err != nil {
		util.Warnf("New Relic connection timeout: %v (will retry in background)", err)
	}

	a.mu.Lock()
	a.app = app
	a.mu.Unlock()

	util.Infof("New Relic APM enabled for app: %s", a.cfg.AppName)
	return nil
}

// Stop shuts down the New Relic agent
func (a *Agent) Stop() {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		util.Info("Shutting down New Relic agent")
		app.Shutdown(10 * time.Second)
	}
}

func (a *Agent) recordEvent(eventType string, params map[string]interface{}) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomEvent(eventType, params)
	}
}

func (a *Agent) recordMetric(name string, value float64) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomMetric(name, value)
	}
}

// RecordShareSubmitted records a share leaving for the pool
func (a *Agent) RecordShareSubmitted(threadID int, difficulty uint64) {
	a.recordEvent("ShareSubmitted", map[string]interface{}{
		"thread":     threadID,
		"difficulty": difficulty,
	})
}

// RecordShareResult records the pool's verdict on a share
func (a *Agent) RecordShareResult(threadID int, difficulty uint64, accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	a.recordEvent("ShareResult", map[string]interface{}{
		"thread":     threadID,
		"difficulty": difficulty,
		"status":     status,
	})
}

// UpdateMinerMetrics pushes session-wide gauges
func (a *Agent) UpdateMinerMetrics(hashrate float64, activeThreads int, accepted, rejected uint64) {
	a.recordMetric("Custom/Miner/Hashrate", hashrate)
	a.recordMetric("Custom/Miner/ActiveThreads", float64(activeThreads))
	a.recordMetric("Custom/Miner/SharesAccepted", float64(accepted))
	a.recordMetric("Custom/Miner/SharesRejected", float64(rejected))
}
