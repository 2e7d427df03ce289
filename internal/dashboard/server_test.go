package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tari-project/graxil/internal/config"
	"github.com/tari-project/graxil/internal/stats"
)

func newTestServer() (*Server, *stats.MinerStats) {
	minerStats := stats.New(2)
	cfg := &config.DashboardConfig{
		Enabled:        true,
		Bind:           "127.0.0.1:0",
		UpdateInterval: 50 * time.Millisecond,
	}
	return NewServer(cfg, minerStats), minerStats
}

func TestSnapshotEndpoint(t *testing.T) {
	s, minerStats := newTestServer()

	minerStats.UpdateJob("job-x", 4242, 1000)
	minerStats.RecordShareFound(1, 5000, 1000)
	minerStats.AddSubmitted()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var snap stats.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("snapshot not JSON: %v", err)
	}
	if snap.CurrentJob.JobID != "job-x" || snap.CurrentJob.Height != 4242 {
		t.Errorf("job: %+v", snap.CurrentJob)
	}
	if snap.SharesSubmitted != 1 {
		t.Errorf("submitted = %d", snap.SharesSubmitted)
	}
	if len(snap.RecentShares) != 1 || snap.RecentShares[0].ThreadID != 1 {
		t.Errorf("recent shares: %+v", snap.RecentShares)
	}
	if snap.RecentShares[0].LuckFactor < 4.9 || snap.RecentShares[0].LuckFactor > 5.1 {
		t.Errorf("luck = %f, want 5.0", snap.RecentShares[0].LuckFactor)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCORSPreflights(t *testing.T) {
	s, _ := newTestServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/snapshot", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != 204 {
		t.Errorf("OPTIONS status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
