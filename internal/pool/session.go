package pool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tari-project/graxil/internal/job"
	"github.com/tari-project/graxil/internal/stats"
	"github.com/tari-project/graxil/internal/util"
)

const (
	// reconnectDelay is how long the session waits after losing the
	// connection before dialing again
	reconnectDelay = 5 * time.Second

	// latencyInterval is the period of the connection latency monitor
	latencyInterval = 5 * time.Second

	writeTimeout = 10 * time.Second

	// maxFrameSize bounds a single pool message
	maxFrameSize = 64 * 1024
)

// Share submission id ranges: GPU shares use [0,100), CPU shares [100,200),
// and the login exchange id 1 (which is skipped in the GPU range). The
// response router sends every id below maxShareID to the share handler,
// which resolves the thread through the pending table.
const (
	gpuIDBase   = 0
	cpuIDBase   = 100
	idRangeSize = 100
	maxShareID  = 200
)

// pendingShare is an outstanding submission awaiting its pool response
type pendingShare struct {
	threadID   int
	difficulty uint64
}

// frame is the shape-dispatch view of one pool message
type frame struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// loginResult is the payload of a successful login response. Pools may
// assign a session id and may embed the first job.
type loginResult struct {
	ID  string          `json:"id"`
	Job json.RawMessage `json:"job"`
}

// Session owns the pool socket. A single reader consumes the line stream
// and routes messages; writes go through a mutex-held write path shared
// with the share submitter.
type Session struct {
	wallet string
	worker string

	client *Client
	jobs   *job.Broadcaster
	stats  *stats.MinerStats

	connMu sync.Mutex
	conn   net.Conn

	pendingMu sync.Mutex
	pending   map[uint64]pendingShare

	// OnReconnect, when set, fires after a successful re-login
	OnReconnect func()
}

// NewSession creates a pool session. Run must be called to connect.
func NewSession(client *Client, wallet, worker string, jobs *job.Broadcaster, minerStats *stats.MinerStats) *Session {
	return &Session{
		wallet:  wallet,
		worker:  worker,
		client:  client,
		jobs:    jobs,
		stats:   minerStats,
		pending: make(map[uint64]pendingShare),
	}
}

// Run connects, logs in, and consumes the message stream until the context
// is cancelled. The first connection failure is returned as unrecoverable;
// once a session has been established the loop reconnects forever.
func (s *Session) Run(ctx context.Context) error {
	conn, err := s.client.Dial()
	if err != nil {
		return err
	}
	s.setConn(conn)

	if err := s.login(); err != nil {
		conn.Close()
		return err
	}
	util.Infof("Connected to pool %s, login sent", s.client.ResolvedAddress())
	s.stats.AddActivity("Connected to pool")

	go s.latencyMonitor(ctx)

	// Unblock the reader when the context ends
	go func() {
		<-ctx.Done()
		s.closeConn()
	}()

	for {
		err := s.readLoop(ctx, conn)
		if ctx.Err() != nil {
			s.closeConn()
			return nil
		}

		if err != nil {
			util.Errorf("Pool connection lost: %v, reconnecting in %s", err, reconnectDelay)
		} else {
			util.Infof("Pool closed the connection, reconnecting in %s", reconnectDelay)
		}
		s.client.MarkDisconnected()
		s.clearPending()
		s.stats.AddActivity("Pool connection lost, reconnecting")

		conn = s.reconnect(ctx)
		if conn == nil {
			return nil
		}
	}
}

// reconnect retries dial+login every reconnectDelay until it succeeds or
// the context ends. Returns nil only on cancellation.
func (s *Session) reconnect(ctx context.Context) net.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}

		conn, err := s.client.Dial()
		if err != nil {
			util.Errorf("Reconnect failed: %v", err)
			continue
		}
		s.setConn(conn)

		if err := s.login(); err != nil {
			util.Errorf("Re-login failed: %v", err)
			conn.Close()
			continue
		}

		util.Infof("Reconnected to pool %s", s.client.ResolvedAddress())
		s.stats.AddActivity("Reconnected to pool")
		if s.OnReconnect != nil {
			s.OnReconnect()
		}
		return conn
	}
}

// readLoop consumes newline-delimited JSON frames from one connection
func (s *Session) readLoop(ctx context.Context, conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxFrameSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.handleLine(line)
	}
	return scanner.Err()
}

func (s *Session) setConn(conn net.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Session) closeConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()
}

// writeFrame writes one frame under the connection mutex
func (s *Session) writeFrame(data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return net.ErrClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := s.conn.Write(data)
	return err
}

// login sends the login request (id 1)
func (s *Session) login() error {
	frame, err := buildLoginRequest(s.wallet, s.worker)
	if err != nil {
		return err
	}
	return s.writeFrame(frame)
}

// handleLine parses and dispatches one pool message by shape
func (s *Session) handleLine(line []byte) {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		util.Warnf("Discarding malformed pool message: %v", err)
		return
	}

	switch {
	case f.Method == "job":
		s.handleJob(f.Params)

	case f.ID != nil && *f.ID == loginID && (f.Result != nil || !isJSONNull(f.Error)):
		s.handleLoginResponse(&f)

	case f.ID != nil && *f.ID < maxShareID && (f.Result != nil || f.Error != nil):
		s.handleShareResponse(*f.ID, &f)

	case f.Error != nil && !isJSONNull(f.Error):
		util.Errorf("Pool error: %s", f.Error)
		s.stats.AddActivity("Pool error: " + string(f.Error))

	case f.Method != "":
		util.Debugf("Ignoring unknown pool method %q", f.Method)

	default:
		util.Debugf("Ignoring unrecognized pool message: %s", line)
	}
}

// handleJob decodes a job notification and broadcasts it to workers
func (s *Session) handleJob(params json.RawMessage) {
	var pj job.PoolJob
	if err := json.Unmarshal(params, &pj); err != nil {
		util.Warnf("Discarding malformed job params: %v", err)
		return
	}

	mj, err := job.Decode(&pj)
	if err != nil {
		util.Warnf("Discarding job %q: %v", pj.JobID, err)
		return
	}

	s.stats.UpdateJob(mj.JobID, mj.Height, mj.TargetDifficulty)
	s.jobs.Publish(mj)

	if pj.Difficulty > 0 {
		s.stats.AddActivity("Pool difficulty update: " + util.FormatNumber(pj.Difficulty))
	}
	s.stats.AddActivity(fmt.Sprintf("New job %s at height %d", shortJobID(mj.JobID), mj.Height))
	util.Infof("New job %s (height %d, difficulty %s)",
		mj.JobID, mj.Height, util.FormatNumber(mj.TargetDifficulty))
}

// handleLoginResponse processes the id-1 response, storing the pool session
// id and publishing any embedded first job.
func (s *Session) handleLoginResponse(f *frame) {
	if f.Error != nil && !isJSONNull(f.Error) {
		util.Errorf("Pool rejected login: %s", f.Error)
		s.stats.AddActivity("Login rejected: " + string(f.Error))
		return
	}

	util.Info("Login successful")
	s.stats.AddActivity("Login successful")

	var result loginResult
	if err := json.Unmarshal(f.Result, &result); err != nil {
		return
	}
	if result.ID != "" {
		s.client.SetSessionID(result.ID)
		util.Debugf("Pool assigned session id %s", result.ID)
	}
	if result.Job != nil {
		s.handleJob(result.Job)
	}
}

// handleShareResponse resolves accept/reject for an outstanding submission
// and updates counters. The decision is tolerant of pool dialects.
func (s *Session) handleShareResponse(id uint64, f *frame) {
	accepted, reason := resolveShareVerdict(f)

	s.pendingMu.Lock()
	share, ok := s.pending[id]
	delete(s.pending, id)
	s.pendingMu.Unlock()

	if !ok {
		util.Debugf("Response for unknown share id %d (accepted=%v)", id, accepted)
		return
	}

	s.stats.RecordShareResult(share.threadID, share.difficulty, accepted)
	if accepted {
		util.Infof("Share accepted (thread %d, difficulty %s)",
			share.threadID, util.FormatNumber(share.difficulty))
		s.stats.AddActivity("Share accepted from thread " + strconv.Itoa(share.threadID))
	} else {
		util.Warnf("Share rejected (thread %d): %s", share.threadID, reason)
		s.stats.AddActivity("Share rejected from thread " + strconv.Itoa(share.threadID) + ": " + reason)
	}
}

// resolveShareVerdict applies the tolerant accept/reject policy over the
// several response shapes pools emit.
func resolveShareVerdict(f *frame) (accepted bool, reason string) {
	if f.Error != nil && !isJSONNull(f.Error) {
		return false, string(f.Error)
	}
	if f.Result == nil {
		return false, "response carried neither result nor error"
	}
	if isJSONNull(f.Result) {
		return true, ""
	}

	var b bool
	if err := json.Unmarshal(f.Result, &b); err == nil {
		if b {
			return true, ""
		}
		return false, "pool returned false"
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(f.Result, &status); err == nil && status.Status != "" {
		switch strings.ToLower(status.Status) {
		case "ok", "accepted":
			return true, ""
		}
		return false, "status " + status.Status
	}

	// An explicit "error":null next to an opaque result is a success in
	// some pool dialects
	if string(f.Error) == "null" {
		return true, ""
	}

	util.Warnf("Unknown share response shape: %s", f.Result)
	return false, "unrecognized response shape"
}

// registerPending records an outstanding submission for response routing
func (s *Session) registerPending(id uint64, threadID int, difficulty uint64) {
	s.pendingMu.Lock()
	s.pending[id] = pendingShare{threadID: threadID, difficulty: difficulty}
	s.pendingMu.Unlock()
}

// unregisterPending drops an outstanding submission, e.g. after a write error
func (s *Session) unregisterPending(id uint64) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

// clearPending forgets all in-flight submissions; their responses will
// never arrive once the connection is gone.
func (s *Session) clearPending() {
	s.pendingMu.Lock()
	n := len(s.pending)
	s.pending = make(map[uint64]pendingShare)
	s.pendingMu.Unlock()

	if n > 0 {
		util.Warnf("Dropped %d in-flight share submissions on disconnect", n)
	}
}

// latencyMonitor periodically refreshes connection latency for the
// dashboard with a lightweight TCP round trip. Failures are non-fatal.
func (s *Session) latencyMonitor(ctx context.Context) {
	ticker := time.NewTicker(latencyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.client.Connected() {
			continue
		}
		endpoint := s.client.ResolvedAddress()
		if endpoint == "" {
			continue
		}

		start := time.Now()
		probe, err := net.DialTimeout("tcp", endpoint, 2*time.Second)
		if err != nil {
			util.Debugf("Latency probe failed: %v", err)
			continue
		}
		probe.Close()
		s.client.UpdateLatency(time.Since(start))
	}
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func shortJobID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
