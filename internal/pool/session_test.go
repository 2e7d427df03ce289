package pool

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tari-project/graxil/internal/job"
	"github.com/tari-project/graxil/internal/stats"
)

func newTestSession(t *testing.T) (*Session, *stats.MinerStats, *job.Broadcaster) {
	t.Helper()
	minerStats := stats.New(4)
	jobs := job.NewBroadcaster()
	client := NewClient("127.0.0.1:1")
	return NewSession(client, "wallet-address", "worker", jobs, minerStats), minerStats, jobs
}

func TestShareResponseShapesAccepted(t *testing.T) {
	acceptedShapes := []string{
		`{"id":100,"result":{"status":"OK"}}`,
		`{"id":100,"result":{"status":"accepted"}}`,
		`{"id":100,"result":null}`,
		`{"id":100,"result":true}`,
		`{"id":100,"result":{},"error":null}`,
	}

	for _, line := range acceptedShapes {
		s, minerStats, _ := newTestSession(t)
		s.registerPending(100, 0, 42)
		s.handleLine([]byte(line))

		if got := minerStats.SharesAccepted.Load(); got != 1 {
			t.Errorf("%s: accepted = %d, want 1", line, got)
		}
		if got := minerStats.SharesRejected.Load(); got != 0 {
			t.Errorf("%s: rejected = %d, want 0", line, got)
		}
	}
}

func TestShareResponseShapesRejected(t *testing.T) {
	rejectedShapes := []string{
		`{"id":100,"result":false}`,
		`{"id":100,"error":{"code":-1,"message":"bad"}}`,
		`{"id":100,"result":{"weird":"shape"}}`,
	}

	for _, line := range rejectedShapes {
		s, minerStats, _ := newTestSession(t)
		s.registerPending(100, 0, 42)
		s.handleLine([]byte(line))

		if got := minerStats.SharesRejected.Load(); got != 1 {
			t.Errorf("%s: rejected = %d, want 1", line, got)
		}
		if got := minerStats.SharesAccepted.Load(); got != 0 {
			t.Errorf("%s: accepted = %d, want 0", line, got)
		}
	}
}

func TestAcceptRejectRouting(t *testing.T) {
	// Two shares out, one accepted, one rejected as stale
	s, minerStats, _ := newTestSession(t)

	minerStats.AddSubmitted()
	minerStats.AddSubmitted()
	s.registerPending(100, 1, 50)
	s.registerPending(101, 2, 60)

	s.handleLine([]byte(`{"id":100,"result":{"status":"OK"}}`))
	s.handleLine([]byte(`{"id":101,"error":{"code":23,"message":"stale"}}`))

	if a := minerStats.SharesAccepted.Load(); a != 1 {
		t.Errorf("accepted = %d, want 1", a)
	}
	if r := minerStats.SharesRejected.Load(); r != 1 {
		t.Errorf("rejected = %d, want 1", r)
	}
	if sub := minerStats.SharesSubmitted.Load(); sub != 2 {
		t.Errorf("submitted = %d, want 2", sub)
	}

	// Accepted difficulty flows into total work, rejected does not
	if w := minerStats.TotalWorkSubmitted.Load(); w != 50 {
		t.Errorf("total work = %d, want 50", w)
	}
	// The rejection lands on the right thread
	if r := minerStats.ThreadStats[2].SharesRejected.Load(); r != 1 {
		t.Errorf("thread 2 rejected = %d, want 1", r)
	}
}

func TestUnknownShareIDIsIgnored(t *testing.T) {
	s, minerStats, _ := newTestSession(t)
	s.handleLine([]byte(`{"id":150,"result":true}`))

	if minerStats.SharesAccepted.Load() != 0 || minerStats.SharesRejected.Load() != 0 {
		t.Error("response without a pending entry should not move counters")
	}
}

func TestJobNotificationBroadcast(t *testing.T) {
	s, minerStats, jobs := newTestSession(t)
	ch := jobs.Subscribe()

	blob := strings.Repeat("ab", 32)
	line := `{"method":"job","params":{"job_id":"j-7","blob":"` + blob +
		`","target":"ffffffffffffffff","algo":"sha3x","height":777,"xn":"ad49"}}`
	s.handleLine([]byte(line))

	select {
	case mj := <-ch:
		if mj.JobID != "j-7" || mj.Height != 777 {
			t.Errorf("job fields: %+v", mj)
		}
		if len(mj.XN) != 2 || mj.XN[0] != 0xad || mj.XN[1] != 0x49 {
			t.Errorf("xn = %x", mj.XN)
		}
	case <-time.After(time.Second):
		t.Fatal("job not broadcast")
	}

	if minerStats.CurrentJob().JobID != "j-7" {
		t.Errorf("stats job = %q", minerStats.CurrentJob().JobID)
	}
}

func TestMalformedJobIsDiscarded(t *testing.T) {
	s, minerStats, jobs := newTestSession(t)
	ch := jobs.Subscribe()

	// Wrong blob length: mining continues on the prior job
	s.handleLine([]byte(`{"method":"job","params":{"job_id":"bad","blob":"abcd","target":"ffffffffffffffff","height":1}}`))

	select {
	case <-ch:
		t.Fatal("malformed job should not be broadcast")
	case <-time.After(50 * time.Millisecond):
	}
	if minerStats.CurrentJob().JobID == "bad" {
		t.Error("malformed job should not become current")
	}
}

func TestMalformedJSONIsDiscarded(t *testing.T) {
	s, _, _ := newTestSession(t)
	// Must not panic, session continues
	s.handleLine([]byte(`{"method":`))
	s.handleLine([]byte(`not json at all`))
}

func TestLoginResponseStoresSessionIDAndEmbeddedJob(t *testing.T) {
	s, _, jobs := newTestSession(t)
	ch := jobs.Subscribe()

	blob := strings.Repeat("00", 32)
	line := `{"id":1,"jsonrpc":"2.0","result":{"id":"sess-42","job":{"job_id":"first","blob":"` +
		blob + `","target":"ffffffffffffffff","height":9}}}`
	s.handleLine([]byte(line))

	if got := s.client.SessionID(); got != "sess-42" {
		t.Errorf("session id = %q", got)
	}

	select {
	case mj := <-ch:
		if mj.JobID != "first" {
			t.Errorf("embedded job = %q", mj.JobID)
		}
	case <-time.After(time.Second):
		t.Fatal("embedded first job not broadcast")
	}
}

func TestReconnectAfterEOF(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	logins := make(chan string, 4)
	go func() {
		for i := 0; ; i++ {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err == nil {
				logins <- line
			}
			if i == 0 {
				// First connection dies right after login
				conn.Close()
			}
		}
	}()

	minerStats := stats.New(1)
	minerStats.SharesAccepted.Add(7) // must survive the reconnect
	jobs := job.NewBroadcaster()
	client := NewClient(listener.Addr().String())
	s := NewSession(client, "wallet-address", "worker", jobs, minerStats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// First login
	select {
	case line := <-logins:
		assertLoginFrame(t, line)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial login")
	}

	// Re-login must arrive within 6 seconds of the drop
	select {
	case line := <-logins:
		assertLoginFrame(t, line)
	case <-time.After(6 * time.Second):
		t.Fatal("no re-login within 6 seconds")
	}

	if got := minerStats.SharesAccepted.Load(); got != 7 {
		t.Errorf("counters reset across reconnect: accepted = %d", got)
	}
}

func assertLoginFrame(t *testing.T, line string) {
	t.Helper()
	var req struct {
		ID     uint64 `json:"id"`
		Method string `json:"method"`
		Params struct {
			Login string   `json:"login"`
			Agent string   `json:"agent"`
			Algo  []string `json:"algo"`
		} `json:"params"`
	}
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		t.Fatalf("login frame not JSON: %v", err)
	}
	if req.ID != 1 || req.Method != "login" {
		t.Errorf("unexpected login frame: %s", line)
	}
	if len(req.Params.Algo) != 1 || req.Params.Algo[0] != "sha3x" {
		t.Errorf("algo must be the array [\"sha3x\"], got %v", req.Params.Algo)
	}
	if req.Params.Login != "wallet-address" {
		t.Errorf("login = %q", req.Params.Login)
	}
}
