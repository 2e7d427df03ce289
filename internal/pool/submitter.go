package pool

import (
	"context"
	"sync/atomic"

	"github.com/tari-project/graxil/internal/util"
)

// WorkerKind selects the submission id range for a share
type WorkerKind int

const (
	// KindGPU shares use ids [0,100)
	KindGPU WorkerKind = iota
	// KindCPU shares use ids [100,200)
	KindCPU
)

// Share is a found share queued for submission
type Share struct {
	JobID      string
	NonceHex   string
	HashHex    string
	ThreadID   int
	Difficulty uint64
	Target     uint64
	Kind       WorkerKind
}

// Submitter consumes found shares from all workers and writes them to the
// pool socket. Each submission gets an id from its worker class's range and
// is registered in the session's outstanding table before the write, so the
// response router can resolve it.
type Submitter struct {
	session *Session
	shares  chan Share
	cpuSeq  atomic.Uint64
	gpuSeq  atomic.Uint64
}

// NewSubmitter creates a submitter bound to a session
func NewSubmitter(session *Session) *Submitter {
	return &Submitter{
		session: session,
		shares:  make(chan Share, 64),
	}
}

// Submit queues a share for submission. Never blocks a worker: when the
// queue is full the share is dropped with a warning, since a stale share
// has no value anyway.
func (s *Submitter) Submit(share Share) {
	select {
	case s.shares <- share:
	default:
		util.Warnf("Share queue full, dropping share from thread %d", share.ThreadID)
	}
}

// Run consumes the share queue until the context is cancelled
func (s *Submitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case share := <-s.shares:
			s.submit(&share)
		}
	}
}

// nextID allocates a submission id in the share's class range. The login
// id (1) is never handed out.
func (s *Submitter) nextID(kind WorkerKind) uint64 {
	if kind == KindCPU {
		return cpuIDBase + s.cpuSeq.Add(1)%idRangeSize
	}
	id := gpuIDBase + s.gpuSeq.Add(1)%idRangeSize
	if id == loginID {
		id = gpuIDBase + s.gpuSeq.Add(1)%idRangeSize
	}
	return id
}

// submit serializes and writes one share. Write failures drop the share;
// the pool expects fresh nonces against the current job, so retrying a
// stale submission is pointless.
func (s *Submitter) submit(share *Share) {
	// The pool-assigned session id identifies us when present, the wallet
	// address otherwise
	submitAs := s.session.client.SessionID()
	if submitAs == "" {
		submitAs = s.session.wallet
	}

	id := s.nextID(share.Kind)
	frame, err := buildSubmitRequest(id, submitAs, share.JobID, share.NonceHex, share.HashHex)
	if err != nil {
		util.Errorf("Failed to build submit request for job %s: %v", share.JobID, err)
		return
	}

	s.session.registerPending(id, share.ThreadID, share.Difficulty)

	util.Infof("Submitting share: job=%s nonce=%s thread=%d difficulty=%s",
		share.JobID, share.NonceHex, share.ThreadID, util.FormatNumber(share.Difficulty))

	if err := s.session.writeFrame(frame); err != nil {
		util.Errorf("Failed to submit share: %v", err)
		s.session.unregisterPending(id)
	}
}
