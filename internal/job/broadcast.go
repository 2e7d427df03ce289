package job

import (
	"sync"
)

// subscriberBuffer bounds how many undelivered jobs a slow worker can lag
// behind; only the most recent jobs matter.
const subscriberBuffer = 4

// Broadcaster fans new jobs out to all workers and holds the current-job
// slot. Publishing never blocks: a subscriber that has fallen behind loses
// its oldest undelivered job.
type Broadcaster struct {
	mu      sync.Mutex
	current *MiningJob
	subs    []chan *MiningJob
}

// NewBroadcaster creates an empty job broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers a new worker and returns its job channel. The current
// job, if any, is delivered immediately.
func (b *Broadcaster) Subscribe() <-chan *MiningJob {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *MiningJob, subscriberBuffer)
	if b.current != nil {
		ch <- b.current
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish replaces the current job and broadcasts it to all subscribers
func (b *Broadcaster) Publish(j *MiningJob) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = j
	for _, ch := range b.subs {
		for {
			select {
			case ch <- j:
			default:
				// Full: drop the oldest queued job and retry
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Current returns the most recently published job, or nil before the first
func (b *Broadcaster) Current() *MiningJob {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
