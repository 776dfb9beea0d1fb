package eventbus

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Tally counts events per type. It backs the counters on the status endpoint.
type Tally struct {
	mu     sync.Mutex
	counts map[string]uint64
	last   map[string]time.Time
}

func NewTally() *Tally {
	return &Tally{counts: map[string]uint64{}, last: map[string]time.Time{}}
}

// Run consumes events from b until ctx is done.
func (t *Tally) Run(ctx context.Context, b Bus) {
	ch, unsub := b.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			t.Add(e)
		}
	}
}

func (t *Tally) Add(e Event) {
	t.mu.Lock()
	t.counts[e.Type]++
	if e.Time.After(t.last[e.Type]) {
		t.last[e.Type] = e.Time
	}
	t.mu.Unlock()
}

// Counts returns a copy of the per-type counters.
func (t *Tally) Counts() map[string]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.counts)
}

// LastSeen returns when an event of type typ was last observed.
func (t *Tally) LastSeen(typ string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.last[typ]
	return ts, ok
}
