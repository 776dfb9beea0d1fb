package growl

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"octogrowl/internal/eventbus"
)

// fakeClient registers according to its gate and records notifications.
type fakeClient struct {
	cfg ReceiverConfig

	// entered is closed when Register starts; gate (if set) decides its result.
	entered     chan struct{}
	enteredOnce sync.Once
	gate        chan error
	registerErr error

	notifyErr   error
	notifyPanic bool

	mu    sync.Mutex
	sent  []NotificationRecord
	calls atomic.Int32
}

func newFakeClient(host string) *fakeClient {
	cfg := DefaultReceiverConfig()
	cfg.Hostname = host
	return &fakeClient{cfg: cfg, entered: make(chan struct{})}
}

func (f *fakeClient) Register(ctx context.Context) error {
	f.enteredOnce.Do(func() { close(f.entered) })
	if f.gate == nil {
		return f.registerErr
	}
	select {
	case err := <-f.gate:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeClient) Notify(_ context.Context, rec NotificationRecord) error {
	f.calls.Add(1)
	if f.notifyPanic {
		panic("notify exploded")
	}
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, rec)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Config() ReceiverConfig { return f.cfg }

func (f *fakeClient) Sent() []NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NotificationRecord(nil), f.sent...)
}

// fakeFactory hands out prepared clients by hostname.
type fakeFactory struct {
	mu      sync.Mutex
	clients map[string]*fakeClient
	built   atomic.Int32
}

func newFakeFactory(clients ...*fakeClient) *fakeFactory {
	f := &fakeFactory{clients: map[string]*fakeClient{}}
	for _, c := range clients {
		f.clients[c.cfg.Hostname] = c
	}
	return f
}

func (f *fakeFactory) Build(cfg ReceiverConfig) (Client, error) {
	f.built.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[cfg.Hostname]
	if !ok {
		return nil, errors.New("no fake client for " + cfg.Hostname)
	}
	c.cfg = cfg
	return c, nil
}

// staticSource is an ActiveSource with a fixed client.
type staticSource struct{ c Client }

func (s staticSource) Active() Client { return s.c }

// goRunner runs tasks on goroutines.
type goRunner struct {
	submitted   atomic.Int32
	lastTimeout atomic.Int64
	err         error
}

func (r *goRunner) Submit(_ string, timeout time.Duration, fn func(ctx context.Context) error) error {
	if r.err != nil {
		return r.err
	}
	r.submitted.Add(1)
	r.lastTimeout.Store(int64(timeout))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = fn(ctx)
	}()
	return nil
}

type memAudit struct {
	mu   sync.Mutex
	recs []AuditRecord
}

func (a *memAudit) Audit(_ context.Context, rec AuditRecord) {
	a.mu.Lock()
	a.recs = append(a.recs, rec)
	a.mu.Unlock()
}

func (a *memAudit) Records() []AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AuditRecord(nil), a.recs...)
}

func cfgFor(host string) ReceiverConfig {
	cfg := DefaultReceiverConfig()
	cfg.Hostname = host
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func nextEvent(t *testing.T, ch <-chan eventbus.Event) eventbus.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("no event published")
		return eventbus.Event{}
	}
}
