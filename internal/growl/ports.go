package growl

import (
	"context"
	"time"

	"octogrowl/internal/eventbus"
)

// The host plays several roles around the core. Each is its own interface so
// the app can wire them separately.

// ConfigObserver is told about receiver config changes (settings saved,
// config file edited). Implemented by *Manager.
type ConfigObserver interface {
	OnConfigChange(cfg ReceiverConfig)
}

// EventSink receives host lifecycle events. Implemented by *Dispatcher.
type EventSink interface {
	Handle(ctx context.Context, event string, payload map[string]any)
}

// AdminCommandHandler answers admin commands. Implemented by *Admin.
type AdminCommandHandler interface {
	TestConnectivity(ctx context.Context, req TestRequest) TestResult
	ListReceivers(ctx context.Context) ReceiverList
}

// DiscoveryBridge lists receivers found on the network. Injected.
type DiscoveryBridge interface {
	Browse(ctx context.Context) ([]DiscoveryRecord, error)
}

// AuditRecord is a storage-neutral audit line.
type AuditRecord struct {
	At     time.Time
	Action string
	Target string
	OK     bool
	Detail string
}

// AuditSink persists admin actions and registration outcomes. Injected;
// failures are the sink's problem, never the caller's.
type AuditSink interface {
	Audit(ctx context.Context, rec AuditRecord)
}

// Publisher emits lifecycle signals. eventbus.Bus satisfies it.
type Publisher interface {
	Publish(e eventbus.Event)
}

// TaskRunner runs fn off the caller's goroutine with a context bounded by
// timeout. The task engine satisfies it through a small adapter in the app.
type TaskRunner interface {
	Submit(name string, timeout time.Duration, fn func(ctx context.Context) error) error
}

// taskGrace is added to the receiver timeout to bound a queued task, leaving
// room for logging, auditing and publishing after the network call.
const taskGrace = 5 * time.Second

// taskTimeout bounds one registration or delivery for a receiver.
func taskTimeout(cfg ReceiverConfig) time.Duration {
	t := cfg.Timeout
	if t <= 0 {
		t = DefaultTimeout
	}
	return t + taskGrace
}

// Audit actions.
const (
	AuditRegister = "register"
	AuditTest     = "test_connectivity"
)
