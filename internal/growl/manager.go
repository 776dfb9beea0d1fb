package growl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"octogrowl/internal/eventbus"
	logx "octogrowl/pkg/logx"
)

// RegisteredEvent is the Data of eventbus.TypeRegistered.
type RegisteredEvent struct {
	Endpoint   string `json:"endpoint"`
	Generation uint64 `json:"generation"`
}

// RegistrationFailedEvent is the Data of eventbus.TypeRegistrationFailed.
type RegistrationFailedEvent struct {
	Endpoint   string `json:"endpoint"`
	Generation uint64 `json:"generation"`
	Reason     string `json:"reason"`
	Error      string `json:"error"`
}

type activeSlot struct {
	client Client
	gen    uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithManagerLogger(log logx.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

func WithPublisher(p Publisher) ManagerOption {
	return func(m *Manager) { m.pub = p }
}

func WithAuditSink(a AuditSink) ManagerOption {
	return func(m *Manager) { m.audit = a }
}

// WithTaskRunner sets where Reconfigure runs registrations. Without one,
// each reconfiguration gets its own goroutine.
func WithTaskRunner(r TaskRunner) ManagerOption {
	return func(m *Manager) { m.runner = r }
}

// Manager owns the active client.
//
// Every requested config gets a generation number. A finished registration is
// installed (or, on failure, clears the slot) only if its generation is still
// the latest one requested, so the last config submitted always wins no
// matter which registration completes first.
type Manager struct {
	factory ClientFactory
	log     logx.Logger
	pub     Publisher
	audit   AuditSink
	runner  TaskRunner
	now     func() time.Time

	gen    atomic.Uint64
	active atomic.Pointer[activeSlot]

	// installMu serializes the generation re-check with the slot swap.
	installMu sync.Mutex

	statusMu sync.RWMutex
	status   Status
}

func NewManager(factory ClientFactory, opts ...ManagerOption) *Manager {
	if factory == nil {
		factory = GNTPFactory()
	}
	m := &Manager{factory: factory, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Active returns the active client, or nil when none is registered.
func (m *Manager) Active() Client {
	if s := m.active.Load(); s != nil {
		return s.client
	}
	return nil
}

// Generation returns the number of the latest requested config.
func (m *Manager) Generation() uint64 { return m.gen.Load() }

// Status returns a snapshot for admin output.
func (m *Manager) Status() Status {
	m.statusMu.RLock()
	st := m.status
	m.statusMu.RUnlock()
	st.Generation = m.gen.Load()
	if s := m.active.Load(); s != nil {
		st.Registered = true
		st.Endpoint = s.client.Config().Endpoint()
	} else {
		st.Registered = false
	}
	return st
}

// ApplyConfig builds a client for cfg, registers it and makes it the active
// client. On registration failure the active client becomes none and a
// *RegistrationError is returned. An invalid cfg returns a *ValidationError
// and changes nothing. If a newer config is requested while this one is
// registering, the result is discarded and ErrSuperseded is returned.
func (m *Manager) ApplyConfig(ctx context.Context, cfg ReceiverConfig) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return m.apply(ctx, m.gen.Add(1), cfg.Clone())
}

// TestConfig builds and registers a client for cfg without touching the
// active slot.
func (m *Manager) TestConfig(ctx context.Context, cfg ReceiverConfig) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return m.build(ctx, cfg.Clone())
}

// Reconfigure requests cfg asynchronously and returns at once. The
// registration runs on the task runner; only a validation error is reported
// here. Registration outcomes go to the log, the publisher and the audit sink.
func (m *Manager) Reconfigure(cfg ReceiverConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.Clone()
	gen := m.gen.Add(1)
	task := func(ctx context.Context) error {
		_, err := m.apply(ctx, gen, cfg)
		if errors.Is(err, ErrSuperseded) {
			return nil
		}
		return err
	}

	if m.runner != nil {
		err := m.runner.Submit(fmt.Sprintf("growl.register#%d", gen), taskTimeout(cfg), task)
		if err == nil {
			return nil
		}
		// The request must not be lost: it already owns the latest generation.
		m.log.Warn("registration task rejected; running inline goroutine", logx.Uint64("generation", gen), logx.Err(err))
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout(cfg))
		defer cancel()
		_ = task(ctx)
	}()
	return nil
}

// OnConfigChange implements ConfigObserver.
func (m *Manager) OnConfigChange(cfg ReceiverConfig) {
	if err := m.Reconfigure(cfg); err != nil {
		m.log.Warn("receiver config rejected", logx.Err(err))
	}
}

func (m *Manager) build(ctx context.Context, cfg ReceiverConfig) (c Client, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, newRegistrationError(cfg, fmt.Errorf("%s: %v", ReasonInternal, r))
		}
	}()
	c, err = m.factory(cfg)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, err
		}
		return nil, newRegistrationError(cfg, err)
	}
	if err := c.Register(ctx); err != nil {
		return nil, newRegistrationError(cfg, err)
	}
	return c, nil
}

func (m *Manager) apply(ctx context.Context, gen uint64, cfg ReceiverConfig) (Client, error) {
	log := m.log.With(logx.String("endpoint", cfg.Endpoint()), logx.Uint64("generation", gen))
	started := m.now()
	c, err := m.build(ctx, cfg)

	m.installMu.Lock()
	latest := gen == m.gen.Load()
	if latest {
		if err != nil {
			m.active.Store(nil)
		} else {
			m.active.Store(&activeSlot{client: c, gen: gen})
		}
		m.recordAttempt(started, err)
	}
	m.installMu.Unlock()

	if !latest {
		log.Debug("registration result discarded (superseded)", logx.Bool("ok", err == nil))
		return nil, ErrSuperseded
	}

	if err != nil {
		var re *RegistrationError
		reason := ReasonInternal
		if errors.As(err, &re) {
			reason = re.Reason
		}
		log.Warn("growl registration failed; notifications disabled until next success", logx.String("reason", reason), logx.Err(err))
		m.publish(eventbus.TypeRegistrationFailed, RegistrationFailedEvent{Endpoint: cfg.Endpoint(), Generation: gen, Reason: reason, Error: err.Error()})
		m.auditf(ctx, AuditRegister, cfg.Endpoint(), false, err.Error())
		return nil, err
	}

	log.Info("growl registration succeeded", logx.Duration("took", m.now().Sub(started)))
	m.publish(eventbus.TypeRegistered, RegisteredEvent{Endpoint: cfg.Endpoint(), Generation: gen})
	m.auditf(ctx, AuditRegister, cfg.Endpoint(), true, "")
	return c, nil
}

func (m *Manager) recordAttempt(at time.Time, err error) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.status.LastAttempt = at
	if err != nil {
		m.status.LastError = err.Error()
		return
	}
	m.status.LastError = ""
	m.status.LastSuccess = m.now()
}

func (m *Manager) publish(typ string, data any) {
	if m.pub == nil {
		return
	}
	m.pub.Publish(eventbus.Event{Type: typ, Time: m.now(), Data: data})
}

func (m *Manager) auditf(ctx context.Context, action, target string, ok bool, detail string) {
	if m.audit == nil {
		return
	}
	// The request context may already be done; the audit line should still land.
	m.audit.Audit(context.WithoutCancel(ctx), AuditRecord{At: m.now(), Action: action, Target: target, OK: ok, Detail: detail})
}
