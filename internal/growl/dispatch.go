package growl

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"

	"octogrowl/internal/eventbus"
	logx "octogrowl/pkg/logx"
)

// ActiveSource yields the client to send through, or nil. *Manager satisfies it.
type ActiveSource interface {
	Active() Client
}

// DeliveryEvent is the Data of the delivery events on the bus.
type DeliveryEvent struct {
	Event    string `json:"event"`
	Type     string `json:"type"`
	Endpoint string `json:"endpoint,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(log logx.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

func WithDispatchPublisher(p Publisher) DispatcherOption {
	return func(d *Dispatcher) { d.pub = p }
}

// WithDispatchRunner sets where HandleAsync runs deliveries.
func WithDispatchRunner(r TaskRunner) DispatcherOption {
	return func(d *Dispatcher) { d.runner = r }
}

// WithRateLimit caps outbound notifications; perSec <= 0 means unlimited.
func WithRateLimit(perSec float64, burst int) DispatcherOption {
	return func(d *Dispatcher) { d.SetRateLimit(perSec, burst) }
}

// Dispatcher turns host events into notifications on the active client.
// Delivery is best-effort and at most once: failures are logged and
// published, never returned.
type Dispatcher struct {
	src     ActiveSource
	log     logx.Logger
	pub     Publisher
	runner  TaskRunner
	limiter atomic.Pointer[rate.Limiter]
}

func NewDispatcher(src ActiveSource, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{src: src}
	for _, o := range opts {
		o(d)
	}
	return d
}

// SetRateLimit replaces the limiter. Safe to call while events are handled.
func (d *Dispatcher) SetRateLimit(perSec float64, burst int) {
	if perSec <= 0 {
		d.limiter.Store(nil)
		return
	}
	if burst < 1 {
		burst = max(1, int(perSec))
	}
	d.limiter.Store(rate.NewLimiter(rate.Limit(perSec), burst))
}

// Handle implements EventSink. It never returns an error and never panics.
func (d *Dispatcher) Handle(ctx context.Context, event string, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("growl dispatch panicked", logx.String("event", event), logx.Any("panic", r))
		}
	}()
	client := d.src.Active()
	if client == nil {
		return
	}
	rec, ok := Translate(event, payload)
	if !ok {
		return
	}
	if l := d.limiter.Load(); l != nil && !l.Allow() {
		d.log.Debug("notification dropped by rate limit", logx.String("event", event), logx.String("type", rec.Type.Key()))
		d.publish(eventbus.TypeDispatchDropped, DeliveryEvent{Event: event, Type: rec.Type.Key(), Reason: "rate limited"})
		return
	}

	endpoint := client.Config().Endpoint()
	if err := d.send(ctx, client, rec); err != nil {
		d.log.Warn("growl delivery failed",
			logx.String("event", event),
			logx.String("type", rec.Type.Key()),
			logx.String("endpoint", endpoint),
			logx.String("reason", err.Reason),
			logx.Err(err.Err),
		)
		d.publish(eventbus.TypeDeliveryFailed, DeliveryEvent{Event: event, Type: rec.Type.Key(), Endpoint: endpoint, Reason: err.Reason, Error: err.Error()})
		return
	}
	d.log.Debug("growl notification sent", logx.String("event", event), logx.String("type", rec.Type.Key()), logx.String("endpoint", endpoint))
	d.publish(eventbus.TypeDelivered, DeliveryEvent{Event: event, Type: rec.Type.Key(), Endpoint: endpoint})
}

// HandleAsync queues Handle on the task runner so the caller never waits on
// the network. Events that cannot produce a notification are filtered first.
// It reports whether the event was queued.
func (d *Dispatcher) HandleAsync(event string, payload map[string]any) bool {
	client := d.src.Active()
	if !Recognized(event) || client == nil {
		return false
	}
	run := func(ctx context.Context) error {
		d.Handle(ctx, event, payload)
		return nil
	}
	if d.runner == nil {
		go func() { _ = run(context.Background()) }()
		return true
	}
	if err := d.runner.Submit("growl.dispatch:"+event, taskTimeout(client.Config()), run); err != nil {
		d.log.Warn("notification dropped: worker unavailable", logx.String("event", event), logx.Err(err))
		d.publish(eventbus.TypeDispatchDropped, DeliveryEvent{Event: event, Reason: "worker unavailable", Error: err.Error()})
		return false
	}
	return true
}

// send delivers rec, converting errors and panics into a *DeliveryError.
func (d *Dispatcher) send(ctx context.Context, c Client, rec NotificationRecord) (derr *DeliveryError) {
	defer func() {
		if r := recover(); r != nil {
			derr = &DeliveryError{Type: rec.Type, Reason: ReasonInternal, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := c.Notify(ctx, rec); err != nil {
		return &DeliveryError{Type: rec.Type, Reason: classify(err), Err: err}
	}
	return nil
}

func (d *Dispatcher) publish(typ string, data DeliveryEvent) {
	if d.pub == nil {
		return
	}
	d.pub.Publish(eventbus.Event{Type: typ, Data: data})
}
