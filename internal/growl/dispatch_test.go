package growl

import (
	"context"
	"errors"
	"testing"
	"time"

	"octogrowl/internal/eventbus"
)

func TestDispatchWithoutActiveClientIsNoop(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()
	d := NewDispatcher(staticSource{}, WithDispatchPublisher(bus))

	d.Handle(context.Background(), EventPrintStarted, map[string]any{"file": "job.gcode"})
	if d.HandleAsync(EventPrintStarted, map[string]any{"file": "job.gcode"}) {
		t.Fatal("HandleAsync queued without an active client")
	}
	select {
	case e := <-events:
		t.Fatalf("unexpected event %s", e.Type)
	default:
	}
}

func TestDispatchSendsTranslatedRecord(t *testing.T) {
	t.Parallel()
	c := newFakeClient("a.local")
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()
	d := NewDispatcher(staticSource{c}, WithDispatchPublisher(bus))

	d.Handle(context.Background(), EventPrintDone, map[string]any{"file": "x.gcode", "time": 125})
	d.Handle(context.Background(), "PrintPaused", map[string]any{"file": "x.gcode"})

	sent := c.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d notifications", len(sent))
	}
	if sent[0].Type != TypePrintDone || sent[0].Description != "x.gcode finished printing, took 125 seconds" {
		t.Fatalf("rec = %+v", sent[0])
	}
	e := nextEvent(t, events)
	if e.Type != eventbus.TypeDelivered {
		t.Fatalf("event = %s", e.Type)
	}
	if de, ok := e.Data.(DeliveryEvent); !ok || de.Type != "print_done" || de.Endpoint != "a.local:23053" {
		t.Fatalf("data = %+v", e.Data)
	}
}

func TestDispatchFailureKeepsActiveClient(t *testing.T) {
	t.Parallel()
	c := newFakeClient("a.local")
	c.notifyErr = errors.New("broken pipe")
	m := NewManager(newFakeFactory(c).Build)
	if _, err := m.ApplyConfig(context.Background(), cfgFor("a.local")); err != nil {
		t.Fatal(err)
	}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()
	d := NewDispatcher(m, WithDispatchPublisher(bus))

	d.Handle(context.Background(), EventFileUploaded, map[string]any{"file": "a.gcode"})

	e := nextEvent(t, events)
	if e.Type != eventbus.TypeDeliveryFailed {
		t.Fatalf("event = %s", e.Type)
	}
	if de := e.Data.(DeliveryEvent); de.Reason != ReasonUnreachable {
		t.Fatalf("reason = %q", de.Reason)
	}
	if m.Active() != Client(c) {
		t.Fatal("delivery failure dropped the active client")
	}
}

func TestDispatchRecoversFromPanics(t *testing.T) {
	t.Parallel()
	c := newFakeClient("a.local")
	c.notifyPanic = true
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()
	d := NewDispatcher(staticSource{c}, WithDispatchPublisher(bus))

	d.Handle(context.Background(), EventPrintStarted, map[string]any{"file": "a.gcode"})
	if e := nextEvent(t, events); e.Type != eventbus.TypeDeliveryFailed {
		t.Fatalf("event = %s", e.Type)
	}
}

func TestDispatchRateLimit(t *testing.T) {
	t.Parallel()
	c := newFakeClient("a.local")
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	d := NewDispatcher(staticSource{c}, WithDispatchPublisher(bus), WithRateLimit(0.001, 1))

	for range 3 {
		d.Handle(context.Background(), EventPrintStarted, map[string]any{"file": "a.gcode"})
	}
	if got := c.calls.Load(); got != 1 {
		t.Fatalf("notify calls = %d, want 1", got)
	}
	counts := map[string]int{}
	for range 3 {
		counts[nextEvent(t, events).Type]++
	}
	if counts[eventbus.TypeDelivered] != 1 || counts[eventbus.TypeDispatchDropped] != 2 {
		t.Fatalf("events = %v", counts)
	}

	d.SetRateLimit(0, 0)
	d.Handle(context.Background(), EventPrintStarted, map[string]any{"file": "a.gcode"})
	if got := c.calls.Load(); got != 2 {
		t.Fatalf("notify calls after lifting the limit = %d", got)
	}
}

func TestHandleAsync(t *testing.T) {
	t.Parallel()
	c := newFakeClient("a.local")
	r := &goRunner{}
	d := NewDispatcher(staticSource{c}, WithDispatchRunner(r))

	if d.HandleAsync("Shutdown", nil) {
		t.Fatal("unrecognized event queued")
	}
	if !d.HandleAsync(EventPrintDone, map[string]any{"file": "a.gcode"}) {
		t.Fatal("event not queued")
	}
	waitFor(t, "delivery", func() bool { return len(c.Sent()) == 1 })
	if got := time.Duration(r.lastTimeout.Load()); got != DefaultTimeout+taskGrace {
		t.Fatalf("task timeout = %v", got)
	}

	rejecting := NewDispatcher(staticSource{c}, WithDispatchRunner(&goRunner{err: errors.New("stopped")}))
	if rejecting.HandleAsync(EventPrintDone, map[string]any{"file": "a.gcode"}) {
		t.Fatal("queued on a stopped runner")
	}
}
