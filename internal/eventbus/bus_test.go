package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TypeRegistered, Data: "x"})

	for i, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Type != TypeRegistered || e.Time.IsZero() {
				t.Fatalf("subscriber %d got %+v", i, e)
			}
		default:
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: TypeDelivered})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if got := Dropped(b); got != 99 {
		t.Fatalf("dropped = %d, want 99", got)
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	b.Publish(Event{Type: TypeDelivered}) // must not panic
}

func TestTallyRun(t *testing.T) {
	t.Parallel()
	b := New()
	tally := NewTally()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tally.Run(ctx, b)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for tally.Counts()[TypeDeliveryFailed] < 2 {
		b.Publish(Event{Type: TypeDeliveryFailed})
		select {
		case <-deadline:
			t.Fatal("tally never caught up")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if _, ok := tally.LastSeen(TypeDeliveryFailed); !ok {
		t.Fatal("LastSeen should report the event type")
	}
	cancel()
	<-done
}
