package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"octogrowl/internal/task/engine"
	logx "octogrowl/pkg/logx"
)

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []engine.Task
	err   error
}

func (r *recordingEnqueuer) Enqueue(t engine.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, t)
	return nil
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func noop(context.Context) error { return nil }

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		kind    SpecKind
		cron    string
		every   time.Duration
		wantErr bool
	}{
		{in: "*/5 * * * *", kind: SpecCron, cron: "*/5 * * * *"},
		{in: "@every 5m", kind: SpecCron, cron: "@every 5m"},
		{in: "@hourly", kind: SpecCron, cron: "@hourly"},
		{in: "cron:0 3 * * *", kind: SpecCron, cron: "0 3 * * *"},
		{in: "5m", kind: SpecInterval, every: 5 * time.Minute},
		{in: "every: 1h30m", kind: SpecInterval, every: 90 * time.Minute},
		{in: "00:15", kind: SpecInterval, every: 15 * time.Minute},
		{in: "02:30", kind: SpecInterval, every: 150 * time.Minute},
		{in: "", wantErr: true},
		{in: "cron:", wantErr: true},
		{in: "00:75", wantErr: true},
		{in: "00:00", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Kind != tt.kind || got.Cron != tt.cron || got.Every != tt.every {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestAddScheduleValidates(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &recordingEnqueuer{}, logx.Nop())
	if err := s.AddSchedule("", "5m", 0, noop); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := s.AddSchedule("x", "61 * * * *", 0, noop); err == nil {
		t.Fatal("bad cron accepted")
	}
	if err := s.AddSchedule("x", "5m", 0, nil); err == nil {
		t.Fatal("nil job accepted")
	}
}

func TestScheduleFiresIntoEngine(t *testing.T) {
	t.Parallel()
	enq := &recordingEnqueuer{}
	s := New(Config{Timezone: "UTC"}, enq, logx.Nop())
	if err := s.AddSchedule("discovery.refresh", "every:1s", 2*time.Second, noop); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	deadline := time.Now().Add(4 * time.Second)
	for enq.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("schedule never fired")
		}
		time.Sleep(20 * time.Millisecond)
	}
	enq.mu.Lock()
	task := enq.tasks[0]
	enq.mu.Unlock()
	if task.Name != "discovery.refresh" || task.Timeout != 2*time.Second || task.Opt.Overlap != engine.OverlapSkipIfRunning {
		t.Fatalf("task = %+v", task)
	}

	snap := s.Snapshot()
	if !snap.Running || snap.Timezone != "UTC" || len(snap.Schedules) != 1 || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestUpsertRemoveAndTrigger(t *testing.T) {
	t.Parallel()
	enq := &recordingEnqueuer{}
	s := New(Config{}, enq, logx.Nop())
	if err := s.AddSchedule("a", "@hourly", 0, noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSchedule("a", "@daily", 0, noop); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Spec != "@daily" {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}

	if err := s.Trigger("a"); err != nil {
		t.Fatal(err)
	}
	if enq.count() != 1 {
		t.Fatalf("enqueued = %d", enq.count())
	}
	if err := s.Trigger("missing"); err == nil {
		t.Fatal("trigger of unknown schedule succeeded")
	}

	enq.err = engine.ErrQueueFull
	if err := s.Trigger("a"); !errors.Is(err, engine.ErrQueueFull) {
		t.Fatalf("err = %v", err)
	}

	if !s.Remove("a") || s.Remove("a") {
		t.Fatal("Remove should report existence once")
	}
}

func TestApplyTimezoneRestarts(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, &recordingEnqueuer{}, logx.Nop())
	if err := s.AddSchedule("a", "@hourly", 0, noop); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.Apply(Config{Timezone: "Not/AZone"})
	snap := s.Snapshot()
	if snap.Timezone != time.Local.String() || len(snap.Schedules) != 1 || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("snapshot = %+v", snap)
	}
}
