package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"octogrowl/internal/eventbus"
	rtsup "octogrowl/internal/runtime/supervisor"
	logx "octogrowl/pkg/logx"
)

const warnThrottleEvery = 5 * time.Second

// Service runs submitted tasks on a fixed pool of workers fed by a bounded
// queue. Tasks never run on the submitter's goroutine.
type Service struct {
	mu       sync.Mutex
	cfg      Config
	log      logx.Logger
	bus      eventbus.Bus
	q        chan queuedTask
	sup      *rtsup.Supervisor
	stopCh   chan struct{}
	stopDone chan struct{}

	// parent is the context the pool was first started with; a resize
	// restarts under it.
	parent context.Context
	// carried holds tasks queued when a resize stopped the old pool.
	carried []queuedTask

	stateMu sync.Mutex
	states  map[string]*runState

	hmu     sync.Mutex
	history []HistoryItem

	inFlight atomic.Int32
	done     atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64

	lastDropWarnAt atomic.Int64
}

type queuedTask struct {
	task       Task
	enqueuedAt time.Time
	timeout    time.Duration
	opt        TaskOptions
	state      *runState
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	return &Service{
		cfg:    withDefaults(cfg),
		log:    log,
		bus:    bus,
		states: make(map[string]*runState),
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return cfg
}

// Supervisor returns the engine's worker supervisor (nil if not started).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

// Apply swaps in cfg. Worker or queue size changes restart the pool: running
// tasks finish first, and queued tasks move to the new queue. ctx bounds the
// wait for running tasks; once it is done they are canceled.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = withDefaults(cfg)
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.stopCh != nil && s.stopDone == nil
	parent := s.parent
	s.mu.Unlock()

	if running && (prev.Workers != cfg.Workers || prev.QueueSize != cfg.QueueSize) {
		s.shutdown(ctx, true)
		s.Start(parent)
	}
}

// Start launches the workers. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		done := s.stopDone
		s.mu.Unlock()
		if done == nil {
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
		if s.stopCh != nil {
			s.mu.Unlock()
			return
		}
	}

	if s.parent == nil {
		s.parent = ctx
	}
	cfg := s.cfg
	s.q = make(chan queuedTask, cfg.QueueSize)
	s.stopCh = make(chan struct{})
	s.stopDone = nil
	stopCh, queue := s.stopCh, s.q
	for _, qt := range s.carried {
		select {
		case queue <- qt:
		default:
			s.discard(qt)
		}
	}
	s.carried = nil
	s.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "taskengine"))),
		// A failing worker must not take the whole process down.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	s.mu.Unlock()

	for i := range cfg.Workers {
		sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.worker(c, stopCh, queue)
			select {
			case <-stopCh:
				return context.Canceled
			default:
			}
			if c.Err() != nil {
				return c.Err()
			}
			return errors.New("worker exited unexpectedly")
		})
	}
	s.log.Info("task engine started", logx.Int("workers", cfg.Workers), logx.Int("queue", cfg.QueueSize))
}

// Stop cancels running tasks and waits for the workers until ctx is done.
// Tasks still queued are discarded.
func (s *Service) Stop(ctx context.Context) {
	s.shutdown(ctx, false)
}

// shutdown stops the pool. With keep, running tasks may finish until ctx is
// done and queued tasks are carried over to the next Start; it then waits for
// the workers regardless of ctx so the next Start sees a stopped pool.
func (s *Service) shutdown(ctx context.Context, keep bool) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	close(s.stopCh)
	sup, queue := s.sup, s.q
	s.mu.Unlock()

	if !keep {
		sup.Cancel()
	}
	go func() {
		_ = sup.Wait(context.Background())
		left := takeQueued(queue)
		s.mu.Lock()
		if keep {
			s.carried = append(s.carried, left...)
			left = nil
		} else {
			left = append(left, s.carried...)
			s.carried = nil
		}
		s.q, s.stopCh, s.stopDone, s.sup = nil, nil, nil, nil
		s.mu.Unlock()
		for _, qt := range left {
			s.discard(qt)
		}
		close(done)
	}()

	select {
	case <-done:
		if keep {
			s.log.Debug("task engine resized")
		} else {
			s.log.Info("task engine stopped")
		}
		return
	case <-ctx.Done():
	}
	if !keep {
		s.log.Warn("task engine stop timed out", logx.Err(ctx.Err()))
		return
	}
	s.log.Warn("task engine resize: canceling running tasks", logx.Err(ctx.Err()))
	sup.Cancel()
	<-done
}

func takeQueued(queue chan queuedTask) []queuedTask {
	var out []queuedTask
	for {
		select {
		case t := <-queue:
			out = append(out, t)
		default:
			return out
		}
	}
}

// discard releases the overlap state of a task that will never run.
func (s *Service) discard(qt queuedTask) {
	if qt.state != nil {
		qt.state.release()
	}
	s.dropped.Add(1)
}

// Enqueue adds t without blocking. A full queue drops t with ErrQueueFull.
func (s *Service) Enqueue(t Task) error {
	return s.enqueue(context.Background(), t, false)
}

// Submit adds t, waiting for queue space until ctx is done or the engine stops.
func (s *Service) Submit(ctx context.Context, t Task) error {
	return s.enqueue(ctx, t, true)
}

func (s *Service) enqueue(ctx context.Context, t Task, block bool) error {
	if t.Run == nil {
		return errors.New("task Run is nil")
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return errors.New("task Name is required")
	}
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.New().String()
	}

	s.mu.Lock()
	cfg, q, stopCh := s.cfg, s.q, s.stopCh
	stopping := s.stopDone != nil
	s.mu.Unlock()

	if q == nil || stopCh == nil {
		return ErrStopped
	}
	if stopping {
		return ErrStopping
	}

	now := time.Now()
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = cfg.DefaultTimeout
	}
	opt := t.Opt

	var st *runState
	if opt.Overlap == OverlapSkipIfRunning {
		st = s.stateFor(t.Name)
		if !st.tryAcquire() {
			s.publish(eventbus.TypeTaskSkipped, now, TaskEvent{ID: t.ID, Name: t.Name, Started: now, Error: "overlap_skip"})
			s.log.Debug("task skipped due to overlap", logx.String("task", t.Name))
			return ErrOverlapSkip
		}
	}

	qt := queuedTask{task: t, enqueuedAt: now, timeout: timeout, opt: opt, state: st}
	if !block {
		select {
		case q <- qt:
			return nil
		default:
			if st != nil {
				st.release()
			}
			s.onQueueFull(now, t, q)
			return ErrQueueFull
		}
	}
	select {
	case q <- qt:
		return nil
	case <-ctx.Done():
		if st != nil {
			st.release()
		}
		return ctx.Err()
	case <-stopCh:
		if st != nil {
			st.release()
		}
		return ErrStopping
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg, q, running := s.cfg, s.q, s.stopCh != nil && s.stopDone == nil
	s.mu.Unlock()

	snap := Snapshot{
		Running:  running,
		Workers:  cfg.Workers,
		InFlight: int(s.inFlight.Load()),
		Done:     s.done.Load(),
		Failed:   s.failed.Load(),
		Dropped:  s.dropped.Load(),
	}
	if q != nil {
		snap.QueueLen, snap.QueueCap = len(q), cap(q)
	}
	s.hmu.Lock()
	snap.History = append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return snap
}

func (s *Service) stateFor(name string) *runState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st := s.states[name]
	if st == nil {
		st = &runState{}
		s.states[name] = st
	}
	return st
}

func (s *Service) record(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

func (s *Service) publish(typ string, at time.Time, ev TaskEvent) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: at, Data: ev})
	}
}

func (s *Service) onQueueFull(now time.Time, t Task, q chan queuedTask) {
	n := s.dropped.Add(1)
	s.publish(eventbus.TypeTaskDropped, now, TaskEvent{ID: t.ID, Name: t.Name, Started: now, Error: "queue_full"})

	prev := s.lastDropWarnAt.Load()
	if prev != 0 && now.UnixNano()-prev < int64(warnThrottleEvery) {
		return
	}
	if s.lastDropWarnAt.CompareAndSwap(prev, now.UnixNano()) {
		s.log.Warn("task dropped: queue full",
			logx.String("task", t.Name),
			logx.Int("queue_cap", cap(q)),
			logx.Uint64("dropped", n),
		)
	}
}
