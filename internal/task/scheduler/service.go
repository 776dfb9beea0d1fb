package scheduler

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"octogrowl/internal/task/engine"
	logx "octogrowl/pkg/logx"
)

const enqueueWarnThrottle = 5 * time.Second

func New(cfg Config, eng Enqueuer, log logx.Logger) *Service {
	return &Service{
		cfg: cfg,
		log: log,
		eng: eng,
		// SecondOptional allows both 5-field and 6-field (with seconds) specs.
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		lastWarn: map[string]time.Time{},
	}
}

// Apply swaps in cfg. A timezone change re-registers every schedule.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tzChanged := strings.TrimSpace(s.cfg.Timezone) != strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg
	if s.c != nil && tzChanged {
		s.restartLocked()
	}
}

// Start begins triggering. Schedules added before Start are registered now.
func (s *Service) Start(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.startLocked()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

// Stop halts triggering and waits for in-progress trigger callbacks (not the
// tasks themselves) until ctx is done. Definitions survive for the next Start.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// AddSchedule registers job under name, replacing any schedule with the same
// name. Triggers that find the previous run still queued or running are skipped.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job func(ctx context.Context) error) error {
	return s.AddScheduleOpt(name, schedule, timeout, engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning}, job)
}

// AddScheduleOpt is AddSchedule with task options.
func (s *Service) AddScheduleOpt(name, schedule string, timeout time.Duration, opt engine.TaskOptions, job func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	spec := ps.CronSpec()
	if _, err := s.parser.Parse(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	s.defs = append(s.defs, scheduleDef{name: name, spec: spec, timeout: timeout, job: job, opt: opt})
	if s.c != nil {
		if err := s.addCronLocked(&s.defs[len(s.defs)-1]); err != nil {
			return err
		}
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec), logx.Duration("timeout", timeout))
	return nil
}

// Remove unregisters the named schedule and reports whether it existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(strings.TrimSpace(name))
}

// Trigger enqueues the named schedule's job immediately, outside its cadence.
func (s *Service) Trigger(name string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.defs, func(d scheduleDef) bool { return d.name == name })
	var d scheduleDef
	if i >= 0 {
		d = s.defs[i]
	}
	s.mu.Unlock()
	if i < 0 {
		return errors.New("unknown schedule " + name)
	}
	return s.enqueue(d)
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc := s.loc
	if loc == nil {
		loc = s.loadLocationLocked()
	}
	snap := Snapshot{Running: s.c != nil, Timezone: loc.String(), Schedules: make([]ScheduleInfo, 0, len(s.defs))}
	for _, d := range s.defs {
		info := ScheduleInfo{Name: d.name, Spec: d.spec, Timeout: d.timeout}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			info.Next, info.Prev = e.Next, e.Prev
		}
		snap.Schedules = append(snap.Schedules, info)
	}
	return snap
}

func (s *Service) startLocked() {
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for i := range s.defs {
		if err := s.addCronLocked(&s.defs[i]); err != nil {
			s.log.Error("schedule register failed", logx.String("name", s.defs[i].name), logx.Err(err))
		}
	}
	s.c.Start()
}

func (s *Service) restartLocked() {
	<-s.c.Stop().Done()
	s.startLocked()
	s.log.Info("scheduler restarted", logx.String("tz", s.loc.String()))
}

func (s *Service) removeLocked(name string) bool {
	i := slices.IndexFunc(s.defs, func(d scheduleDef) bool { return d.name == name })
	if i < 0 {
		return false
	}
	if s.c != nil && s.defs[i].entryID != 0 {
		s.c.Remove(s.defs[i].entryID)
	}
	s.defs = slices.Delete(s.defs, i, i+1)
	return true
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	def := *d
	id, err := s.c.AddFunc(d.spec, func() { _ = s.enqueue(def) })
	if err != nil {
		return err
	}
	d.entryID = id
	return nil
}

func (s *Service) enqueue(d scheduleDef) error {
	if s.eng == nil {
		return engine.ErrStopped
	}
	err := s.eng.Enqueue(engine.Task{Name: d.name, Timeout: d.timeout, Run: d.job, Opt: d.opt})
	if err != nil {
		s.reportEnqueueError(d.name, err)
	}
	return err
}

func (s *Service) reportEnqueueError(name string, err error) {
	// Overlap skips are normal when a run outlasts its interval.
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("schedule trigger skipped", logx.String("schedule", name), logx.Err(err))
		return
	}
	now := time.Now()
	s.warnMu.Lock()
	last := s.lastWarn[name]
	throttled := !last.IsZero() && now.Sub(last) < enqueueWarnThrottle
	if !throttled {
		s.lastWarn[name] = now
	}
	s.warnMu.Unlock()
	if !throttled {
		s.log.Warn("schedule failed to enqueue task", logx.String("schedule", name), logx.Err(err))
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
