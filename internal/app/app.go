package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"octogrowl/internal/api"
	"octogrowl/internal/config"
	"octogrowl/internal/discovery"
	"octogrowl/internal/eventbus"
	"octogrowl/internal/growl"
	rtsup "octogrowl/internal/runtime/supervisor"
	"octogrowl/internal/storage"
	"octogrowl/internal/task/engine"
	"octogrowl/internal/task/scheduler"
	logx "octogrowl/pkg/logx"
)

// App hosts the growl core: it owns config, logging, the worker, storage and
// the HTTP API, and plays every host role the core needs.
type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	tally *eventbus.Tally
	store storage.Store

	engine *engine.Service
	sched  *scheduler.Service

	mgr   *growl.Manager
	disp  *growl.Dispatcher
	admin *growl.Admin
	api   *api.Service

	discMu sync.Mutex
	disc   *discovery.Cached

	started time.Time
}

// New loads and validates the config at cfgPath and builds every component.
// Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(mapLogging(cfg))
	a := &App{
		cfgm:  cfgm,
		log:   log.With(logx.String("comp", "app")),
		logs:  logSvc,
		bus:   eventbus.New(),
		tally: eventbus.NewTally(),
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.engine = engine.New(engCfg, log.With(logx.String("comp", "taskengine")), a.bus)
	runner := engineRunner{eng: a.engine}

	disc, err := mapDiscovery(cfg)
	if err != nil {
		return nil, err
	}
	a.sched = scheduler.New(scheduler.Config{Timezone: disc.timezone}, a.engine, log.With(logx.String("comp", "scheduler")))

	growlLog := log.With(logx.String("comp", "growl"))
	mopts := []growl.ManagerOption{
		growl.WithManagerLogger(growlLog),
		growl.WithPublisher(a.bus),
		growl.WithTaskRunner(runner),
	}
	aopts := []growl.AdminOption{
		growl.WithAdminLogger(growlLog.With(logx.String("role", "admin"))),
		growl.WithBaseConfig(a.currentReceiver),
	}
	if a.store != nil {
		sink := auditSink{store: a.store, log: log.With(logx.String("comp", "audit"))}
		mopts = append(mopts, growl.WithAuditSink(sink))
		aopts = append(aopts, growl.WithAdminAudit(sink))
	}
	a.mgr = growl.NewManager(growl.GNTPFactory(), mopts...)

	perSec, burst := mapDispatch(cfg)
	a.disp = growl.NewDispatcher(a.mgr,
		growl.WithDispatcherLogger(growlLog.With(logx.String("role", "dispatch"))),
		growl.WithDispatchPublisher(a.bus),
		growl.WithDispatchRunner(runner),
		growl.WithRateLimit(perSec, burst),
	)
	a.admin = growl.NewAdmin(a.mgr, aopts...)

	apiCfg, err := mapAPIConfig(cfg)
	if err != nil {
		return nil, err
	}
	deps := api.Deps{
		Events:   a.disp,
		Admin:    a.admin,
		Settings: &settingsStore{cfgm: cfgm},
		Status:   func() any { return a.Status() },
	}
	if a.store != nil {
		deps.Audit = a.store
	}
	a.api = api.New(apiCfg, deps, log)

	return a, nil
}

// Manager, Dispatcher and Admin expose the core roles to in-process hosts.
func (a *App) Manager() *growl.Manager       { return a.mgr }
func (a *App) Dispatcher() *growl.Dispatcher { return a.disp }
func (a *App) Admin() *growl.Admin           { return a.admin }
func (a *App) Bus() eventbus.Bus             { return a.bus }
func (a *App) API() *api.Service             { return a.api }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// currentReceiver is the committed receiver config, or the defaults if it
// cannot be mapped.
func (a *App) currentReceiver() growl.ReceiverConfig {
	if cfg := a.cfgm.Get(); cfg != nil {
		if rc, err := MapReceiver(cfg.Receiver); err == nil {
			return rc
		}
	}
	return growl.DefaultReceiverConfig()
}

func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return ValidateConfig(cfg)
	})

	a.engine.Start(run)
	a.sched.Start(run)
	if err := a.applyDiscovery(a.cfgm.Get()); err != nil {
		return err
	}

	a.sup.Go0("eventbus.tally", func(c context.Context) { a.tally.Run(c, a.bus) })
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Register with the persisted receiver in the background; startup never
	// waits on the network.
	if rc, err := MapReceiver(a.cfgm.Get().Receiver); err == nil {
		if err := a.mgr.Reconfigure(rc); err != nil {
			a.log.Warn("startup registration rejected", logx.Err(err))
		}
	}

	a.api.Start(run)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	if a.cfgm.Path() != "" {
		a.sup.Go("config.watch", func(c context.Context) error {
			return a.cfgm.Watch(c)
		})
	}

	a.log.Info("app started", logx.String("config", a.cfgm.Path()))
	return nil
}

// applyConfig pushes a committed config to the components whose section changed.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if config.Changed(sections, config.SectionLogging) {
		a.logs.Apply(mapLogging(next))
	}
	// Resize the pool before queueing a registration on it.
	if config.Changed(sections, config.SectionWorker) {
		if ec, err := mapEngineConfig(next); err != nil {
			a.log.Warn("invalid worker config; keeping previous", logx.Err(err))
		} else {
			resizeCtx, cancel := context.WithTimeout(ctx, engineResizeWait)
			a.engine.Apply(resizeCtx, ec)
			cancel()
		}
	}
	if config.Changed(sections, config.SectionReceiver) {
		if rc, err := MapReceiver(next.Receiver); err != nil {
			a.log.Warn("invalid receiver config; keeping previous", logx.Err(err))
		} else {
			a.mgr.OnConfigChange(rc)
		}
	}
	if config.Changed(sections, config.SectionDispatch) {
		a.disp.SetRateLimit(mapDispatch(next))
	}
	if config.Changed(sections, config.SectionDiscovery) {
		if err := a.applyDiscovery(next); err != nil {
			a.log.Warn("invalid discovery config; keeping previous", logx.Err(err))
		}
	}
	if config.Changed(sections, config.SectionAPI) {
		if ac, err := mapAPIConfig(next); err != nil {
			a.log.Warn("invalid api config; keeping previous", logx.Err(err))
		} else {
			a.api.Reconfigure(ctx, ac)
		}
	}
	if config.Changed(sections, config.SectionStorage) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Time: time.Now(), Data: sections})
	a.log.Info("config reloaded", fields...)
}

// applyDiscovery rebuilds the discovery bridge and its refresh schedule.
func (a *App) applyDiscovery(cfg *config.Config) error {
	ds, err := mapDiscovery(cfg)
	if err != nil {
		return err
	}
	a.discMu.Lock()
	defer a.discMu.Unlock()

	a.sched.Apply(scheduler.Config{Timezone: ds.timezone})
	a.sched.Remove(discovery.RefreshTaskName)
	if old := a.disc; old != nil {
		defer old.Close()
	}
	if !ds.enabled {
		a.disc = nil
		a.admin.SetDiscovery(nil)
		return nil
	}
	probe := discovery.NewReachable(discovery.NewStatic(ds.records), defaultProbeTimeout)
	cached := discovery.NewCached(probe, ds.ttl, a.log)
	if err := cached.Schedule(a.sched, ds.schedule, 0); err != nil {
		cached.Close()
		return fmt.Errorf("discovery.schedule: %w", err)
	}
	a.disc = cached
	a.admin.SetDiscovery(cached)
	a.log.Info("discovery enabled", logx.Int("instances", len(ds.records)), logx.String("schedule", ds.schedule))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Each step is bounded so one component cannot stall the whole stop.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		// respect the caller's deadline; never extend it
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, max(time.Until(dl), 0))
		}
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("api", 2*time.Second, func(c context.Context) error { a.api.Stop(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 3*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("discovery", time.Second, func(context.Context) error {
		a.discMu.Lock()
		defer a.discMu.Unlock()
		if a.disc != nil {
			a.disc.Close()
		}
		return nil
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
