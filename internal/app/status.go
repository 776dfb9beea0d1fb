package app

import (
	"time"

	"octogrowl/internal/growl"
	"octogrowl/internal/task/engine"
	"octogrowl/internal/task/scheduler"
)

// Status is the body of GET /api/status.
type Status struct {
	Uptime    string             `json:"uptime"`
	Growl     growl.Status       `json:"growl"`
	Worker    engine.Snapshot    `json:"worker"`
	Scheduler scheduler.Snapshot `json:"scheduler"`
	Events    map[string]uint64  `json:"events"`
	Discovery *DiscoveryStatus   `json:"discovery,omitempty"`
}

type DiscoveryStatus struct {
	Refreshes uint64 `json:"refreshes"`
	Failures  uint64 `json:"failures"`
}

func (a *App) Status() Status {
	st := Status{
		Growl:     a.mgr.Status(),
		Worker:    a.engine.Snapshot(),
		Scheduler: a.sched.Snapshot(),
		Events:    a.tally.Counts(),
	}
	st.Worker.History = nil
	if !a.started.IsZero() {
		st.Uptime = time.Since(a.started).Truncate(time.Second).String()
	}
	a.discMu.Lock()
	if a.disc != nil {
		r, f := a.disc.Stats()
		st.Discovery = &DiscoveryStatus{Refreshes: r, Failures: f}
	}
	a.discMu.Unlock()
	return st
}
