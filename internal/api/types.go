package api

import (
	"context"
	"time"

	"octogrowl/internal/config"
	"octogrowl/internal/growl"
	"octogrowl/internal/storage"
)

const DefaultAddr = "127.0.0.1:5080"

type Config struct {
	Enabled bool
	Addr    string
	Token   string
	// Pprof mounts /debug/pprof behind the same auth as /api.
	Pprof bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// EventQueue accepts host lifecycle events without waiting on delivery.
// *growl.Dispatcher satisfies it.
type EventQueue interface {
	HandleAsync(event string, payload map[string]any) bool
}

// SettingsStore reads and persists the receiver section of the config.
type SettingsStore interface {
	Receiver() config.ReceiverConfig
	SaveReceiver(ctx context.Context, rc config.ReceiverConfig) error
}

// AuditReader serves the audit trail. storage.Store satisfies it.
type AuditReader interface {
	RecentAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error)
}

// Deps are the collaborators behind the routes. Nil members disable their
// routes with 503.
type Deps struct {
	Events   EventQueue
	Admin    growl.AdminCommandHandler
	Settings SettingsStore
	Audit    AuditReader
	Status   func() any
}
