package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"octogrowl/internal/api"
	"octogrowl/internal/config"
	"octogrowl/internal/growl"
	"octogrowl/internal/storage"
	"octogrowl/internal/task/engine"
	logx "octogrowl/pkg/logx"
)

// engineRunner lets growl run work on the task engine.
type engineRunner struct {
	eng *engine.Service
}

func (r engineRunner) Submit(name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	// Registrations and deliveries are at most once.
	return r.eng.Enqueue(engine.Task{Name: name, Timeout: timeout, Run: fn})
}

// auditSink writes growl audit records to storage.
type auditSink struct {
	store storage.Store
	log   logx.Logger
}

func (s auditSink) Audit(ctx context.Context, rec growl.AuditRecord) {
	err := s.store.AppendAudit(ctx, storage.AuditEntry{
		At:     rec.At,
		Action: rec.Action,
		Target: rec.Target,
		OK:     rec.OK,
		Detail: rec.Detail,
	})
	if err != nil {
		s.log.Warn("audit append failed", logx.String("action", rec.Action), logx.Err(err))
	}
}

// settingsStore backs the settings routes with the config manager.
type settingsStore struct {
	mu   sync.Mutex
	cfgm *config.ConfigManager
}

// Receiver returns the committed receiver section with the endpoint spelled
// out: a hostname or port left out of the file reads as its default, so a
// save built from it always carries an explicit endpoint.
func (s *settingsStore) Receiver() config.ReceiverConfig {
	var rc config.ReceiverConfig
	if cfg := s.cfgm.Get(); cfg != nil {
		rc = cfg.Clone().Receiver
	}
	if strings.TrimSpace(rc.Hostname) == "" {
		rc.Hostname = growl.DefaultHostname
	}
	if rc.Port == 0 {
		rc.Port = growl.DefaultPort
	}
	return rc
}

// SaveReceiver validates and persists rc. The config manager then publishes
// the new config and the reload loop reconfigures in the background.
//
// Unlike the config file, a submitted receiver gets no endpoint defaults: a
// blank hostname or a port outside 1-65535 is rejected.
func (s *settingsStore) SaveReceiver(ctx context.Context, rc config.ReceiverConfig) error {
	if err := checkEndpoint(rc); err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidSettings, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cfgm.Get()
	if cur == nil {
		cur = &config.Config{}
	}
	next := cur.Clone()
	next.Receiver = rc
	if err := ValidateConfig(next); err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidSettings, err)
	}
	return s.cfgm.Save(ctx, next)
}

func checkEndpoint(rc config.ReceiverConfig) error {
	if strings.TrimSpace(rc.Hostname) == "" {
		return errors.New("receiver.hostname: must not be empty")
	}
	if rc.Port < 1 || rc.Port > 65535 {
		return fmt.Errorf("receiver.port: must be between 1 and 65535, got %d", rc.Port)
	}
	return nil
}
