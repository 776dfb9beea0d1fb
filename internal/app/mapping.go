package app

import (
	"fmt"
	"strings"
	"time"

	"octogrowl/internal/api"
	"octogrowl/internal/config"
	"octogrowl/internal/growl"
	"octogrowl/internal/storage"
	"octogrowl/internal/task/engine"
	logx "octogrowl/pkg/logx"
)

// Runtime defaults for omitted config values.
const (
	defaultTaskTimeout       = 30 * time.Second
	defaultDiscoverySchedule = "@every 5m"
	defaultProbeTimeout      = 2 * time.Second
	defaultSQLiteBusy        = time.Second
	engineResizeWait         = 10 * time.Second

	defaultAPIReadTimeout  = 10 * time.Second
	defaultAPIWriteTimeout = 15 * time.Second
	defaultAPIIdleTimeout  = 60 * time.Second
)

// MapReceiver turns the on-disk receiver section into a growl.ReceiverConfig,
// filling defaults. The result is not validated.
func MapReceiver(rc config.ReceiverConfig) (growl.ReceiverConfig, error) {
	out := growl.DefaultReceiverConfig()
	if h := strings.TrimSpace(rc.Hostname); h != "" {
		out.Hostname = h
	}
	if rc.Port != 0 {
		out.Port = rc.Port
	}
	out.Password = rc.Password
	timeout, err := config.ParseDurationOrDefault("receiver.timeout", rc.Timeout, growl.DefaultTimeout)
	if err != nil {
		return growl.ReceiverConfig{}, err
	}
	out.Timeout = timeout
	if n := strings.TrimSpace(rc.AppName); n != "" {
		out.AppName = n
	}
	out.IconURL = strings.TrimSpace(rc.IconURL)
	if h := strings.TrimSpace(rc.HashAlgorithm); h != "" {
		out.HashAlgorithm = h
	}
	if rc.EnabledByDefault != nil {
		types := make([]growl.NotificationType, 0, len(rc.EnabledByDefault))
		for i, raw := range rc.EnabledByDefault {
			t, err := growl.ParseNotificationType(raw)
			if err != nil {
				return growl.ReceiverConfig{}, fmt.Errorf("receiver.enabled_by_default[%d]: %w", i, err)
			}
			types = append(types, t)
		}
		out.EnabledByDefault = types
	}
	return out, nil
}

// ValidateConfig is the ConfigManager validator: structure first, then the
// receiver as the growl package sees it.
func ValidateConfig(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	rc, err := MapReceiver(cfg.Receiver)
	if err != nil {
		return err
	}
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	return nil
}

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	out := engine.Config{DefaultTimeout: defaultTaskTimeout}
	w := cfg.Worker
	if w == nil {
		return out, nil
	}
	out.Workers = w.Workers
	out.QueueSize = w.QueueSize
	d, err := config.ParseDurationOrDefault("worker.task_timeout", w.TaskTimeout, defaultTaskTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	out.DefaultTimeout = d
	return out, nil
}

func mapDispatch(cfg *config.Config) (perSec float64, burst int) {
	if d := cfg.Dispatch; d != nil {
		return d.RatePerSec, d.Burst
	}
	return 0, 0
}

type discoverySettings struct {
	enabled  bool
	schedule string
	ttl      time.Duration
	timezone string
	records  []growl.DiscoveryRecord
}

func mapDiscovery(cfg *config.Config) (discoverySettings, error) {
	d := cfg.Discovery
	if d == nil || !d.Enabled {
		return discoverySettings{}, nil
	}
	ttl, err := config.ParseDurationOrDefault("discovery.cache_ttl", d.CacheTTL, 0)
	if err != nil {
		return discoverySettings{}, err
	}
	out := discoverySettings{
		enabled:  true,
		schedule: strings.TrimSpace(d.Schedule),
		ttl:      ttl,
		timezone: strings.TrimSpace(d.Timezone),
	}
	if out.schedule == "" {
		out.schedule = defaultDiscoverySchedule
	}
	for _, in := range d.Instances {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = in.Host
		}
		out.records = append(out.records, growl.DiscoveryRecord{Name: name, Host: strings.TrimSpace(in.Host), Port: in.Port})
	}
	return out, nil
}

func mapAPIConfig(cfg *config.Config) (api.Config, error) {
	a := cfg.API
	if a == nil {
		return api.Config{}, nil
	}
	out := api.Config{
		Enabled: a.Enabled,
		Addr:    strings.TrimSpace(a.Addr),
		Token:   strings.TrimSpace(a.Token),
		Pprof:   a.Pprof,
	}
	if out.Addr == "" {
		out.Addr = api.DefaultAddr
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationOrDefault("api.read_timeout", a.ReadTimeout, defaultAPIReadTimeout); err != nil {
		return api.Config{}, err
	}
	if out.WriteTimeout, err = config.ParseDurationOrDefault("api.write_timeout", a.WriteTimeout, defaultAPIWriteTimeout); err != nil {
		return api.Config{}, err
	}
	if out.IdleTimeout, err = config.ParseDurationOrDefault("api.idle_timeout", a.IdleTimeout, defaultAPIIdleTimeout); err != nil {
		return api.Config{}, err
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, defaultSQLiteBusy)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
