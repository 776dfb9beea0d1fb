package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	logx "octogrowl/pkg/logx"
)

// Validate checks the structural parts of cfg: durations, enums and addresses.
// Receiver semantics (hostname, port range, hash algorithm, notification names)
// are validated by the growl package when the receiver config is built.
//
// All problems are reported at once, joined with errors.Join.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(checkDuration("receiver.timeout", cfg.Receiver.Timeout))
	if !logx.ValidLevel(cfg.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	if w := cfg.Worker; w != nil {
		if w.Workers < 0 {
			add(errors.New("worker.workers must be >= 0"))
		}
		if w.QueueSize < 0 {
			add(errors.New("worker.queue_size must be >= 0"))
		}
		add(checkDuration("worker.task_timeout", w.TaskTimeout))
	}

	if d := cfg.Dispatch; d != nil {
		if d.RatePerSec < 0 {
			add(errors.New("dispatch.rate_per_sec must be >= 0"))
		}
		if d.Burst < 0 {
			add(errors.New("dispatch.burst must be >= 0"))
		}
	}

	if d := cfg.Discovery; d != nil {
		add(checkDuration("discovery.cache_ttl", d.CacheTTL))
		for i, in := range d.Instances {
			if strings.TrimSpace(in.Host) == "" {
				add(fmt.Errorf("discovery.instances[%d].host is required", i))
			}
			if in.Port < 1 || in.Port > 65535 {
				add(fmt.Errorf("discovery.instances[%d].port out of range: %d", i, in.Port))
			}
		}
	}

	if a := cfg.API; a != nil && a.Enabled {
		if addr := strings.TrimSpace(a.Addr); addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				add(fmt.Errorf("api.addr: %w", err))
			}
		}
		for _, f := range [][2]string{
			{"api.read_timeout", a.ReadTimeout},
			{"api.write_timeout", a.WriteTimeout},
			{"api.idle_timeout", a.IdleTimeout},
		} {
			add(checkDuration(f[0], f[1]))
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		add(checkDuration("storage.busy_timeout", s.BusyTimeout))
	}

	return errors.Join(errs...)
}

// ParseDurationOrDefault reads a Go duration such as "5s". Blank or zero
// yields def; negative or malformed values are errors naming path.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	case d == 0:
		return def, nil
	}
	return d, nil
}

func checkDuration(path, raw string) error {
	_, err := ParseDurationOrDefault(path, raw, 0)
	return err
}
