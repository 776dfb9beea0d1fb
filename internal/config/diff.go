package config

import (
	"reflect"
	"slices"
	"sort"
	"strings"

	logx "octogrowl/pkg/logx"
)

// Section names reported by SummarizeConfigChange.
const (
	SectionReceiver  = "receiver"
	SectionLogging   = "logging"
	SectionWorker    = "worker"
	SectionDispatch  = "dispatch"
	SectionDiscovery = "discovery"
	SectionAPI       = "api"
	SectionStorage   = "storage"
)

// SummarizeConfigChange returns (1) a sorted list of changed sections and
// (2) safe structured attrs for logging. Secrets (receiver password, api token)
// are only ever reported as "<name>_set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	o, n := oldCfg.Receiver, newCfg.Receiver
	if !reflect.DeepEqual(o, n) {
		changed = append(changed, SectionReceiver)
		attrs = append(attrs,
			logx.String("receiver.hostname", strings.TrimSpace(n.Hostname)),
			logx.Int("receiver.port", n.Port),
			logx.Bool("receiver.password_set", n.Password != ""),
			logx.Bool("receiver.password_changed", o.Password != n.Password),
			logx.String("receiver.timeout", strings.TrimSpace(n.Timeout)),
			logx.String("receiver.hash_algorithm", n.HashAlgorithm),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, SectionLogging)
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Worker, newCfg.Worker) {
		changed = append(changed, SectionWorker)
		if w := newCfg.Worker; w != nil {
			attrs = append(attrs,
				logx.Int("worker.workers", w.Workers),
				logx.Int("worker.queue_size", w.QueueSize),
				logx.String("worker.task_timeout", strings.TrimSpace(w.TaskTimeout)),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.Dispatch, newCfg.Dispatch) {
		changed = append(changed, SectionDispatch)
		if d := newCfg.Dispatch; d != nil {
			attrs = append(attrs, logx.Any("dispatch.rate_per_sec", d.RatePerSec), logx.Int("dispatch.burst", d.Burst))
		}
	}

	if !reflect.DeepEqual(oldCfg.Discovery, newCfg.Discovery) {
		changed = append(changed, SectionDiscovery)
		if d := newCfg.Discovery; d != nil {
			attrs = append(attrs,
				logx.Bool("discovery.enabled", d.Enabled),
				logx.String("discovery.schedule", strings.TrimSpace(d.Schedule)),
				logx.Int("discovery.instances", len(d.Instances)),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.API, newCfg.API) {
		changed = append(changed, SectionAPI)
		if a := newCfg.API; a != nil {
			attrs = append(attrs,
				logx.Bool("api.enabled", a.Enabled),
				logx.String("api.addr", strings.TrimSpace(a.Addr)),
				logx.Bool("api.token_set", strings.TrimSpace(a.Token) != ""),
				logx.Bool("api.pprof", a.Pprof),
			)
		}
	}

	// Nil means disabled.
	var oDriver, nDriver, oPath, nPath string
	if s := oldCfg.Storage; s != nil {
		oDriver, oPath = strings.TrimSpace(s.Driver), strings.TrimSpace(s.Path)
	}
	if s := newCfg.Storage; s != nil {
		nDriver, nPath = strings.TrimSpace(s.Driver), strings.TrimSpace(s.Path)
	}
	if oDriver != nDriver || oPath != nPath {
		changed = append(changed, SectionStorage)
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPath != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// Changed reports whether section is in the list returned by SummarizeConfigChange.
func Changed(sections []string, section string) bool {
	return slices.Contains(sections, section)
}
