package config

// Config is the on-disk configuration of octogrowl.
//
// Optional sections are pointers so we can tell "omitted" from an explicit zero
// value; the app maps nil sections to runtime defaults.
type Config struct {
	Receiver ReceiverConfig `json:"receiver"`
	Logging  LoggingConfig  `json:"logging"`

	Worker    *WorkerConfig    `json:"worker,omitempty"`
	Dispatch  *DispatchConfig  `json:"dispatch,omitempty"`
	Discovery *DiscoveryConfig `json:"discovery,omitempty"`
	API       *APIConfig       `json:"api,omitempty"`
	Storage   *StorageConfig   `json:"storage,omitempty"`
}

// ReceiverConfig describes the Growl receiver notifications are sent to.
//
// Defaults (when fields are omitted/zero):
//   - hostname: "localhost"
//   - port: 23053
//   - timeout: "10s"
//   - app_name: "OctoPrint"
//   - hash_algorithm: "SHA256"
//   - enabled_by_default: ["test", "print_started", "print_done"]
type ReceiverConfig struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
	Password string `json:"password,omitempty"` // do not log

	// Timeout is a Go duration string (e.g. "10s").
	Timeout string `json:"timeout,omitempty"`

	AppName          string   `json:"app_name,omitempty"`
	IconURL          string   `json:"icon_url,omitempty"`
	HashAlgorithm    string   `json:"hash_algorithm,omitempty"`
	EnabledByDefault []string `json:"enabled_by_default,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// WorkerConfig controls the background worker that runs registrations and
// asynchronous deliveries.
//
// Defaults: workers=2, queue_size=64, task_timeout="30s".
type WorkerConfig struct {
	Workers     int    `json:"workers,omitempty"`
	QueueSize   int    `json:"queue_size,omitempty"`
	TaskTimeout string `json:"task_timeout,omitempty"`
}

// DispatchConfig throttles outbound notifications. rate_per_sec=0 disables the limiter.
type DispatchConfig struct {
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
}

// DiscoveryConfig controls the receiver list shown to admins.
//
// Example:
//
//	"discovery": {
//	  "enabled": true,
//	  "schedule": "@every 5m",
//	  "cache_ttl": "10m",
//	  "instances": [{"name": "desk", "host": "192.168.1.20", "port": 23053}]
//	}
type DiscoveryConfig struct {
	Enabled   bool                `json:"enabled"`
	Schedule  string              `json:"schedule,omitempty"`  // cron spec, default "@every 5m"
	CacheTTL  string              `json:"cache_ttl,omitempty"` // Go duration string, default "10m"
	Timezone  string              `json:"timezone,omitempty"`
	Instances []DiscoveryInstance `json:"instances,omitempty"`
}

type DiscoveryInstance struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// APIConfig controls the HTTP admin/event API.
//
// Security note:
//   - Prefer binding to localhost (default "127.0.0.1:5080").
//   - Set a token when binding to a non-loopback address.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"` // optional bearer token (do not log)
	Pprof   bool   `json:"pprof,omitempty"` // expose /debug/pprof

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// StorageConfig controls the optional audit log.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./octogrowl_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
