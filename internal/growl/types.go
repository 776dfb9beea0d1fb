package growl

import (
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"octogrowl/internal/gntp"
)

const (
	DefaultHostname = "localhost"
	DefaultPort     = gntp.DefaultPort
	DefaultTimeout  = 10 * time.Second
	DefaultAppName  = "OctoPrint"
)

// ReceiverConfig describes where notifications go. It is a value: a client
// built from it keeps its own copy.
type ReceiverConfig struct {
	Hostname string
	Port     int
	Password string
	Timeout  time.Duration

	AppName          string
	IconURL          string
	HashAlgorithm    string
	EnabledByDefault []NotificationType
}

// DefaultReceiverConfig returns the config used when nothing is configured.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		Hostname:         DefaultHostname,
		Port:             DefaultPort,
		Timeout:          DefaultTimeout,
		AppName:          DefaultAppName,
		HashAlgorithm:    string(gntp.DefaultHashAlgorithm),
		EnabledByDefault: DefaultEnabledTypes(),
	}
}

// Endpoint returns host:port.
func (c ReceiverConfig) Endpoint() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// Clone returns a copy that shares no memory with c.
func (c ReceiverConfig) Clone() ReceiverConfig {
	c.EnabledByDefault = slices.Clone(c.EnabledByDefault)
	return c
}

// Validate rejects configs that can never register. It performs no I/O.
func (c ReceiverConfig) Validate() error {
	if strings.TrimSpace(c.Hostname) == "" {
		return invalid("hostname", "must not be empty")
	}
	if strings.ContainsAny(c.Hostname, " \t\r\n") {
		return invalid("hostname", "must not contain whitespace")
	}
	if c.Port < 1 || c.Port > 65535 {
		return invalid("port", "must be between 1 and 65535, got "+strconv.Itoa(c.Port))
	}
	if c.Timeout <= 0 {
		return invalid("timeout", "must be positive")
	}
	if strings.TrimSpace(c.AppName) == "" {
		return invalid("app_name", "must not be empty")
	}
	if _, err := gntp.ParseHashAlgorithm(c.HashAlgorithm); err != nil {
		return invalid("hash_algorithm", err.Error())
	}
	for _, t := range c.EnabledByDefault {
		if !t.valid() {
			return invalid("enabled_by_default", "unknown notification type "+t.String())
		}
	}
	return nil
}

// isEnabledByDefault reports whether t is in the default-enabled subset.
func (c ReceiverConfig) isEnabledByDefault(t NotificationType) bool {
	return slices.Contains(c.EnabledByDefault, t)
}

// NotificationRecord is one notification to deliver. Never persisted.
type NotificationRecord struct {
	Type        NotificationType
	Title       string
	Description string
	Sticky      bool
	Priority    int
}

// DiscoveryRecord is a receiver found by a DiscoveryBridge.
type DiscoveryRecord struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Status is a point-in-time view of the Manager for admin output.
type Status struct {
	Registered  bool      `json:"registered"`
	Endpoint    string    `json:"endpoint,omitempty"`
	Generation  uint64    `json:"generation"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}
