package growl

import (
	"fmt"
	"strings"
)

// NotificationType is a kind of notification known to the receiver.
type NotificationType int

const (
	TypeTest NotificationType = iota
	TypeFileUploaded
	TypePrintStarted
	TypePrintDone
	TypeTimelapseDone
)

type typeInfo struct {
	key     string // config spelling
	display string // GNTP Notification-Name
}

var catalog = [...]typeInfo{
	TypeTest:          {"test", "Connection test"},
	TypeFileUploaded:  {"file_uploaded", "File uploaded"},
	TypePrintStarted:  {"print_started", "Printjob started"},
	TypePrintDone:     {"print_done", "Printjob done"},
	TypeTimelapseDone: {"timelapse_done", "Timelapse done"},
}

// AllTypes returns the full catalog in registration order. Every client
// registers all of them, so anything sent is always registered.
func AllTypes() []NotificationType {
	out := make([]NotificationType, len(catalog))
	for i := range catalog {
		out[i] = NotificationType(i)
	}
	return out
}

// DefaultEnabledTypes is the subset the receiver shows without user opt-in.
func DefaultEnabledTypes() []NotificationType {
	return []NotificationType{TypeTest, TypePrintStarted, TypePrintDone}
}

func (t NotificationType) valid() bool { return t >= 0 && int(t) < len(catalog) }

// DisplayName is the name used on the wire and shown by the receiver.
func (t NotificationType) DisplayName() string {
	if !t.valid() {
		return ""
	}
	return catalog[t].display
}

// Key is the config spelling ("print_done").
func (t NotificationType) Key() string {
	if !t.valid() {
		return ""
	}
	return catalog[t].key
}

func (t NotificationType) String() string {
	if !t.valid() {
		return fmt.Sprintf("NotificationType(%d)", int(t))
	}
	return catalog[t].key
}

func (t NotificationType) MarshalText() ([]byte, error) {
	if !t.valid() {
		return nil, fmt.Errorf("growl: unknown notification type %d", int(t))
	}
	return []byte(t.Key()), nil
}

func (t *NotificationType) UnmarshalText(b []byte) error {
	v, err := ParseNotificationType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseNotificationType accepts a config key or a display name, case-insensitively.
func ParseNotificationType(s string) (NotificationType, error) {
	s = strings.TrimSpace(s)
	for i, info := range catalog {
		if strings.EqualFold(s, info.key) || strings.EqualFold(s, info.display) {
			return NotificationType(i), nil
		}
	}
	return 0, fmt.Errorf("growl: unknown notification type %q", s)
}
