package growl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"octogrowl/internal/gntp"
)

var (
	// ErrInvalidConfig is wrapped by every *ValidationError.
	ErrInvalidConfig = errors.New("growl: invalid receiver config")
	// ErrSuperseded is returned by ApplyConfig when a newer config was
	// requested before this registration finished; its result was discarded.
	ErrSuperseded = errors.New("growl: superseded by a newer config")
)

// ValidationError is a config rejected before any network activity.
type ValidationError struct {
	Field  string
	Reason string
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("growl: invalid receiver config: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// Failure reasons used by RegistrationError and DeliveryError.
const (
	ReasonUnreachable  = "unreachable"
	ReasonTimeout      = "timeout"
	ReasonAuthRejected = "auth rejected"
	ReasonRejected     = "rejected by receiver"
	ReasonProtocol     = "protocol error"
	ReasonCanceled     = "canceled"
	ReasonInternal     = "internal error"
)

// RegistrationError means the receiver could not be registered with.
type RegistrationError struct {
	Host   string
	Port   int
	Reason string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("growl: register with %s failed (%s): %v",
		net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.Reason, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// DeliveryError means one notification could not be sent.
type DeliveryError struct {
	Type   NotificationType
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("growl: deliver %q failed (%s): %v", e.Type.DisplayName(), e.Reason, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// classify maps a client error to one of the Reason constants.
func classify(err error) string {
	var re *gntp.ResponseError
	switch {
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case gntp.IsTimeout(err):
		return ReasonTimeout
	case gntp.IsNotAuthorized(err):
		return ReasonAuthRejected
	case errors.As(err, &re):
		return ReasonRejected
	case errors.Is(err, gntp.ErrProtocol), errors.Is(err, gntp.ErrUnsupportedEncryption):
		return ReasonProtocol
	default:
		return ReasonUnreachable
	}
}

func newRegistrationError(cfg ReceiverConfig, err error) *RegistrationError {
	return &RegistrationError{Host: cfg.Hostname, Port: cfg.Port, Reason: classify(err), Err: err}
}
