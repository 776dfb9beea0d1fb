package gntp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	// ErrProtocol is returned when a peer sends something that is not valid GNTP.
	ErrProtocol = errors.New("gntp: protocol error")
	// ErrUnsupportedEncryption is returned for messages using anything but NONE.
	ErrUnsupportedEncryption = errors.New("gntp: unsupported encryption")
	// ErrUnknownHashAlgorithm is returned by ParseHashAlgorithm.
	ErrUnknownHashAlgorithm = errors.New("gntp: unknown hash algorithm")
)

// Error codes defined by GNTP/1.0.
const (
	CodeTimedOut               = 200
	CodeNetworkFailure         = 201
	CodeInvalidRequest         = 300
	CodeUnknownProtocol        = 301
	CodeUnknownProtocolVersion = 302
	CodeRequiredHeaderMissing  = 303
	CodeNotAuthorized          = 400
	CodeUnknownApplication     = 401
	CodeUnknownNotification    = 402
	CodeAlreadyProcessed       = 403
	CodeNotificationDisabled   = 404
	CodeInternalServerError    = 500
)

// ResponseError is a -ERROR response from the receiver.
type ResponseError struct {
	Action      string
	Code        int
	Description string
}

func (e *ResponseError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("gntp: %s rejected (code %d)", e.Action, e.Code)
	}
	return fmt.Sprintf("gntp: %s rejected (code %d): %s", e.Action, e.Code, e.Description)
}

// IsNotAuthorized reports whether err is a receiver rejection of our password.
func IsNotAuthorized(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.Code == CodeNotAuthorized
}

func protocolErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// IsTimeout reports whether err came from the request deadline expiring.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
