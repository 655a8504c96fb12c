package hass

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/muurk/hassupdate/internal/urls"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeAuth indicates the access token was rejected
	ErrTypeAuth
	// ErrTypeResult indicates Home Assistant answered a request with success=false
	ErrTypeResult
	// ErrTypeParse indicates a malformed message
	ErrTypeParse
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the URL
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeClosed indicates the connection was closed while a request was pending
	ErrTypeClosed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeResult:
		return "Request Failed"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeClosed:
		return "Connection Closed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by every Client operation.
type Error struct {
	Type      ErrorType
	Code      string // Home Assistant error code for ErrTypeResult, e.g. "not_found"
	Message   string
	Err       error
	Retryable bool
}

// Error implements the error interface. Result errors render as the server
// message alone since that is what users see in the panel.
func (e *Error) Error() string {
	if e.Type == ErrTypeResult {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a dial or transport error to an *Error.
func ClassifyNetworkError(err error) *Error {
	if err == nil {
		return nil
	}

	var hassErr *Error
	if errors.As(err, &hassErr) {
		return hassErr
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &Error{Type: ErrTypeTimeout, Message: "Request timed out", Err: err, Retryable: true}
	}

	if errors.Is(err, net.ErrClosed) || websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		return &Error{Type: ErrTypeClosed, Message: "Connection closed", Err: err, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return &Error{Type: ErrTypeConnectionRefused, Message: "Connection refused", Err: err, Retryable: true}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err)
	}

	return &Error{Type: ErrTypeNetwork, Message: "Network error occurred", Err: err, Retryable: true}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	classified := ClassifyNetworkError(err)
	if classified == nil {
		return &Error{Type: ErrTypeNetwork, Message: message, Retryable: true}
	}
	classified.Message = message
	return classified
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *Error {
	return &Error{Type: ErrTypeAuth, Message: message}
}

// NewResultError creates an error from a failed result message
func NewResultError(code, message string) *Error {
	if message == "" {
		message = code
	}
	return &Error{Type: ErrTypeResult, Code: code, Message: message}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *Error {
	return &Error{Type: ErrTypeParse, Message: message, Err: err}
}

func errorType(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS, closed)
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrTypeNetwork ||
		t == ErrTypeTimeout ||
		t == ErrTypeConnectionRefused ||
		t == ErrTypeDNS ||
		t == ErrTypeClosed)
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeAuth
}

// IsResultError checks if Home Assistant rejected a request
func IsResultError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeResult
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Please try again."
	}

	switch e.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"Home Assistant did not respond in time.",
			"Troubleshooting:",
			"  • Check that Home Assistant is running",
			"  • Try increasing --timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"Nothing is listening at the configured URL.",
			"Troubleshooting:",
			"  • Verify the port (default is 8123)",
			"  • Run 'hass-update scan' to find instances on your network",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the Home Assistant hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of hostname",
			"  • homeassistant.local requires mDNS on your network",
		}, "\n")

	case ErrTypeAuth:
		return strings.Join([]string{
			"The access token was rejected.",
			"Troubleshooting:",
			"  • Create a long-lived access token on your Home Assistant profile page",
			"  • Pass it with --token or the HASS_TOKEN environment variable",
			"  • See " + urls.AccessTokens,
		}, "\n")

	case ErrTypeClosed:
		return "The connection to Home Assistant was closed. It may be restarting; try again shortly."

	case ErrTypeResult:
		return fmt.Sprintf("Home Assistant rejected the request (%s).", e.Code)

	case ErrTypeParse:
		return strings.Join([]string{
			"Failed to parse a message from Home Assistant. The server version may be incompatible.",
			"  • See " + urls.WebsocketAPI,
		}, "\n")

	default:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Verify the URL points at your Home Assistant instance",
		}, "\n")
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Type {
	case ErrTypeTimeout:
		return "Home Assistant not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Connection refused - check the URL and port"
	case ErrTypeDNS:
		return "Cannot resolve Home Assistant hostname"
	case ErrTypeAuth:
		return "Authentication failed - check the access token"
	case ErrTypeClosed:
		return "Connection to Home Assistant closed"
	case ErrTypeParse:
		return "Failed to parse Home Assistant response"
	case ErrTypeNetwork:
		return "Network error - check connection"
	default:
		return e.Message
	}
}
