package hass

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/muurk/hassupdate/internal/urls"
)

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeAuth, "Authentication Error"},
		{ErrTypeResult, "Request Failed"},
		{ErrTypeParse, "Parse Error"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeConnectionRefused, "Connection Refused"},
		{ErrTypeDNS, "DNS Error"},
		{ErrTypeClosed, "Connection Closed"},
		{ErrorType(99), "ErrorType(99)"},
	}

	for _, tt := range tests {
		if got := tt.errType.String(); got != tt.want {
			t.Errorf("ErrorType(%d).String() = %q, want %q", tt.errType, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("broken pipe")
	err := &Error{Type: ErrTypeNetwork, Message: "send failed", Err: cause}

	if got := err.Error(); got != "Network Error: send failed (caused by: broken pipe)" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find the cause")
	}

	result := NewResultError("not_found", "Entity not found")
	if got := result.Error(); got != "Entity not found" {
		t.Errorf("result Error() = %q, want server message", got)
	}
	if got := NewResultError("unknown_command", "").Error(); got != "unknown_command" {
		t.Errorf("result Error() without message = %q, want code", got)
	}
}

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"deadline", context.DeadlineExceeded, ErrTypeTimeout, true},
		{"wrapped deadline", fmt.Errorf("ping: %w", context.DeadlineExceeded), ErrTypeTimeout, true},
		{"dns", &net.DNSError{Name: "homeassistant.local", Err: "no such host"}, ErrTypeDNS, false},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrTypeConnectionRefused, true},
		{"closed", net.ErrClosed, ErrTypeClosed, true},
		{"other", errors.New("weird"), ErrTypeNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
		})
	}

	if ClassifyNetworkError(nil) != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}

	auth := NewAuthError("bad token")
	if ClassifyNetworkError(fmt.Errorf("dial: %w", auth)) != auth {
		t.Error("existing *Error should pass through")
	}
}

func TestNewNetworkErrorKeepsMessage(t *testing.T) {
	err := NewNetworkError("failed to connect", context.DeadlineExceeded)
	if err.Type != ErrTypeTimeout || err.Message != "failed to connect" {
		t.Errorf("NewNetworkError() = %+v", err)
	}
}

func TestPredicates(t *testing.T) {
	if !IsAuthError(NewAuthError("x")) {
		t.Error("IsAuthError(auth) = false")
	}
	if IsAuthError(errors.New("x")) {
		t.Error("IsAuthError(plain) = true")
	}
	if !IsNetworkError(ClassifyNetworkError(context.DeadlineExceeded)) {
		t.Error("timeout should count as a network error")
	}
	if IsNetworkError(NewParseError("x", nil)) {
		t.Error("parse error counted as network error")
	}
	if !IsResultError(fmt.Errorf("wrapped: %w", NewResultError("a", "b"))) {
		t.Error("IsResultError should unwrap")
	}
	if IsRetryable(NewAuthError("x")) {
		t.Error("auth errors are not retryable")
	}
}

func TestTroubleshootingHints(t *testing.T) {
	tests := []struct {
		err      error
		contains string
	}{
		{NewAuthError("x"), "long-lived access token"},
		{NewAuthError("x"), urls.AccessTokens},
		{NewParseError("x", nil), urls.WebsocketAPI},
		{ClassifyNetworkError(context.DeadlineExceeded), "--timeout"},
		{ClassifyNetworkError(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}), "8123"},
		{NewResultError("not_found", "x"), "not_found"},
		{errors.New("plain"), "unexpected"},
	}

	for _, tt := range tests {
		if got := GetTroubleshootingHint(tt.err); !strings.Contains(got, tt.contains) {
			t.Errorf("GetTroubleshootingHint(%v) = %q, want it to contain %q", tt.err, got, tt.contains)
		}
	}
}

func TestShortErrorMessage(t *testing.T) {
	if got := GetShortErrorMessage(errors.New("plain")); got != "plain" {
		t.Errorf("plain error = %q", got)
	}
	if got := GetShortErrorMessage(NewAuthError("x")); got != "Authentication failed - check the access token" {
		t.Errorf("auth error = %q", got)
	}
	if got := GetShortErrorMessage(NewResultError("c", "Backup failed")); got != "Backup failed" {
		t.Errorf("result error = %q", got)
	}
}
