package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/logging"
)

const (
	websocketPath = "/api/websocket"
	apiPath       = "/api/"
)

// ValidateWebSocketUpgradeRequest checks if the incoming HTTP request is a valid WebSocket upgrade
func ValidateWebSocketUpgradeRequest(req *http.Request) error {
	if req.Method != http.MethodGet {
		return fmt.Errorf("invalid method: %s (expected GET)", req.Method)
	}

	upgrade := strings.ToLower(req.Header.Get("Upgrade"))
	if upgrade != "websocket" {
		return fmt.Errorf("invalid Upgrade header: %s (expected websocket)", upgrade)
	}

	connection := strings.ToLower(req.Header.Get("Connection"))
	if !strings.Contains(connection, "upgrade") {
		return fmt.Errorf("invalid Connection header: %s (expected upgrade)", connection)
	}

	if v := req.Header.Get("Sec-WebSocket-Version"); v != "13" {
		return fmt.Errorf("invalid Sec-WebSocket-Version: %s (expected 13)", v)
	}

	if req.Header.Get("Sec-WebSocket-Key") == "" {
		return fmt.Errorf("missing Sec-WebSocket-Key header")
	}

	return nil
}

// handleAPIStatus answers GET /api/ like Home Assistant: 401 without a valid
// bearer token, otherwise "API running.".
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != apiPath {
		http.NotFound(w, r)
		return
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || !s.validToken(token) {
		http.Error(w, "401: Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "API running."})
}

// LogHTTPRequestDetails logs all details of an HTTP request. The
// Authorization header is never logged.
func LogHTTPRequestDetails(req *http.Request) {
	logging.Debug("HTTP request",
		zap.String("remote_addr", req.RemoteAddr),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("host", req.Host),
		zap.String("origin", req.Header.Get("Origin")),
		zap.String("user_agent", req.Header.Get("User-Agent")),
		zap.Bool("has_authorization", req.Header.Get("Authorization") != ""),
		zap.Bool("websocket_upgrade", isWebSocketUpgrade(req)),
	)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		LogHTTPRequestDetails(r)
		next.ServeHTTP(w, r)
		if isWebSocketUpgrade(r) {
			// The connection was hijacked and its lifetime logged by the session
			return
		}
		logging.Debug("HTTP request handled",
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
