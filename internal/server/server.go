package server

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/i18n"
	"github.com/muurk/hassupdate/internal/logging"
)

// shutdownTimeout bounds how long Shutdown waits for open connections
const shutdownTimeout = 10 * time.Second

// Config holds the server configuration
type Config struct {
	Host     string
	Port     int
	Token    string // Accepted access token; empty accepts any token
	CertPath string // TLS certificate; TLS is enabled when CertPath and KeyPath are set
	KeyPath  string

	CaptureDir   string        // Directory to write message captures (empty = disabled)
	FixturesPath string        // YAML fixtures (empty = built-in demo entities)
	InstallStep  time.Duration // Time between simulated install progress updates
	Advertise    bool          // Announce the instance over mDNS
}

// Server is a simulated Home Assistant instance
type Server struct {
	config    *Config
	fixtures  *Fixtures
	store     *Store
	loc       *i18n.Localizer
	uuid      string
	tlsConfig *tls.Config
	upgrader  websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
	mdns       *zeroconf.Server

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	var fixtures *Fixtures
	var err error
	if config.FixturesPath != "" {
		fixtures, err = LoadFixtures(config.FixturesPath)
	} else {
		fixtures, err = DefaultFixtures()
	}
	if err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" && config.KeyPath != "" {
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	loc, err := i18n.New()
	if err != nil {
		return nil, err
	}

	return &Server{
		config:      config,
		fixtures:    fixtures,
		store:       NewStore(fixtures, config.InstallStep),
		loc:         loc,
		uuid:        newUUID(),
		tlsConfig:   tlsConfig,
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		activeConns: make(map[string]*websocket.Conn),
	}, nil
}

// Store returns the entity store.
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the HTTP handler serving the websocket and REST status
// endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(websocketPath, s.handleWebSocket)
	mux.HandleFunc(apiPath, s.handleAPIStatus)
	logged := logRequests(mux)
	// Shutdown waits for every request, including the request logging
	// around hijacked websocket connections.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.wg.Add(1)
		defer s.wg.Done()
		logged.ServeHTTP(w, r)
	})
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener

	logging.Info("Starting simulated Home Assistant",
		zap.String("addr", listener.Addr().String()),
		zap.String("location_name", s.fixtures.LocationName),
		zap.String("ha_version", s.fixtures.Version),
		zap.Int("entities", len(s.fixtures.Entities)),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	if s.config.Advertise {
		if err := s.advertise(); err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: writeWait,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// BaseURL is the URL clients connect to.
func (s *Server) BaseURL() string {
	scheme := "http"
	if s.tlsConfig != nil {
		scheme = "https"
	}

	host := s.config.Host
	port := s.config.Port
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wg.Add(1)
	defer s.wg.Done()

	remoteAddr := r.RemoteAddr
	if err := ValidateWebSocketUpgradeRequest(r); err != nil {
		logging.Error("Invalid WebSocket upgrade request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
	}()

	if err := HandleWebSocketConnection(s, conn, remoteAddr); err != nil {
		logging.Warn("WebSocket connection error",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.mdns != nil {
		s.mdns.Shutdown()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			logging.Error("Error stopping HTTP server", zap.Error(err))
		}
	}

	// Hijacked websocket connections are not closed by http.Server.Shutdown
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	s.store.Close()
	logging.Sync()
	return nil
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) validToken(token string) bool {
	if s.config.Token == "" {
		return token != ""
	}
	return token == s.config.Token
}

// translations answers frontend/get_translations from the built-in strings.
// A category matches keys that start with it or contain it as a segment.
func (s *Server) translations(category string) map[string]string {
	resources := make(map[string]string)
	if category == "" {
		return resources
	}
	for _, key := range s.loc.Keys() {
		if strings.HasPrefix(key, category+".") || strings.Contains(key, "."+category+".") {
			resources[key] = s.loc.Localize(key)
		}
	}
	return resources
}

func newUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
