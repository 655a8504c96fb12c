package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Queued event frames per connection before events are dropped
	eventBuffer = 64
)

// inbound is a command sent by the client. Fields beyond id and type depend
// on the command.
type inbound struct {
	ID           int            `json:"id"`
	Type         string         `json:"type"`
	AccessToken  string         `json:"access_token,omitempty"`
	Domain       string         `json:"domain,omitempty"`
	Service      string         `json:"service,omitempty"`
	ServiceData  map[string]any `json:"service_data,omitempty"`
	EntityID     string         `json:"entity_id,omitempty"`
	EventType    string         `json:"event_type,omitempty"`
	Subscription int            `json:"subscription,omitempty"`
	Language     string         `json:"language,omitempty"`
	Category     string         `json:"category,omitempty"`
}

type resultErrorJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// session is one authenticated websocket client.
type session struct {
	srv        *Server
	conn       *websocket.Conn
	remoteAddr string

	writeMu    sync.Mutex
	messageNum int

	mu     sync.Mutex
	subs   map[int]func()
	events chan []byte
	done   chan struct{}
}

// HandleWebSocketConnection runs the auth handshake and then serves commands
// until the client disconnects.
func HandleWebSocketConnection(srv *Server, conn *websocket.Conn, remoteAddr string) error {
	logging.LogConnection(remoteAddr, "websocket_upgraded")

	s := &session{
		srv:        srv,
		conn:       conn,
		remoteAddr: remoteAddr,
		subs:       make(map[int]func()),
		events:     make(chan []byte, eventBuffer),
		done:       make(chan struct{}),
	}

	defer func() {
		close(s.done)
		s.unsubscribeAll()
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := s.authenticate(); err != nil {
		return err
	}

	go s.writeLoop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Connection closed by client", zap.String("remote_addr", remoteAddr))
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		s.capture("client->server", data)

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Warn("Dropping malformed message",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			continue
		}
		logging.LogWebSocketMessage("received", msg.Type, msg.ID, data)

		s.handle(&msg)
	}
}

// authenticate performs auth_required → auth → auth_ok | auth_invalid.
func (s *session) authenticate() error {
	version := s.srv.fixtures.Version
	if err := s.send(map[string]any{"type": "auth_required", "ha_version": version}); err != nil {
		return err
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("no auth message: %w", err)
	}

	var msg inbound
	err = json.Unmarshal(data, &msg)
	s.capture("client->server", []byte(`{"type":"auth","access_token":"REDACTED"}`))
	if err != nil || msg.Type != "auth" {
		_ = s.send(map[string]any{"type": "auth_invalid", "message": "Auth message incorrectly formatted"})
		return errors.New("malformed auth message")
	}

	if !s.srv.validToken(msg.AccessToken) {
		logging.Warn("Rejected access token", zap.String("remote_addr", s.remoteAddr))
		_ = s.send(map[string]any{"type": "auth_invalid", "message": "Invalid access token or password"})
		return errors.New("invalid access token")
	}

	logging.LogConnection(s.remoteAddr, "authenticated")
	return s.send(map[string]any{"type": "auth_ok", "ha_version": version})
}

func (s *session) handle(msg *inbound) {
	store := s.srv.store

	switch msg.Type {
	case "ping":
		_ = s.send(map[string]any{"id": msg.ID, "type": "pong"})

	case "get_states":
		s.result(msg.ID, store.States(), nil)

	case "call_service":
		err := store.CallService(msg.Domain, msg.Service, msg.ServiceData)
		logging.LogServiceCall(msg.Domain, msg.Service, msg.ServiceData, err)
		s.result(msg.ID, map[string]any{"context": map[string]any{"id": fmt.Sprintf("demo-%d", msg.ID)}}, err)

	case "update/release_notes":
		notes, err := store.ReleaseNotes(msg.EntityID)
		s.result(msg.ID, notes, err)

	case "subscribe_events":
		s.subscribe(msg.ID, msg.EventType)
		s.result(msg.ID, nil, nil)

	case "unsubscribe_events":
		if !s.unsubscribe(msg.Subscription) {
			s.result(msg.ID, nil, resultErrorf(CodeNotFound, "Subscription not found."))
			return
		}
		s.result(msg.ID, nil, nil)

	case "frontend/get_translations":
		s.result(msg.ID, map[string]any{"resources": s.srv.translations(msg.Category)}, nil)

	default:
		s.result(msg.ID, nil, resultErrorf(CodeUnknownCommand, "Unknown command."))
	}
}

// result sends a result message. Errors that are not *ResultError are
// reported as home_assistant_error.
func (s *session) result(id int, result any, err error) {
	if err != nil {
		var re *ResultError
		if !errors.As(err, &re) {
			re = &ResultError{Code: CodeHomeAssistant, Message: err.Error()}
		}
		_ = s.send(map[string]any{
			"id":      id,
			"type":    "result",
			"success": false,
			"error":   resultErrorJSON{Code: re.Code, Message: re.Message},
		})
		return
	}

	_ = s.send(map[string]any{
		"id":      id,
		"type":    "result",
		"success": true,
		"result":  result,
	})
}

// subscribe forwards state changes to the client. Only state_changed events
// are ever fired, so other event types never deliver anything.
func (s *session) subscribe(id int, eventType string) {
	if eventType != "" && eventType != "state_changed" {
		s.mu.Lock()
		s.subs[id] = func() {}
		s.mu.Unlock()
		return
	}

	cancel := s.srv.store.Subscribe(func(change StateChange) {
		frame, err := json.Marshal(map[string]any{
			"id":   id,
			"type": "event",
			"event": map[string]any{
				"event_type": "state_changed",
				"data":       change,
				"origin":     "LOCAL",
				"time_fired": change.New.LastUpdated,
			},
		})
		if err != nil {
			logging.Error("Failed to encode event", zap.Error(err))
			return
		}
		select {
		case s.events <- frame:
		default:
			logging.Warn("Dropping event for slow client",
				zap.String("remote_addr", s.remoteAddr),
				zap.String("entity_id", change.EntityID),
			)
		}
	})

	s.mu.Lock()
	s.subs[id] = cancel
	s.mu.Unlock()
}

func (s *session) unsubscribe(id int) bool {
	s.mu.Lock()
	cancel, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

func (s *session) unsubscribeAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[int]func())
	s.mu.Unlock()

	for _, cancel := range subs {
		cancel()
	}
}

// writeLoop delivers queued events and keeps the connection alive with pings.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case frame := <-s.events:
			if err := s.write(frame); err != nil {
				return
			}
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				logging.Debug("Ping failed", zap.String("remote_addr", s.remoteAddr), zap.Error(err))
				return
			}
		}
	}
}

func (s *session) send(payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return s.write(data)
}

func (s *session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logging.Error("Failed to send message",
			zap.String("remote_addr", s.remoteAddr),
			zap.Error(err),
		)
		return fmt.Errorf("write failed: %w", err)
	}
	s.capture("server->client", data)
	return nil
}

// MessageCapture is one line of a capture file.
type MessageCapture struct {
	Timestamp  time.Time       `json:"timestamp"`
	MessageNum int             `json:"message_num"`
	RemoteAddr string          `json:"remote_addr"`
	Direction  string          `json:"direction"`
	Payload    json.RawMessage `json:"payload"`
}

// capture appends a message to the capture file when capturing is enabled.
func (s *session) capture(direction string, data []byte) {
	dir := s.srv.config.CaptureDir
	if dir == "" {
		return
	}

	s.mu.Lock()
	s.messageNum++
	num := s.messageNum
	s.mu.Unlock()

	name := "capture-" + strings.NewReplacer(":", "_", "[", "", "]", "").Replace(s.remoteAddr) + ".jsonl"
	SaveMessageToCapture(filepath.Join(dir, name), MessageCapture{
		Timestamp:  time.Now(),
		MessageNum: num,
		RemoteAddr: s.remoteAddr,
		Direction:  direction,
		Payload:    json.RawMessage(data),
	})
}

// SaveMessageToCapture appends one JSON line to filename.
func SaveMessageToCapture(filename string, rec MessageCapture) {
	if !json.Valid(rec.Payload) {
		quoted, _ := json.Marshal(string(rec.Payload))
		rec.Payload = quoted
	}

	data, err := json.Marshal(rec)
	if err != nil {
		logging.Error("Failed to marshal message capture", zap.Error(err))
		return
	}

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logging.Error("Failed to open capture file",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write to capture file",
			zap.String("filename", filename),
			zap.Error(err),
		)
	}
}
