package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/logging"
	"github.com/muurk/hassupdate/internal/update"
	"github.com/muurk/hassupdate/internal/version"
)

const (
	// DefaultTimeout bounds the handshake and each request
	DefaultTimeout = 30 * time.Second

	// Time allowed to write a message to the server
	writeWait = 10 * time.Second

	websocketPath = "/api/websocket"
)

// Message types of the Home Assistant websocket API
const (
	msgAuthRequired = "auth_required"
	msgAuth         = "auth"
	msgAuthOK       = "auth_ok"
	msgAuthInvalid  = "auth_invalid"
	msgResult       = "result"
	msgEvent        = "event"
	msgPong         = "pong"
)

// EventStateChanged is the event fired whenever an entity state changes.
const EventStateChanged = "state_changed"

// Options configures Dial.
type Options struct {
	// URL of the instance, e.g. "http://homeassistant.local:8123". HTTP(S)
	// URLs are mapped to the websocket endpoint.
	URL string

	// Token is a long-lived access token.
	Token string

	// Timeout bounds the handshake and every request without its own
	// deadline. Zero means DefaultTimeout.
	Timeout time.Duration

	// Dialer overrides the websocket dialer.
	Dialer *websocket.Dialer
}

// Client is an authenticated connection to the Home Assistant websocket API.
// Requests are multiplexed by id and safe for concurrent use.
type Client struct {
	url       string
	conn      *websocket.Conn
	timeout   time.Duration
	haVersion string

	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   int
	pending  map[int]chan *message
	handlers map[int]func(json.RawMessage)
	closed   bool
	closeErr error
	done     chan struct{}
}

// message is the envelope shared by every frame.
type message struct {
	ID        int             `json:"id,omitempty"`
	Type      string          `json:"type"`
	Success   bool            `json:"success,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *resultError    `json:"error,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
	HAVersion string          `json:"ha_version,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type resultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WebsocketURL converts an instance URL into its websocket endpoint.
func WebsocketURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("no Home Assistant URL configured")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", raw)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	if !strings.HasSuffix(u.Path, websocketPath) {
		u.Path = strings.TrimSuffix(u.Path, "/") + websocketPath
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Dial connects and authenticates. The returned client owns a reader
// goroutine until Close is called or the server drops the connection.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	wsURL, err := WebsocketURL(opts.URL)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		}
	}

	header := http.Header{"User-Agent": {version.UserAgent()}}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		logging.LogConnection(wsURL, "dial_failed")
		return nil, NewNetworkError("failed to connect to Home Assistant", err)
	}
	logging.LogConnection(wsURL, "connected")

	c := &Client{
		url:      wsURL,
		conn:     conn,
		timeout:  timeout,
		pending:  make(map[int]chan *message),
		handlers: make(map[int]func(json.RawMessage)),
		done:     make(chan struct{}),
	}

	if err := c.authenticate(ctx, opts.Token); err != nil {
		_ = conn.Close()
		logging.LogConnection(wsURL, "auth_failed")
		return nil, err
	}
	logging.LogConnection(wsURL, "authenticated")

	go c.readLoop()
	return c, nil
}

func (c *Client) authenticate(ctx context.Context, token string) error {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return NewNetworkError("failed to set read deadline", err)
	}

	var msg message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return NewNetworkError("failed to read auth challenge", err)
	}
	if msg.Type != msgAuthRequired {
		return NewParseError(fmt.Sprintf("expected %s, got %q", msgAuthRequired, msg.Type), nil)
	}
	c.haVersion = msg.HAVersion

	if err := c.write(map[string]any{"type": msgAuth, "access_token": token}, msgAuth); err != nil {
		return err
	}

	msg = message{}
	if err := c.conn.ReadJSON(&msg); err != nil {
		return NewNetworkError("failed to read auth response", err)
	}

	switch msg.Type {
	case msgAuthOK:
		if msg.HAVersion != "" {
			c.haVersion = msg.HAVersion
		}
	case msgAuthInvalid:
		reason := msg.Message
		if reason == "" {
			reason = "invalid access token"
		}
		return NewAuthError(reason)
	default:
		return NewParseError(fmt.Sprintf("unexpected auth response %q", msg.Type), nil)
	}

	return c.conn.SetReadDeadline(time.Time{})
}

// HAVersion returns the server version reported during the handshake.
func (c *Client) HAVersion() string {
	return c.haVersion
}

// URL returns the websocket endpoint.
func (c *Client) URL() string {
	return c.url
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(NewNetworkError("connection lost", err))
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Warn("Dropping malformed message",
				zap.String("url", c.url),
				zap.Error(err),
			)
			continue
		}
		logging.LogWebSocketMessage("received", msg.Type, msg.ID, data)
		c.route(&msg)
	}
}

func (c *Client) route(msg *message) {
	switch msg.Type {
	case msgResult, msgPong:
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}

	case msgEvent:
		c.mu.Lock()
		handler := c.handlers[msg.ID]
		c.mu.Unlock()
		if handler != nil {
			handler(msg.Event)
		}

	default:
		logging.Debug("Ignoring message", zap.String("type", msg.Type), zap.Int("id", msg.ID))
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err
	c.pending = map[int]chan *message{}
	c.handlers = map[int]func(json.RawMessage){}
	close(c.done)
	logging.LogConnection(c.url, "closed")
}

func (c *Client) write(payload map[string]any, msgType string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return NewParseError("failed to encode request", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return NewNetworkError("failed to set write deadline", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return NewNetworkError("failed to send request", err)
	}

	id, _ := payload["id"].(int)
	if msgType == msgAuth {
		// never log the token
		data = nil
	}
	logging.LogWebSocketMessage("sent", msgType, id, data)
	return nil
}

// register allocates a request id. A non-nil handler receives events sent
// under that id.
func (c *Client) register(handler func(json.RawMessage)) (int, chan *message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, c.closeErr
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *message, 1)
	c.pending[id] = ch
	if handler != nil {
		c.handlers[id] = handler
	}
	return id, ch, nil
}

func (c *Client) forget(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
	delete(c.handlers, id)
}

func (c *Client) request(ctx context.Context, payload map[string]any) (*message, error) {
	return c.requestWithHandler(ctx, payload, nil)
}

func (c *Client) requestWithHandler(ctx context.Context, payload map[string]any, handler func(json.RawMessage)) (*message, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	id, ch, err := c.register(handler)
	if err != nil {
		return nil, err
	}
	payload["id"] = id

	msgType, _ := payload["type"].(string)
	if err := c.write(payload, msgType); err != nil {
		c.forget(id)
		return nil, err
	}

	select {
	case msg := <-ch:
		if msg.Type == msgResult && !msg.Success {
			c.forget(id)
			if msg.Error == nil {
				return nil, NewResultError("unknown_error", "request failed")
			}
			return nil, NewResultError(msg.Error.Code, msg.Error.Message)
		}
		return msg, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ClassifyNetworkError(ctx.Err())
	case <-c.done:
		return nil, &Error{Type: ErrTypeClosed, Message: "connection closed", Err: c.Err(), Retryable: true}
	}
}

// CallService calls a service, e.g. update.install.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	payload := map[string]any{
		"type":    "call_service",
		"domain":  domain,
		"service": service,
	}
	if len(data) > 0 {
		payload["service_data"] = data
	}

	_, err := c.request(ctx, payload)
	logging.LogServiceCall(domain, service, data, err)
	return err
}

// ReleaseNotes fetches release notes for an update entity. A null result is
// returned as an empty string.
func (c *Client) ReleaseNotes(ctx context.Context, entityID string) (string, error) {
	msg, err := c.request(ctx, map[string]any{
		"type":      "update/release_notes",
		"entity_id": entityID,
	})
	if err != nil {
		return "", err
	}

	var notes *string
	if len(msg.Result) > 0 {
		if err := json.Unmarshal(msg.Result, &notes); err != nil {
			return "", NewParseError("invalid release notes", err)
		}
	}
	if notes == nil {
		return "", nil
	}
	return *notes, nil
}

// State is one entry of get_states, with attributes left raw since their
// shape depends on the entity domain.
type State struct {
	EntityID    string          `json:"entity_id"`
	State       string          `json:"state"`
	Attributes  json.RawMessage `json:"attributes"`
	LastChanged time.Time       `json:"last_changed"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Update decodes the state as an update entity.
func (s *State) Update() (*update.Entity, error) {
	if !update.IsUpdateEntity(s.EntityID) {
		return nil, fmt.Errorf("%s is not an update entity", s.EntityID)
	}
	e := &update.Entity{EntityID: s.EntityID, State: s.State}
	if len(s.Attributes) > 0 {
		if err := json.Unmarshal(s.Attributes, &e.Attributes); err != nil {
			return nil, NewParseError(fmt.Sprintf("invalid attributes for %s", s.EntityID), err)
		}
	}
	return e, nil
}

// States returns every entity state.
func (c *Client) States(ctx context.Context) ([]State, error) {
	msg, err := c.request(ctx, map[string]any{"type": "get_states"})
	if err != nil {
		return nil, err
	}

	var states []State
	if err := json.Unmarshal(msg.Result, &states); err != nil {
		return nil, NewParseError("invalid states", err)
	}
	return states, nil
}

// UpdateEntities returns every update entity, in server order.
func (c *Client) UpdateEntities(ctx context.Context) ([]*update.Entity, error) {
	states, err := c.States(ctx)
	if err != nil {
		return nil, err
	}

	var entities []*update.Entity
	for i := range states {
		if !update.IsUpdateEntity(states[i].EntityID) {
			continue
		}
		e, err := states[i].Update()
		if err != nil {
			logging.Warn("Skipping undecodable update entity",
				zap.String("entity_id", states[i].EntityID),
				zap.Error(err),
			)
			continue
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// Entity returns a single update entity.
func (c *Client) Entity(ctx context.Context, entityID string) (*update.Entity, error) {
	if !update.IsUpdateEntity(entityID) {
		return nil, fmt.Errorf("%s is not an update entity", entityID)
	}

	states, err := c.States(ctx)
	if err != nil {
		return nil, err
	}
	for i := range states {
		if states[i].EntityID == entityID {
			return states[i].Update()
		}
	}
	return nil, NewResultError("not_found", fmt.Sprintf("Entity not found: %s", entityID))
}

// StateChangedEvent is the data of a state_changed event. Either state is nil
// when the entity was added or removed.
type StateChangedEvent struct {
	EntityID string `json:"entity_id"`
	OldState *State `json:"old_state"`
	NewState *State `json:"new_state"`
}

type eventEnvelope struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// Subscription is an active event subscription.
type Subscription struct {
	client *Client
	id     int
	once   sync.Once
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.client.mu.Lock()
		delete(s.client.handlers, s.id)
		s.client.mu.Unlock()

		_, err = s.client.request(ctx, map[string]any{
			"type":         "unsubscribe_events",
			"subscription": s.id,
		})
	})
	return err
}

// SubscribeStateChanged delivers state_changed events until unsubscribed.
// The handler runs on the reader goroutine and must not block.
func (c *Client) SubscribeStateChanged(ctx context.Context, handler func(StateChangedEvent)) (*Subscription, error) {
	onEvent := func(raw json.RawMessage) {
		var env eventEnvelope
		if err := json.Unmarshal(raw, &env); err != nil || env.EventType != EventStateChanged {
			return
		}
		var ev StateChangedEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			logging.Warn("Dropping malformed state_changed event", zap.Error(err))
			return
		}
		handler(ev)
	}

	payload := map[string]any{
		"type":       "subscribe_events",
		"event_type": EventStateChanged,
	}
	if _, err := c.requestWithHandler(ctx, payload, onEvent); err != nil {
		return nil, err
	}

	id, _ := payload["id"].(int)
	return &Subscription{client: c, id: id}, nil
}

// Translations fetches frontend translation resources for a language and
// category ("state", "entity_component", ...).
func (c *Client) Translations(ctx context.Context, language, category string) (map[string]string, error) {
	msg, err := c.request(ctx, map[string]any{
		"type":     "frontend/get_translations",
		"language": language,
		"category": category,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Resources map[string]string `json:"resources"`
	}
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		return nil, NewParseError("invalid translations", err)
	}
	return result.Resources, nil
}

// Ping checks the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, map[string]any{"type": "ping"})
	return err
}

// Close sends a close frame and tears down the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.shutdown(&Error{Type: ErrTypeClosed, Message: "client closed"})
	return err
}
