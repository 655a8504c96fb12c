package hass

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/hassupdate/internal/update"
)

const testToken = "test-token"

// fakeHA is a minimal Home Assistant websocket endpoint. respond returns the
// frames to send back for each request.
type fakeHA struct {
	t       *testing.T
	server  *httptest.Server
	respond func(req map[string]any) []map[string]any

	mu       sync.Mutex
	requests []map[string]any
	conn     *websocket.Conn
}

func newFakeHA(t *testing.T, respond func(req map[string]any) []map[string]any) *fakeHA {
	t.Helper()
	f := &fakeHA{t: t, respond: respond}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/websocket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()

		_ = conn.WriteJSON(map[string]any{"type": "auth_required", "ha_version": "2024.2.0"})

		var auth map[string]any
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		if auth["access_token"] != testToken {
			_ = conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token or password"})
			return
		}
		_ = conn.WriteJSON(map[string]any{"type": "auth_ok", "ha_version": "2024.2.0"})

		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			f.mu.Lock()
			f.requests = append(f.requests, req)
			f.mu.Unlock()

			for _, frame := range f.respond(req) {
				f.send(frame)
			}
		}
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeHA) send(frame map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.conn.WriteJSON(frame)
}

func (f *fakeHA) Requests() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.requests...)
}

func (f *fakeHA) dial(t *testing.T) *Client {
	t.Helper()
	c, err := Dial(context.Background(), Options{URL: f.server.URL, Token: testToken, Timeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func ok(req map[string]any, result any) map[string]any {
	return map[string]any{"id": req["id"], "type": "result", "success": true, "result": result}
}

func fail(req map[string]any, code, msg string) map[string]any {
	return map[string]any{
		"id": req["id"], "type": "result", "success": false,
		"error": map[string]any{"code": code, "message": msg},
	}
}

var testStates = []map[string]any{
	{
		"entity_id": "update.core_update",
		"state":     "on",
		"attributes": map[string]any{
			"title":              "Home Assistant Core",
			"installed_version":  "2024.1.0",
			"latest_version":     "2024.2.0",
			"supported_features": 27,
			"in_progress":        false,
		},
	},
	{
		"entity_id":  "sensor.temperature",
		"state":      "21.5",
		"attributes": map[string]any{"title": 42},
	},
	{
		"entity_id": "update.zigbee",
		"state":     "off",
		"attributes": map[string]any{
			"installed_version": "1.0",
			"latest_version":    "1.0",
		},
	},
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://homeassistant.local:8123", "ws://homeassistant.local:8123/api/websocket", false},
		{"https://ha.example.com/", "wss://ha.example.com/api/websocket", false},
		{"ws://10.0.0.2:8123/api/websocket", "ws://10.0.0.2:8123/api/websocket", false},
		{"homeassistant.local:8123", "ws://homeassistant.local:8123/api/websocket", false},
		{"http://host/prefix?x=1", "ws://host/prefix/api/websocket", false},
		{"", "", true},
		{"ftp://host", "", true},
	}

	for _, tt := range tests {
		got, err := WebsocketURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDialAuthenticates(t *testing.T) {
	f := newFakeHA(t, func(map[string]any) []map[string]any { return nil })
	c := f.dial(t)

	assert.Equal(t, "2024.2.0", c.HAVersion())
	assert.True(t, strings.HasSuffix(c.URL(), "/api/websocket"))
	assert.NoError(t, c.Err())
}

func TestDialInvalidToken(t *testing.T) {
	f := newFakeHA(t, func(map[string]any) []map[string]any { return nil })

	_, err := Dial(context.Background(), Options{URL: f.server.URL, Token: "wrong", Timeout: 2 * time.Second})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "Invalid access token")
}

func TestDialUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := Dial(context.Background(), Options{URL: url, Token: testToken, Timeout: time.Second})
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestCallService(t *testing.T) {
	f := newFakeHA(t, func(req map[string]any) []map[string]any {
		return []map[string]any{ok(req, map[string]any{"context": map[string]any{"id": "abc"}})}
	})
	c := f.dial(t)

	err := c.CallService(context.Background(), "update", "install", map[string]any{
		"entity_id": "update.core_update",
		"backup":    true,
	})
	require.NoError(t, err)

	reqs := f.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "call_service", reqs[0]["type"])
	assert.Equal(t, "update", reqs[0]["domain"])
	assert.Equal(t, "install", reqs[0]["service"])
	assert.Equal(t, map[string]any{"entity_id": "update.core_update", "backup": true}, reqs[0]["service_data"])
}

func TestCallServiceFailure(t *testing.T) {
	f := newFakeHA(t, func(req map[string]any) []map[string]any {
		return []map[string]any{fail(req, "home_assistant_error", "Backup failed")}
	})
	c := f.dial(t)

	err := c.CallService(context.Background(), "update", "install", map[string]any{"entity_id": "update.x"})
	require.Error(t, err)
	assert.True(t, IsResultError(err))
	assert.Equal(t, "Backup failed", err.Error())
}

func TestReleaseNotes(t *testing.T) {
	f := newFakeHA(t, func(req map[string]any) []map[string]any {
		if req["entity_id"] == "update.core_update" {
			return []map[string]any{ok(req, "## Notes text")}
		}
		return []map[string]any{ok(req, nil)}
	})
	c := f.dial(t)

	notes, err := c.ReleaseNotes(context.Background(), "update.core_update")
	require.NoError(t, err)
	assert.Equal(t, "## Notes text", notes)

	notes, err = c.ReleaseNotes(context.Background(), "update.zigbee")
	require.NoError(t, err)
	assert.Empty(t, notes)

	assert.Equal(t, "update/release_notes", f.Requests()[0]["type"])
}

func TestReleaseNotesFailure(t *testing.T) {
	f := newFakeHA(t, func(req map[string]any) []map[string]any {
		return []map[string]any{fail(req, "not_supported", "Entity does not support release notes")}
	})
	c := f.dial(t)

	_, err := c.ReleaseNotes(context.Background(), "update.zigbee")
	require.Error(t, err)
	assert.Equal(t, "Entity does not support release notes", err.Error())
}

func TestUpdateEntities(t *testing.T) {
	f := newFakeHA(t, func(req map[string]any) []map[string]any {
		return []map[string]any{ok(req, testStates)}
	})
	c := f.dial(t)

	entities, err := c.UpdateEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 2)

	core := entities[0]
	assert.Equal(t, "update.core_update", core.EntityID)
	assert.Equal(t, "2024.2.0", core.Attributes.LatestVersion)
	assert.True(t, update.SupportsFeature(core, update.FeatureReleaseNotes))
	assert.Equal(t, "update.zigbee", entities[1].EntityID)

	e, err := c.Entity(context.Background(), "update.zigbee")
	require.NoError(t, err)
	assert.Equal(t, update.StateOff, e.State)

	_, err = c.Entity(context.Background(), "update.missing")
	require.Error(t, err)
	assert.True(t, IsResultError(err))

	_, err = c.Entity(context.Background(), "sensor.temperature")
	assert.Error(t, err)
}

func TestSubscribeStateChanged(t *testing.T) {
	var f *fakeHA
	f = newFakeHA(t, func(req map[string]any) []map[string]any {
		switch req["type"] {
		case "subscribe_events":
			return []map[string]any{
				ok(req, nil),
				{
					"id":   req["id"],
					"type": "event",
					"event": map[string]any{
						"event_type": "state_changed",
						"data": map[string]any{
							"entity_id": "update.core_update",
							"old_state": nil,
							"new_state": map[string]any{
								"entity_id": "update.core_update",
								"state":     "on",
								"attributes": map[string]any{
									"in_progress":        true,
									"update_percentage":  42,
									"supported_features": 4,
								},
							},
						},
					},
				},
			}
		default:
			return []map[string]any{ok(req, nil)}
		}
	})
	c := f.dial(t)

	events := make(chan StateChangedEvent, 1)
	sub, err := c.SubscribeStateChanged(context.Background(), func(ev StateChangedEvent) {
		events <- ev
	})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, "update.core_update", ev.EntityID)
		assert.Nil(t, ev.OldState)
		require.NotNil(t, ev.NewState)

		e, err := ev.NewState.Update()
		require.NoError(t, err)
		assert.True(t, update.IsInstalling(e))
		value, ok := update.DeterminateProgress(e)
		assert.True(t, ok)
		assert.InDelta(t, 0.42, value, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("no state_changed event delivered")
	}

	require.NoError(t, sub.Unsubscribe(context.Background()))
	require.NoError(t, sub.Unsubscribe(context.Background()))

	reqs := f.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "state_changed", reqs[0]["event_type"])
	assert.Equal(t, "unsubscribe_events", reqs[1]["type"])
	assert.Equal(t, reqs[0]["id"], reqs[1]["subscription"])
}

func TestTranslations(t *testing.T) {
	f := newFakeHA(t, func(req map[string]any) []map[string]any {
		return []map[string]any{ok(req, map[string]any{
			"resources": map[string]string{
				"component.update.entity_component._.state.on": "Update verfügbar",
			},
		})}
	})
	c := f.dial(t)

	res, err := c.Translations(context.Background(), "de", "state")
	require.NoError(t, err)
	assert.Equal(t, "Update verfügbar", res["component.update.entity_component._.state.on"])

	req := f.Requests()[0]
	assert.Equal(t, "frontend/get_translations", req["type"])
	assert.Equal(t, "de", req["language"])
	assert.Equal(t, "state", req["category"])
}

func TestPing(t *testing.T) {
	f := newFakeHA(t, func(req map[string]any) []map[string]any {
		return []map[string]any{{"id": req["id"], "type": "pong"}}
	})
	c := f.dial(t)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestRequestTimeout(t *testing.T) {
	f := newFakeHA(t, func(map[string]any) []map[string]any { return nil })
	c := f.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Ping(ctx)
	require.Error(t, err)
	var hassErr *Error
	require.ErrorAs(t, err, &hassErr)
	assert.Equal(t, ErrTypeTimeout, hassErr.Type)
}

func TestServerDisconnectFailsPending(t *testing.T) {
	var f *fakeHA
	f = newFakeHA(t, func(map[string]any) []map[string]any {
		f.conn.Close()
		return nil
	})
	c := f.dial(t)

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the disconnect")
	}
	assert.Error(t, c.Err())

	err = c.Ping(context.Background())
	assert.Error(t, err, "requests after disconnect fail fast")
}

func TestMessageIDsAreUnique(t *testing.T) {
	f := newFakeHA(t, func(req map[string]any) []map[string]any {
		return []map[string]any{ok(req, nil)}
	})
	c := f.dial(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.CallService(context.Background(), "update", "skip", nil))
		}()
	}
	wg.Wait()

	seen := map[float64]bool{}
	for _, req := range f.Requests() {
		id := req["id"].(float64)
		assert.False(t, seen[id], "duplicate id %v", id)
		seen[id] = true
	}
	assert.Len(t, seen, 10)
}

func TestStateUpdateRejectsOtherDomains(t *testing.T) {
	s := State{EntityID: "sensor.x", Attributes: json.RawMessage(`{}`)}
	_, err := s.Update()
	assert.Error(t, err)
}
