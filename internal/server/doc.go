// Package server implements a simulated Home Assistant instance.
//
// It speaks the subset of the Home Assistant websocket API that hass-update
// uses, backed by an in-memory store of entities loaded from YAML fixtures.
// It is used by hass-update-demo to try the tool without a real instance, and
// by tests as an end-to-end peer for the hass client.
//
// # Websocket API
//
// Connections follow the Home Assistant handshake:
//
//	server → {"type": "auth_required", "ha_version": "..."}
//	client → {"type": "auth", "access_token": "..."}
//	server → {"type": "auth_ok"} | {"type": "auth_invalid", "message": "..."}
//
// Supported commands after authentication:
//   - ping
//   - get_states
//   - call_service (update.install, update.skip, update.clear_skipped)
//   - update/release_notes
//   - subscribe_events / unsubscribe_events (state_changed)
//   - frontend/get_translations
//
// # Simulated Installs
//
// update.install validates the request the way Home Assistant does (feature
// support, specific version, backup, install already running), marks the
// entity in progress and then advances update_percentage in steps of
// Config.InstallStep until the new version is installed. Every change is
// broadcast as a state_changed event.
//
// Fixtures may list services under "fail" to make them return an error, which
// exercises the error paths of clients.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Port:  8123,
//	    Token: "demo",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	// Start blocks until ctx is cancelled
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Message Capture
//
// When Config.CaptureDir is set, every message in either direction is
// appended to a JSON Lines file per connection.
//
// # Graceful Shutdown
//
// Shutdown withdraws the mDNS advertisement, stops the HTTP server, closes
// open websocket connections and stops running installs.
package server
