// Package logging provides structured logging for hass-update.
//
// This package wraps a global zap logger with helpers for the events the tool
// cares about: websocket connection lifecycle, protocol messages exchanged with
// Home Assistant, and service calls dispatched on behalf of the user.
//
// # Silent by Default
//
// The terminal UI owns the screen, so logging is disabled unless a level is
// requested through HASSUPDATE_LOG_LEVEL or the --log-level flag:
//
//	HASSUPDATE_LOG_LEVEL=debug hass-update show update.core_update
//
// # Structured Logging
//
//	logging.Info("Release notes fetched",
//	    zap.String("entity_id", "update.core_update"),
//	    zap.Int("length", len(notes)),
//	)
//
// # Output
//
// Entries are written to stderr in console format so they can be redirected
// away from the interactive screen:
//
//	hass-update 2>hass-update.log
package logging
