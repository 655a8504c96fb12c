// Package hass talks to a Home Assistant instance over its websocket API.
//
// Dial connects and authenticates with a long-lived access token. The
// returned Client multiplexes requests by message id, so it can be shared
// between goroutines:
//
//	c, err := hass.Dial(ctx, hass.Options{URL: "http://homeassistant.local:8123", Token: token})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	entities, err := c.UpdateEntities(ctx)
//
// Host adapts a Client to the interfaces the update panel consumes. Service
// calls made through a Host are fire-and-forget; failures are delivered to
// HostOptions.OnError.
//
// All operations return *Error values that can be classified with
// IsAuthError, IsNetworkError, IsResultError and IsRetryable.
package hass
