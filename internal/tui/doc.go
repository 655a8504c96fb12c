// Package tui implements the interactive terminal interface for reviewing and
// installing Home Assistant updates.
//
// The interface is built on Bubble Tea and follows the Elm architecture: each
// screen is a model with Init, Update and View, and AppModel routes messages
// between them.
//
// # Screens
//
//   - List: every update entity with its status, refreshed on demand and
//     kept current from state_changed events
//   - Panel: the detail view of one entity, backed by update.Panel
//   - Failure: shown when the websocket connection drops
//
// # Panel lifecycle
//
// Opening a panel mounts it and, the first time only, fetches release notes
// in a tea.Cmd. Leaving the panel unmounts it so a late fetch result is
// discarded. State changes replace the entity snapshot without fetching
// notes again.
//
// Service calls are fire-and-forget. Failures arrive as ServiceErrorMsg and
// are shown as a toast below the buttons.
//
// # Framework Components
//
//   - bubbles/list: entity list with filtering
//   - bubbles/spinner: loading and indeterminate progress
//   - bubbles/progress: determinate install progress
//   - bubbles/viewport: scrolling release notes
//   - bubbles/help and bubbles/key: key bindings and help footer
//   - glamour (through the ui package): markdown release notes
//
// # Usage Example
//
//	client, err := hass.Dial(ctx, hass.Options{URL: url, Token: token})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	return tui.Run(ctx, client, i18n.MustNew(), tui.RunOptions{})
package tui
