// Package update models Home Assistant update entities and the detail panel
// that presents one of them.
//
// The panel is split the way the rest of hass-update splits screens: a state
// holder (Panel) owns the few pieces of local state, and a pure function
// (BuildView) turns the entity snapshot plus that state into a View tree.
// Renderers in internal/tui and internal/ui consume the View; neither decides
// visibility or disabled states on its own.
//
// # Collaborators
//
// Everything outside the panel is injected:
//
//   - Host: translation lookup, attribute-name formatting and fire-and-forget
//     service dispatch (domain "update")
//   - ReleaseNotesFetcher: the one asynchronous call the panel makes
//   - Dialogs: blocking informational alerts
//
// # Lifecycle
//
//	panel := update.NewPanel(host, host, dialogs)
//	panel.SetEntity(entity)
//	if panel.Mount() {
//	    go panel.LoadReleaseNotes(ctx) // exactly once per panel
//	}
//	view := panel.Render()
//	...
//	panel.Unmount() // late fetch results are discarded from here on
//
// All Panel methods are safe for concurrent use.
package update
