// Package ui renders the non-interactive output of hass-update.
//
// Components follow a "run once and exit" pattern: they render styled
// output but never wait for keys, apart from the install confirmation.
//
//   - Header: command banner with the instance and entity
//   - Result: success, failure and warning boxes
//   - RenderPanel: the update panel view as static text, with release
//     notes rendered as markdown
//   - RenderEntityTable: the update entity overview
//
// ActionRunner ties them together for the action commands:
//
//	runner := ui.NewActionRunner(printer, ui.ActionConfig{
//	    Title:   "Install Update",
//	    Command: "hass-update install update.core_update",
//	})
//	err := runner.Run(ctx, func(ctx context.Context) ([]ui.Param, error) {
//	    return nil, client.CallService(ctx, "update", "install", data)
//	})
//
// Logging is silent unless HASSUPDATE_LOG_LEVEL is set, so zap output never
// interleaves with these components.
package ui
