package update

import "context"

// ServiceData is the payload of a service call.
type ServiceData map[string]any

// Host is the capability object the panel renders and dispatches through.
type Host interface {
	Localize(key string) string
	FormatEntityAttributeName(e *Entity, attribute string) string
	// CallService dispatches a command and returns immediately. Failures
	// are surfaced by the host, never to the caller.
	CallService(domain, service string, data ServiceData)
}

// ReleaseNotesFetcher retrieves release notes for an entity. A nil or empty
// result is a valid answer.
type ReleaseNotesFetcher interface {
	ReleaseNotes(ctx context.Context, entityID string) (string, error)
}

// AlertOptions describes a blocking informational dialog.
type AlertOptions struct {
	Title string
	Text  string
}

// Dialogs presents modal dialogs.
type Dialogs interface {
	ShowAlert(opts AlertOptions)
}

// Translation keys used by the panel
const (
	KeyUnavailable         = "state.default.unavailable"
	KeyReleaseAnnouncement = "ui.dialogs.more_info_control.update.release_announcement"
	KeyCreateBackup        = "ui.dialogs.more_info_control.update.create_backup"
	KeyClearSkipped        = "ui.dialogs.more_info_control.update.clear_skipped"
	KeySkip                = "ui.dialogs.more_info_control.update.skip"
	KeyInstall             = "ui.dialogs.more_info_control.update.install"
	KeyAutoUpdateTitle     = "ui.dialogs.more_info_control.update.auto_update_enabled_title"
	KeyAutoUpdateText      = "ui.dialogs.more_info_control.update.auto_update_enabled_text"
)

// Attribute names passed to FormatEntityAttributeName
const (
	AttrInstalledVersion = "installed_version"
	AttrLatestVersion    = "latest_version"
)
