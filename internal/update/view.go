package update

// Action identifies a panel button.
type Action string

const (
	ActionSkip         Action = "skip"
	ActionClearSkipped Action = "clear_skipped"
	ActionInstall      Action = "install"
)

// NotesKind selects what the release-notes region shows.
type NotesKind int

const (
	NotesNone         NotesKind = iota // Nothing
	NotesLoading                       // Fetch outstanding, show a spinner
	NotesReleaseNotes                  // Fetched release notes (may be empty)
	NotesSummary                       // release_summary attribute
)

// View is the render output of the panel. Renderers draw it verbatim.
type View struct {
	// Empty means render nothing; no other field is populated.
	Empty bool

	Progress            *ProgressView
	Title               string
	Error               string
	Versions            []Row
	ReleaseAnnouncement *Link
	Notes               NotesView
	Backup              *CheckboxView
	Actions             []Button
}

// ProgressView is a linear progress indicator.
type ProgressView struct {
	Indeterminate bool
	Value         float64 // 0-1, only meaningful when determinate
}

// Row is a key/value line.
type Row struct {
	Key   string
	Value string
}

// Link is an external link.
type Link struct {
	Label string
	URL   string
}

// NotesView is the release-notes region. Content is markdown.
type NotesView struct {
	Kind    NotesKind
	Content string
}

// CheckboxView is the backup checkbox.
type CheckboxView struct {
	Label    string
	Checked  bool
	Disabled bool
}

// Button is an action control.
type Button struct {
	Action   Action
	Label    string
	Disabled bool
}

// Button returns the rendered button for an action.
func (v View) Button(a Action) (Button, bool) {
	for _, b := range v.Actions {
		if b.Action == a {
			return b, true
		}
	}
	return Button{}, false
}

// State is the panel-local state BuildView reads.
type State struct {
	// ReleaseNotes is nil until the fetch completes.
	ReleaseNotes  *string
	Error         string
	BackupChecked bool
}

// BuildView derives the View from an entity snapshot, the host and local
// state. It has no side effects.
func BuildView(e *Entity, host Host, st State) View {
	if e == nil || host == nil || IsUnavailableState(e.State) {
		return View{Empty: true}
	}

	v := View{
		Title: e.Attributes.Title,
		Error: st.Error,
	}

	if ShowProgress(e) {
		if value, ok := DeterminateProgress(e); ok {
			v.Progress = &ProgressView{Value: value}
		} else {
			v.Progress = &ProgressView{Indeterminate: true}
		}
	}

	unavailable := host.Localize(KeyUnavailable)
	v.Versions = []Row{
		{
			Key:   host.FormatEntityAttributeName(e, AttrInstalledVersion),
			Value: orDefault(e.Attributes.InstalledVersion, unavailable),
		},
		{
			Key:   host.FormatEntityAttributeName(e, AttrLatestVersion),
			Value: orDefault(e.Attributes.LatestVersion, unavailable),
		},
	}

	if e.Attributes.ReleaseURL != "" {
		v.ReleaseAnnouncement = &Link{
			Label: host.Localize(KeyReleaseAnnouncement),
			URL:   e.Attributes.ReleaseURL,
		}
	}

	switch {
	case SupportsFeature(e, FeatureReleaseNotes) && st.Error == "":
		if st.ReleaseNotes == nil {
			v.Notes = NotesView{Kind: NotesLoading}
		} else {
			v.Notes = NotesView{Kind: NotesReleaseNotes, Content: *st.ReleaseNotes}
		}
	case e.Attributes.ReleaseSummary != "":
		v.Notes = NotesView{Kind: NotesSummary, Content: e.Attributes.ReleaseSummary}
	}

	if SupportsFeature(e, FeatureBackup) {
		v.Backup = &CheckboxView{
			Label:    host.Localize(KeyCreateBackup),
			Checked:  st.BackupChecked,
			Disabled: BackupDisabled(e),
		}
	}

	if ShowClearSkipped(e) {
		v.Actions = append(v.Actions, Button{
			Action: ActionClearSkipped,
			Label:  host.Localize(KeyClearSkipped),
		})
	} else {
		v.Actions = append(v.Actions, Button{
			Action:   ActionSkip,
			Label:    host.Localize(KeySkip),
			Disabled: SkipDisabled(e),
		})
	}

	if SupportsFeature(e, FeatureInstall) {
		v.Actions = append(v.Actions, Button{
			Action:   ActionInstall,
			Label:    host.Localize(KeyInstall),
			Disabled: InstallDisabled(e),
		})
	}

	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
