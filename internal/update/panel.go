package update

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/logging"
)

// Panel is the state holder behind the update detail view.
type Panel struct {
	mu sync.Mutex

	host    Host
	fetcher ReleaseNotesFetcher
	dialogs Dialogs

	entity *Entity

	releaseNotes  *string
	lastError     string
	backupChecked bool

	live         bool
	mountGen     int
	firstMounted bool
	notesWanted  bool // release notes requested and no result applied yet
	fetchPending bool
}

// NewPanel creates a panel. Any collaborator may be nil: a nil host renders
// nothing, a nil fetcher never loads notes, nil dialogs drop alerts.
func NewPanel(host Host, fetcher ReleaseNotesFetcher, dialogs Dialogs) *Panel {
	return &Panel{
		host:          host,
		fetcher:       fetcher,
		dialogs:       dialogs,
		backupChecked: true,
	}
}

// SetEntity replaces the entity snapshot. It never triggers a fetch.
func (p *Panel) SetEntity(e *Entity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entity = e
}

// Entity returns the current snapshot.
func (p *Panel) Entity() *Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entity
}

// BackupChecked reports the checkbox state.
func (p *Panel) BackupChecked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backupChecked
}

// SetBackupChecked mirrors the checkbox widget.
func (p *Panel) SetBackupChecked(checked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backupChecked = checked
}

// ToggleBackup flips the checkbox unless it is hidden or disabled, and
// returns the resulting state.
func (p *Panel) ToggleBackup() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.entity != nil && SupportsFeature(p.entity, FeatureBackup) && !BackupDisabled(p.entity) {
		p.backupChecked = !p.backupChecked
	}
	return p.backupChecked
}

// Mount marks the panel live. It returns true when release notes should be
// fetched; the caller then runs LoadReleaseNotes. The decision to fetch is
// made on the first mount. A later mount asks again only when the earlier
// result was discarded by Unmount.
func (p *Panel) Mount() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live {
		return false
	}
	p.live = true
	p.mountGen++

	if !p.firstMounted {
		p.firstMounted = true
		p.notesWanted = p.entity != nil && p.fetcher != nil && SupportsFeature(p.entity, FeatureReleaseNotes)
	}
	if !p.notesWanted {
		return false
	}
	p.fetchPending = true
	return true
}

// Unmount marks the panel torn down. Pending fetch results are discarded.
func (p *Panel) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = false
}

// Live reports whether the panel is mounted.
func (p *Panel) Live() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// LoadReleaseNotes performs the single release-notes fetch requested by
// Mount. It blocks for the duration of the fetch and reports whether panel
// state changed. Calls without a pending request are no-ops.
func (p *Panel) LoadReleaseNotes(ctx context.Context) bool {
	p.mu.Lock()
	if !p.fetchPending || p.entity == nil {
		p.mu.Unlock()
		return false
	}
	p.fetchPending = false
	gen := p.mountGen
	entityID := p.entity.EntityID
	fetcher := p.fetcher
	p.mu.Unlock()

	notes, err := fetcher.ReleaseNotes(ctx, entityID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.live || gen != p.mountGen {
		logging.Debug("Discarding release notes for unmounted panel",
			zap.String("entity_id", entityID),
		)
		return false
	}

	p.notesWanted = false
	if err != nil {
		logging.Warn("Release notes fetch failed",
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		p.lastError = err.Error()
		return true
	}

	p.releaseNotes = &notes
	return true
}

// MountAsync mounts the panel and, when required, fetches release notes in a
// goroutine. onChange runs after the fetch result has been applied.
func (p *Panel) MountAsync(ctx context.Context, onChange func()) {
	if !p.Mount() {
		return
	}
	go func() {
		if p.LoadReleaseNotes(ctx) && onChange != nil {
			onChange()
		}
	}()
}

// State returns a copy of the local state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Panel) stateLocked() State {
	st := State{
		Error:         p.lastError,
		BackupChecked: p.backupChecked,
	}
	if p.releaseNotes != nil {
		notes := *p.releaseNotes
		st.ReleaseNotes = &notes
	}
	return st
}

// Render builds the View for the current entity and state.
func (p *Panel) Render() View {
	p.mu.Lock()
	e, host, st := p.entity, p.host, p.stateLocked()
	p.mu.Unlock()
	return BuildView(e, host, st)
}

// Install dispatches update.install.
func (p *Panel) Install() {
	p.mu.Lock()
	e, host, backup := p.entity, p.host, p.backupChecked
	p.mu.Unlock()
	if e == nil || host == nil {
		return
	}

	data := ServiceData{"entity_id": e.EntityID}

	if SupportsFeature(e, FeatureBackup) && backup {
		data["backup"] = true
	}

	if SupportsFeature(e, FeatureSpecificVersion) && e.Attributes.LatestVersion != "" {
		data["version"] = e.Attributes.LatestVersion
	}

	host.CallService(Domain, ServiceInstall, data)
}

// Skip dispatches update.skip, or shows an alert instead when auto update is
// enabled for the entity.
func (p *Panel) Skip() {
	p.mu.Lock()
	e, host, dialogs := p.entity, p.host, p.dialogs
	p.mu.Unlock()
	if e == nil || host == nil {
		return
	}

	if e.Attributes.AutoUpdate {
		if dialogs != nil {
			dialogs.ShowAlert(AlertOptions{
				Title: host.Localize(KeyAutoUpdateTitle),
				Text:  host.Localize(KeyAutoUpdateText),
			})
		}
		return
	}

	host.CallService(Domain, ServiceSkip, ServiceData{"entity_id": e.EntityID})
}

// ClearSkipped dispatches update.clear_skipped.
func (p *Panel) ClearSkipped() {
	p.mu.Lock()
	e, host := p.entity, p.host
	p.mu.Unlock()
	if e == nil || host == nil {
		return
	}

	host.CallService(Domain, ServiceClearSkipped, ServiceData{"entity_id": e.EntityID})
}

// Trigger runs the handler behind a button if that button is rendered and
// enabled. It reports whether the handler ran.
func (p *Panel) Trigger(a Action) bool {
	b, ok := p.Render().Button(a)
	if !ok || b.Disabled {
		return false
	}

	switch a {
	case ActionInstall:
		p.Install()
	case ActionSkip:
		p.Skip()
	case ActionClearSkipped:
		p.ClearSkipped()
	default:
		return false
	}
	return true
}
