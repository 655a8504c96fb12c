package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/hassupdate/internal/ui"
	"github.com/muurk/hassupdate/internal/update"
)

// toastDuration is how long a dispatch error stays on screen
const toastDuration = 6 * time.Second

// panelKeyMap defines key bindings for the update panel
type panelKeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Press   key.Binding
	Backup  key.Binding
	Install key.Binding
	Skip    key.Binding
	Clear   key.Binding
	Scroll  key.Binding
	Back    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k panelKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Press, k.Backup, k.Back, k.Help}
}

// FullHelp returns keybindings for the expanded help view
func (k panelKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Press, k.Backup},
		{k.Install, k.Skip, k.Clear, k.Scroll},
		{k.Back, k.Help, k.Quit},
	}
}

// alertBox is the update.Dialogs the panel writes alerts into. Update
// collects them after each handler runs.
type alertBox struct {
	mu      sync.Mutex
	pending *update.AlertOptions
}

func (a *alertBox) ShowAlert(opts update.AlertOptions) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = &opts
}

func (a *alertBox) take() *update.AlertOptions {
	a.mu.Lock()
	defer a.mu.Unlock()
	opts := a.pending
	a.pending = nil
	return opts
}

// PanelModel is the detail screen for one update entity.
type PanelModel struct {
	ctx      context.Context
	Panel    *update.Panel
	alerts   *alertBox
	entityID string

	Focused       update.Action
	Alert         *update.AlertOptions
	Toast         string
	toastSeq      int
	BackRequested bool
	MarkdownStyle string

	Width    int
	Height   int
	Spinner  spinner.Model
	Progress progress.Model
	Notes    viewport.Model
	Help     help.Model
	Keys     panelKeyMap
}

// NewPanelModel creates the panel screen for entity.
func NewPanelModel(ctx context.Context, entity *update.Entity, host update.Host, fetcher update.ReleaseNotesFetcher) PanelModel {
	alerts := &alertBox{}
	panel := update.NewPanel(host, fetcher, alerts)
	panel.SetEntity(entity)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	keys := panelKeyMap{
		Left: key.NewBinding(
			key.WithKeys("left", "h", "shift+tab"),
			key.WithHelp("←/h", "previous"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l", "tab"),
			key.WithHelp("→/l", "next"),
		),
		Press: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "press"),
		),
		Backup: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle backup"),
		),
		Install: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "install"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "skip"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear skipped"),
		),
		Scroll: key.NewBinding(
			key.WithKeys("up", "down", "k", "j", "pgup", "pgdown"),
			key.WithHelp("↑/↓", "scroll notes"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	m := PanelModel{
		ctx:           ctx,
		Panel:         panel,
		alerts:        alerts,
		entityID:      entity.EntityID,
		MarkdownStyle: ui.MarkdownStyleAuto,
		Width:         ui.MinTerminalWidth,
		Height:        24,
		Spinner:       s,
		Progress:      ui.NewProgressBar(ui.MinTerminalWidth),
		Notes:         viewport.New(ui.MinTerminalWidth, 8),
		Help:          help.New(),
		Keys:          keys,
	}
	m.Focused = m.defaultFocus(panel.Render())
	return m.syncNotes()
}

// Init mounts the panel and starts the one-time release notes fetch.
func (m PanelModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.Spinner.Tick}
	if m.Panel.Mount() {
		cmds = append(cmds, loadReleaseNotes(m.ctx, m.Panel))
	}
	return tea.Batch(cmds...)
}

func loadReleaseNotes(ctx context.Context, p *update.Panel) tea.Cmd {
	return func() tea.Msg {
		return releaseNotesMsg{changed: p.LoadReleaseNotes(ctx)}
	}
}

// Close unmounts the panel. Release notes arriving later are dropped.
func (m PanelModel) Close() {
	m.Panel.Unmount()
}

// EntityID returns the entity the panel was opened for, even after the
// entity has been removed.
func (m PanelModel) EntityID() string {
	return m.entityID
}

// Update handles messages for the panel screen
func (m PanelModel) Update(msg tea.Msg) (PanelModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress = ui.NewProgressBar(ContentWidth(msg.Width))
		return m.syncNotes(), nil

	case releaseNotesMsg:
		if msg.changed {
			m = m.syncNotes()
		}
		return m, nil

	case EntityChangedMsg:
		if msg.EntityID != m.EntityID() {
			return m, nil
		}
		// A nil entity means it was removed; the panel renders empty.
		m.Panel.SetEntity(msg.Entity)
		m.Focused = m.validFocus(m.Panel.Render())
		return m.syncNotes(), nil

	case ServiceErrorMsg:
		m.toastSeq++
		m.Toast = errorText(msg.Err)
		seq := m.toastSeq
		return m, tea.Tick(toastDuration, func(time.Time) tea.Msg {
			return clearToastMsg{seq: seq}
		})

	case clearToastMsg:
		if msg.seq == m.toastSeq {
			m.Toast = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.Alert != nil {
			return m.updateAlert(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

// updateAlert handles input while the alert modal is visible
func (m PanelModel) updateAlert(msg tea.KeyMsg) (PanelModel, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc", " ", "q":
		m.Alert = nil
	}
	return m, nil
}

func (m PanelModel) updateKeys(msg tea.KeyMsg) (PanelModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Back):
		m.BackRequested = true
		return m, nil

	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll
		return m.syncNotes(), nil

	case key.Matches(msg, m.Keys.Left):
		m.Focused = m.moveFocus(-1)
		return m, nil

	case key.Matches(msg, m.Keys.Right):
		m.Focused = m.moveFocus(1)
		return m, nil

	case key.Matches(msg, m.Keys.Backup):
		m.Panel.ToggleBackup()
		return m, nil

	case key.Matches(msg, m.Keys.Press):
		return m.trigger(m.Focused), nil

	case key.Matches(msg, m.Keys.Install):
		return m.trigger(update.ActionInstall), nil

	case key.Matches(msg, m.Keys.Skip):
		return m.trigger(update.ActionSkip), nil

	case key.Matches(msg, m.Keys.Clear):
		return m.trigger(update.ActionClearSkipped), nil

	case key.Matches(msg, m.Keys.Scroll):
		var cmd tea.Cmd
		m.Notes, cmd = m.Notes.Update(msg)
		return m, cmd
	}

	return m, nil
}

// trigger presses a button and picks up any alert it raised.
func (m PanelModel) trigger(a update.Action) PanelModel {
	if a == "" {
		return m
	}
	m.Panel.Trigger(a)
	if alert := m.alerts.take(); alert != nil {
		m.Alert = alert
	}
	return m
}

// enabledActions lists the buttons focus can land on, in display order.
func enabledActions(v update.View) []update.Action {
	var actions []update.Action
	for _, b := range v.Actions {
		if !b.Disabled {
			actions = append(actions, b.Action)
		}
	}
	return actions
}

// defaultFocus prefers install, then the first enabled button.
func (m PanelModel) defaultFocus(v update.View) update.Action {
	actions := enabledActions(v)
	for _, a := range actions {
		if a == update.ActionInstall {
			return a
		}
	}
	if len(actions) > 0 {
		return actions[0]
	}
	return ""
}

// validFocus keeps the current focus if its button is still enabled.
func (m PanelModel) validFocus(v update.View) update.Action {
	for _, a := range enabledActions(v) {
		if a == m.Focused {
			return a
		}
	}
	return m.defaultFocus(v)
}

func (m PanelModel) moveFocus(delta int) update.Action {
	actions := enabledActions(m.Panel.Render())
	if len(actions) == 0 {
		return ""
	}
	idx := -1
	for i, a := range actions {
		if a == m.Focused {
			idx = i
		}
	}
	if idx < 0 {
		return actions[0]
	}
	idx = (idx + delta + len(actions)) % len(actions)
	return actions[idx]
}

// syncNotes re-renders the notes viewport for the current size and view.
func (m PanelModel) syncNotes() PanelModel {
	v := m.Panel.Render()
	width := ContentWidth(m.Width)

	content := ""
	if v.Notes.Kind == update.NotesReleaseNotes || v.Notes.Kind == update.NotesSummary {
		content = ui.RenderNotes(v.Notes, width, m.MarkdownStyle)
	}

	height := m.Height - chromeHeight - lipgloss.Height(m.renderTop(v)) - lipgloss.Height(m.renderBottom(v)) - 6
	if height < 3 {
		height = 3
	}
	if content != "" && lipgloss.Height(content) < height {
		height = lipgloss.Height(content)
	}

	m.Notes.Width = width
	m.Notes.Height = height
	m.Notes.SetContent(content)
	return m
}

// renderTop renders everything above the notes region.
func (m PanelModel) renderTop(v update.View) string {
	var sections []string

	if v.Progress != nil {
		if v.Progress.Indeterminate {
			sections = append(sections, ui.ProgressLabelStyle.Render(m.Spinner.View()+" Installing..."))
		} else {
			sections = append(sections, lipgloss.NewStyle().PaddingLeft(2).Render(
				fmt.Sprintf("%s  %3.0f%%", m.Progress.ViewAs(v.Progress.Value), v.Progress.Value*100)))
		}
	}

	if v.Title != "" {
		sections = append(sections, ui.PanelTitleStyle.Render(v.Title))
	}

	if v.Error != "" {
		sections = append(sections, ui.ErrorMessageStyle.Render(ui.FailureMarker+" "+v.Error))
	}

	sections = append(sections, ui.RenderVersionRows(v.Versions))

	if v.ReleaseAnnouncement != nil {
		sections = append(sections,
			v.ReleaseAnnouncement.Label+": "+ui.LinkStyle.Render(v.ReleaseAnnouncement.URL))
	}

	return strings.Join(sections, "\n\n")
}

// renderBottom renders the checkbox, buttons and toast below the notes.
func (m PanelModel) renderBottom(v update.View) string {
	var sections []string

	if v.Backup != nil {
		sections = append(sections, ui.RenderCheckbox(*v.Backup, false))
	}

	sections = append(sections, ui.RenderActions(v.Actions, m.Focused))

	if m.Toast != "" {
		sections = append(sections, ToastStyle.Render(ui.FailureMarker+" "+m.Toast))
	}

	return strings.Join(sections, "\n\n")
}

// View renders the panel content (without the application container)
func (m PanelModel) View() string {
	v := m.Panel.Render()
	if v.Empty {
		e := m.Panel.Entity()
		if e == nil {
			return SubtitleStyle.Render("This entity no longer exists.")
		}
		return SubtitleStyle.Render(fmt.Sprintf("%s is %s.", e.Name(), e.State))
	}

	sections := []string{m.renderTop(v)}

	switch v.Notes.Kind {
	case update.NotesLoading:
		sections = append(sections, m.Spinner.View()+" "+ui.StateMutedStyle.Render("Loading release notes..."))
	case update.NotesReleaseNotes, update.NotesSummary:
		if m.Notes.TotalLineCount() > 0 && strings.TrimSpace(v.Notes.Content) != "" {
			sections = append(sections, m.Notes.View())
		}
	}

	sections = append(sections, m.renderBottom(v))
	return strings.Join(sections, "\n\n")
}

// AlertView renders the alert modal box.
func (m PanelModel) AlertView() string {
	if m.Alert == nil {
		return ""
	}
	width := SafeModalWidth(60, m.Width)
	body := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Foreground(ui.WarningColor).Bold(true).Render(ui.WarningMarker+"  "+m.Alert.Title),
		"",
		lipgloss.NewStyle().Width(width-6).Render(m.Alert.Text),
		"",
		ui.StateMutedStyle.Render("Press enter to close"),
	)
	return ModalStyle.Width(width).Render(body)
}
