package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/hass"
	"github.com/muurk/hassupdate/internal/logging"
	"github.com/muurk/hassupdate/internal/ui"
	"github.com/muurk/hassupdate/internal/update"
)

// listKeyMap defines key bindings for the entity list
type listKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Open    key.Binding
	Refresh key.Binding
	Filter  key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k listKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Refresh, k.Filter, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k listKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open},
		{k.Refresh, k.Filter, k.Quit},
	}
}

// entityItem wraps an update entity for use with bubbles/list
type entityItem struct {
	entity *update.Entity
}

func (i entityItem) FilterValue() string {
	return i.entity.Name() + " " + i.entity.EntityID + " " + i.entity.Attributes.Title
}

func (i entityItem) Title() string {
	return i.entity.Name()
}

func (i entityItem) Description() string {
	versions := i.entity.Attributes.InstalledVersion
	if latest := i.entity.Attributes.LatestVersion; latest != "" && latest != versions {
		versions = fmt.Sprintf("%s → %s", orUnknown(versions), latest)
	}
	parts := []string{i.entity.EntityID}
	if versions != "" {
		parts = append(parts, versions)
	}
	parts = append(parts, ui.StatusLabel(i.entity))
	return strings.Join(parts, " • ")
}

// ListModel is the entity list screen.
type ListModel struct {
	ctx    context.Context
	source Source

	Entities list.Model
	Loading  bool
	Err      error
	Toast    string
	Selected *update.Entity

	Width   int
	Height  int
	Spinner spinner.Model
	Help    help.Model
	Keys    listKeyMap
}

// NewListModel creates the list screen. Entities are loaded by Init.
func NewListModel(ctx context.Context, source Source) ListModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ui.PrimaryColor).
		BorderLeftForeground(ui.PrimaryColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		BorderLeftForeground(ui.PrimaryColor)

	entities := list.New([]list.Item{}, delegate, 0, 0)
	entities.Title = "Update entities"
	entities.SetShowStatusBar(false)
	entities.SetShowHelp(false)
	entities.SetFilteringEnabled(true)
	entities.Styles.Title = TitleStyle

	keys := listKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	return ListModel{
		ctx:      ctx,
		source:   source,
		Entities: entities,
		Loading:  true,
		Spinner:  s,
		Help:     help.New(),
		Keys:     keys,
	}
}

// Init starts loading the entity list
func (m ListModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.loadEntities())
}

func (m ListModel) loadEntities() tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		entities, err := source.UpdateEntities(ctx)
		return entitiesLoadedMsg{entities: entities, err: err}
	}
}

// Update handles messages for the list screen
func (m ListModel) Update(msg tea.Msg) (ListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Entities.SetSize(ContentWidth(msg.Width), m.listHeight())
		return m, nil

	case entitiesLoadedMsg:
		m.Loading = false
		m.Err = msg.err
		if msg.err != nil {
			logging.Warn("Loading update entities failed", zap.Error(msg.err))
			return m, nil
		}
		items := make([]list.Item, len(msg.entities))
		for i, e := range msg.entities {
			items[i] = entityItem{entity: e}
		}
		return m, m.Entities.SetItems(items)

	case EntityChangedMsg:
		return m, m.applyChange(msg)

	case ServiceErrorMsg:
		m.Toast = errorText(msg.Err)
		return m, nil

	case spinner.TickMsg:
		if !m.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.Entities.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Refresh):
			m.Loading = true
			m.Err = nil
			m.Toast = ""
			return m, tea.Batch(m.Spinner.Tick, m.loadEntities())
		case key.Matches(msg, m.Keys.Open):
			if item, ok := m.Entities.SelectedItem().(entityItem); ok {
				m.Selected = item.entity
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.Entities, cmd = m.Entities.Update(msg)
	return m, cmd
}

// applyChange replaces, adds or removes the changed entity.
func (m *ListModel) applyChange(msg EntityChangedMsg) tea.Cmd {
	for i, item := range m.Entities.Items() {
		ei, ok := item.(entityItem)
		if !ok || ei.entity.EntityID != msg.EntityID {
			continue
		}
		if msg.Entity == nil {
			m.Entities.RemoveItem(i)
			return nil
		}
		return m.Entities.SetItem(i, entityItem{entity: msg.Entity})
	}

	if msg.Entity == nil {
		return nil
	}
	return m.Entities.InsertItem(len(m.Entities.Items()), entityItem{entity: msg.Entity})
}

// Filtering reports whether the list filter input has focus.
func (m ListModel) Filtering() bool {
	return m.Entities.FilterState() == list.Filtering
}

// TakeSelected returns and clears the entity the user opened.
func (m *ListModel) TakeSelected() *update.Entity {
	e := m.Selected
	m.Selected = nil
	return e
}

func (m ListModel) listHeight() int {
	h := m.Height - chromeHeight - 4
	if h < 4 {
		h = 4
	}
	return h
}

// View renders the list screen
func (m ListModel) View() string {
	var b strings.Builder

	switch {
	case m.Loading:
		b.WriteString(m.Spinner.View() + " Loading update entities...")
	case m.Err != nil:
		b.WriteString(ErrorBoxStyle.Render(ui.FailureMarker + " " + hass.GetShortErrorMessage(m.Err)))
		b.WriteString("\n\n")
		b.WriteString(SubtitleStyle.Render("Press r to retry."))
	case len(m.Entities.Items()) == 0:
		b.WriteString(SubtitleStyle.Render("No update entities found."))
	default:
		b.WriteString(m.Entities.View())
	}

	if m.Toast != "" {
		b.WriteString("\n\n")
		b.WriteString(ToastStyle.Render(ui.FailureMarker + " " + m.Toast))
	}

	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
