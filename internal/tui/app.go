package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/hassupdate/internal/hass"
	"github.com/muurk/hassupdate/internal/ui"
	"github.com/muurk/hassupdate/internal/update"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenList    Screen = "list"
	ScreenPanel   Screen = "panel"
	ScreenFailure Screen = "failure"
)

// failureKeyMap defines key bindings for the connection failure screen
type failureKeyMap struct {
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k failureKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k failureKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

// Options configures the application model.
type Options struct {
	// Instance is shown in the header, usually the Home Assistant URL.
	Instance string

	// EntityID opens that entity's panel as soon as the list has loaded.
	EntityID string

	// MarkdownStyle is the glamour style for release notes.
	MarkdownStyle string
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	ctx     context.Context
	source  Source
	host    update.Host
	fetcher update.ReleaseNotesFetcher
	opts    Options

	CurrentScreen Screen

	ListModel  ListModel
	PanelModel PanelModel
	LastError  error

	Width  int
	Height int

	Help        help.Model
	FailureKeys failureKeyMap
}

// NewAppModel creates the application model starting at the entity list.
func NewAppModel(ctx context.Context, source Source, host update.Host, fetcher update.ReleaseNotesFetcher, opts Options) AppModel {
	return AppModel{
		ctx:           ctx,
		source:        source,
		host:          host,
		fetcher:       fetcher,
		opts:          opts,
		CurrentScreen: ScreenList,
		ListModel:     NewListModel(ctx, source),
		Width:         ui.MinTerminalWidth,
		Height:        24,
		Help:          help.New(),
		FailureKeys: failureKeyMap{
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "enter"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	return m.ListModel.Init()
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var listCmd, panelCmd tea.Cmd
		m.ListModel, listCmd = m.ListModel.Update(msg)
		if m.CurrentScreen == ScreenPanel {
			m.PanelModel, panelCmd = m.PanelModel.Update(msg)
		}
		return m, tea.Batch(listCmd, panelCmd)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.CurrentScreen == ScreenFailure {
			if key.Matches(msg, m.FailureKeys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		}

	case ConnectionLostMsg:
		if m.CurrentScreen == ScreenPanel {
			m.PanelModel.Close()
		}
		m.LastError = msg.Err
		m.CurrentScreen = ScreenFailure
		return m, nil

	case EntityChangedMsg:
		// The list tracks every entity, the open panel only its own.
		var listCmd, panelCmd tea.Cmd
		m.ListModel, listCmd = m.ListModel.Update(msg)
		if m.CurrentScreen == ScreenPanel {
			m.PanelModel, panelCmd = m.PanelModel.Update(msg)
		}
		return m, tea.Batch(listCmd, panelCmd)

	case entitiesLoadedMsg:
		var cmd tea.Cmd
		m.ListModel, cmd = m.ListModel.Update(msg)
		if m.opts.EntityID != "" && msg.err == nil {
			id := m.opts.EntityID
			m.opts.EntityID = ""
			for _, e := range msg.entities {
				if e.EntityID == id {
					next, openCmd := m.openPanel(e)
					return next, tea.Batch(cmd, openCmd)
				}
			}
		}
		return m, cmd
	}

	return m.updateCurrentScreen(msg)
}

// updateCurrentScreen routes updates to the currently active screen
func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.CurrentScreen {
	case ScreenList:
		m.ListModel, cmd = m.ListModel.Update(msg)
		if e := m.ListModel.TakeSelected(); e != nil {
			return m.openPanel(e)
		}

	case ScreenPanel:
		m.PanelModel, cmd = m.PanelModel.Update(msg)
		if m.PanelModel.BackRequested {
			return m.closePanel()
		}
	}

	return m, cmd
}

// openPanel transitions to the detail panel for e
func (m AppModel) openPanel(e *update.Entity) (tea.Model, tea.Cmd) {
	m.PanelModel = NewPanelModel(m.ctx, e, m.host, m.fetcher)
	if m.opts.MarkdownStyle != "" {
		m.PanelModel.MarkdownStyle = m.opts.MarkdownStyle
	}
	m.PanelModel, _ = m.PanelModel.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height})
	m.CurrentScreen = ScreenPanel
	return m, m.PanelModel.Init()
}

// closePanel unmounts the panel and returns to the list
func (m AppModel) closePanel() (tea.Model, tea.Cmd) {
	m.PanelModel.Close()
	m.CurrentScreen = ScreenList
	return m, nil
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenPanel:
		if m.PanelModel.Alert != nil {
			return RenderModal(m.PanelModel.AlertView(), m.Width, m.Height)
		}
		return RenderApplicationContainer(m.opts.Instance, m.PanelModel.View(),
			m.PanelModel.Help.View(m.PanelModel.Keys), m.Width, m.Height)

	case ScreenFailure:
		return RenderApplicationContainer(m.opts.Instance, m.buildFailureContent(),
			m.Help.View(m.FailureKeys), m.Width, m.Height)

	default:
		return RenderApplicationContainer(m.opts.Instance, m.ListModel.View(),
			m.ListModel.Help.View(m.ListModel.Keys), m.Width, m.Height)
	}
}

// buildFailureContent renders the connection-lost screen
func (m AppModel) buildFailureContent() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(ui.FailureMarker + " Connection lost"))
	b.WriteString("\n")

	if m.LastError != nil {
		b.WriteString(ErrorBoxStyle.Render("Error: " + hass.GetShortErrorMessage(m.LastError)))
		b.WriteString("\n\n")

		if tips := ui.HintLines(hass.GetTroubleshootingHint(m.LastError)); len(tips) > 0 {
			b.WriteString("Troubleshooting:\n")
			for _, tip := range tips {
				b.WriteString("  • " + tip + "\n")
			}
		}
	}

	return b.String()
}
