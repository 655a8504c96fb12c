package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/hassupdate/internal/update"
)

// MarkdownStyleAuto picks a glamour style from the terminal background.
const MarkdownStyleAuto = ""

// RenderMarkdown renders release notes for the terminal.
func RenderMarkdown(md string, width int, style string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == MarkdownStyleAuto {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}

// PanelOptions controls RenderPanel.
type PanelOptions struct {
	Width int

	// HideNotes drops the release-notes region.
	HideNotes bool

	// MarkdownStyle is a glamour standard style name, or MarkdownStyleAuto.
	MarkdownStyle string

	// Focused highlights one action; used by the TUI.
	Focused update.Action
}

// RenderPanel renders a panel view. An empty view renders as "".
func RenderPanel(v update.View, opts PanelOptions) string {
	if v.Empty {
		return ""
	}

	width := opts.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var sections []string

	if p := RenderProgress(v.Progress, "Installing", width); p != "" {
		sections = append(sections, p)
	}

	if v.Title != "" {
		sections = append(sections, PanelTitleStyle.Render(v.Title))
	}

	if v.Error != "" {
		sections = append(sections, ErrorMessageStyle.Render(FailureMarker+" "+v.Error))
	}

	sections = append(sections, RenderVersionRows(v.Versions))

	if v.ReleaseAnnouncement != nil {
		sections = append(sections,
			v.ReleaseAnnouncement.Label+": "+LinkStyle.Render(v.ReleaseAnnouncement.URL))
	}

	if !opts.HideNotes {
		if notes := RenderNotes(v.Notes, width, opts.MarkdownStyle); notes != "" {
			sections = append(sections, notes)
		}
	}

	if v.Backup != nil {
		sections = append(sections, RenderCheckbox(*v.Backup, false))
	}

	sections = append(sections, RenderActions(v.Actions, opts.Focused))

	return strings.Join(sections, "\n\n")
}

// RenderVersionRows renders key/value rows with aligned values.
func RenderVersionRows(rows []update.Row) string {
	keyWidth := 0
	for _, r := range rows {
		if w := lipgloss.Width(r.Key); w > keyWidth {
			keyWidth = w
		}
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		key := lipgloss.NewStyle().Foreground(MutedColor).Width(keyWidth + 2).Render(r.Key)
		lines = append(lines, key+ResultValueStyle.Render(r.Value))
	}
	return strings.Join(lines, "\n")
}

// RenderNotes renders the release-notes region. Empty notes render as "".
func RenderNotes(n update.NotesView, width int, style string) string {
	switch n.Kind {
	case update.NotesLoading:
		return StateMutedStyle.Render("Loading release notes...")
	case update.NotesReleaseNotes, update.NotesSummary:
		if strings.TrimSpace(n.Content) == "" {
			return ""
		}
		body, err := RenderMarkdown(n.Content, width-4, style)
		if err != nil {
			body = n.Content
		}
		return NotesBoxStyle(width).Render(body)
	default:
		return ""
	}
}

// RenderCheckbox renders the backup checkbox.
func RenderCheckbox(c update.CheckboxView, focused bool) string {
	box := CheckboxOff
	if c.Checked {
		box = CheckboxOn
	}
	line := box + " " + c.Label

	switch {
	case c.Disabled:
		return StateMutedStyle.Render(line)
	case focused:
		return lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).Render(line)
	default:
		return line
	}
}

// RenderActions renders the action buttons in a row.
func RenderActions(actions []update.Button, focused update.Action) string {
	buttons := make([]string, 0, len(actions))
	for _, b := range actions {
		buttons = append(buttons, RenderButton(b, b.Action == focused))
	}
	return strings.Join(buttons, "  ")
}

// RenderButton renders a single action.
func RenderButton(b update.Button, focused bool) string {
	if b.Disabled {
		return ButtonDisabledStyle.Render(b.Label)
	}
	if focused {
		return ButtonStyle.Bold(true).Underline(true).Render(b.Label)
	}
	return ButtonStyle.Render(b.Label)
}
