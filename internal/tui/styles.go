package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/hassupdate/internal/ui"
	"github.com/muurk/hassupdate/internal/version"
)

// Application branding
const (
	AppName = "HOME ASSISTANT UPDATES"
)

// Layout constants
const (
	MinModalWidth = 40 // Absolute minimum modal width
	chromeHeight  = 6  // Outer border, header and footer lines
)

// Screen styles layered on the shared ui palette
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true).
			Padding(0, 0, 1, 0)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	ToastStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Bold(true)

	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.WarningColor).
			Padding(1, 2)

	ErrorBoxStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ErrorColor).
			Padding(1, 2)
)

// BuildHeaderContent renders the app name, version and connected instance.
func BuildHeaderContent(instance string) string {
	left := lipgloss.NewStyle().
		Foreground(ui.TextColor).
		Bold(true).
		Render(AppName + " v" + version.Version)

	if instance == "" {
		return left
	}

	right := lipgloss.NewStyle().
		Foreground(ui.MutedColor).
		Render(instance)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

// RenderApplicationContainer wraps a screen in the full-terminal frame:
// header, content and a footer with help text.
//
// Every screen renders through it:
//
//	func (m Model) View() string {
//	    return RenderApplicationContainer(m.instance, m.buildContent(), m.Help.View(m.Keys), m.Width, m.Height)
//	}
func RenderApplicationContainer(instance, content, footerText string, terminalWidth, terminalHeight int) string {
	if terminalWidth < ui.MinTerminalWidth {
		terminalWidth = ui.MinTerminalWidth
	}
	if terminalHeight < chromeHeight+4 {
		terminalHeight = chromeHeight + 4
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	footer := lipgloss.NewStyle().Foreground(ui.MutedColor).Render(footerText)

	contentStyle := lipgloss.NewStyle().
		Width(terminalWidth-4).
		Padding(0, 1)

	inner := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(BuildHeaderContent(instance)),
		contentStyle.Render(content),
		footerStyle.Render(footer),
	)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(ui.PrimaryColor).
		Width(terminalWidth - 2).
		Height(terminalHeight - 2).
		AlignVertical(lipgloss.Top).
		Render(inner)

	return lipgloss.Place(terminalWidth, terminalHeight, lipgloss.Left, lipgloss.Top, bordered)
}

// ContentWidth is the usable width inside the application container.
func ContentWidth(terminalWidth int) int {
	if terminalWidth < ui.MinTerminalWidth {
		terminalWidth = ui.MinTerminalWidth
	}
	return terminalWidth - 6
}

// SafeModalWidth returns requestedWidth capped to the terminal.
func SafeModalWidth(requestedWidth, terminalWidth int) int {
	maxWidth := terminalWidth - 4
	if maxWidth < MinModalWidth {
		maxWidth = MinModalWidth
	}
	if requestedWidth < maxWidth {
		return requestedWidth
	}
	return maxWidth
}

// RenderModal centers modal content over a dimmed background.
func RenderModal(modalContent string, terminalWidth, terminalHeight int) string {
	return lipgloss.Place(
		terminalWidth,
		terminalHeight,
		lipgloss.Center,
		lipgloss.Center,
		modalContent,
		lipgloss.WithWhitespaceChars("░"),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("240")),
	)
}
