package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/hassupdate/internal/urls"
)

// Confirm displays a warning box and asks a yes/no question. Anything other
// than "y" or "yes" declines.
func Confirm(in io.Reader, out io.Writer, title string, lines []string, question string) bool {
	width := GetTerminalWidth()

	content := []string{
		"",
		lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true).
			Render(fmt.Sprintf("   %s  %s", WarningMarker, title)),
		"",
	}
	for _, line := range lines {
		content = append(content, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+line))
	}
	content = append(content, "")

	_, _ = fmt.Fprintln(out, ResultBoxStyle(width, WarningColor).Render(strings.Join(content, "\n")))
	_, _ = fmt.Fprintln(out)

	promptStyle := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	_, _ = fmt.Fprint(out, promptStyle.Render(question+" [y/N]: "))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		_, _ = fmt.Fprintln(out)
		return true
	}

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}

// ConfirmInstall asks before installing an update.
func ConfirmInstall(in io.Reader, out io.Writer, name, version string, backup bool) bool {
	lines := []string{fmt.Sprintf("%s will be updated to %s", name, orDash(version))}
	if backup {
		lines = append(lines, "A backup is created before installing")
	} else {
		lines = append(lines, "No backup will be created ("+urls.Backups+")")
	}
	lines = append(lines, "The integration may restart while the update installs")
	return Confirm(in, out, "INSTALL UPDATE", lines, "Install now?")
}
