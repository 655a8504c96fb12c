package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/hassupdate/internal/update"
)

// Status is a one-word summary of an update entity used in lists.
type Status int

const (
	StatusUpToDate Status = iota
	StatusAvailable
	StatusSkipped
	StatusInstalling
	StatusUnavailable
)

// EntityStatus classifies an entity for list rendering.
func EntityStatus(e *update.Entity) Status {
	switch {
	case update.IsUnavailableState(e.State):
		return StatusUnavailable
	case update.IsInstalling(e):
		return StatusInstalling
	case e.State == update.StateOn:
		return StatusAvailable
	case update.ShowClearSkipped(e):
		return StatusSkipped
	default:
		return StatusUpToDate
	}
}

// StatusLabel returns the styled status text for an entity.
func StatusLabel(e *update.Entity) string {
	switch EntityStatus(e) {
	case StatusUnavailable:
		return StateMutedStyle.Render(e.State)
	case StatusInstalling:
		if pct, ok := update.DeterminateProgress(e); ok {
			return StateOnStyle.Render(fmt.Sprintf("%s installing %.0f%%", InstallingGlyph, pct*100))
		}
		return StateOnStyle.Render(InstallingGlyph + " installing")
	case StatusAvailable:
		return StateOnStyle.Render(UpdateMarker + " update available")
	case StatusSkipped:
		return StateMutedStyle.Render(SkippedMarker + " skipped " + e.Attributes.SkippedVersion)
	default:
		return StateOffStyle.Render(UpToDateMarker + " up to date")
	}
}

// RenderEntityTable renders update entities as a table.
func RenderEntityTable(entities []*update.Entity) string {
	headerStyle := lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(MutedColor)).
		Headers("ENTITY", "TITLE", "INSTALLED", "LATEST", "STATUS").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, e := range entities {
		title := e.Attributes.Title
		if title == "" {
			title = e.Name()
		}
		t.Row(
			e.EntityID,
			title,
			orDash(e.Attributes.InstalledVersion),
			orDash(e.Attributes.LatestVersion),
			StatusLabel(e),
		)
	}

	return t.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
