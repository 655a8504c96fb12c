package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/hassupdate/internal/update"
)

// NewProgressBar returns the install progress bar sized for width.
func NewProgressBar(width int) progress.Model {
	barWidth := width - 20 // room for the percentage
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	return progress.New(
		progress.WithGradient(string(PrimaryColor), string(SuccessColor)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
}

// RenderProgress renders a static progress line: a bar with percentage when
// determinate, a label otherwise. A nil view renders nothing.
func RenderProgress(pv *update.ProgressView, label string, width int) string {
	if pv == nil {
		return ""
	}

	if pv.Indeterminate {
		return ProgressLabelStyle.Render(InstallingGlyph + " " + label + "...")
	}

	bar := NewProgressBar(width)
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%", bar.ViewAs(pv.Value), pv.Value*100))
}
