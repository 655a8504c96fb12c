package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/muurk/hassupdate/internal/hass"
	"github.com/muurk/hassupdate/internal/update"
)

func sampleView() update.View {
	return update.View{
		Progress: &update.ProgressView{Value: 0.42},
		Title:    "Home Assistant Core",
		Versions: []update.Row{
			{Key: "Installed version", Value: "2024.1.0"},
			{Key: "Latest version", Value: "2024.2.0"},
		},
		ReleaseAnnouncement: &update.Link{Label: "Read release announcement", URL: "https://example.com/blog"},
		Notes:               update.NotesView{Kind: update.NotesReleaseNotes, Content: "# Highlights\n\nFaster startup"},
		Backup:              &update.CheckboxView{Label: "Create backup before updating", Checked: true},
		Actions: []update.Button{
			{Action: update.ActionSkip, Label: "Skip"},
			{Action: update.ActionInstall, Label: "Install", Disabled: true},
		},
	}
}

func TestRenderPanel(t *testing.T) {
	out := RenderPanel(sampleView(), PanelOptions{Width: 80, MarkdownStyle: "notty"})

	for _, want := range []string{
		"42%",
		"Home Assistant Core",
		"Installed version",
		"2024.2.0",
		"https://example.com/blog",
		"Highlights",
		"Faster startup",
		CheckboxOn + " Create backup before updating",
		"Skip",
		"Install",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderPanel() missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderPanelHideNotes(t *testing.T) {
	out := RenderPanel(sampleView(), PanelOptions{Width: 80, HideNotes: true})
	if strings.Contains(out, "Faster startup") {
		t.Error("HideNotes still rendered notes")
	}
}

func TestRenderPanelEmpty(t *testing.T) {
	if got := RenderPanel(update.View{Empty: true}, PanelOptions{}); got != "" {
		t.Errorf("RenderPanel(empty) = %q, want empty", got)
	}
}

func TestRenderPanelErrorAndSummary(t *testing.T) {
	v := sampleView()
	v.Progress = &update.ProgressView{Indeterminate: true}
	v.Error = "boom"
	v.Notes = update.NotesView{Kind: update.NotesSummary, Content: "Short summary"}

	out := RenderPanel(v, PanelOptions{Width: 80, MarkdownStyle: "notty"})
	for _, want := range []string{"Installing...", "boom", "Short summary"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderPanel() missing %q", want)
		}
	}
}

func TestRenderNotes(t *testing.T) {
	tests := []struct {
		name  string
		notes update.NotesView
		want  string
	}{
		{"loading", update.NotesView{Kind: update.NotesLoading}, "Loading release notes"},
		{"none", update.NotesView{Kind: update.NotesNone}, ""},
		{"empty notes", update.NotesView{Kind: update.NotesReleaseNotes}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderNotes(tt.notes, 80, "notty")
			if tt.want == "" && got != "" {
				t.Errorf("RenderNotes() = %q, want empty", got)
			}
			if tt.want != "" && !strings.Contains(got, tt.want) {
				t.Errorf("RenderNotes() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestEntityStatus(t *testing.T) {
	pct := 10.0
	tests := []struct {
		name   string
		entity update.Entity
		want   Status
	}{
		{"unavailable", update.Entity{State: update.StateUnavailable}, StatusUnavailable},
		{"installing", update.Entity{State: update.StateOn, Attributes: update.Attributes{InProgress: true, UpdatePercentage: &pct}}, StatusInstalling},
		{"available", update.Entity{State: update.StateOn}, StatusAvailable},
		{"skipped", update.Entity{State: update.StateOff, Attributes: update.Attributes{LatestVersion: "2", SkippedVersion: "2"}}, StatusSkipped},
		{"current", update.Entity{State: update.StateOff}, StatusUpToDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entity
			if got := EntityStatus(&e); got != tt.want {
				t.Errorf("EntityStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderEntityTable(t *testing.T) {
	out := RenderEntityTable([]*update.Entity{
		{EntityID: "update.core_update", State: update.StateOn, Attributes: update.Attributes{
			Title: "Home Assistant Core", InstalledVersion: "2024.1.0", LatestVersion: "2024.2.0",
		}},
		{EntityID: "update.zigbee", State: update.StateOff},
	})

	for _, want := range []string{"ENTITY", "update.core_update", "Home Assistant Core", "update available", "update.zigbee", "up to date", "-"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderEntityTable() missing %q in:\n%s", want, out)
		}
	}
}

func TestHeaderRender(t *testing.T) {
	out := NewHeader("Install Update", "hass-update install update.x",
		Param{Key: "Instance", Value: "http://ha:8123"},
		Param{Key: "Entity", Value: "update.x"},
	).SetWidth(80).Render()

	for _, want := range []string{"INSTALL UPDATE", "hass-update install", "Instance:", "http://ha:8123"} {
		if !strings.Contains(out, want) {
			t.Errorf("Header.Render() missing %q", want)
		}
	}
	if strings.Index(out, "Instance") > strings.Index(out, "Entity:") {
		t.Error("Header params lost their order")
	}
}

func TestResultRender(t *testing.T) {
	out := NewFailureResult("Install failed", errors.New("Backup failed"), []string{"Check disk space"}).SetWidth(80).Render()
	for _, want := range []string{"FAILED", "Install failed", "Error: Backup failed", "Troubleshooting:", "Check disk space"} {
		if !strings.Contains(out, want) {
			t.Errorf("failure Render() missing %q", want)
		}
	}

	out = NewSuccessResult("Skipped", Param{Key: "Version", Value: "5.1"}).SetWidth(80).Render()
	for _, want := range []string{"SUCCESS", "Skipped", "Version:", "5.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("success Render() missing %q", want)
		}
	}
}

func TestHintLines(t *testing.T) {
	got := HintLines("Summary.\nTroubleshooting:\n  • one\n  • two")
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("HintLines() = %q", got)
	}

	got = HintLines("Just a sentence.")
	if len(got) != 1 || got[0] != "Just a sentence." {
		t.Errorf("HintLines(single) = %q", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := ConfirmInstall(strings.NewReader(tt.input), &out, "Core", "5.1", true)
		if got != tt.want {
			t.Errorf("ConfirmInstall(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Install now?") {
			t.Errorf("prompt not written for %q", tt.input)
		}
	}
}

func TestActionRunner(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out).SetWidth(80)

	runner := NewActionRunner(p, ActionConfig{Title: "Skip Update", Command: "hass-update skip update.x"})
	err := runner.Run(context.Background(), func(context.Context) ([]Param, error) {
		return []Param{{Key: "Entity", Value: "update.x"}}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, want := range []string{"SKIP UPDATE", "Skip Update complete", "update.x", "Duration:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}

	out.Reset()
	authErr := hass.NewAuthError("bad token")
	err = runner.Run(context.Background(), func(context.Context) ([]Param, error) {
		return nil, authErr
	})
	if !errors.Is(err, authErr) {
		t.Errorf("Run() error = %v, want auth error", err)
	}
	if !strings.Contains(out.String(), "long-lived access token") {
		t.Errorf("failure output missing troubleshooting hint:\n%s", out.String())
	}
}
