package ui

import (
	"context"
	"time"

	"github.com/muurk/hassupdate/internal/hass"
)

// ActionConfig describes a one-shot action command
type ActionConfig struct {
	Title   string  // e.g., "Install Update"
	Command string  // e.g., "hass-update install update.core_update"
	Params  []Param // Shown in the header
	Wait    string  // Please-wait message, e.g. "Requesting install"
}

// ActionRunner orchestrates header → action → result output.
type ActionRunner struct {
	config  ActionConfig
	printer *Printer
}

// NewActionRunner creates a runner that prints through printer
func NewActionRunner(printer *Printer, config ActionConfig) *ActionRunner {
	return &ActionRunner{config: config, printer: printer}
}

// ActionFunc performs the action and returns extra result details.
type ActionFunc func(ctx context.Context) ([]Param, error)

// Run prints the header, executes the action and prints the result.
func (r *ActionRunner) Run(ctx context.Context, action ActionFunc) error {
	r.printer.PrintHeader(r.config.Title, r.config.Command, r.config.Params...)
	if r.config.Wait != "" {
		r.printer.PrintPleaseWait(r.config.Wait)
	}

	start := time.Now()
	details, err := action(ctx)
	duration := time.Since(start).Round(time.Millisecond)

	if err != nil {
		r.printer.PrintError(r.config.Title+" failed", err, HintLines(hass.GetTroubleshootingHint(err)))
		return err
	}

	details = append(details, Param{Key: "Duration", Value: duration.String()})
	r.printer.PrintSuccess(r.config.Title+" complete", details...)
	return nil
}
