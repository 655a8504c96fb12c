package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/hassupdate/internal/hass"
	"github.com/muurk/hassupdate/internal/ui"
	"github.com/muurk/hassupdate/internal/update"
)

// Action command flags
var (
	noBackup  bool
	assumeYes bool
)

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(clearSkippedCmd)
}

// alertError turns the panel's alert dialog into a command error.
type alertError struct {
	update.AlertOptions
}

func (e *alertError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Text)
}

// alertRecorder implements update.Dialogs for non-interactive commands.
type alertRecorder struct {
	alert *update.AlertOptions
}

func (r *alertRecorder) ShowAlert(opts update.AlertOptions) {
	r.alert = &opts
}

// panelAction is one button press driven from the command line.
type panelAction struct {
	action  update.Action
	title   string
	command string
	wait    string

	// prepare adjusts the panel before the button is pressed. Returning
	// false cancels the action.
	prepare func(p *update.Panel, e *update.Entity) bool
}

// runPanelAction loads the entity into a panel, presses the button and
// reports the outcome. The host dispatches synchronously so the call has
// completed before the result is printed.
func runPanelAction(cmd *cobra.Command, entityID string, pa panelAction) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	entity, err := s.client.Entity(ctx, entityID)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", entityID, err)
	}

	var callErr error
	host := hass.NewHost(s.client, s.loc, hass.HostOptions{
		Timeout:     s.timeout,
		Synchronous: true,
		OnError: func(err *hass.ServiceError) {
			callErr = err
		},
	})
	dialogs := &alertRecorder{}

	panel := update.NewPanel(host, nil, dialogs)
	panel.SetEntity(entity)
	panel.Mount()
	defer panel.Unmount()

	if err := checkAvailable(panel, pa.action); err != nil {
		return err
	}

	if pa.prepare != nil && !pa.prepare(panel, entity) {
		return nil
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	runner := ui.NewActionRunner(printer, ui.ActionConfig{
		Title:   pa.title,
		Command: pa.command + " " + entity.EntityID,
		Params: []ui.Param{
			{Key: "Instance", Value: s.url},
			{Key: "Entity", Value: entity.EntityID},
		},
		Wait: pa.wait,
	})

	return runner.Run(ctx, func(context.Context) ([]ui.Param, error) {
		panel.Trigger(pa.action)
		host.Wait()

		if dialogs.alert != nil {
			return nil, &alertError{AlertOptions: *dialogs.alert}
		}
		if callErr != nil {
			return nil, callErr
		}

		details := []ui.Param{{Key: "Entity", Value: entity.EntityID}}
		if v := entity.Attributes.LatestVersion; v != "" {
			details = append(details, ui.Param{Key: "Version", Value: v})
		}
		if pa.action == update.ActionInstall {
			if b := panel.Render().Backup; b != nil {
				details = append(details, ui.Param{Key: "Backup", Value: strconv.FormatBool(b.Checked && !b.Disabled)})
			}
		}
		return details, nil
	})
}

// checkAvailable fails when the button is missing or disabled, naming the
// state that prevents it.
func checkAvailable(panel *update.Panel, action update.Action) error {
	e := panel.Entity()
	view := panel.Render()
	if view.Empty {
		return fmt.Errorf("%s is %s", e.EntityID, e.State)
	}

	b, ok := view.Button(action)
	switch {
	case !ok && action == update.ActionInstall:
		return fmt.Errorf("%s does not support installing updates", e.EntityID)
	case !ok && action == update.ActionSkip:
		return fmt.Errorf("%s has a skipped version; use clear-skipped first", e.EntityID)
	case !ok:
		return fmt.Errorf("%s has no skipped version", e.EntityID)
	case !b.Disabled:
		return nil
	case update.IsInstalling(e):
		return fmt.Errorf("%s is already installing", e.EntityID)
	default:
		return fmt.Errorf("%s is up to date", e.EntityID)
	}
}

// installCmd installs the latest version
var installCmd = &cobra.Command{
	Use:   "install <entity_id>",
	Short: "Install an update",
	Long: `Install the latest version of an update entity.

When the entity supports it, a backup is created before installing and the
exact latest version is requested. You are asked to confirm unless --yes is
given.`,
	Example: `  # Install with a backup first
  hass-update install update.home_assistant_core_update

  # No backup, no prompt
  hass-update install update.zigbee_firmware --no-backup --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&noBackup, "no-backup", false, "Do not create a backup before installing")
	installCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

func runInstall(cmd *cobra.Command, args []string) error {
	return runPanelAction(cmd, args[0], panelAction{
		action:  update.ActionInstall,
		title:   "Install Update",
		command: "hass-update install",
		wait:    "Requesting install",
		prepare: func(p *update.Panel, e *update.Entity) bool {
			p.SetBackupChecked(!noBackup)
			if assumeYes {
				return true
			}
			backup := false
			if b := p.Render().Backup; b != nil {
				backup = b.Checked && !b.Disabled
			}
			return ui.ConfirmInstall(os.Stdin, cmd.OutOrStdout(), e.Name(), e.Attributes.LatestVersion, backup)
		},
	})
}

// skipCmd skips the latest version
var skipCmd = &cobra.Command{
	Use:   "skip <entity_id>",
	Short: "Skip the latest version",
	Long: `Skip the latest version of an update entity. The entity reports no
update available until a newer version is released.

Entities with automatic updates enabled cannot be skipped.`,
	Example: `  hass-update skip update.esphome_update`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSkip,
}

func runSkip(cmd *cobra.Command, args []string) error {
	return runPanelAction(cmd, args[0], panelAction{
		action:  update.ActionSkip,
		title:   "Skip Version",
		command: "hass-update skip",
		wait:    "Skipping version",
	})
}

// clearSkippedCmd removes a skipped version
var clearSkippedCmd = &cobra.Command{
	Use:     "clear-skipped <entity_id>",
	Short:   "Clear a skipped version",
	Long:    `Clear the skipped version of an update entity so it reports the update again.`,
	Example: `  hass-update clear-skipped update.esphome_update`,
	Args:    cobra.ExactArgs(1),
	RunE:    runClearSkipped,
}

func runClearSkipped(cmd *cobra.Command, args []string) error {
	return runPanelAction(cmd, args[0], panelAction{
		action:  update.ActionClearSkipped,
		title:   "Clear Skipped",
		command: "hass-update clear-skipped",
		wait:    "Clearing skipped version",
	})
}
