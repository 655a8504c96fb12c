package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/hass"
	"github.com/muurk/hassupdate/internal/i18n"
	"github.com/muurk/hassupdate/internal/logging"
)

// RunOptions configures Run.
type RunOptions struct {
	Options

	// Timeout bounds each service call and release-notes fetch.
	Timeout time.Duration
}

// Run starts the interactive application on a connected client and blocks
// until the user quits or ctx is cancelled.
func Run(ctx context.Context, client *hass.Client, loc *i18n.Localizer, opts RunOptions) error {
	if opts.Instance == "" {
		opts.Instance = client.URL()
	}

	var program *tea.Program

	host := hass.NewHost(client, loc, hass.HostOptions{
		Timeout: opts.Timeout,
		OnError: func(err *hass.ServiceError) {
			program.Send(ServiceErrorMsg{Err: err})
		},
	})

	model := NewAppModel(ctx, client, host, host, opts.Options)
	program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	sub, err := client.SubscribeStateChanged(ctx, func(ev hass.StateChangedEvent) {
		if msg := StateChangedToMsg(ev); msg != nil {
			program.Send(msg)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to state changes: %w", err)
	}
	defer func() {
		unsubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sub.Unsubscribe(unsubCtx); err != nil {
			logging.Debug("Unsubscribe failed", zap.Error(err))
		}
	}()

	go func() {
		select {
		case <-client.Done():
			program.Send(ConnectionLostMsg{Err: client.Err()})
		case <-ctx.Done():
		}
	}()

	_, err = program.Run()
	host.Wait()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("interactive session failed: %w", err)
	}
	return nil
}
