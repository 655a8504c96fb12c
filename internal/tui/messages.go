package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/hassupdate/internal/hass"
	"github.com/muurk/hassupdate/internal/update"
)

// Source lists update entities and answers panel requests.
// *hass.Client satisfies it.
type Source interface {
	hass.API
	UpdateEntities(ctx context.Context) ([]*update.Entity, error)
}

// EntityChangedMsg carries a new snapshot of one update entity. Entity is nil
// when the entity was removed.
type EntityChangedMsg struct {
	EntityID string
	Entity   *update.Entity
}

// ServiceErrorMsg reports a failed fire-and-forget service call.
type ServiceErrorMsg struct {
	Err error
}

// ConnectionLostMsg is sent when the websocket connection drops.
type ConnectionLostMsg struct {
	Err error
}

type entitiesLoadedMsg struct {
	entities []*update.Entity
	err      error
}

type releaseNotesMsg struct {
	changed bool
}

type clearToastMsg struct {
	seq int
}

// StateChangedToMsg converts a state_changed event into an EntityChangedMsg.
// Events for other domains and undecodable states yield nil.
func StateChangedToMsg(ev hass.StateChangedEvent) tea.Msg {
	if !update.IsUpdateEntity(ev.EntityID) {
		return nil
	}
	if ev.NewState == nil {
		return EntityChangedMsg{EntityID: ev.EntityID}
	}
	e, err := ev.NewState.Update()
	if err != nil {
		return nil
	}
	return EntityChangedMsg{EntityID: ev.EntityID, Entity: e}
}

// errorText renders an error for a one-line toast.
func errorText(err error) string {
	var se *hass.ServiceError
	if errors.As(err, &se) {
		return se.Error()
	}
	return hass.GetShortErrorMessage(err)
}
