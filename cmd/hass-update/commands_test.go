package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/hassupdate/internal/config"
	"github.com/muurk/hassupdate/internal/hass"
	"github.com/muurk/hassupdate/internal/update"
)

type nopHost struct{}

func (nopHost) Localize(key string) string { return key }

func (nopHost) FormatEntityAttributeName(_ *update.Entity, attribute string) string {
	return attribute
}

func (nopHost) CallService(string, string, update.ServiceData) {}

func panelFor(e *update.Entity) *update.Panel {
	p := update.NewPanel(nopHost{}, nil, &alertRecorder{})
	p.SetEntity(e)
	return p
}

func entity(state string, attrs update.Attributes) *update.Entity {
	if attrs.SupportedFeatures == 0 {
		attrs.SupportedFeatures = update.FeatureInstall
	}
	if attrs.InstalledVersion == "" {
		attrs.InstalledVersion = "1.0.0"
	}
	if attrs.LatestVersion == "" {
		attrs.LatestVersion = "1.1.0"
	}
	return &update.Entity{EntityID: "update.demo", State: state, Attributes: attrs}
}

func TestCheckAvailable(t *testing.T) {
	tests := []struct {
		name    string
		entity  *update.Entity
		action  update.Action
		wantErr string
	}{
		{
			name:   "install available",
			entity: entity(update.StateOn, update.Attributes{}),
			action: update.ActionInstall,
		},
		{
			name:   "skip available",
			entity: entity(update.StateOn, update.Attributes{}),
			action: update.ActionSkip,
		},
		{
			name:    "unavailable entity",
			entity:  entity(update.StateUnavailable, update.Attributes{}),
			action:  update.ActionInstall,
			wantErr: "update.demo is unavailable",
		},
		{
			name:    "install not supported",
			entity:  entity(update.StateOn, update.Attributes{SupportedFeatures: update.FeatureBackup}),
			action:  update.ActionInstall,
			wantErr: "does not support installing",
		},
		{
			name:    "up to date",
			entity:  entity(update.StateOff, update.Attributes{LatestVersion: "1.0.0"}),
			action:  update.ActionInstall,
			wantErr: "is up to date",
		},
		{
			name:    "already installing",
			entity:  entity(update.StateOn, update.Attributes{InProgress: true}),
			action:  update.ActionInstall,
			wantErr: "already installing",
		},
		{
			name:    "skip replaced by clear skipped",
			entity:  entity(update.StateOff, update.Attributes{SkippedVersion: "1.1.0"}),
			action:  update.ActionSkip,
			wantErr: "use clear-skipped first",
		},
		{
			name:   "clear skipped available",
			entity: entity(update.StateOff, update.Attributes{SkippedVersion: "1.1.0"}),
			action: update.ActionClearSkipped,
		},
		{
			name:    "nothing to clear",
			entity:  entity(update.StateOn, update.Attributes{}),
			action:  update.ActionClearSkipped,
			wantErr: "has no skipped version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkAvailable(panelFor(tt.entity), tt.action)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAlertRecorderCapturesAutoUpdateAlert(t *testing.T) {
	dialogs := &alertRecorder{}
	p := update.NewPanel(nopHost{}, nil, dialogs)
	p.SetEntity(entity(update.StateOn, update.Attributes{AutoUpdate: true}))

	assert.True(t, p.Trigger(update.ActionSkip))
	require.NotNil(t, dialogs.alert)

	err := &alertError{AlertOptions: *dialogs.alert}
	assert.Equal(t, update.KeyAutoUpdateTitle+": "+update.KeyAutoUpdateText, err.Error())
}

func TestCountAvailable(t *testing.T) {
	entities := []*update.Entity{
		entity(update.StateOn, update.Attributes{}),
		entity(update.StateOff, update.Attributes{}),
		entity(update.StateOn, update.Attributes{}),
		entity(update.StateUnavailable, update.Attributes{}),
	}
	assert.Equal(t, 2, countAvailable(entities))
	assert.Equal(t, 0, countAvailable(nil))
}

func TestRequestTimeout(t *testing.T) {
	saved := timeout
	t.Cleanup(func() { timeout = saved })

	reg := config.NewRegistry()

	timeout = 0
	assert.Equal(t, time.Duration(config.DefaultRequestTimeout)*time.Second, requestTimeout(reg))

	timeout = 5 * time.Second
	assert.Equal(t, 5*time.Second, requestTimeout(reg))

	timeout = 0
	reg.Preferences = nil
	assert.Equal(t, hass.DefaultTimeout, requestTimeout(reg))
}
