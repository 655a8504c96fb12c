package update

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestEntityUnmarshal(t *testing.T) {
	raw := `{
		"entity_id": "update.core_update",
		"state": "on",
		"attributes": {
			"friendly_name": "Home Assistant Core Update",
			"title": "Home Assistant Core",
			"installed_version": "2024.1.0",
			"latest_version": "2024.2.0",
			"skipped_version": null,
			"in_progress": 42,
			"update_percentage": null,
			"auto_update": false,
			"release_url": "https://www.home-assistant.io/blog/",
			"supported_features": 27
		}
	}`

	var e Entity
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.Equal(t, "update.core_update", e.EntityID)
	assert.Equal(t, "2024.2.0", e.Attributes.LatestVersion)
	assert.Empty(t, e.Attributes.SkippedVersion)
	assert.True(t, bool(e.Attributes.InProgress), "numeric in_progress is truthy")
	assert.Nil(t, e.Attributes.UpdatePercentage)
	assert.True(t, SupportsFeature(&e, FeatureInstall))
	assert.True(t, SupportsFeature(&e, FeatureSpecificVersion))
	assert.False(t, SupportsFeature(&e, FeatureProgress))
	assert.True(t, SupportsFeature(&e, FeatureBackup))
	assert.True(t, SupportsFeature(&e, FeatureReleaseNotes))
	assert.Equal(t, "Home Assistant Core Update", e.Name())
}

func TestInProgressUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"false", false, false},
		{"null", false, false},
		{"0", false, false},
		{"12.5", true, false},
		{`"yes"`, false, true},
	}

	for _, tt := range tests {
		var p InProgress
		err := json.Unmarshal([]byte(tt.in), &p)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, bool(p), tt.in)
	}
}

func TestFeatureString(t *testing.T) {
	assert.Equal(t, "none", Feature(0).String())
	assert.Equal(t, "install|backup", (FeatureInstall | FeatureBackup).String())
}

func TestParseFeature(t *testing.T) {
	f, ok := ParseFeature("release_notes")
	assert.True(t, ok)
	assert.Equal(t, FeatureReleaseNotes, f)

	_, ok = ParseFeature("teleport")
	assert.False(t, ok)
}

func TestSupportsFeatureNilEntity(t *testing.T) {
	assert.False(t, SupportsFeature(nil, FeatureInstall))
	assert.False(t, IsInstalling(nil))
}

func TestIsUnavailableState(t *testing.T) {
	assert.True(t, IsUnavailableState(StateUnavailable))
	assert.True(t, IsUnavailableState(StateUnknown))
	assert.False(t, IsUnavailableState(StateOn))
	assert.False(t, IsUnavailableState(StateOff))
}

func TestIsUpdateEntity(t *testing.T) {
	assert.True(t, IsUpdateEntity("update.core_update"))
	assert.False(t, IsUpdateEntity("sensor.update"))
}

func TestSkippedVersion(t *testing.T) {
	tests := []struct {
		name    string
		latest  string
		skipped string
		want    bool
	}{
		{"equal", "2.0", "2.0", true},
		{"different", "2.1", "2.0", false},
		{"no skipped", "2.0", "", false},
		{"no latest", "", "", false},
		{"no latest but skipped", "", "2.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entity{Attributes: Attributes{LatestVersion: tt.latest, SkippedVersion: tt.skipped}}
			assert.Equal(t, tt.want, SkippedVersion(e))
		})
	}
}

func TestDeterminateProgress(t *testing.T) {
	e := &Entity{Attributes: Attributes{
		InProgress:        true,
		UpdatePercentage:  ptr(42),
		SupportedFeatures: FeatureProgress,
	}}

	value, ok := DeterminateProgress(e)
	assert.True(t, ok)
	assert.InDelta(t, 0.42, value, 1e-9)

	e.Attributes.UpdatePercentage = nil
	_, ok = DeterminateProgress(e)
	assert.False(t, ok)

	e.Attributes.UpdatePercentage = ptr(10)
	e.Attributes.SupportedFeatures = 0
	_, ok = DeterminateProgress(e)
	assert.False(t, ok, "percentage without PROGRESS support is not determinate")
}

func TestActionPredicates(t *testing.T) {
	tests := []struct {
		name            string
		entity          Entity
		clearSkipped    bool
		skipDisabled    bool
		installDisabled bool
	}{
		{
			name:   "update available",
			entity: Entity{State: StateOn, Attributes: Attributes{LatestVersion: "2.0", InstalledVersion: "1.0"}},
		},
		{
			name:            "up to date",
			entity:          Entity{State: StateOff, Attributes: Attributes{LatestVersion: "1.0", InstalledVersion: "1.0"}},
			skipDisabled:    true,
			installDisabled: true,
		},
		{
			name:         "latest skipped",
			entity:       Entity{State: StateOff, Attributes: Attributes{LatestVersion: "2.0", SkippedVersion: "2.0"}},
			clearSkipped: true,
			skipDisabled: true,
		},
		{
			name:            "installing",
			entity:          Entity{State: StateOn, Attributes: Attributes{LatestVersion: "2.0", InProgress: true}},
			skipDisabled:    true,
			installDisabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entity
			assert.Equal(t, tt.clearSkipped, ShowClearSkipped(&e), "ShowClearSkipped")
			assert.Equal(t, tt.skipDisabled, SkipDisabled(&e), "SkipDisabled")
			assert.Equal(t, tt.installDisabled, InstallDisabled(&e), "InstallDisabled")
		})
	}
}
