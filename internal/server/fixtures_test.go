package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/hassupdate/internal/update"
)

func TestDefaultFixtures(t *testing.T) {
	f, err := DefaultFixtures()
	require.NoError(t, err)

	assert.Equal(t, "Demo Home", f.LocationName)
	assert.NotEmpty(t, f.Version)
	require.NotEmpty(t, f.Entities)

	core := f.Entities[0].entity()
	assert.Equal(t, "update.home_assistant_core_update", core.EntityID)
	assert.Equal(t, update.StateOn, core.State)
	assert.Equal(t,
		update.FeatureInstall|update.FeatureSpecificVersion|update.FeatureBackup|update.FeatureReleaseNotes,
		core.Attributes.SupportedFeatures)
	require.NotNil(t, f.Entities[0].ReleaseNotes)
	assert.Contains(t, *f.Entities[0].ReleaseNotes, "Home Assistant 2024.3")
}

func TestParseFixturesErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing entity id",
			yaml:    "entities:\n  - state: \"on\"\n",
			wantErr: "missing entity_id",
		},
		{
			name:    "duplicate",
			yaml:    "entities:\n  - entity_id: update.a\n  - entity_id: update.a\n",
			wantErr: "duplicate entity update.a",
		},
		{
			name:    "unknown feature",
			yaml:    "entities:\n  - entity_id: update.a\n    attributes:\n      supported_features: [warp]\n",
			wantErr: `unknown feature "warp"`,
		},
		{
			name:    "not yaml",
			yaml:    "entities: [",
			wantErr: "failed to parse fixtures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFixturesDefaults(t *testing.T) {
	f, err := ParseFixtures([]byte("entities: []\n"))
	require.NoError(t, err)
	assert.Equal(t, "Home", f.LocationName)
	assert.Equal(t, "2024.1.0", f.Version)
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	data := `
location_name: Cabin
entities:
  - entity_id: update.pump_firmware
    state: "on"
    attributes:
      installed_version: "1.0"
      latest_version: "1.1"
      update_percentage: 30
      in_progress: true
      supported_features: [install, progress]
    fail: [skip]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	f, err := LoadFixtures(path)
	require.NoError(t, err)
	assert.Equal(t, "Cabin", f.LocationName)

	e := f.Entities[0].entity()
	assert.True(t, update.IsInstalling(e))
	value, ok := update.DeterminateProgress(e)
	assert.True(t, ok)
	assert.InDelta(t, 0.3, value, 1e-9)
	assert.Equal(t, []string{"skip"}, f.Entities[0].Fail)

	_, err = LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
