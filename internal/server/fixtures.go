package server

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/muurk/hassupdate/internal/update"
)

//go:embed demo.yaml
var demoFixtures []byte

// Fixtures is the initial state of the simulated instance.
type Fixtures struct {
	LocationName string          `yaml:"location_name"`
	Version      string          `yaml:"version"`
	Entities     []EntityFixture `yaml:"entities"`
}

// EntityFixture describes one entity. Entities outside the update domain are
// served by get_states but have no services.
type EntityFixture struct {
	EntityID     string            `yaml:"entity_id"`
	State        string            `yaml:"state"`
	Attributes   AttributesFixture `yaml:"attributes"`
	ReleaseNotes *string           `yaml:"release_notes,omitempty"`

	// Fail lists services that return an error for this entity.
	Fail []string `yaml:"fail,omitempty"`
}

// AttributesFixture mirrors update.Attributes with YAML names. Features are
// listed by name.
type AttributesFixture struct {
	FriendlyName      string   `yaml:"friendly_name"`
	EntityPicture     string   `yaml:"entity_picture"`
	Title             string   `yaml:"title"`
	InstalledVersion  string   `yaml:"installed_version"`
	LatestVersion     string   `yaml:"latest_version"`
	ReleaseURL        string   `yaml:"release_url"`
	ReleaseSummary    string   `yaml:"release_summary"`
	SkippedVersion    string   `yaml:"skipped_version"`
	AutoUpdate        bool     `yaml:"auto_update"`
	InProgress        bool     `yaml:"in_progress"`
	UpdatePercentage  *float64 `yaml:"update_percentage"`
	SupportedFeatures []string `yaml:"supported_features"`
}

// DefaultFixtures returns the built-in demo entities.
func DefaultFixtures() (*Fixtures, error) {
	return ParseFixtures(demoFixtures)
}

// LoadFixtures reads fixtures from a YAML file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes and validates fixtures.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}

	seen := make(map[string]bool, len(f.Entities))
	for i, e := range f.Entities {
		if e.EntityID == "" {
			return nil, fmt.Errorf("entity %d: missing entity_id", i)
		}
		if seen[e.EntityID] {
			return nil, fmt.Errorf("duplicate entity %s", e.EntityID)
		}
		seen[e.EntityID] = true

		if _, err := e.Attributes.features(); err != nil {
			return nil, fmt.Errorf("%s: %w", e.EntityID, err)
		}
	}

	if f.LocationName == "" {
		f.LocationName = "Home"
	}
	if f.Version == "" {
		f.Version = "2024.1.0"
	}
	return &f, nil
}

func (a AttributesFixture) features() (update.Feature, error) {
	var mask update.Feature
	for _, name := range a.SupportedFeatures {
		f, ok := update.ParseFeature(name)
		if !ok {
			return 0, fmt.Errorf("unknown feature %q", name)
		}
		mask |= f
	}
	return mask, nil
}

// entity converts the fixture into the snapshot the store keeps.
func (e EntityFixture) entity() *update.Entity {
	features, _ := e.Attributes.features()
	a := e.Attributes
	return &update.Entity{
		EntityID: e.EntityID,
		State:    e.State,
		Attributes: update.Attributes{
			FriendlyName:      a.FriendlyName,
			EntityPicture:     a.EntityPicture,
			Title:             a.Title,
			InstalledVersion:  a.InstalledVersion,
			LatestVersion:     a.LatestVersion,
			ReleaseURL:        a.ReleaseURL,
			ReleaseSummary:    a.ReleaseSummary,
			SkippedVersion:    a.SkippedVersion,
			AutoUpdate:        a.AutoUpdate,
			InProgress:        update.InProgress(a.InProgress),
			UpdatePercentage:  a.UpdatePercentage,
			SupportedFeatures: features,
		},
	}
}
