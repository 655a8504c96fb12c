package update

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Domain is the Home Assistant integration domain for update entities and
// the service domain every panel command is dispatched to.
const Domain = "update"

// Service names
const (
	ServiceInstall      = "install"
	ServiceSkip         = "skip"
	ServiceClearSkipped = "clear_skipped"
)

// Entity states. "on" means an update is available, "off" means the
// installed version is current or the latest version was skipped.
const (
	StateOn          = "on"
	StateOff         = "off"
	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
)

// Feature is the capability bitmask reported in supported_features.
type Feature int

const (
	FeatureInstall         Feature = 1
	FeatureSpecificVersion Feature = 2
	FeatureProgress        Feature = 4
	FeatureBackup          Feature = 8
	FeatureReleaseNotes    Feature = 16
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeatureInstall, "install"},
	{FeatureSpecificVersion, "specific_version"},
	{FeatureProgress, "progress"},
	{FeatureBackup, "backup"},
	{FeatureReleaseNotes, "release_notes"},
}

// Has reports whether every bit of f is set.
func (m Feature) Has(f Feature) bool {
	return m&f == f
}

// String lists the known feature names, e.g. "install|backup".
func (m Feature) String() string {
	var names []string
	for _, fn := range featureNames {
		if m.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseFeature maps a feature name such as "release_notes" to its bit.
func ParseFeature(name string) (Feature, bool) {
	for _, fn := range featureNames {
		if fn.name == name {
			return fn.f, true
		}
	}
	return 0, false
}

// InProgress is true while an install runs. Integrations report it either as
// a boolean or, historically, as a percentage; any non-zero number counts.
type InProgress bool

// UnmarshalJSON accepts bool, number and null.
func (p *InProgress) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*p = false
	case bool:
		*p = InProgress(t)
	case float64:
		*p = t != 0
	default:
		return fmt.Errorf("in_progress: unexpected %T", v)
	}
	return nil
}

// Attributes are the update-specific state attributes. Empty strings mean the
// attribute was absent or null.
type Attributes struct {
	FriendlyName      string     `json:"friendly_name,omitempty"`
	EntityPicture     string     `json:"entity_picture,omitempty"`
	Title             string     `json:"title,omitempty"`
	InstalledVersion  string     `json:"installed_version,omitempty"`
	LatestVersion     string     `json:"latest_version,omitempty"`
	ReleaseURL        string     `json:"release_url,omitempty"`
	ReleaseSummary    string     `json:"release_summary,omitempty"`
	SkippedVersion    string     `json:"skipped_version,omitempty"`
	AutoUpdate        bool       `json:"auto_update,omitempty"`
	InProgress        InProgress `json:"in_progress,omitempty"`
	UpdatePercentage  *float64   `json:"update_percentage,omitempty"`
	SupportedFeatures Feature    `json:"supported_features,omitempty"`
}

// Entity is a read-only snapshot of an update entity's state.
type Entity struct {
	EntityID   string     `json:"entity_id"`
	State      string     `json:"state"`
	Attributes Attributes `json:"attributes"`
}

// Name returns the friendly name, falling back to the entity ID.
func (e *Entity) Name() string {
	if e.Attributes.FriendlyName != "" {
		return e.Attributes.FriendlyName
	}
	return e.EntityID
}

// IsUpdateEntity reports whether an entity ID belongs to the update domain.
func IsUpdateEntity(entityID string) bool {
	return strings.HasPrefix(entityID, Domain+".")
}

// SupportsFeature is a pure bitwise test against the entity's capability mask.
func SupportsFeature(e *Entity, f Feature) bool {
	if e == nil {
		return false
	}
	return e.Attributes.SupportedFeatures.Has(f)
}

// IsUnavailableState reports whether a state value means the entity cannot be
// shown at all.
func IsUnavailableState(state string) bool {
	return state == StateUnavailable || state == StateUnknown
}

// IsInstalling reports whether an install is currently running.
func IsInstalling(e *Entity) bool {
	return e != nil && bool(e.Attributes.InProgress)
}

// SkippedVersion is true iff latest_version is non-empty and equals
// skipped_version.
func SkippedVersion(e *Entity) bool {
	return e.Attributes.LatestVersion != "" &&
		e.Attributes.SkippedVersion == e.Attributes.LatestVersion
}

// ShowProgress reports whether any progress indicator is displayed.
func ShowProgress(e *Entity) bool {
	return bool(e.Attributes.InProgress)
}

// DeterminateProgress returns the progress fraction (0-1) when a determinate
// bar can be drawn.
func DeterminateProgress(e *Entity) (float64, bool) {
	if !SupportsFeature(e, FeatureProgress) || e.Attributes.UpdatePercentage == nil {
		return 0, false
	}
	return *e.Attributes.UpdatePercentage / 100, true
}

// ShowClearSkipped reports whether the clear-skipped action replaces skip.
func ShowClearSkipped(e *Entity) bool {
	return e.State == StateOff && e.Attributes.SkippedVersion != ""
}

// SkipDisabled reports whether the skip button is disabled.
func SkipDisabled(e *Entity) bool {
	return SkippedVersion(e) || e.State == StateOff || IsInstalling(e)
}

// InstallDisabled reports whether the install button is disabled.
func InstallDisabled(e *Entity) bool {
	return (e.State == StateOff && !SkippedVersion(e)) || IsInstalling(e)
}

// BackupDisabled reports whether the backup checkbox is disabled.
func BackupDisabled(e *Entity) bool {
	return IsInstalling(e)
}
