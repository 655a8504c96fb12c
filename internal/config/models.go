package config

import (
	"sort"
	"time"
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                  `yaml:"version"`
	Instances   map[string]*Instance `yaml:"instances,omitempty"` // Keyed by instance UUID (or URL when unknown)
	Preferences *Preferences         `yaml:"preferences,omitempty"`
}

// Instance is a remembered Home Assistant installation.
type Instance struct {
	Name     string    `yaml:"name,omitempty"`      // location_name reported by the instance
	URL      string    `yaml:"url"`                 // Base URL, e.g. http://homeassistant.local:8123
	Version  string    `yaml:"version,omitempty"`   // Last seen core version
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery/connection time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultInstance string `yaml:"default_instance,omitempty"` // Registry key used when --url is not given
	Language        string `yaml:"language"`                   // Translation language requested from the instance
	DiscoverTimeout int    `yaml:"discover_timeout"`           // mDNS discovery timeout in seconds
	RequestTimeout  int    `yaml:"request_timeout"`            // Websocket request timeout in seconds
}

// Defaults
const (
	DefaultLanguage        = "en"
	DefaultDiscoverTimeout = 10
	DefaultRequestTimeout  = 30
)

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Instances:   make(map[string]*Instance),
		Preferences: defaultPreferences(),
	}
}

func defaultPreferences() *Preferences {
	return &Preferences{
		Language:        DefaultLanguage,
		DiscoverTimeout: DefaultDiscoverTimeout,
		RequestTimeout:  DefaultRequestTimeout,
	}
}

// GetInstance retrieves an instance by key.
// Returns nil if the instance doesn't exist in the registry.
func (r *Registry) GetInstance(key string) *Instance {
	return r.Instances[key]
}

// RememberInstance records an instance and stamps it as seen now.
func (r *Registry) RememberInstance(key, name, url string) *Instance {
	if r.Instances == nil {
		r.Instances = make(map[string]*Instance)
	}

	inst, exists := r.Instances[key]
	if !exists {
		inst = &Instance{}
		r.Instances[key] = inst
	}
	if name != "" {
		inst.Name = name
	}
	if url != "" {
		inst.URL = url
	}
	inst.LastSeen = time.Now()
	return inst
}

// DefaultURL returns the URL of the default instance, or the most recently
// seen instance when no default is set. Empty when nothing is remembered.
func (r *Registry) DefaultURL() string {
	if r.Preferences != nil && r.Preferences.DefaultInstance != "" {
		if inst := r.Instances[r.Preferences.DefaultInstance]; inst != nil {
			return inst.URL
		}
	}

	var latest *Instance
	for _, key := range r.InstanceKeys() {
		inst := r.Instances[key]
		if latest == nil || inst.LastSeen.After(latest.LastSeen) {
			latest = inst
		}
	}
	if latest == nil {
		return ""
	}
	return latest.URL
}

// InstanceKeys returns registry keys in sorted order.
func (r *Registry) InstanceKeys() []string {
	keys := make([]string, 0, len(r.Instances))
	for k := range r.Instances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ForgetInstance removes an instance and clears it as default.
func (r *Registry) ForgetInstance(key string) {
	delete(r.Instances, key)
	if r.Preferences != nil && r.Preferences.DefaultInstance == key {
		r.Preferences.DefaultInstance = ""
	}
}
