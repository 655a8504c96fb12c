// Package config provides user configuration management for hass-update.
//
// This package manages a YAML file that remembers Home Assistant instances the
// user has connected to or discovered, and a handful of application
// preferences. The file follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/hassupdate/config.yaml or $HOME/.config/hassupdate/config.yaml
//   - macOS: $HOME/.config/hassupdate/config.yaml
//   - Windows: %LOCALAPPDATA%\hassupdate\config.yaml
//
// HASSUPDATE_CONFIG_DIR overrides the directory on every platform.
//
// # Security
//
// Long-lived access tokens are NEVER written to this file. They are supplied
// with --token or the HASS_TOKEN environment variable on every run.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.RememberInstance("f4c1d2...", "Home", "http://homeassistant.local:8123")
//	registry.Preferences.DefaultInstance = "f4c1d2..."
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for initialization. File writes are
// serialized by a mutex and performed atomically via rename.
package config
