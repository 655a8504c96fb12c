package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnvVar, dir)

	got, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if got != dir {
		t.Errorf("GetConfigDir() = %v, want %v", got, dir)
	}
}

func TestGetConfigDirDefault(t *testing.T) {
	t.Setenv(ConfigDirEnvVar, "")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, "hassupdate") {
		t.Errorf("GetConfigDir() = %v, should contain 'hassupdate'", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(ConfigDirEnvVar, t.TempDir())

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Instances == nil {
		t.Error("NewRegistry().Instances should not be nil")
	}
	if reg.Preferences.Language != "en" {
		t.Errorf("Language = %v, want en", reg.Preferences.Language)
	}
	if reg.Preferences.DiscoverTimeout != 10 {
		t.Errorf("DiscoverTimeout = %v, want 10", reg.Preferences.DiscoverTimeout)
	}
}

func TestRegistryRememberInstance(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	first := reg.RememberInstance("abc", "Home", "http://ha.local:8123")
	after := time.Now()

	if first.LastSeen.Before(before) || first.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", first.LastSeen, before, after)
	}

	// Empty values must not wipe what is already known
	second := reg.RememberInstance("abc", "", "")
	if first != second {
		t.Error("RememberInstance() should return the same entry for the same key")
	}
	if second.Name != "Home" || second.URL != "http://ha.local:8123" {
		t.Errorf("entry lost data: %+v", second)
	}
}

func TestRegistryDefaultURL(t *testing.T) {
	reg := NewRegistry()
	if got := reg.DefaultURL(); got != "" {
		t.Errorf("DefaultURL() on empty registry = %q", got)
	}

	reg.Instances["old"] = &Instance{URL: "http://old:8123", LastSeen: time.Now().Add(-time.Hour)}
	reg.Instances["new"] = &Instance{URL: "http://new:8123", LastSeen: time.Now()}

	if got := reg.DefaultURL(); got != "http://new:8123" {
		t.Errorf("DefaultURL() = %q, want most recently seen", got)
	}

	reg.Preferences.DefaultInstance = "old"
	if got := reg.DefaultURL(); got != "http://old:8123" {
		t.Errorf("DefaultURL() = %q, want explicit default", got)
	}

	reg.ForgetInstance("old")
	if reg.Preferences.DefaultInstance != "" {
		t.Error("ForgetInstance() should clear the default")
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.RememberInstance("abc", "Home", "http://ha.local:8123")
	reg.Preferences.Language = "de"

	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(strings.ToLower(string(data)), "access_token:") {
		t.Error("config file must not contain tokens")
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.GetInstance("abc") == nil || loaded.GetInstance("abc").URL != "http://ha.local:8123" {
		t.Errorf("instance not round-tripped: %+v", loaded.Instances)
	}
	if loaded.Preferences.Language != "de" {
		t.Errorf("Language = %v, want de", loaded.Preferences.Language)
	}
}

func TestLoadFileMissing(t *testing.T) {
	reg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Version != 1 {
		t.Error("missing file should yield a default registry")
	}
}

func TestLoadFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Instances == nil || reg.Preferences == nil {
		t.Fatal("maps and preferences should be initialized")
	}
	if reg.Preferences.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %d", reg.Preferences.RequestTimeout)
	}
}

func TestLoadFileRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should reject unknown versions")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: [1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should fail on malformed YAML")
	}
}
