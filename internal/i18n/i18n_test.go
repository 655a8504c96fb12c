package i18n

import (
	"sync"
	"testing"
)

func TestEmbeddedKeys(t *testing.T) {
	l := MustNew()

	keys := []string{
		"state.default.unavailable",
		"ui.dialogs.more_info_control.update.release_announcement",
		"ui.dialogs.more_info_control.update.create_backup",
		"ui.dialogs.more_info_control.update.clear_skipped",
		"ui.dialogs.more_info_control.update.skip",
		"ui.dialogs.more_info_control.update.install",
		"ui.dialogs.more_info_control.update.auto_update_enabled_title",
		"ui.dialogs.more_info_control.update.auto_update_enabled_text",
	}
	for _, k := range keys {
		if _, ok := l.Lookup(k); !ok {
			t.Errorf("embedded translations missing %q", k)
		}
	}

	if got := l.Localize("state.default.unavailable"); got != "Unavailable" {
		t.Errorf("Localize(unavailable) = %q, want %q", got, "Unavailable")
	}
	if got := l.Localize("component.update.entity_component._.state.on"); got != "Update available" {
		t.Errorf("Localize(state.on) = %q, want %q", got, "Update available")
	}
}

func TestLocalizeMissingKey(t *testing.T) {
	l := MustNew()
	if got := l.Localize("no.such.key"); got != "no.such.key" {
		t.Errorf("Localize(missing) = %q, want key", got)
	}
}

func TestMerge(t *testing.T) {
	l := MustNew()
	l.SetLanguage("de")
	l.Merge(map[string]string{
		"state.default.unavailable":                 "Nicht verfügbar",
		"ui.dialogs.more_info_control.update.skip": "",
	})

	if got := l.Localize("state.default.unavailable"); got != "Nicht verfügbar" {
		t.Errorf("Localize after Merge = %q, want %q", got, "Nicht verfügbar")
	}
	if got := l.Localize("ui.dialogs.more_info_control.update.skip"); got != "Skip" {
		t.Errorf("empty merged value replaced English: %q", got)
	}
	if got := l.Language(); got != "de" {
		t.Errorf("Language() = %q, want de", got)
	}
}

func TestAttributeName(t *testing.T) {
	l := MustNew()

	tests := []struct {
		domain    string
		attribute string
		want      string
	}{
		{"update", "installed_version", "Installed version"},
		{"update", "latest_version", "Latest version"},
		{"update", "some_new_attribute", "Some new attribute"},
		{"sensor", "latest_version", "Latest version"},
	}

	for _, tt := range tests {
		if got := l.AttributeName(tt.domain, tt.attribute); got != tt.want {
			t.Errorf("AttributeName(%q, %q) = %q, want %q", tt.domain, tt.attribute, got, tt.want)
		}
	}

	l.Merge(map[string]string{
		"component.update.entity_component._.state_attributes.latest_version.name": "Neueste Version",
	})
	if got := l.AttributeName("update", "latest_version"); got != "Neueste Version" {
		t.Errorf("AttributeName after Merge = %q", got)
	}
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"installed_version", "Installed version"},
		{"title", "Title"},
		{"", ""},
		{"_", "_"},
	}
	for _, tt := range tests {
		if got := Humanize(tt.in); got != tt.want {
			t.Errorf("Humanize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	flat, err := Parse([]byte("a:\n  b: x\n  c:\n    d: y\nn: 3\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := map[string]string{"a.b": "x", "a.c.d": "y", "n": "3"}
	for k, v := range want {
		if flat[k] != v {
			t.Errorf("flat[%q] = %q, want %q", k, flat[k], v)
		}
	}

	if _, err := Parse([]byte("a: [")); err == nil {
		t.Error("Parse() accepted invalid YAML")
	}
}

func TestConcurrentAccess(t *testing.T) {
	l := MustNew()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Merge(map[string]string{"x.y": "z"})
		}()
		go func() {
			defer wg.Done()
			_ = l.Localize("x.y")
		}()
	}
	wg.Wait()
}
