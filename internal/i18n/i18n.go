// Package i18n resolves Home Assistant frontend translation keys.
//
// A Localizer starts with the embedded English strings and can be overlaid
// with translations fetched from a running instance:
//
//	loc, err := i18n.New()
//	resources, _ := client.Translations(ctx, "de", "state")
//	loc.Merge(resources)
//	loc.Localize("state.default.unavailable") // "Nicht verfügbar"
//
// Missing keys resolve to the key itself.
package i18n

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed en.yaml
var englishYAML []byte

// DefaultLanguage is the language of the embedded strings.
const DefaultLanguage = "en"

// attributeNameKey is formatted with the entity domain and attribute name.
const attributeNameKey = "component.%s.entity_component._.state_attributes.%s.name"

// Localizer maps dotted translation keys to strings. It is safe for
// concurrent use.
type Localizer struct {
	mu       sync.RWMutex
	language string
	strings  map[string]string
}

// New returns a Localizer loaded with the embedded English strings.
func New() (*Localizer, error) {
	flat, err := Parse(englishYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded translations: %w", err)
	}
	return &Localizer{language: DefaultLanguage, strings: flat}, nil
}

// MustNew is New for package initialisation paths.
func MustNew() *Localizer {
	l, err := New()
	if err != nil {
		panic(err)
	}
	return l
}

// Parse decodes a nested YAML document into flat dotted keys.
func Parse(data []byte) (map[string]string, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	flat := make(map[string]string)
	flatten("", tree, flat)
	return flat, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case string:
			out[key] = t
		case nil:
		default:
			out[key] = fmt.Sprint(t)
		}
	}
}

// Language returns the language of the most recent Merge, or the default.
func (l *Localizer) Language() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.language
}

// SetLanguage records the language merged resources belong to.
func (l *Localizer) SetLanguage(language string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if language != "" {
		l.language = language
	}
}

// Merge overlays resources onto the current strings. Empty values are
// ignored so a partial translation never blanks an English string.
func (l *Localizer) Merge(resources map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range resources {
		if v == "" {
			continue
		}
		l.strings[k] = v
	}
}

// Localize returns the string for key, or key when it is unknown.
func (l *Localizer) Localize(key string) string {
	if s, ok := l.Lookup(key); ok {
		return s
	}
	return key
}

// Lookup returns the string for key.
func (l *Localizer) Lookup(key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.strings[key]
	return s, ok
}

// Keys returns every known key, sorted.
func (l *Localizer) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.strings))
	for k := range l.strings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AttributeName returns the display name of a state attribute of an entity
// in domain, falling back to a humanised attribute name.
func (l *Localizer) AttributeName(domain, attribute string) string {
	if s, ok := l.Lookup(fmt.Sprintf(attributeNameKey, domain, attribute)); ok {
		return s
	}
	return Humanize(attribute)
}

// Humanize turns "installed_version" into "Installed version".
func Humanize(attribute string) string {
	s := strings.TrimSpace(strings.ReplaceAll(attribute, "_", " "))
	if s == "" {
		return attribute
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
