// Package settings reads persisted default option values from .kilnrc files.
//
// Two files are layered: ~/.kilnrc first, then <project>/.kilnrc, so project
// values override user values. Both are JSON objects whose keys are option
// names in kebab-case, camelCase or snake_case.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileName is the settings dotfile name.
const FileName = ".kilnrc"

// Settings is the merged view of the settings files.
type Settings struct {
	values map[string]interface{}
}

// Empty returns settings with no values.
func Empty() *Settings {
	return &Settings{values: map[string]interface{}{}}
}

// Load merges home/.kilnrc and projectRoot/.kilnrc. Either directory may be
// empty and either file may be missing.
func Load(projectRoot, home string) (*Settings, error) {
	s := Empty()
	for _, dir := range []string{home, projectRoot} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		// Each file is normalized on its own so a later file wins no
		// matter how either one spells the key.
		for _, key := range k.Keys() {
			s.values[Normalize(key)] = k.Get(key)
		}
	}
	return s, nil
}

// Get returns the persisted value for an option name.
func (s *Settings) Get(name string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[name]
	return v, ok
}

// Len returns the number of settings.
func (s *Settings) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Normalize converts camelCase and snake_case keys to kebab-case.
func Normalize(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case r == '_':
			b.WriteByte('-')
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
