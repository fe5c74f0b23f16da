package config

import (
	"fmt"
	"strings"
)

// ValidationError describes one invalid kiln.yml value.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s in %s: %s", ve.Field, FileName, ve.Message)
	if len(ve.Suggestions) > 0 {
		msg += " (" + strings.Join(ve.Suggestions, "; ") + ")"
	}
	return msg
}

// WatcherNames lists the recognized watch backends.
var WatcherNames = []string{"events", "polling", "node", "watchman"}

// Validate checks values that would otherwise fail much later.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return &ValidationError{
			Field:       "server.port",
			Value:       cfg.Server.Port,
			Message:     "port must be between 0 and 65535",
			Suggestions: []string{"the default port is 4200"},
		}
	}
	if cfg.Server.LiveReloadPort < 0 || cfg.Server.LiveReloadPort > 65535 {
		return &ValidationError{
			Field:   "server.live_reload_port",
			Value:   cfg.Server.LiveReloadPort,
			Message: "port must be between 0 and 65535",
		}
	}
	if cfg.Watcher != "" && !validWatcher(cfg.Watcher) {
		return &ValidationError{
			Field:       "watcher",
			Value:       cfg.Watcher,
			Message:     fmt.Sprintf("unknown watcher %q", cfg.Watcher),
			Suggestions: []string{"use one of " + strings.Join(WatcherNames, ", ")},
		}
	}

	seen := make(map[string]bool, len(cfg.Addons))
	for i, a := range cfg.Addons {
		field := fmt.Sprintf("addons[%d].name", i)
		if a.Name == "" {
			return &ValidationError{Field: field, Message: "addon name is required"}
		}
		if seen[a.Name] {
			return &ValidationError{Field: field, Value: a.Name, Message: "duplicate addon " + a.Name}
		}
		seen[a.Name] = true
	}

	return nil
}

func validWatcher(name string) bool {
	for _, w := range WatcherNames {
		if w == name {
			return true
		}
	}
	return false
}
