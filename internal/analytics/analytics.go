// Package analytics records best-effort usage signals. Tracking never blocks
// or fails the operation being tracked.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/kiln/internal/logging"
)

// Tracker receives usage signals.
type Tracker interface {
	TrackCommand(name string)
	TrackEvent(category, action, label string)
	TrackTiming(category, variable string, d time.Duration, label string)
	TrackError(err error)
}

// Nop discards every signal.
type Nop struct{}

func (Nop) TrackCommand(string)                               {}
func (Nop) TrackEvent(string, string, string)                 {}
func (Nop) TrackTiming(string, string, time.Duration, string) {}
func (Nop) TrackError(error)                                  {}

// LogTracker writes signals to a structured logger at debug level.
type LogTracker struct {
	logger logging.Logger
}

// NewLogTracker creates a tracker backed by logger.
func NewLogTracker(logger logging.Logger) *LogTracker {
	return &LogTracker{logger: logger.WithComponent("analytics")}
}

func (t *LogTracker) TrackCommand(name string) {
	t.logger.Debug(context.Background(), "command", "name", name)
}

func (t *LogTracker) TrackEvent(category, action, label string) {
	t.logger.Debug(context.Background(), "event", "category", category, "action", action, "label", label)
}

func (t *LogTracker) TrackTiming(category, variable string, d time.Duration, label string) {
	t.logger.Debug(context.Background(), "timing",
		"category", category, "variable", variable, "duration_ms", d.Milliseconds(), "label", label)
}

func (t *LogTracker) TrackError(err error) {
	t.logger.Debug(context.Background(), "error", "description", err.Error())
}

// Event is one recorded signal.
type Event struct {
	Kind     string
	Category string
	Action   string
	Label    string
	Variable string
	Duration time.Duration
	Err      error
}

// Recorder keeps every signal in memory. Used by tests across packages.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) TrackCommand(name string) {
	r.add(Event{Kind: "command", Action: name})
}

func (r *Recorder) TrackEvent(category, action, label string) {
	r.add(Event{Kind: "event", Category: category, Action: action, Label: label})
}

func (r *Recorder) TrackTiming(category, variable string, d time.Duration, label string) {
	r.add(Event{Kind: "timing", Category: category, Variable: variable, Duration: d, Label: label})
}

func (r *Recorder) TrackError(err error) {
	r.add(Event{Kind: "error", Err: err})
}

// Events returns a copy of the recorded signals.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kind returns the recorded signals of one kind.
func (r *Recorder) Kind(kind string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
