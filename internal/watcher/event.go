// Package watcher turns file system changes into debounced rebuilds.
package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a path should produce events.
type FileFilter func(path string) bool

// IgnoreFilter rejects any path containing one of names as a path segment.
// Paths inside root are matched relative to it, so directories above the
// project never count.
func IgnoreFilter(root string, names []string) FileFilter {
	ignored := make(map[string]bool, len(names))
	for _, n := range names {
		ignored[n] = true
	}
	return func(path string) bool {
		if root != "" && filepath.IsAbs(path) {
			if rel, err := filepath.Rel(root, path); err == nil && !escapes(rel) {
				path = rel
			}
		}
		for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
			if ignored[seg] {
				return false
			}
		}
		return true
	}
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Debouncer groups rapid file changes together. A batch is emitted once no
// new event has arrived for the delay; events are deduplicated by path.
type Debouncer struct {
	delay time.Duration
}

// NewDebouncer creates a Debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Run consumes in until it closes or ctx ends and returns the batch channel.
func (d *Debouncer) Run(ctx context.Context, in <-chan ChangeEvent) <-chan []ChangeEvent {
	out := make(chan []ChangeEvent)
	go func() {
		defer close(out)

		pending := make(map[string]ChangeEvent)
		timer := time.NewTimer(d.delay)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					if len(pending) > 0 {
						select {
						case out <- batch(pending):
						case <-ctx.Done():
						}
					}
					return
				}
				pending[ev.Path] = ev
				timer.Stop()
				select {
				case <-timer.C:
				default:
				}
				timer.Reset(d.delay)
			case <-timer.C:
				if len(pending) == 0 {
					continue
				}
				events := batch(pending)
				pending = make(map[string]ChangeEvent)
				select {
				case out <- events:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func batch(pending map[string]ChangeEvent) []ChangeEvent {
	events := make([]ChangeEvent, 0, len(pending))
	for _, ev := range pending {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}
