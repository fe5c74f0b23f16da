package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// PollingBackend rescans the roots on an interval and diffs modification
// times and sizes.
type PollingBackend struct {
	Interval time.Duration
}

// Name implements Backend.
func (PollingBackend) Name() string { return BackendPolling }

type fileState struct {
	modTime time.Time
	size    int64
}

// Start implements Backend.
func (p PollingBackend) Start(ctx context.Context, roots []string, filter FileFilter) (<-chan ChangeEvent, <-chan error, error) {
	if filter == nil {
		filter = acceptAll
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	prev, err := scan(roots, filter)
	if err != nil {
		return nil, nil, err
	}

	events := make(chan ChangeEvent)
	errs := make(chan error)
	go func() {
		defer close(events)
		defer close(errs)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			next, err := scan(roots, filter)
			if err != nil {
				sendErr(ctx, errs, err)
				continue
			}
			for _, ev := range diff(prev, next) {
				if !sendEvent(ctx, events, ev) {
					return
				}
			}
			prev = next
		}
	}()
	return events, errs, nil
}

func scan(roots []string, filter FileFilter) (map[string]fileState, error) {
	state := make(map[string]fileState)
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if path != root && !filter(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			state[path] = fileState{modTime: info.ModTime(), size: info.Size()}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}

func diff(prev, next map[string]fileState) []ChangeEvent {
	var events []ChangeEvent
	for path, st := range next {
		old, ok := prev[path]
		switch {
		case !ok:
			events = append(events, ChangeEvent{Type: EventTypeCreated, Path: path, ModTime: st.modTime, Size: st.size})
		case !old.modTime.Equal(st.modTime) || old.size != st.size:
			events = append(events, ChangeEvent{Type: EventTypeModified, Path: path, ModTime: st.modTime, Size: st.size})
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			events = append(events, ChangeEvent{Type: EventTypeDeleted, Path: path})
		}
	}
	return events
}
