package watcher

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// WatchmanBackend streams changes from one watchman-wait process per root.
// watchman-wait prints one changed path per line, relative to its root.
type WatchmanBackend struct {
	// Binary defaults to "watchman-wait".
	Binary string
}

// Name implements Backend.
func (WatchmanBackend) Name() string { return BackendWatchman }

// Start implements Backend.
func (w WatchmanBackend) Start(ctx context.Context, roots []string, filter FileFilter) (<-chan ChangeEvent, <-chan error, error) {
	if filter == nil {
		filter = acceptAll
	}
	bin := w.Binary
	if bin == "" {
		bin = "watchman-wait"
	}

	events := make(chan ChangeEvent)
	errs := make(chan error)
	done := make(chan struct{}, len(roots))

	for _, root := range roots {
		cmd := exec.CommandContext(ctx, bin, "-m", "0", root)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, nil, fmt.Errorf("starting %s: %w", bin, err)
		}
		go func(root string) {
			defer func() { done <- struct{}{} }()
			scanner := bufio.NewScanner(stdout)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				path := filepath.Join(root, filepath.FromSlash(line))
				if !filter(path) {
					continue
				}
				if !sendEvent(ctx, events, ChangeEvent{Type: EventTypeModified, Path: path}) {
					break
				}
			}
			if err := cmd.Wait(); err != nil && ctx.Err() == nil {
				sendErr(ctx, errs, fmt.Errorf("%s exited: %w", bin, err))
			}
		}(root)
	}

	go func() {
		for range roots {
			<-done
		}
		<-ctx.Done()
		close(events)
		close(errs)
	}()
	return events, errs, nil
}
