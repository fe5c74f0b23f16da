package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// NodeBackend watches with fsnotify, adding every directory under the roots
// and any directory created later.
type NodeBackend struct{}

// Name implements Backend.
func (NodeBackend) Name() string { return BackendNode }

// Start implements Backend.
func (NodeBackend) Start(ctx context.Context, roots []string, filter FileFilter) (<-chan ChangeEvent, <-chan error, error) {
	if filter == nil {
		filter = acceptAll
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("creating watcher: %w", err)
	}
	for _, root := range roots {
		if err := addRecursive(fw, root, filter); err != nil {
			fw.Close()
			return nil, nil, err
		}
	}

	events := make(chan ChangeEvent)
	errs := make(chan error)
	go func() {
		defer close(events)
		defer close(errs)
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if !filter(ev.Name) {
					continue
				}
				change := convert(ev)
				if change.Type == EventTypeCreated {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if err := addRecursive(fw, ev.Name, filter); err != nil {
							sendErr(ctx, errs, err)
						}
					}
				}
				if !sendEvent(ctx, events, change) {
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				sendErr(ctx, errs, err)
			}
		}
	}()
	return events, errs, nil
}

func addRecursive(fw *fsnotify.Watcher, root string, filter FileFilter) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && !filter(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func convert(ev fsnotify.Event) ChangeEvent {
	change := ChangeEvent{Path: ev.Name}
	if info, err := os.Stat(ev.Name); err == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	}
	switch {
	case ev.Has(fsnotify.Create):
		change.Type = EventTypeCreated
	case ev.Has(fsnotify.Write):
		change.Type = EventTypeModified
	case ev.Has(fsnotify.Remove):
		change.Type = EventTypeDeleted
	case ev.Has(fsnotify.Rename):
		change.Type = EventTypeRenamed
	default:
		change.Type = EventTypeModified
	}
	return change
}
