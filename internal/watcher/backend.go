package watcher

import (
	"context"
	"time"
)

// Backend is a file system watch primitive.
type Backend interface {
	Name() string
	// Start begins watching roots. Setup errors are returned directly;
	// later failures arrive on the error channel. Both channels close once
	// ctx ends.
	Start(ctx context.Context, roots []string, filter FileFilter) (<-chan ChangeEvent, <-chan error, error)
}

// Backend names.
const (
	BackendEvents   = "events"
	BackendPolling  = "polling"
	BackendNode     = "node"
	BackendWatchman = "watchman"
)

// DefaultPollInterval is how often the polling backend rescans.
const DefaultPollInterval = 100 * time.Millisecond

func acceptAll(string) bool { return true }

func sendEvent(ctx context.Context, out chan<- ChangeEvent, ev ChangeEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func sendErr(ctx context.Context, out chan<- error, err error) {
	select {
	case out <- err:
	case <-ctx.Done():
	}
}
