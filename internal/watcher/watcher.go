package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/conneroisu/kiln/internal/analytics"
	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/ui"
)

// DefaultDebounce is the quiet period before a batch of changes rebuilds.
const DefaultDebounce = 100 * time.Millisecond

// ErrAlreadyWatching is returned when Start is called twice.
var ErrAlreadyWatching = errors.New("watcher already started")

// Builder is the part of build.Builder the Watcher drives.
type Builder interface {
	Build(ctx context.Context, invalidatedFile, annotation string) (build.Result, error)
}

// Change reports one successful build.
type Change struct {
	// Files is empty for the initial build.
	Files    []string
	Initial  bool
	Duration time.Duration
	Result   build.Result
}

// Options configures a Watcher.
type Options struct {
	Builder   Builder
	Backend   Backend
	Roots     []string
	Filter    FileFilter
	Debounce  time.Duration
	UI        *ui.UI
	Analytics analytics.Tracker
	Logger    logging.Logger
	Verbose   bool
}

// Watcher rebuilds on every debounced batch of changes.
type Watcher struct {
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	started bool
	changes chan Change
	errs    chan error
	ready   chan struct{}
	lastErr error
	builds  int
}

// New creates a Watcher. Start begins watching.
func New(o Options) *Watcher {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.UI == nil {
		o.UI = ui.Discard()
	}
	if o.Analytics == nil {
		o.Analytics = analytics.Nop{}
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	if o.Backend == nil {
		o.Backend = NodeBackend{}
	}
	return &Watcher{opts: o, logger: o.Logger.WithComponent("watcher"), ready: make(chan struct{})}
}

// Changes returns the channel successful builds are published on. Only the
// first caller subscribes; once subscribed, the watch loop waits for the
// consumer.
func (w *Watcher) Changes() <-chan Change {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.changes == nil {
		w.changes = make(chan Change, 1)
	}
	return w.changes
}

// Errors returns the channel build failures are published on.
func (w *Watcher) Errors() <-chan error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.errs == nil {
		w.errs = make(chan error, 1)
	}
	return w.errs
}

// Roots returns the watched directories.
func (w *Watcher) Roots() []string { return w.opts.Roots }

// BackendName returns the active backend's name.
func (w *Watcher) BackendName() string { return w.opts.Backend.Name() }

// Start subscribes to the backend, runs the initial build and then rebuilds
// per change batch until ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyWatching
	}
	w.started = true
	w.mu.Unlock()

	events, errs, err := w.opts.Backend.Start(ctx, w.opts.Roots, w.opts.Filter)
	if err != nil {
		return err
	}
	w.logger.Info(ctx, "watching", "backend", w.opts.Backend.Name(), "roots", w.opts.Roots)

	batches := NewDebouncer(w.opts.Debounce).Run(ctx, events)
	go w.loop(ctx, batches, errs)
	return nil
}

// WaitReady blocks until the initial build finishes and returns its error.
func (w *Watcher) WaitReady(ctx context.Context) error {
	select {
	case <-w.ready:
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) loop(ctx context.Context, batches <-chan []ChangeEvent, errs <-chan error) {
	w.rebuild(ctx, nil)
	close(w.ready)

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			w.rebuild(ctx, batch)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.fail(ctx, err)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context, batch []ChangeEvent) {
	files := make([]string, 0, len(batch))
	for _, ev := range batch {
		files = append(files, ev.Path)
	}
	initial := batch == nil
	variable := "rebuild"
	annotation := "rebuild"
	invalidated := ""
	if initial {
		variable = "build"
		annotation = "initial build"
	} else if len(files) > 0 {
		invalidated = files[0]
	}

	start := time.Now()
	res, err := w.opts.Builder.Build(ctx, invalidated, annotation)
	elapsed := time.Since(start)

	w.mu.Lock()
	w.builds++
	w.lastErr = err
	changes := w.changes
	w.mu.Unlock()

	if err != nil {
		w.fail(ctx, err)
		return
	}

	w.opts.UI.WriteSuccessLine("Build successful (%d ms)", elapsed.Milliseconds())
	w.opts.Analytics.TrackEvent("rebuild", variable, "")
	w.opts.Analytics.TrackTiming("rebuild", variable, elapsed, "")

	if changes != nil {
		select {
		case changes <- Change{Files: files, Initial: initial, Duration: elapsed, Result: res}:
		case <-ctx.Done():
		}
	}
}

func (w *Watcher) fail(ctx context.Context, err error) {
	w.opts.UI.WriteErrorLine("Build failed.")
	w.opts.UI.WriteError(err, w.opts.Verbose)
	w.opts.Analytics.TrackError(err)
	w.logger.Warn(ctx, err, "build failed")

	w.mu.Lock()
	errs := w.errs
	w.mu.Unlock()
	if errs != nil {
		select {
		case errs <- err:
		case <-ctx.Done():
		}
	}
}
