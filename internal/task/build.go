package task

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/kiln/internal/addons"
	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/opts"
	"github.com/conneroisu/kiln/internal/watcher"
)

// VerboseWatcherEnv makes the watcher log every batch it receives.
const VerboseWatcherEnv = "KILN_VERBOSE_WATCHER"

type buildTask struct{ d Deps }

func newBuildTask(d Deps) Task { return &buildTask{d: d} }

func (t *buildTask) Run(ctx context.Context, o opts.Values) error {
	b, err := newBuilder(t.d, o)
	if err != nil {
		return err
	}
	defer b.Cleanup()

	if _, err := b.Build(ctx, "", "build"); err != nil {
		t.d.UI.WriteErrorLine("Build failed.")
		return err
	}
	t.d.UI.WriteSuccessLine("Built project successfully. Stored in %q.", displayPath(t.d.Project.Root, b.OutputPath()))
	return nil
}

type buildWatchTask struct{ d Deps }

func newBuildWatchTask(d Deps) Task { return &buildWatchTask{d: d} }

// Run builds, then rebuilds on change until ctx ends.
func (t *buildWatchTask) Run(ctx context.Context, o opts.Values) error {
	b, err := newBuilder(t.d, o)
	if err != nil {
		return err
	}
	defer b.Cleanup()

	w, err := newWatcher(ctx, t.d, o, b)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func newBuilder(d Deps, o opts.Values) (*build.Builder, error) {
	var engine build.Engine
	if d.Engine != nil && d.Project.IsProject() {
		engine = d.Engine(d.Project)
	}
	return build.New(build.Options{
		Project:     d.Project,
		Engine:      engine,
		OutputPath:  o.String("output-path"),
		Environment: o.String("environment"),
		Addons:      addons.FromConfig(d.Project.Config.Addons, d.Project.Root, d.Shell, d.Logger),
		UI:          d.UI,
		Logger:      d.Logger,
		Trap:        d.Trap,
	})
}

// newWatcher resolves the backend and watches the configured source dirs.
// The output directory is always ignored so a build never triggers itself.
func newWatcher(ctx context.Context, d Deps, o opts.Values, b *build.Builder) (*watcher.Watcher, error) {
	cfg := d.Project.Config
	name := o.String("watcher")
	if name == "" {
		name = cfg.Watcher
	}
	backend, err := watcher.Resolve(ctx, name, d.Prober, d.UI)
	if err != nil {
		return nil, err
	}

	var roots []string
	for _, dir := range cfg.Build.Watch {
		abs := filepath.Join(d.Project.Root, dir)
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			roots = append(roots, abs)
		}
	}
	if len(roots) == 0 {
		roots = []string{d.Project.Root}
	}

	ignore := append([]string{filepath.Base(b.OutputPath())}, cfg.Build.Ignore...)
	return watcher.New(watcher.Options{
		Builder:   b,
		Backend:   backend,
		Roots:     roots,
		Filter:    watcher.IgnoreFilter(d.Project.Root, ignore),
		UI:        d.UI,
		Analytics: d.Analytics,
		Logger:    d.Logger,
		Verbose:   os.Getenv(VerboseWatcherEnv) != "",
	}), nil
}

// displayPath shows paths inside root relative to it.
func displayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel) + "/"
}
