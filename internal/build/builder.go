// Package build wraps one external pipeline: it runs addon hooks around
// each evaluation, syncs the output into the output path and releases the
// pipeline exactly once before the process exits.
package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/process"
	"github.com/conneroisu/kiln/internal/project"
	"github.com/conneroisu/kiln/internal/ui"
)

// VizEnv enables a JSON dump of every build into the project root.
const VizEnv = "KILN_VIZ"

// Options configures a Builder.
type Options struct {
	Project     *project.Project
	Engine      Engine
	OutputPath  string
	Environment string
	Addons      []Addon
	UI          *ui.UI
	Logger      logging.Logger
	// Trap receives the cleanup callback. Defaults to process.Default().
	Trap *process.Trap
}

// Builder runs the pipeline and syncs its output.
type Builder struct {
	project     *project.Project
	engine      Engine
	outputPath  string
	environment string
	addons      []Addon
	ui          *ui.UI
	logger      logging.Logger
	metrics     *Metrics

	mu    sync.Mutex
	count int

	cleanupOnce sync.Once
	unregister  func()
}

// New creates a Builder and registers its cleanup with the process trap.
func New(o Options) (*Builder, error) {
	if o.Project == nil || !o.Project.IsProject() {
		return nil, kerrors.NewSilentError(kerrors.ErrCodeOutsideProject, "A builder requires a project.")
	}
	if o.UI == nil {
		o.UI = ui.Discard()
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	if o.Trap == nil {
		o.Trap = process.Default()
	}
	if o.Engine == nil {
		cfg := o.Project.Config.Build
		o.Engine = NewExecEngine(o.Project.Root, cfg.Command, cfg.Watch)
	}
	if o.OutputPath == "" {
		o.OutputPath = "dist"
	}
	out := o.OutputPath
	if !filepath.IsAbs(out) {
		out = filepath.Join(o.Project.Root, out)
	}

	b := &Builder{
		project:     o.Project,
		engine:      o.Engine,
		outputPath:  filepath.Clean(out),
		environment: o.Environment,
		addons:      o.Addons,
		ui:          o.UI,
		logger:      o.Logger.WithComponent("builder"),
		metrics:     NewMetrics(),
	}

	o.Trap.InstallOnce()
	b.unregister = o.Trap.OnExit(func() error {
		b.Cleanup()
		return nil
	})

	return b, nil
}

// OutputPath returns the absolute output directory.
func (b *Builder) OutputPath() string { return b.outputPath }

// Addons returns the registered addons in registration order.
func (b *Builder) Addons() []Addon { return b.addons }

// Metrics returns a snapshot of build statistics.
func (b *Builder) Metrics() MetricsSnapshot { return b.metrics.Snapshot() }

// Build runs one pipeline evaluation. Builds are serialized.
func (b *Builder) Build(ctx context.Context, invalidatedFile, annotation string) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	req := Request{
		Count:           b.count,
		Environment:     b.environment,
		InvalidatedFile: invalidatedFile,
		Annotation:      annotation,
	}
	perf := logging.StartOperation(b.logger, "build")

	res, err := b.build(ctx, req)
	if err != nil {
		b.metrics.Record(perf.EndWithError(ctx, err), err)
		b.runBuildError(ctx, err)
		return res, err
	}
	res.Duration = perf.End(ctx)
	b.metrics.Record(res.Duration, nil)
	return res, nil
}

func (b *Builder) build(ctx context.Context, req Request) (Result, error) {
	for _, a := range b.addons {
		if h, ok := a.(PreBuilder); ok {
			if err := h.PreBuild(ctx, req); err != nil {
				return Result{Request: req}, hookError(a, "preBuild", err)
			}
		}
	}

	res, err := b.engine.Build(ctx, req)
	res.Request = req
	if err != nil {
		return res, asBuildError(err)
	}

	if os.Getenv(VizEnv) == "1" {
		if err := b.writeViz(res); err != nil {
			b.logger.Warn(ctx, err, "writing build visualization")
		}
	}

	for _, a := range b.addons {
		if h, ok := a.(PostBuilder); ok {
			if err := h.PostBuild(ctx, res); err != nil {
				return res, hookError(a, "postBuild", err)
			}
		}
	}

	if err := b.syncOutput(ctx, res); err != nil {
		return res, err
	}

	for _, a := range b.addons {
		if h, ok := a.(OutputReadier); ok {
			if err := h.OutputReady(ctx, res); err != nil {
				return res, hookError(a, "outputReady", err)
			}
		}
	}

	for _, w := range CheckEnvironment(b.project.PackageJSON, b.project.Config.MinVersions) {
		b.ui.WriteWarnLine("%s", w)
	}

	return res, nil
}

func (b *Builder) syncOutput(ctx context.Context, res Result) error {
	if !CanDeleteOutputPath(b.project.Root, b.outputPath) {
		return kerrors.NewConfigError(kerrors.ErrCodeUnsafeOutputPath,
			fmt.Sprintf("Using a build destination path of `%s` is not supported.", b.outputPath))
	}
	stats, err := Sync(res.Directory, b.outputPath)
	if err != nil {
		return kerrors.NewIOError(kerrors.ErrCodeBuildFailed, "syncing build output", err)
	}
	b.logger.Debug(ctx, "synced output",
		"copied", stats.Copied, "removed", stats.Removed, "unchanged", stats.Unchanged)
	return nil
}

func (b *Builder) runBuildError(ctx context.Context, err error) {
	for _, a := range b.addons {
		if h, ok := a.(BuildErrorer); ok {
			h.BuildError(ctx, err)
		}
	}
}

type vizDump struct {
	Count           int       `json:"count"`
	Environment     string    `json:"environment"`
	InvalidatedFile string    `json:"invalidatedFile,omitempty"`
	Annotation      string    `json:"annotation,omitempty"`
	DurationMS      int64     `json:"durationMs"`
	Output          string    `json:"output"`
	Files           []string  `json:"files"`
	Time            time.Time `json:"time"`
}

func (b *Builder) writeViz(res Result) error {
	files, err := listFiles(res.Directory)
	if err != nil {
		return err
	}
	dump := vizDump{
		Count:           res.Request.Count,
		Environment:     res.Request.Environment,
		InvalidatedFile: res.Request.InvalidatedFile,
		Annotation:      res.Request.Annotation,
		DurationMS:      res.Duration.Milliseconds(),
		Output:          res.Directory,
		Files:           make([]string, 0, len(files)),
		Time:            time.Now(),
	}
	for rel := range files {
		dump.Files = append(dump.Files, filepath.ToSlash(rel))
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	name := fmt.Sprintf("instrumentation.build.%d.json", res.Request.Count)
	return os.WriteFile(filepath.Join(b.project.Root, name), data, 0o644)
}

// Cleanup releases the pipeline once. Errors are logged, never returned.
func (b *Builder) Cleanup() {
	b.cleanupOnce.Do(func() {
		if b.unregister != nil {
			b.unregister()
		}
		if err := b.engine.Cleanup(); err != nil {
			b.logger.Error(context.Background(), err, "pipeline cleanup failed")
		}
	})
}

func hookError(a Addon, hook string, err error) error {
	var ke *kerrors.Error
	if errors.As(err, &ke) {
		return err
	}
	return kerrors.NewBuildError(kerrors.ErrCodeBuildFailed,
		fmt.Sprintf("addon %s failed in %s", a.Name(), hook), err)
}

func asBuildError(err error) error {
	var ke *kerrors.Error
	if errors.As(err, &ke) {
		return err
	}
	return kerrors.NewBuildError(kerrors.ErrCodeBuildFailed, "Build failed", err)
}
