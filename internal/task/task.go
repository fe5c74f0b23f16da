// Package task holds the orchestration units commands run. A task does
// not define CLI surface; it receives resolved options and its
// collaborators through Deps.
package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"

	"github.com/conneroisu/kiln/internal/addons"
	"github.com/conneroisu/kiln/internal/analytics"
	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/npm"
	"github.com/conneroisu/kiln/internal/opts"
	"github.com/conneroisu/kiln/internal/process"
	"github.com/conneroisu/kiln/internal/project"
	"github.com/conneroisu/kiln/internal/ui"
	"github.com/conneroisu/kiln/internal/watcher"
)

// Task is one unit of orchestrated work.
type Task interface {
	Run(ctx context.Context, o opts.Values) error
}

// Func adapts a function to Task.
type Func func(ctx context.Context, o opts.Values) error

// Run implements Task.
func (f Func) Run(ctx context.Context, o opts.Values) error { return f(ctx, o) }

// Factory builds a task from its collaborators.
type Factory func(Deps) Task

// Deps are the collaborators injected into every task.
type Deps struct {
	UI        *ui.UI
	Analytics analytics.Tracker
	Project   *project.Project
	Tasks     *Registry
	Logger    logging.Logger
	Trap      *process.Trap
	Prober    watcher.Prober
	// Engine builds the pipeline for a project. Nil uses build.ExecEngine.
	Engine func(p *project.Project) build.Engine
	// Shell runs addon hooks, the test harness and the blueprint generator.
	Shell addons.Runner
	// NPM runs package manager commands.
	NPM npm.Runner
}

// WithDefaults fills every nil collaborator with its production value.
func (d Deps) WithDefaults() Deps {
	if d.UI == nil {
		d.UI = ui.Discard()
	}
	if d.Analytics == nil {
		d.Analytics = analytics.Nop{}
	}
	if d.Project == nil {
		d.Project = project.Null()
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Trap == nil {
		d.Trap = process.Default()
	}
	if d.Prober == nil {
		d.Prober = watcher.ExecProber{}
	}
	if d.Shell == nil {
		d.Shell = addons.ShellRunner
	}
	if d.NPM == nil {
		d.NPM = npm.ExecRunner{Stdout: d.UI.Out(), Stderr: d.UI.Out()}
	}
	if d.Tasks == nil {
		d.Tasks = Default()
	}
	return d
}

// Registry maps task names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists registered tasks.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New constructs the named task.
func (r *Registry) New(name string, d Deps) (Task, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", name)
	}
	d.Tasks = r
	return f(d.WithDefaults()), nil
}

// Task names.
const (
	Build                 = "build"
	BuildWatch            = "build-watch"
	Serve                 = "serve"
	Test                  = "test"
	TestServer            = "test-server"
	NPMInstall            = "npm-install"
	NPMUninstall          = "npm-uninstall"
	Install               = "install"
	GenerateFromBlueprint = "generate-from-blueprint"
	CreateProject         = "create-project"
)

// Default returns a registry with every built-in task.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Build, newBuildTask)
	r.Register(BuildWatch, newBuildWatchTask)
	r.Register(Serve, newServeTask)
	r.Register(Test, newTestTask)
	r.Register(TestServer, newTestServerTask)
	r.Register(NPMInstall, newNPMInstallTask)
	r.Register(NPMUninstall, newNPMUninstallTask)
	r.Register(Install, newInstallTask)
	r.Register(GenerateFromBlueprint, newBlueprintTask)
	r.Register(CreateProject, newCreateProjectTask)
	return r
}

// Runner runs tasks inside the process-wide lifecycle hook: the project's
// .env is loaded without overriding existing variables, KILN_ENV is set
// from the environment option and the working directory moves to the
// project root. All of it is undone when the task returns.
type Runner struct {
	Deps Deps
}

// Run constructs and runs the named task.
func (r Runner) Run(ctx context.Context, name string, o opts.Values) error {
	d := r.Deps.WithDefaults()
	t, err := d.Tasks.New(name, d)
	if err != nil {
		return err
	}
	restore, err := enter(d.Project, o)
	if err != nil {
		return err
	}
	defer restore()
	return t.Run(ctx, o)
}

func enter(p *project.Project, o opts.Values) (func(), error) {
	var undo []func()
	restore := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	setEnv := func(key, value string) {
		prev, had := os.LookupEnv(key)
		_ = os.Setenv(key, value)
		undo = append(undo, func() {
			if had {
				_ = os.Setenv(key, prev)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}

	if p.IsProject() {
		envFile := filepath.Join(p.Root, ".env")
		if _, err := os.Stat(envFile); err == nil {
			vars, err := godotenv.Read(envFile)
			if err != nil {
				return restore, fmt.Errorf("reading %s: %w", envFile, err)
			}
			for k, v := range vars {
				if _, exists := os.LookupEnv(k); !exists {
					setEnv(k, v)
				}
			}
		}
	}

	if env := o.String("environment"); env != "" {
		setEnv("KILN_ENV", env)
	}

	if p.IsProject() {
		cwd, err := os.Getwd()
		if err != nil {
			restore()
			return func() {}, err
		}
		if err := os.Chdir(p.Root); err != nil {
			restore()
			return func() {}, err
		}
		undo = append(undo, func() { _ = os.Chdir(cwd) })
	}

	return restore, nil
}
