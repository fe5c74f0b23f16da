package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/process"
	"github.com/conneroisu/kiln/internal/project"
	"github.com/conneroisu/kiln/internal/ui"
)

func newProject(t *testing.T, kilnYML string) *project.Project {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "kiln.yml"), []byte(kilnYML), 0o644))
	p, err := project.Load(root)
	require.NoError(t, err)
	return p
}

func newTrap(t *testing.T) *process.Trap {
	t.Helper()
	trap := process.New(process.WithExitFunc(func(int) {}), process.WithRawCtrlC(false))
	t.Cleanup(trap.Reset)
	return trap
}

// fakeEngine writes files into its own staging directory.
type fakeEngine struct {
	dir      string
	files    map[string]string
	err      error
	builds   int
	cleanups int
	log      *[]string
}

func (e *fakeEngine) Build(_ context.Context, req Request) (Result, error) {
	e.builds++
	if e.log != nil {
		*e.log = append(*e.log, "engine")
	}
	if e.err != nil {
		return Result{Request: req}, e.err
	}
	for name, content := range e.files {
		path := filepath.Join(e.dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Result{}, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Result{}, err
		}
	}
	return Result{Directory: e.dir, Request: req}, nil
}

func (e *fakeEngine) Cleanup() error {
	e.cleanups++
	return errors.New("cleanup failure is only logged")
}

type hookAddon struct {
	name   string
	log    *[]string
	mu     *sync.Mutex
	preErr error
}

func (a *hookAddon) Name() string { return a.name }

func (a *hookAddon) push(entry string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	*a.log = append(*a.log, entry)
}

func (a *hookAddon) PreBuild(context.Context, Request) error {
	a.push("pre:" + a.name)
	return a.preErr
}

func (a *hookAddon) PostBuild(context.Context, Result) error {
	a.push("post:" + a.name)
	return nil
}

func (a *hookAddon) OutputReady(context.Context, Result) error {
	a.push("ready:" + a.name)
	return nil
}

func (a *hookAddon) BuildError(context.Context, error) {
	a.push("error:" + a.name)
}

// plainAddon implements no hooks.
type plainAddon struct{}

func (plainAddon) Name() string { return "plain" }

func TestBuildRunsAddonHooksInOrder(t *testing.T) {
	p := newProject(t, "name: app\n")
	var log []string
	var mu sync.Mutex
	first := &hookAddon{name: "first", log: &log, mu: &mu}
	second := &hookAddon{name: "second", log: &log, mu: &mu}

	b, err := New(Options{
		Project:    p,
		Engine:     &fakeEngine{dir: t.TempDir(), files: map[string]string{"index.html": "hi"}},
		OutputPath: "dist",
		Addons:     []Addon{first, plainAddon{}, second},
		Trap:       newTrap(t),
	})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), "", "initial")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pre:first", "pre:second",
		"post:first", "post:second",
		"ready:first", "ready:second",
	}, log)

	data, err := os.ReadFile(filepath.Join(p.Root, "dist", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestBuildPreBuildFailureRunsBuildErrorHooks(t *testing.T) {
	p := newProject(t, "name: app\n")
	var log []string
	var mu sync.Mutex
	engine := &fakeEngine{dir: t.TempDir()}
	failing := &hookAddon{name: "failing", log: &log, mu: &mu, preErr: errors.New("nope")}

	b, err := New(Options{Project: p, Engine: engine, Addons: []Addon{failing}, Trap: newTrap(t)})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, kerrors.IsBuildError(err))
	assert.Equal(t, []string{"pre:failing", "error:failing"}, log)
	assert.Equal(t, 0, engine.builds)
	assert.Equal(t, int64(1), b.Metrics().FailedBuilds)
}

func TestBuildEngineErrorIsBuildError(t *testing.T) {
	p := newProject(t, "name: app\n")
	var log []string
	var mu sync.Mutex
	addon := &hookAddon{name: "a", log: &log, mu: &mu}
	engine := &fakeEngine{dir: t.TempDir(), err: errors.New("syntax error")}

	b, err := New(Options{Project: p, Engine: engine, Addons: []Addon{addon}, Trap: newTrap(t)})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), "app/app.js", "rebuild")
	require.Error(t, err)
	assert.True(t, kerrors.IsBuildError(err))
	assert.Equal(t, []string{"pre:a", "error:a"}, log)
}

func TestBuildRejectsUnsafeOutputPath(t *testing.T) {
	p := newProject(t, "name: app\n")
	sentinel := filepath.Join(p.Root, "keep.txt")
	require.NoError(t, os.WriteFile(sentinel, []byte("keep"), 0o644))

	for _, out := range []string{p.Root, filepath.Dir(p.Root), filepath.Dir(filepath.Dir(p.Root))} {
		t.Run(out, func(t *testing.T) {
			var log []string
			var mu sync.Mutex
			addon := &hookAddon{name: "a", log: &log, mu: &mu}
			b, err := New(Options{
				Project:    p,
				Engine:     &fakeEngine{dir: t.TempDir(), files: map[string]string{"index.html": "x"}},
				OutputPath: out,
				Addons:     []Addon{addon},
				Trap:       newTrap(t),
			})
			require.NoError(t, err)

			_, err = b.Build(context.Background(), "", "")
			require.Error(t, err)
			assert.True(t, kerrors.IsSilent(err))
			assert.True(t, kerrors.HasCode(err, kerrors.ErrCodeUnsafeOutputPath))
			assert.Contains(t, err.Error(), "is not supported")
			assert.NotContains(t, log, "ready:a")
			assert.Contains(t, log, "error:a")

			_, statErr := os.Stat(sentinel)
			assert.NoError(t, statErr)
			_, statErr = os.Stat(filepath.Join(out, "index.html"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestCleanupRunsOnceAndOnTrapExit(t *testing.T) {
	p := newProject(t, "name: app\n")
	trap := newTrap(t)
	engine := &fakeEngine{dir: t.TempDir()}

	b, err := New(Options{Project: p, Engine: engine, Trap: trap})
	require.NoError(t, err)
	assert.True(t, trap.Installed())

	trap.Exit(1)
	b.Cleanup()
	b.Cleanup()
	assert.Equal(t, 1, engine.cleanups)
}

func TestNewRequiresProject(t *testing.T) {
	_, err := New(Options{Project: project.Null(), Trap: newTrap(t)})
	require.Error(t, err)
	assert.True(t, kerrors.IsSilent(err))
}

func TestBuildWarnsAboutStaleDependencies(t *testing.T) {
	p := newProject(t, "name: app\nmin_versions:\n  kiln-instrumentation: 2.0.0\n")
	p.PackageJSON = project.PackageJSON{Dependencies: map[string]string{"kiln-instrumentation": "^1.4.0"}}

	var out bytes.Buffer
	b, err := New(Options{
		Project: p,
		Engine:  &fakeEngine{dir: t.TempDir()},
		UI:      ui.New(&out, &out, ui.WithColor(false), ui.WithInteractive(false)),
		Trap:    newTrap(t),
	})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), "", "")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "WARNING: kiln-instrumentation ^1.4.0 is older than the minimum supported version 2.0.0")
}

func TestBuildWritesVisualization(t *testing.T) {
	t.Setenv(VizEnv, "1")
	p := newProject(t, "name: app\n")
	b, err := New(Options{
		Project: p,
		Engine:  &fakeEngine{dir: t.TempDir(), files: map[string]string{"a.js": "1"}},
		Trap:    newTrap(t),
	})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), "", "")
	require.NoError(t, err)
	_, err = b.Build(context.Background(), "a.js", "")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(p.Root, "instrumentation.build.2.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"invalidatedFile": "a.js"`)
	assert.Equal(t, int64(2), b.Metrics().SuccessfulBuilds)
}

func TestExecEngineCopiesSourcesWithoutCommand(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app", "styles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app", "index.html"), []byte("<html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app", "styles", "app.css"), []byte("body{}"), 0o644))

	e := NewExecEngine(root, "", []string{"app", "missing"})
	res, err := e.Build(context.Background(), Request{Count: 1})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(res.Directory, "styles", "app.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	require.NoError(t, e.Cleanup())
	_, err = os.Stat(res.Directory)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, e.Cleanup())
}

func TestExecEngineRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	e := NewExecEngine(t.TempDir(), `printf "$KILN_ENV" > {{output}}/env.txt`, nil)
	t.Cleanup(func() { _ = e.Cleanup() })

	res, err := e.Build(context.Background(), Request{Environment: "production"})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(res.Directory, "env.txt"))
	require.NoError(t, err)
	assert.Equal(t, "production", string(data))

	e.Command = `echo "app/app.js:3:7: Unexpected token" >&2; exit 1`
	_, err = e.Build(context.Background(), Request{})
	require.Error(t, err)
	var ke *kerrors.Error
	require.True(t, errors.As(err, &ke))
	assert.Equal(t, "app/app.js", ke.File)
	assert.Equal(t, 3, ke.Line)
}
