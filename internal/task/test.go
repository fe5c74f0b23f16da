package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/conneroisu/kiln/internal/build"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/opts"
)

// Environment passed to the test command.
const (
	TestConfigEnv = "KILN_TEST_CONFIG"
	TestPortEnv   = "KILN_TEST_PORT"
)

type testTask struct{ d Deps }

func newTestTask(d Deps) Task { return &testTask{d: d} }

// Run builds into a scratch directory and runs the test command once
// against it. With the server option it hands off to test-server.
func (t *testTask) Run(ctx context.Context, o opts.Values) error {
	if o.Bool("server") {
		next, err := t.d.Tasks.New(TestServer, t.d)
		if err != nil {
			return err
		}
		return next.Run(ctx, o)
	}

	o, cleanup, err := withTestOutput(t.d, o)
	if err != nil {
		return err
	}
	defer cleanup()

	b, err := newBuilder(t.d, o)
	if err != nil {
		return err
	}
	defer b.Cleanup()

	if _, err := b.Build(ctx, "", "test build"); err != nil {
		t.d.UI.WriteErrorLine("Build failed.")
		return err
	}
	return runTests(ctx, t.d, o, b.OutputPath())
}

type testServerTask struct{ d Deps }

func newTestServerTask(d Deps) Task { return &testServerTask{d: d} }

// Run reruns the test command after every successful build until ctx ends.
func (t *testServerTask) Run(ctx context.Context, o opts.Values) error {
	o, cleanup, err := withTestOutput(t.d, o)
	if err != nil {
		return err
	}
	defer cleanup()

	b, err := newBuilder(t.d, o)
	if err != nil {
		return err
	}
	defer b.Cleanup()

	w, err := newWatcher(ctx, t.d, o, b)
	if err != nil {
		return err
	}
	changes := w.Changes()
	if err := w.Start(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := runTests(ctx, t.d, o, b.OutputPath()); err != nil {
				t.d.UI.WriteError(err, false)
			}
		}
	}
}

// withTestOutput points output-path at a fresh directory under tmp/ unless
// the caller chose one. The returned cleanup removes that directory.
func withTestOutput(d Deps, o opts.Values) (opts.Values, func(), error) {
	if o.String("output-path") != "" || !d.Project.IsProject() {
		return o, func() {}, nil
	}
	parent := filepath.Join(d.Project.Root, "tmp")
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return o, nil, err
	}
	dir, err := os.MkdirTemp(parent, "tests-dist-")
	if err != nil {
		return o, nil, err
	}
	o = o.Clone()
	o["output-path"] = dir
	return o, func() { _ = os.RemoveAll(dir) }, nil
}

func runTests(ctx context.Context, d Deps, o opts.Values, output string) error {
	command := d.Project.Config.Test.Command
	if command == "" {
		return kerrors.NewConfigError(kerrors.ErrCodeMissingOption,
			"No test command is configured. Set `test.command` in kiln.yml.")
	}
	command = strings.ReplaceAll(command, build.OutputPlaceholder, output)

	env := []string{"KILN_OUTPUT_DIR=" + output}
	if cfg := o.String("config-file"); cfg != "" {
		env = append(env, TestConfigEnv+"="+cfg)
	}
	if o.Has("port") {
		env = append(env, TestPortEnv+"="+strconv.Itoa(o.Int("port")))
	}

	out, err := d.Shell(ctx, d.Project.Root, command, env)
	if len(out) > 0 {
		d.UI.WriteLine("%s", strings.TrimRight(string(out), "\n"))
	}
	if err != nil {
		d.Analytics.TrackError(err)
		return kerrors.NewSilentError(kerrors.ErrCodeBuildFailed, fmt.Sprintf("Tests failed: %v", err))
	}
	d.UI.WriteSuccessLine("Tests passed.")
	return nil
}
