// Package addons turns the addons declared in kiln.yml into build hooks.
package addons

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/config"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/logging"
)

// Runner executes one hook command in dir with extra environment.
type Runner func(ctx context.Context, dir, command string, env []string) ([]byte, error)

// ShellRunner runs command through the platform shell.
func ShellRunner(ctx context.Context, dir, command string, env []string) ([]byte, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// ExecAddon runs shell commands for build hooks and adds response headers.
type ExecAddon struct {
	cfg    config.AddonConfig
	root   string
	run    Runner
	logger logging.Logger
}

// NewExecAddon creates an addon rooted at the project root.
func NewExecAddon(cfg config.AddonConfig, root string, run Runner, logger logging.Logger) *ExecAddon {
	if run == nil {
		run = ShellRunner
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ExecAddon{
		cfg:    cfg,
		root:   root,
		run:    run,
		logger: logger.WithComponent("addon").With("addon", cfg.Name),
	}
}

// FromConfig builds one ExecAddon per kiln.yml entry, in declaration order.
func FromConfig(cfgs []config.AddonConfig, root string, run Runner, logger logging.Logger) []build.Addon {
	out := make([]build.Addon, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, NewExecAddon(c, root, run, logger))
	}
	return out
}

// Name implements build.Addon.
func (a *ExecAddon) Name() string { return a.cfg.Name }

func (a *ExecAddon) hook(ctx context.Context, name, command string, env ...string) error {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	env = append(env, "KILN_ADDON="+a.cfg.Name, "KILN_HOOK="+name)
	out, err := a.run(ctx, a.root, command, env)
	a.logger.Debug(ctx, "hook finished", "hook", name, "output", strings.TrimSpace(string(out)))
	if err != nil {
		return kerrors.NewBuildError(kerrors.ErrCodeBuildFailed,
			fmt.Sprintf("addon %s %s hook failed: %s", a.cfg.Name, name, strings.TrimSpace(string(out))), err)
	}
	return nil
}

// PreBuild implements build.PreBuilder.
func (a *ExecAddon) PreBuild(ctx context.Context, req build.Request) error {
	return a.hook(ctx, "pre_build", a.cfg.PreBuild,
		"KILN_ENV="+req.Environment, "KILN_INVALIDATED_FILE="+req.InvalidatedFile)
}

// PostBuild implements build.PostBuilder.
func (a *ExecAddon) PostBuild(ctx context.Context, res build.Result) error {
	return a.hook(ctx, "post_build", a.cfg.PostBuild, "KILN_OUTPUT_DIR="+res.Directory)
}

// OutputReady implements build.OutputReadier.
func (a *ExecAddon) OutputReady(ctx context.Context, res build.Result) error {
	return a.hook(ctx, "output_ready", a.cfg.OutputReady, "KILN_OUTPUT_DIR="+res.Directory)
}

// BuildError implements build.BuildErrorer. Hook failures are logged.
func (a *ExecAddon) BuildError(ctx context.Context, buildErr error) {
	if err := a.hook(ctx, "build_error", a.cfg.BuildError, "KILN_BUILD_ERROR="+buildErr.Error()); err != nil {
		a.logger.Warn(ctx, err, "build_error hook failed")
	}
}

// ServerMiddleware implements build.ServerMiddlewarer.
func (a *ExecAddon) ServerMiddleware(next http.Handler) http.Handler {
	if len(a.cfg.Headers) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range a.cfg.Headers {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
