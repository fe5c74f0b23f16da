// Package npm runs the project's package manager.
package npm

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// Manager names.
const (
	NPM  = "npm"
	Yarn = "yarn"
	PNPM = "pnpm"
)

var lockfiles = []struct {
	file    string
	manager string
}{
	{"pnpm-lock.yaml", PNPM},
	{"yarn.lock", Yarn},
	{"package-lock.json", NPM},
}

// Detect picks the package manager: an explicit choice wins, then the
// lockfile in root, then npm.
func Detect(root, explicit string) (string, error) {
	switch explicit {
	case NPM, Yarn, PNPM:
		return explicit, nil
	case "":
	default:
		return "", kerrors.NewSilentError(kerrors.ErrCodeInvalidOption,
			fmt.Sprintf("The package manager %q is not supported. Use npm, yarn or pnpm.", explicit))
	}
	for _, l := range lockfiles {
		if _, err := os.Stat(filepath.Join(root, l.file)); err == nil {
			return l.manager, nil
		}
	}
	return NPM, nil
}

// Options describes one install or uninstall.
type Options struct {
	Packages  []string
	SaveDev   bool
	SaveExact bool
}

// InstallArgs returns the argv for installing with manager.
func InstallArgs(manager string, o Options) []string {
	if len(o.Packages) == 0 {
		return []string{"install"}
	}
	var args []string
	switch manager {
	case Yarn, PNPM:
		args = []string{"add"}
		if o.SaveDev {
			args = append(args, "--dev")
		}
		if o.SaveExact {
			args = append(args, "--exact")
		}
	default:
		args = []string{"install"}
		if o.SaveDev {
			args = append(args, "--save-dev")
		} else {
			args = append(args, "--save")
		}
		if o.SaveExact {
			args = append(args, "--save-exact")
		}
	}
	return append(args, o.Packages...)
}

// UninstallArgs returns the argv for removing packages with manager.
func UninstallArgs(manager string, o Options) []string {
	switch manager {
	case Yarn, PNPM:
		return append([]string{"remove"}, o.Packages...)
	default:
		return append([]string{"uninstall", "--save"}, o.Packages...)
	}
}

// Runner executes a package manager command in dir.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs commands as subprocesses with output forwarded.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return kerrors.NewIOError(kerrors.ErrCodeInternalError,
			fmt.Sprintf("`%s %s` failed", name, strings.Join(args, " ")), err)
	}
	return nil
}
