// Package cli dispatches a raw argument list to a command and turns its
// outcome into an exit code.
package cli

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/conneroisu/kiln/internal/command"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/ui"
)

// VerbosePrefix prefixes the variables set by --verbose <name>.
const VerbosePrefix = "KILN_VERBOSE_"

// DefaultFlushDelay gives Windows consoles time to flush stdout before the
// process exits.
func DefaultFlushDelay() time.Duration {
	if runtime.GOOS == "windows" {
		return 250 * time.Millisecond
	}
	return 0
}

// CLI is the top-level dispatcher.
type CLI struct {
	Commands []command.Command
	Env      *command.Env
	// Testing returns command errors to the caller instead of only
	// reporting them.
	Testing    bool
	FlushDelay time.Duration
	UI         *ui.UI
	Logger     logging.Logger
}

// Run dispatches args and returns the process exit code.
func (c *CLI) Run(ctx context.Context, args []string) (int, error) {
	if c.FlushDelay > 0 {
		defer time.Sleep(c.FlushDelay)
	}
	c.defaults()

	args = extractVerbose(args)
	name, rest := "help", []string(nil)
	if len(args) > 0 {
		name, rest = args[0], args[1:]
	}
	c.Logger.Debug(ctx, "dispatching", "command", name, "args", rest)

	cmd := command.Lookup(c.Commands, name)
	err := command.ValidateAndRun(ctx, cmd, c.Env, rest)
	if errors.Is(err, command.ErrHelpRequested) {
		help := command.Lookup(c.Commands, "help")
		err = command.ValidateAndRun(ctx, help, c.Env, helpArgs(cmd.Definition().Name, rest))
	}
	if err != nil {
		return c.handle(ctx, err)
	}
	return 0, nil
}

func (c *CLI) defaults() {
	if c.Env == nil {
		c.Env = &command.Env{}
	}
	if c.Env.Commands == nil {
		c.Env.Commands = c.Commands
	}
	if c.UI == nil {
		c.UI = c.Env.UI
	}
	if c.UI == nil {
		c.UI = ui.NewStd()
	}
	if c.Env.UI == nil {
		c.Env.UI = c.UI
	}
	if c.Logger == nil {
		c.Logger = c.Env.Logger
	}
	if c.Logger == nil {
		c.Logger = logging.NewNopLogger()
	}
	c.Logger = c.Logger.WithComponent("cli")
	c.Env.Deps = c.Env.Deps.WithDefaults()
}

// handle is the single sink for command failures.
func (c *CLI) handle(ctx context.Context, err error) (int, error) {
	c.UI.WriteError(err, os.Getenv(VerbosePrefix+"ERRORS") != "")
	c.Logger.Debug(ctx, "command failed", "error", err.Error())
	if c.Testing {
		return 1, err
	}
	return 1, nil
}

// helpArgs keeps the command name and the --json switch for help.
func helpArgs(name string, rest []string) []string {
	out := []string{name}
	for _, a := range rest {
		if a == "--json" {
			out = append(out, a)
		}
	}
	return out
}

// extractVerbose removes "--verbose <name>" and "--verbose=<name>" pairs
// and exports KILN_VERBOSE_<NAME>=true for each. A bare --verbose is left
// for the command.
func extractVerbose(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if v, ok := strings.CutPrefix(arg, "--verbose="); ok && v != "" {
			setVerbose(v)
			continue
		}
		if arg == "--verbose" && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			setVerbose(args[i+1])
			i++
			continue
		}
		out = append(out, arg)
	}
	return out
}

func setVerbose(name string) {
	key := VerbosePrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	_ = os.Setenv(key, "true")
}
