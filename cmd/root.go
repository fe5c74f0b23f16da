package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/cli"
	"github.com/conneroisu/kiln/internal/commands"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/ui"
)

// newRootCommand builds the root command. The exit code of the dispatched
// kiln command is stored in code.
func newRootCommand(out, errOut io.Writer, code *int) *cobra.Command {
	return &cobra.Command{
		Use:   "kiln",
		Short: "Build, serve and test web application projects",
		Long: `kiln builds a web application with an external asset pipeline, serves it
with live reload and runs its tests.

Quick Start:
  kiln new my-app      Create a project
  kiln serve           Build, watch and serve on http://localhost:4200/
  kiln build -prod     Build for production into dist/
  kiln help            List every command`,
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(c *cobra.Command, args []string) error {
			u := ui.New(out, errOut)
			logger := logging.NewLogger(logging.DefaultConfig())

			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			env, err := cli.NewEnv(wd, cli.Home(), u, logger)
			if err != nil {
				u.WriteError(err, false)
				*code = 1
				return nil
			}

			k := &cli.CLI{
				Commands:   commands.All(),
				Env:        env,
				FlushDelay: cli.DefaultFlushDelay(),
				UI:         u,
				Logger:     logger,
			}
			*code, err = k.Run(c.Context(), args)
			return err
		},
	}
}

// Execute runs kiln with the process arguments and returns the exit code.
func Execute() int {
	var code int
	root := newRootCommand(os.Stdout, os.Stderr, &code)
	if err := root.ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return code
}
