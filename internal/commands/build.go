package commands

import (
	"context"

	"github.com/conneroisu/kiln/internal/command"
	"github.com/conneroisu/kiln/internal/task"
)

// Build runs one build, or keeps rebuilding with --watch.
type Build struct{}

// Definition implements command.Command.
func (*Build) Definition() command.Definition {
	return command.Definition{
		Name:        "build",
		Aliases:     []string{"b"},
		Works:       command.InsideProject,
		Description: "Builds your app and places it into the output path (dist/ by default).",
		Options: []command.Option{
			environmentOption("development"),
			outputPathOption("dist/"),
			{Name: "watch", Kind: command.BooleanOpt, Default: false, Aliases: []command.Alias{{Token: "w"}}},
			watcherOption(),
		},
	}
}

// Run implements command.Command.
func (*Build) Run(ctx context.Context, inv command.Invocation) error {
	name := task.Build
	if inv.Options.Bool("watch") {
		name = task.BuildWatch
	}
	return inv.Env.RunTask(ctx, name, inv.Options)
}

// Serve runs the development server.
type Serve struct{}

// Definition implements command.Command.
func (*Serve) Definition() command.Definition {
	return command.Definition{
		Name:        "serve",
		Aliases:     []string{"server", "s"},
		Works:       command.InsideProject,
		Description: "Builds and serves your app, rebuilding on file changes.",
		Options: []command.Option{
			{Name: "port", Kind: command.NumberOpt, Aliases: []command.Alias{{Token: "p"}},
				Description: "Defaults to server.port in kiln.yml (4200)."},
			{Name: "host", Kind: command.StringOpt, Aliases: []command.Alias{{Token: "H"}},
				Description: "Listens on all interfaces by default."},
			{Name: "proxy", Kind: command.StringOpt, Aliases: []command.Alias{{Token: "pr"}, {Token: "pxy"}},
				Description: "Forwards requests that match no built file."},
			{Name: "live-reload", Kind: command.BooleanOpt, Default: true, Aliases: []command.Alias{{Token: "lr"}}},
			{Name: "live-reload-host", Kind: command.StringOpt, Aliases: []command.Alias{{Token: "lrh"}},
				Description: "Defaults to host."},
			{Name: "live-reload-port", Kind: command.NumberOpt, Aliases: []command.Alias{{Token: "lrp"}},
				Description: "Defaults to server.live_reload_port in kiln.yml (35729)."},
			{Name: "ssl", Kind: command.BooleanOpt, Default: false},
			{Name: "ssl-key", Kind: command.PathOpt, Default: "ssl/server.key"},
			{Name: "ssl-cert", Kind: command.PathOpt, Default: "ssl/server.crt"},
			environmentOption("development"),
			outputPathOption("dist/"),
			watcherOption(),
		},
	}
}

// Run implements command.Command.
func (*Serve) Run(ctx context.Context, inv command.Invocation) error {
	return inv.Env.RunTask(ctx, task.Serve, inv.Options)
}

// Test builds the app and runs the test command against it.
type Test struct{}

// Definition implements command.Command.
func (*Test) Definition() command.Definition {
	return command.Definition{
		Name:        "test",
		Aliases:     []string{"t"},
		Works:       command.InsideProject,
		Description: "Runs your app's test suite.",
		Options: []command.Option{
			environmentOption("test"),
			{Name: "config-file", Kind: command.PathOpt, Aliases: []command.Alias{{Token: "c"}, {Token: "cf"}}},
			{Name: "server", Kind: command.BooleanOpt, Default: false, Aliases: []command.Alias{{Token: "s"}},
				Description: "Keeps rebuilding and rerunning the tests on change."},
			{Name: "port", Kind: command.NumberOpt, Default: 7357,
				Description: "Exported to the test command as KILN_TEST_PORT."},
			outputPathOption(nil),
			watcherOption(),
		},
	}
}

// Run implements command.Command.
func (*Test) Run(ctx context.Context, inv command.Invocation) error {
	return inv.Env.RunTask(ctx, task.Test, inv.Options)
}
