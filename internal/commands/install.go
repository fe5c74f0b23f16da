package commands

import (
	"context"

	"github.com/conneroisu/kiln/internal/command"
	"github.com/conneroisu/kiln/internal/opts"
	"github.com/conneroisu/kiln/internal/task"
)

// Install adds addons and runs their default blueprints.
type Install struct{}

// Definition implements command.Command.
func (*Install) Definition() command.Definition {
	return command.Definition{
		Name:        "install",
		Aliases:     []string{"i"},
		Works:       command.InsideProject,
		Description: "Installs an addon package and runs its default blueprint.",
		Anonymous:   []command.Anonymous{{Name: "addon-name"}},
		Options: []command.Option{
			{Name: "save-dev", Kind: command.BooleanOpt, Default: true, Aliases: []command.Alias{{Token: "D"}}},
			{Name: "save-exact", Kind: command.BooleanOpt, Default: false, Aliases: []command.Alias{{Token: "E"}, {Token: "exact"}}},
			packageManagerOption(),
		},
	}
}

// Run implements command.Command.
func (*Install) Run(ctx context.Context, inv command.Invocation) error {
	return inv.Env.RunTask(ctx, task.Install, withPackages(inv))
}

// InstallNPM installs plain packages.
type InstallNPM struct{}

// Definition implements command.Command.
func (*InstallNPM) Definition() command.Definition {
	return command.Definition{
		Name:        "install:npm",
		Works:       command.InsideProject,
		Description: "Installs packages with the project's package manager.",
		Anonymous:   []command.Anonymous{{Name: "package-names"}},
		Options: []command.Option{
			{Name: "save-dev", Kind: command.BooleanOpt, Default: true, Aliases: []command.Alias{{Token: "D"}}},
			{Name: "save-exact", Kind: command.BooleanOpt, Default: false, Aliases: []command.Alias{{Token: "E"}, {Token: "exact"}}},
			packageManagerOption(),
		},
	}
}

// Run implements command.Command.
func (*InstallNPM) Run(ctx context.Context, inv command.Invocation) error {
	return inv.Env.RunTask(ctx, task.NPMInstall, withPackages(inv))
}

// UninstallNPM removes packages.
type UninstallNPM struct{}

// Definition implements command.Command.
func (*UninstallNPM) Definition() command.Definition {
	return command.Definition{
		Name:        "uninstall:npm",
		Works:       command.InsideProject,
		Description: "Removes packages with the project's package manager.",
		Anonymous:   []command.Anonymous{{Name: "package-names", Required: true}},
		Options:     []command.Option{packageManagerOption()},
	}
}

// Run implements command.Command.
func (*UninstallNPM) Run(ctx context.Context, inv command.Invocation) error {
	return inv.Env.RunTask(ctx, task.NPMUninstall, withPackages(inv))
}

func withPackages(inv command.Invocation) opts.Values {
	o := inv.Options.Clone()
	o["packages"] = append([]string(nil), inv.Args...)
	return o
}

// New creates a project in a new directory.
type New struct{}

// Definition implements command.Command.
func (*New) Definition() command.Definition {
	return command.Definition{
		Name:        "new",
		Works:       command.OutsideProject,
		Description: "Creates a new directory and initializes a kiln project in it.",
		Anonymous:   []command.Anonymous{{Name: "app-name", Required: true}},
		Options: []command.Option{
			{Name: "blueprint", Kind: command.StringOpt, Default: "app", Aliases: []command.Alias{{Token: "b"}}},
			{Name: "skip-npm", Kind: command.BooleanOpt, Default: false, Aliases: []command.Alias{{Token: "sn"}}},
			{Name: "directory", Kind: command.StringOpt, Aliases: []command.Alias{{Token: "dir"}}},
			packageManagerOption(),
		},
	}
}

// Run implements command.Command.
func (*New) Run(ctx context.Context, inv command.Invocation) error {
	o := inv.Options.Clone()
	o["app-name"] = inv.Args[0]
	return inv.Env.RunTask(ctx, task.CreateProject, o)
}
