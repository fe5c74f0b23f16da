// Package commands holds the kiln command table. Every command is a thin
// definition that hands its resolved options to a task.
package commands

import (
	"github.com/conneroisu/kiln/internal/command"
	"github.com/conneroisu/kiln/internal/watcher"
)

// All returns every built-in command in help order.
func All() []command.Command {
	return []command.Command{
		&Build{},
		&Serve{},
		&Test{},
		&Install{},
		&InstallNPM{},
		&UninstallNPM{},
		&New{},
		&Help{},
		&Version{},
	}
}

func environmentOption(def string) command.Option {
	return command.Option{
		Name:        "environment",
		Kind:        command.StringOpt,
		Default:     def,
		Description: "Possible values are \"development\", \"production\", and \"test\".",
		Aliases: []command.Alias{
			{Token: "e"},
			{Token: "dev", Value: "development"},
			{Token: "prod", Value: "production"},
		},
	}
}

func outputPathOption(def interface{}) command.Option {
	return command.Option{
		Name:        "output-path",
		Kind:        command.PathOpt,
		Default:     def,
		Aliases:     []command.Alias{{Token: "o"}},
		Description: "Directory the build output is synced into.",
	}
}

func watcherOption() command.Option {
	return command.Option{
		Name:        "watcher",
		Kind:        command.EnumOpt,
		Values:      []string{watcher.BackendEvents, watcher.BackendPolling, watcher.BackendNode, watcher.BackendWatchman},
		Description: "File system watcher. Defaults to the project's watcher setting, then auto-detection.",
	}
}

func packageManagerOption() command.Option {
	return command.Option{
		Name:        "package-manager",
		Kind:        command.EnumOpt,
		Values:      []string{"npm", "yarn", "pnpm"},
		Description: "Package manager to use. Detected from the lockfile when omitted.",
	}
}
