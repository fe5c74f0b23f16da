package cli

import (
	"context"
	"os"

	"github.com/conneroisu/kiln/internal/analytics"
	"github.com/conneroisu/kiln/internal/command"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/process"
	"github.com/conneroisu/kiln/internal/project"
	"github.com/conneroisu/kiln/internal/settings"
	"github.com/conneroisu/kiln/internal/task"
	"github.com/conneroisu/kiln/internal/ui"
)

// NewEnv discovers the project containing dir and loads settings from it
// and from home. Either may be absent.
func NewEnv(dir, home string, u *ui.UI, logger logging.Logger) (*command.Env, error) {
	p, err := project.Find(dir)
	if err != nil {
		return nil, err
	}
	var root string
	if p.IsProject() {
		root = p.Root
	}
	s, err := settings.Load(root, home)
	if err != nil {
		return nil, err
	}
	logger.Debug(context.Background(), "environment loaded", "project", root, "settings", s.Len())

	return &command.Env{
		Deps: task.Deps{
			UI:        u,
			Analytics: analytics.NewLogTracker(logger),
			Project:   p,
			Logger:    logger,
			Trap:      process.Default(),
			Tasks:     task.Default(),
		},
		Settings: s,
	}, nil
}

// Home returns the user's home directory, or "" when unknown.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
