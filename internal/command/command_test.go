package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/analytics"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/project"
	"github.com/conneroisu/kiln/internal/settings"
	"github.com/conneroisu/kiln/internal/task"
	"github.com/conneroisu/kiln/internal/testutils"
	"github.com/conneroisu/kiln/internal/ui"
)

type fakeCommand struct {
	def  Definition
	runs int
	inv  Invocation
}

func (c *fakeCommand) Definition() Definition { return c.def }

func (c *fakeCommand) Run(_ context.Context, inv Invocation) error {
	c.runs++
	c.inv = inv
	return nil
}

func buildDefinition() Definition {
	return Definition{
		Name:    "build",
		Aliases: []string{"b"},
		Works:   InsideProject,
		Options: []Option{
			{Name: "environment", Kind: StringOpt, Default: "development", Aliases: []Alias{
				{Token: "e"},
				{Token: "dev", Value: "development"},
				{Token: "prod", Value: "production"},
			}},
			{Name: "output-path", Kind: PathOpt, Default: "dist/", Aliases: []Alias{{Token: "o"}}},
			{Name: "watch", Kind: BooleanOpt, Default: false, Aliases: []Alias{{Token: "w"}}},
			{Name: "watcher", Kind: EnumOpt, Values: []string{"events", "polling", "node", "watchman"}},
			{Name: "port", Kind: NumberOpt, Default: 4200},
			{Name: "include", Kind: ListOpt},
		},
	}
}

func newProject(t *testing.T) *project.Project {
	t.Helper()
	return testutils.LoadProject(t, testutils.MinimalConfig, nil)
}

func newEnv(p *project.Project, s *settings.Settings) *Env {
	return &Env{
		Deps:     task.Deps{UI: ui.Discard(), Project: p, Analytics: &analytics.Recorder{}},
		Settings: s,
	}
}

func TestLookup(t *testing.T) {
	build := &fakeCommand{def: buildDefinition()}
	cmds := []Command{build}

	assert.Same(t, build, Lookup(cmds, "build"))
	assert.Same(t, build, Lookup(cmds, "b"))

	unknown := Lookup(cmds, "foo")
	require.True(t, IsUnknown(unknown))
	assert.Equal(t, "foo", unknown.Definition().Name)
}

func TestUnknownCommand(t *testing.T) {
	build := &fakeCommand{def: buildDefinition()}
	cmd := Lookup([]Command{build}, "foo")

	err := ValidateAndRun(context.Background(), cmd, newEnv(project.Null(), nil), []string{"--whatever"})
	require.Error(t, err)
	assert.Regexp(t, `The specified command .*foo.* is invalid`, err.Error())
	assert.True(t, kerrors.IsSilent(err))
	assert.Zero(t, build.runs)
}

func TestAliasExpansion(t *testing.T) {
	def := buildDefinition()
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"value alias", []string{"-prod"}, []string{"--environment=production"}},
		{"bare alias", []string{"-o", "out"}, []string{"--output-path", "out"}},
		{"bare alias inline", []string{"-e=staging"}, []string{"--environment=staging"}},
		{"long flags untouched", []string{"--watch", "x"}, []string{"--watch", "x"}},
		{"unknown short untouched", []string{"-z"}, []string{"-z"}},
		{"stops at terminator", []string{"--", "-prod"}, []string{"--", "-prod"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandAliases(def, tt.args))
		})
	}
}

func TestValidateAndRunParsesTypedOptions(t *testing.T) {
	p := newProject(t)
	t.Chdir(p.Root)
	cmd := &fakeCommand{def: buildDefinition()}
	env := newEnv(p, nil)

	err := ValidateAndRun(context.Background(), cmd, env, []string{
		"-prod", "-o", "out/", "-w", "--watcher", "polling", "--port", "9000",
		"--include", "a", "--include", "b", "extra",
	})
	require.NoError(t, err)
	require.Equal(t, 1, cmd.runs)

	o := cmd.inv.Options
	assert.Equal(t, "production", o.String("environment"))
	assert.Equal(t, filepath.Join(p.Root, "out"), o.String("output-path"))
	assert.True(t, o.Bool("watch"))
	assert.Equal(t, "polling", o.String("watcher"))
	assert.Equal(t, 9000, o.Int("port"))
	assert.Equal(t, []string{"a", "b"}, o.Strings("include"))
	assert.Equal(t, []string{"extra"}, cmd.inv.Args)
	assert.Same(t, env, cmd.inv.Env)

	rec := env.Analytics.(*analytics.Recorder)
	require.Len(t, rec.Kind("command"), 1)
	assert.Equal(t, "build", rec.Kind("command")[0].Action)
}

func TestValidateAndRunDefaults(t *testing.T) {
	p := newProject(t)
	t.Chdir(t.TempDir())
	cmd := &fakeCommand{def: buildDefinition()}

	require.NoError(t, ValidateAndRun(context.Background(), cmd, newEnv(p, nil), nil))

	o := cmd.inv.Options
	assert.Equal(t, "development", o.String("environment"))
	assert.Equal(t, filepath.Join(p.Root, "dist"), o.String("output-path"), "default paths are relative to the project root")
	assert.False(t, o.Bool("watch"))
	assert.Equal(t, 4200, o.Int("port"))
	assert.False(t, o.Has("watcher"))
}

func TestOptionPrecedence(t *testing.T) {
	p := newProject(t)
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".kilnrc"),
		[]byte(`{"environment": "home", "port": 1000, "watch": true}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(p.Root, ".kilnrc"),
		[]byte(`{"environment": "local", "port": 2000}`), 0o644))
	s, err := settings.Load(p.Root, home)
	require.NoError(t, err)
	t.Chdir(p.Root)

	cmd := &fakeCommand{def: buildDefinition()}
	require.NoError(t, ValidateAndRun(context.Background(), cmd, newEnv(p, s), []string{"--port", "3000"}))

	o := cmd.inv.Options
	assert.Equal(t, 3000, o.Int("port"), "command line beats settings")
	assert.Equal(t, "local", o.String("environment"), "project settings beat home settings")
	assert.True(t, o.Bool("watch"), "home settings beat defaults")
}

func TestEnvironmentVariableOverridesOption(t *testing.T) {
	p := newProject(t)
	t.Chdir(p.Root)
	t.Setenv(EnvironmentVar, "test")

	cmd := &fakeCommand{def: buildDefinition()}
	require.NoError(t, ValidateAndRun(context.Background(), cmd, newEnv(p, nil), []string{"-prod"}))
	assert.Equal(t, "test", cmd.inv.Options.String("environment"))
}

func TestRequiredOptionMissing(t *testing.T) {
	cmd := &fakeCommand{def: Definition{
		Name:    "install:npm",
		Works:   Everywhere,
		Options: []Option{{Name: "package-name", Kind: StringOpt, Required: true}},
	}}

	err := ValidateAndRun(context.Background(), cmd, newEnv(project.Null(), nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires the option")
	assert.Contains(t, err.Error(), "package-name")
	assert.True(t, kerrors.IsSilent(err))
	assert.Zero(t, cmd.runs)
}

func TestRequiredArgumentMissing(t *testing.T) {
	cmd := &fakeCommand{def: Definition{
		Name:      "new",
		Works:     OutsideProject,
		Anonymous: []Anonymous{{Name: "app-name", Required: true}},
	}}

	err := ValidateAndRun(context.Background(), cmd, newEnv(project.Null(), nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app-name")
	assert.Zero(t, cmd.runs)
}

func TestWorksPrecondition(t *testing.T) {
	inside := newProject(t)
	outside := project.Null()

	tests := []struct {
		works   Works
		project *project.Project
		wantErr string
	}{
		{InsideProject, outside, "You have to be inside a kiln project to use the probe command."},
		{InsideProject, inside, ""},
		{OutsideProject, inside, "You cannot use the probe command inside a kiln project."},
		{OutsideProject, outside, ""},
		{Everywhere, inside, ""},
		{Everywhere, outside, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.works), func(t *testing.T) {
			cmd := &fakeCommand{def: Definition{Name: "probe", Works: tt.works}}
			err := ValidateAndRun(context.Background(), cmd, newEnv(tt.project, nil), nil)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, 1, cmd.runs)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.True(t, kerrors.IsSilent(err))
			assert.Zero(t, cmd.runs)
		})
	}
}

func TestInvalidInput(t *testing.T) {
	p := newProject(t)
	t.Chdir(p.Root)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"enum", []string{"--watcher", "inotify"}, "must be one of: events, polling, node, watchman"},
		{"unknown flag", []string{"--nope"}, "unknown flag: --nope"},
		{"bad number", []string{"--port", "many"}, "invalid argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &fakeCommand{def: buildDefinition()}
			err := ValidateAndRun(context.Background(), cmd, newEnv(p, nil), tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, kerrors.IsSilent(err))
			assert.Zero(t, cmd.runs)
		})
	}
}

func TestHelpRequested(t *testing.T) {
	cmd := &fakeCommand{def: buildDefinition()}
	for _, args := range [][]string{{"--help"}, {"-prod", "-h"}} {
		err := ValidateAndRun(context.Background(), cmd, newEnv(project.Null(), nil), args)
		assert.ErrorIs(t, err, ErrHelpRequested)
	}
	assert.Zero(t, cmd.runs)
}

func TestValidateDefinition(t *testing.T) {
	assert.NoError(t, Validate(buildDefinition()))

	tests := []struct {
		name string
		def  Definition
	}{
		{"missing name", Definition{Works: Everywhere}},
		{"bad works", Definition{Name: "x", Works: "sometimes"}},
		{"camel option", Definition{Name: "x", Works: Everywhere, Options: []Option{{Name: "outputPath", Kind: StringOpt}}}},
		{"no kind", Definition{Name: "x", Works: Everywhere, Options: []Option{{Name: "port"}}}},
		{"enum without values", Definition{Name: "x", Works: Everywhere, Options: []Option{{Name: "mode", Kind: EnumOpt}}}},
		{"duplicate option", Definition{Name: "x", Works: Everywhere, Options: []Option{
			{Name: "port", Kind: NumberOpt}, {Name: "port", Kind: NumberOpt},
		}}},
		{"duplicate alias", Definition{Name: "x", Works: Everywhere, Options: []Option{
			{Name: "port", Kind: NumberOpt, Aliases: []Alias{{Token: "p"}}},
			{Name: "proxy", Kind: StringOpt, Aliases: []Alias{{Token: "p"}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate(tt.def))
		})
	}
}

func TestUsage(t *testing.T) {
	assert.Equal(t, "kiln build <options...>", Usage(buildDefinition()))
	assert.Equal(t, "kiln new <app-name>", Usage(Definition{
		Name:      "new",
		Anonymous: []Anonymous{{Name: "app-name", Required: true}},
	}))
}
