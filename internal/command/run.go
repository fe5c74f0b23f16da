package command

import (
	"context"
	"fmt"
	"os"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/opts"
)

// EnvironmentVar overrides the environment option when set.
const EnvironmentVar = "KILN_ENV"

// ValidateAndRun parses args against the command's options, resolves
// every option (command line, then settings, then default), enforces the
// project precondition, records the command and runs it. Required options
// and the precondition are checked before Run is reached.
//
// Paths given on the command line are relative to the working directory;
// paths from settings or defaults are relative to the project root.
func ValidateAndRun(ctx context.Context, cmd Command, env *Env, args []string) error {
	if IsUnknown(cmd) {
		return cmd.Run(ctx, Invocation{Env: env, Args: args})
	}
	if isHelp(args) {
		return ErrHelpRequested
	}

	def := cmd.Definition()
	if err := Validate(def); err != nil {
		return err
	}

	fs := flagSet(def)
	if err := fs.Parse(expandAliases(def, args)); err != nil {
		return kerrors.NewSilentError(kerrors.ErrCodeInvalidOption,
			fmt.Sprintf("%s. For available options, see `kiln help %s`.", err, def.Name))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	base := cwd
	if env.Project != nil && env.Project.IsProject() {
		base = env.Project.Root
	}

	values := opts.Values{}
	for _, o := range def.Options {
		var (
			v        interface{}
			found    bool
			relative = base
		)
		if fs.Changed(o.Name) {
			v, err = cliValue(fs, o)
			if err != nil {
				return err
			}
			found, relative = true, cwd
		} else if sv, ok := env.Settings.Get(o.Name); ok {
			v, err = coerce(o, sv)
			if err != nil {
				return kerrors.NewSilentError(kerrors.ErrCodeInvalidOption,
					fmt.Sprintf("The setting `%s` is invalid: %v", o.Name, err))
			}
			found = true
		} else if o.Default != nil {
			v, err = coerce(o, o.Default)
			if err != nil {
				return err
			}
			found = true
		}

		if !found {
			if o.Required {
				return kerrors.NewSilentError(kerrors.ErrCodeMissingOption,
					fmt.Sprintf("The specified command %s requires the option `--%s`.", def.Name, o.Name))
			}
			continue
		}
		v, err = finish(def, o, v, relative)
		if err != nil {
			return err
		}
		values[o.Name] = v
	}

	positional := fs.Args()
	for i, a := range def.Anonymous {
		if a.Required && len(positional) <= i {
			return kerrors.NewSilentError(kerrors.ErrCodeMissingOption,
				fmt.Sprintf("The specified command %s requires the argument `<%s>`.", def.Name, a.Name))
		}
	}

	if err := checkWorks(def, env); err != nil {
		return err
	}

	if e := os.Getenv(EnvironmentVar); e != "" {
		if _, ok := def.Option("environment"); ok {
			values["environment"] = e
		}
	}

	if env.Analytics != nil {
		env.Analytics.TrackCommand(def.Name)
	}

	return cmd.Run(ctx, Invocation{Env: env, Options: values, Args: positional})
}

func checkWorks(def Definition, env *Env) error {
	inside := env.Project != nil && env.Project.IsProject()
	switch def.Works {
	case InsideProject:
		if !inside {
			return kerrors.NewSilentError(kerrors.ErrCodeOutsideProject,
				fmt.Sprintf("You have to be inside a kiln project to use the %s command.", def.Name))
		}
	case OutsideProject:
		if inside {
			return kerrors.NewSilentError(kerrors.ErrCodeInsideProject,
				fmt.Sprintf("You cannot use the %s command inside a kiln project.", def.Name))
		}
	}
	return nil
}
