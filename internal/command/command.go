// Package command defines the CLI verb model: option schemas, alias
// expansion, option resolution against persisted settings and the project
// precondition every command declares.
package command

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/opts"
	"github.com/conneroisu/kiln/internal/settings"
	"github.com/conneroisu/kiln/internal/task"
)

// Works is the project precondition of a command.
type Works string

const (
	InsideProject  Works = "insideProject"
	OutsideProject Works = "outsideProject"
	Everywhere     Works = "everywhere"
)

// OptionKind selects how an option value is parsed.
type OptionKind int

const (
	StringOpt OptionKind = iota + 1
	NumberOpt
	BooleanOpt
	// PathOpt values are resolved to absolute paths.
	PathOpt
	// EnumOpt values must be one of Option.Values.
	EnumOpt
	// ListOpt is a repeatable string flag.
	ListOpt
)

// MarshalText renders the kind by name in help output.
func (k OptionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k OptionKind) String() string {
	switch k {
	case StringOpt:
		return "String"
	case NumberOpt:
		return "Number"
	case BooleanOpt:
		return "Boolean"
	case PathOpt:
		return "Path"
	case EnumOpt:
		return "Enum"
	case ListOpt:
		return "List"
	default:
		return "Unknown"
	}
}

// Alias is an alternate single-dash token for an option. With an empty
// Value it stands for the option itself (-o dist); otherwise it stands
// for the option set to Value (-prod for --environment=production).
type Alias struct {
	Token string `json:"token" validate:"required"`
	Value string `json:"value,omitempty"`
}

// Option describes one flag.
type Option struct {
	Name        string      `json:"name" validate:"required,kebab"`
	Kind        OptionKind  `json:"type" validate:"required,min=1,max=6"`
	Default     interface{} `json:"default,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Aliases     []Alias     `json:"aliases,omitempty" validate:"dive"`
	Values      []string    `json:"values,omitempty" validate:"required_if=Kind 5"`
	Description string      `json:"description,omitempty"`
}

// Anonymous describes a positional argument.
type Anonymous struct {
	Name        string `json:"name" validate:"required"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// Definition is the static schema of a command.
type Definition struct {
	Name        string      `json:"name" validate:"required"`
	Aliases     []string    `json:"aliases,omitempty"`
	Works       Works       `json:"works" validate:"oneof=insideProject outsideProject everywhere"`
	Options     []Option    `json:"availableOptions" validate:"dive"`
	Anonymous   []Anonymous `json:"anonymousOptions,omitempty" validate:"dive"`
	Description string      `json:"description,omitempty"`
	// Skip hides the command from the help listing.
	Skip bool `json:"-"`
}

// Option returns the named option.
func (d Definition) Option(name string) (Option, bool) {
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// Invocation is what a command receives once its options are resolved.
type Invocation struct {
	Env     *Env
	Options opts.Values
	Args    []string
}

// Command is one CLI verb.
type Command interface {
	Definition() Definition
	Run(ctx context.Context, inv Invocation) error
}

// Env carries the collaborators shared by every command. Commands run
// tasks with the embedded task dependencies.
type Env struct {
	task.Deps
	Settings *settings.Settings
	// Commands is the full registry, used by help.
	Commands []Command
}

// RunTask runs the named task inside the task lifecycle hook.
func (e *Env) RunTask(ctx context.Context, name string, o opts.Values) error {
	return task.Runner{Deps: e.Deps}.Run(ctx, name, o)
}

// ErrHelpRequested is returned by ValidateAndRun when --help or -h is
// present. The dispatcher shows help for the command instead.
var ErrHelpRequested = errors.New("help requested")

// Lookup finds a command by name or alias. A miss yields an Unknown
// command bound to name.
func Lookup(commands []Command, name string) Command {
	for _, c := range commands {
		def := c.Definition()
		if def.Name == name {
			return c
		}
		for _, a := range def.Aliases {
			if a == name {
				return c
			}
		}
	}
	return &Unknown{Name: name}
}

// Unknown is the stand-in for an unregistered command name.
type Unknown struct {
	Name string
}

// Definition implements Command.
func (u *Unknown) Definition() Definition {
	return Definition{Name: u.Name, Works: Everywhere, Skip: true}
}

// Run implements Command.
func (u *Unknown) Run(context.Context, Invocation) error {
	return kerrors.NewSilentError(kerrors.ErrCodeUnknownCommand,
		fmt.Sprintf("The specified command %s is invalid. For available options, see `kiln help`.", u.Name))
}

// IsUnknown reports whether c is an Unknown command.
func IsUnknown(c Command) bool {
	_, ok := c.(*Unknown)
	return ok
}

var kebabRE = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func definitionValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("kebab", func(fl validator.FieldLevel) bool {
			return kebabRE.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks the structural invariants of a definition.
func Validate(def Definition) error {
	if err := definitionValidator().Struct(def); err != nil {
		return kerrors.NewInternalError(kerrors.ErrCodeInternalError,
			fmt.Sprintf("command %q has an invalid definition", def.Name), err)
	}
	seen := make(map[string]bool, len(def.Options))
	tokens := make(map[string]bool)
	for _, o := range def.Options {
		if seen[o.Name] {
			return kerrors.NewInternalError(kerrors.ErrCodeInternalError,
				fmt.Sprintf("command %q declares option %q twice", def.Name, o.Name), nil)
		}
		seen[o.Name] = true
		for _, a := range o.Aliases {
			if strings.HasPrefix(a.Token, "-") {
				return kerrors.NewInternalError(kerrors.ErrCodeInternalError,
					fmt.Sprintf("command %q alias %q must not start with a dash", def.Name, a.Token), nil)
			}
			if tokens[a.Token] {
				return kerrors.NewInternalError(kerrors.ErrCodeInternalError,
					fmt.Sprintf("command %q declares alias -%s twice", def.Name, a.Token), nil)
			}
			tokens[a.Token] = true
		}
	}
	return nil
}

// Usage renders a one-line synopsis such as
// "kiln build <options...>" or "kiln new <app-name> <options...>".
func Usage(def Definition) string {
	parts := []string{"kiln", def.Name}
	for _, a := range def.Anonymous {
		if a.Required {
			parts = append(parts, "<"+a.Name+">")
		} else {
			parts = append(parts, "["+a.Name+"]")
		}
	}
	if len(def.Options) > 0 {
		parts = append(parts, "<options...>")
	}
	return strings.Join(parts, " ")
}
