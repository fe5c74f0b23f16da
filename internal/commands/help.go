package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/kiln/internal/command"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/version"
)

// Help lists commands, or describes one.
type Help struct{}

// Definition implements command.Command.
func (*Help) Definition() command.Definition {
	return command.Definition{
		Name:        "help",
		Aliases:     []string{"h", "--help", "-h"},
		Works:       command.Everywhere,
		Description: "Outputs the usage instructions for all commands or the provided command.",
		Anonymous:   []command.Anonymous{{Name: "command-name"}},
		Options: []command.Option{
			{Name: "json", Kind: command.BooleanOpt, Default: false},
		},
	}
}

type helpJSON struct {
	Name     string               `json:"name"`
	Version  string               `json:"version"`
	Commands []command.Definition `json:"commands"`
}

// Run implements command.Command.
func (*Help) Run(_ context.Context, inv command.Invocation) error {
	defs := visible(inv.Env.Commands)
	if len(inv.Args) > 0 {
		c := command.Lookup(inv.Env.Commands, inv.Args[0])
		if command.IsUnknown(c) {
			return kerrors.NewSilentError(kerrors.ErrCodeUnknownCommand,
				fmt.Sprintf("No help entry for '%s'.", inv.Args[0]))
		}
		defs = []command.Definition{c.Definition()}
	}

	out := inv.Env.UI.Out()
	if inv.Options.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(helpJSON{Name: "kiln", Version: version.GetShortVersion(), Commands: defs})
	}

	if len(inv.Args) == 0 {
		fmt.Fprintln(out, "Usage: kiln <command (Default: help)>")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Available commands in kiln:")
		fmt.Fprintln(out)
	}
	for _, def := range defs {
		writeUsage(out, def)
	}
	return nil
}

func visible(cmds []command.Command) []command.Definition {
	defs := make([]command.Definition, 0, len(cmds))
	for _, c := range cmds {
		if def := c.Definition(); !def.Skip {
			defs = append(defs, def)
		}
	}
	return defs
}

var wordBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// worksLabel turns insideProject into "Inside Project".
func worksLabel(w command.Works) string {
	spaced := wordBoundary.ReplaceAllString(string(w), "$1 $2")
	return cases.Title(language.English).String(spaced)
}

func writeUsage(w io.Writer, def command.Definition) {
	fmt.Fprintln(w, command.Usage(def))
	if def.Description != "" {
		fmt.Fprintf(w, "  %s\n", def.Description)
	}
	var aliases []string
	for _, a := range def.Aliases {
		if !strings.HasPrefix(a, "-") {
			aliases = append(aliases, a)
		}
	}
	if len(aliases) > 0 {
		fmt.Fprintf(w, "  aliases: %s\n", strings.Join(aliases, ", "))
	}
	fmt.Fprintf(w, "  works: %s\n", worksLabel(def.Works))
	for _, o := range def.Options {
		line := fmt.Sprintf("  --%s (%s)", o.Name, o.Kind)
		if o.Default != nil {
			line += fmt.Sprintf(" (Default: %v)", o.Default)
		}
		if o.Required {
			line += " (Required)"
		}
		fmt.Fprintln(w, line)
		if len(o.Values) > 0 {
			fmt.Fprintf(w, "    one of: %s\n", strings.Join(o.Values, ", "))
		}
		if len(o.Aliases) > 0 {
			var parts []string
			for _, a := range o.Aliases {
				if a.Value != "" {
					parts = append(parts, fmt.Sprintf("-%s (--%s=%s)", a.Token, o.Name, a.Value))
				} else {
					parts = append(parts, fmt.Sprintf("-%s <value>", a.Token))
				}
			}
			fmt.Fprintf(w, "    aliases: %s\n", strings.Join(parts, ", "))
		}
		if o.Description != "" {
			fmt.Fprintf(w, "    %s\n", o.Description)
		}
	}
	fmt.Fprintln(w)
}
