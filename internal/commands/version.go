package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/kiln/internal/command"
	"github.com/conneroisu/kiln/internal/version"
)

// Version prints build information.
type Version struct{}

// Definition implements command.Command.
func (*Version) Definition() command.Definition {
	return command.Definition{
		Name:        "version",
		Aliases:     []string{"v", "--version", "-v"},
		Works:       command.Everywhere,
		Description: "Outputs kiln version.",
		Options: []command.Option{
			{Name: "verbose", Kind: command.BooleanOpt, Default: false,
				Description: "Also lists the modules compiled into the binary."},
			{Name: "format", Kind: command.EnumOpt, Default: "text", Values: []string{"text", "json", "yaml"}},
		},
	}
}

type versionReport struct {
	version.BuildInfo `yaml:",inline"`
	Dependencies      []version.Module `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Run implements command.Command.
func (*Version) Run(_ context.Context, inv command.Invocation) error {
	report := versionReport{BuildInfo: *version.GetBuildInfo()}
	if inv.Options.Bool("verbose") {
		report.Dependencies = version.Dependencies()
	}

	out := inv.Env.UI.Out()
	switch inv.Options.String("format") {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	fmt.Fprintf(out, "kiln: %s\n", version.GetShortVersion())
	fmt.Fprintf(out, "go: %s\n", report.GoVersion)
	fmt.Fprintf(out, "os: %s\n", report.Platform)
	for _, m := range report.Dependencies {
		fmt.Fprintf(out, "%s: %s\n", m.Path, m.Version)
	}
	return nil
}
