package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/kiln/internal/config"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/opts"
	"github.com/conneroisu/kiln/internal/project"
)

type createProjectTask struct{ d Deps }

func newCreateProjectTask(d Deps) Task { return &createProjectTask{d: d} }

type projectFile struct {
	Name  string `yaml:"name"`
	Build struct {
		Watch []string `yaml:"watch"`
	} `yaml:"build"`
}

// Run creates the project directory with a minimal kiln.yml and
// package.json, then installs dependencies unless skip-npm is set.
func (t *createProjectTask) Run(ctx context.Context, o opts.Values) error {
	name := o.String("app-name")
	if name == "" {
		return kerrors.NewSilentError(kerrors.ErrCodeMissingOption,
			"The `new` command requires a name to be specified.")
	}
	dir := o.String("directory")
	if dir == "" {
		dir = name
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return kerrors.NewSilentError(kerrors.ErrCodeInvalidOption,
			fmt.Sprintf("Directory '%s' already exists.", filepath.Base(dir)))
	}

	for _, sub := range []string{"app", "public"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}

	pf := projectFile{Name: name}
	pf.Build.Watch = []string{"app", "public"}
	data, err := yaml.Marshal(pf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, config.FileName), data, 0o644); err != nil {
		return err
	}

	pkg, err := json.MarshalIndent(map[string]interface{}{
		"name":            name,
		"version":         "0.0.0",
		"private":         true,
		"devDependencies": map[string]string{},
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "package.json"), append(pkg, '\n'), 0o644); err != nil {
		return err
	}
	index := fmt.Sprintf("<!DOCTYPE html>\n<html>\n  <head><title>%s</title></head>\n  <body></body>\n</html>\n", name)
	if err := os.WriteFile(filepath.Join(dir, "app", "index.html"), []byte(index), 0o644); err != nil {
		return err
	}
	t.d.UI.WriteSuccessLine("Created project %s in %s", name, dir)

	p, err := project.Load(dir)
	if err != nil {
		return err
	}
	nd := t.d
	nd.Project = p

	if bp := o.String("blueprint"); bp != "" && bp != "app" {
		gen, err := t.d.Tasks.New(GenerateFromBlueprint, nd)
		if err != nil {
			return err
		}
		if err := gen.Run(ctx, opts.Values{"blueprint": bp, "name": name}); err != nil {
			return err
		}
	}

	if !o.Bool("skip-npm") {
		install, err := t.d.Tasks.New(NPMInstall, nd)
		if err != nil {
			return err
		}
		if err := install.Run(ctx, opts.Values{"package-manager": o.String("package-manager")}); err != nil {
			return err
		}
	}
	t.d.UI.WriteSuccessLine("Successfully initialized %s.", name)
	return nil
}
