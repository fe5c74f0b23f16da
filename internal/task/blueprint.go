package task

import (
	"context"
	"fmt"
	"strings"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/opts"
)

// Placeholders substituted into the blueprint command.
const (
	BlueprintPlaceholder = "{{blueprint}}"
	NamePlaceholder      = "{{name}}"
	ArgsPlaceholder      = "{{args}}"
)

type blueprintTask struct{ d Deps }

func newBlueprintTask(d Deps) Task { return &blueprintTask{d: d} }

// Run hands the blueprint to the external generator configured as
// blueprint in kiln.yml. With ignore-missing set an unconfigured generator
// is skipped.
func (t *blueprintTask) Run(ctx context.Context, o opts.Values) error {
	blueprint := o.String("blueprint")
	if blueprint == "" {
		return kerrors.NewSilentError(kerrors.ErrCodeMissingOption, "No blueprint was given.")
	}
	command := t.d.Project.Config.Blueprint
	if command == "" {
		if o.Bool("ignore-missing") {
			t.d.Logger.Debug(ctx, "no blueprint generator configured", "blueprint", blueprint)
			return nil
		}
		return kerrors.NewConfigError(kerrors.ErrCodeMissingOption,
			"No blueprint generator is configured. Set `blueprint` in kiln.yml.")
	}

	args := o.Strings("args")
	name := o.String("name")
	if name == "" && len(args) > 0 {
		name = args[0]
	}
	r := strings.NewReplacer(
		BlueprintPlaceholder, blueprint,
		NamePlaceholder, name,
		ArgsPlaceholder, strings.Join(args, " "),
	)
	command = r.Replace(command)

	out, err := t.d.Shell(ctx, t.d.Project.Root, command, []string{"KILN_BLUEPRINT=" + blueprint})
	if len(out) > 0 {
		t.d.UI.WriteLine("%s", strings.TrimRight(string(out), "\n"))
	}
	if err != nil {
		return kerrors.NewBuildError(kerrors.ErrCodeBuildFailed,
			fmt.Sprintf("blueprint %s failed", blueprint), err)
	}
	return nil
}

type installTask struct{ d Deps }

func newInstallTask(d Deps) Task { return &installTask{d: d} }

// Run installs the addon packages and then runs each addon's default
// blueprint, named after the package.
func (t *installTask) Run(ctx context.Context, o opts.Values) error {
	packages := o.Strings("packages")
	if len(packages) == 0 {
		return kerrors.NewSilentError(kerrors.ErrCodeMissingOption,
			"The `install` command requires a package name. Did you mean `kiln install:npm`?")
	}

	npmInstall, err := t.d.Tasks.New(NPMInstall, t.d)
	if err != nil {
		return err
	}
	if err := npmInstall.Run(ctx, o); err != nil {
		return err
	}

	gen, err := t.d.Tasks.New(GenerateFromBlueprint, t.d)
	if err != nil {
		return err
	}
	for _, pkg := range packages {
		bo := opts.Values{
			"blueprint":      addonBlueprint(pkg),
			"ignore-missing": true,
		}
		if err := gen.Run(ctx, bo); err != nil {
			return err
		}
	}
	t.d.UI.WriteSuccessLine("Installed addon package%s.", plural(len(packages)))
	return nil
}

// addonBlueprint strips a version suffix: "x@1.2" and "@scope/x@1" map to
// "x" and "@scope/x".
func addonBlueprint(pkg string) string {
	if i := strings.LastIndex(pkg, "@"); i > 0 {
		return pkg[:i]
	}
	return pkg
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
