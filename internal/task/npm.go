package task

import (
	"context"

	"github.com/conneroisu/kiln/internal/npm"
	"github.com/conneroisu/kiln/internal/opts"
)

type npmInstallTask struct{ d Deps }

func newNPMInstallTask(d Deps) Task { return &npmInstallTask{d: d} }

// Run installs o["packages"], or every dependency when there are none.
func (t *npmInstallTask) Run(ctx context.Context, o opts.Values) error {
	root := t.d.Project.Root
	manager, err := npm.Detect(root, o.String("package-manager"))
	if err != nil {
		return err
	}
	args := npm.InstallArgs(manager, npm.Options{
		Packages:  o.Strings("packages"),
		SaveDev:   o.Bool("save-dev"),
		SaveExact: o.Bool("save-exact"),
	})
	t.d.UI.StartProgress("Installing packages with " + manager)
	err = t.d.NPM.Run(ctx, root, manager, args...)
	t.d.UI.StopProgress()
	if err != nil {
		return err
	}
	t.d.UI.WriteSuccessLine("Installed packages with %s.", manager)
	return nil
}

type npmUninstallTask struct{ d Deps }

func newNPMUninstallTask(d Deps) Task { return &npmUninstallTask{d: d} }

func (t *npmUninstallTask) Run(ctx context.Context, o opts.Values) error {
	root := t.d.Project.Root
	manager, err := npm.Detect(root, o.String("package-manager"))
	if err != nil {
		return err
	}
	args := npm.UninstallArgs(manager, npm.Options{Packages: o.Strings("packages")})
	if err := t.d.NPM.Run(ctx, root, manager, args...); err != nil {
		return err
	}
	t.d.UI.WriteSuccessLine("Uninstalled packages with %s.", manager)
	return nil
}
