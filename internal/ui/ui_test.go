package ui

import (
	"bytes"
	"fmt"
	"testing"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/stretchr/testify/assert"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut, WithColor(false), WithInteractive(false)), &out, &errOut
}

func TestWriteLines(t *testing.T) {
	u, out, errOut := newTestUI()

	u.WriteLine("plain %d", 1)
	u.WriteInfoLine("info")
	u.WriteSuccessLine("ok")
	u.WriteWarnLine("careful")
	u.WriteErrorLine("broken")

	assert.Equal(t, "plain 1\ninfo\nok\nWARNING: careful\n", out.String())
	assert.Equal(t, "broken\n", errOut.String())
}

func TestWriteLineKeepsLiteralPercent(t *testing.T) {
	u, out, _ := newTestUI()
	u.WriteLine("%s", "100% done")
	assert.Equal(t, "100% done\n", out.String())
}

func TestWriteErrorSilent(t *testing.T) {
	u, _, errOut := newTestUI()
	err := kerrors.NewSilentError(kerrors.ErrCodeUnknownCommand, "The specified command foo is invalid.")

	u.WriteError(err, true)
	assert.Equal(t, "The specified command foo is invalid.\n", errOut.String())
}

func TestWriteErrorBuild(t *testing.T) {
	u, _, errOut := newTestUI()
	err := kerrors.NewBuildError(kerrors.ErrCodeBuildFailed, "Unexpected token", fmt.Errorf("exit status 1")).
		WithLocation("app/app.js", 3, 7)

	u.WriteError(fmt.Errorf("build: %w", err), false)
	assert.Equal(t, "File: app/app.js:3:7\nUnexpected token\n", errOut.String())
}

func TestWriteErrorVerboseChain(t *testing.T) {
	u, _, errOut := newTestUI()
	root := fmt.Errorf("connection refused")
	err := fmt.Errorf("starting server: %w", root)

	u.WriteError(err, false)
	assert.Equal(t, "starting server: connection refused\n", errOut.String())

	errOut.Reset()
	u.WriteError(fmt.Errorf("serve: %w", fmt.Errorf("listen")), true)
	assert.Contains(t, errOut.String(), "caused by: listen")
}

func TestProgressNonInteractive(t *testing.T) {
	u, out, _ := newTestUI()
	u.StartProgress("cleaning up...")
	u.StopProgress()
	assert.Equal(t, "cleaning up...\n", out.String())
}

func TestProgressInteractive(t *testing.T) {
	var out bytes.Buffer
	u := New(&out, &out, WithColor(false), WithInteractive(true))

	u.StartProgress("building")
	u.WriteLine("done")
	u.StopProgress()

	assert.Contains(t, out.String(), "building")
	assert.Contains(t, out.String(), "done\n")
}
