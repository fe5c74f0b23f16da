package process

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/ui"
)

func newTestTrap(t *testing.T, opts ...Option) (*Trap, chan int) {
	t.Helper()
	codes := make(chan int, 4)
	opts = append([]Option{
		WithExitFunc(func(code int) { codes <- code }),
		WithRawCtrlC(false),
	}, opts...)
	trap := New(opts...)
	t.Cleanup(trap.Reset)
	return trap, codes
}

func TestInstallOnceIsIdempotent(t *testing.T) {
	trap, _ := newTestTrap(t)
	assert.False(t, trap.Installed())

	trap.InstallOnce()
	stop := trap.stop
	trap.InstallOnce()

	assert.True(t, trap.Installed())
	assert.Equal(t, stop, trap.stop)

	trap.Reset()
	assert.False(t, trap.Installed())
}

func TestExitRunsCallbacksInOrderOnce(t *testing.T) {
	trap, codes := newTestTrap(t)

	var calls []string
	trap.OnExit(func() error { calls = append(calls, "first"); return nil })
	unregister := trap.OnExit(func() error { calls = append(calls, "removed"); return nil })
	trap.OnExit(func() error { panic("boom") })
	trap.OnExit(func() error { calls = append(calls, "after-panic"); return errors.New("failed") })
	unregister()

	trap.Exit(3)
	trap.Exit(4)

	assert.Equal(t, []string{"first", "after-panic"}, calls)
	assert.Equal(t, 3, <-codes)
	select {
	case code := <-codes:
		t.Fatalf("exit called twice, second code %d", code)
	default:
	}
}

func TestKillMessageTerminates(t *testing.T) {
	r, w := io.Pipe()
	var out bytes.Buffer
	trap, codes := newTestTrap(t, WithIPC(r), WithUI(ui.New(&out, &out, ui.WithColor(false), ui.WithInteractive(false))))

	cleaned := make(chan struct{})
	trap.OnExit(func() error { close(cleaned); return nil })
	trap.InstallOnce()

	go func() {
		_, _ = w.Write([]byte("{\"progress\":1}\n"))
		_, _ = w.Write([]byte("kill\n"))
	}()

	select {
	case code := <-codes:
		assert.Equal(t, 1, code)
	case <-time.After(2 * time.Second):
		t.Fatal("kill message did not terminate")
	}
	<-cleaned
	assert.Contains(t, out.String(), "cleaning up...")
	require.NoError(t, w.Close())
}

func TestIsKillMessage(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"kill", true},
		{"  kill  ", true},
		{`{"kill":true}`, true},
		{`{"kill":false}`, false},
		{`{"other":1}`, false},
		{"killall", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsKillMessage(tt.line), tt.line)
	}
}
