// Package process owns the process-wide exit lifecycle: OS signal handlers,
// the kill IPC message and the cleanup callbacks that run before exit.
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/tidwall/gjson"
	"golang.org/x/term"

	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/ui"
)

// IPCEnv names the environment variable holding the file descriptor a
// parent process uses to send control messages.
const IPCEnv = "KILN_IPC_FD"

// ctrlC is the byte a raw-mode terminal delivers for Ctrl+C.
const ctrlC = 0x03

// Trap installs signal handlers once and runs exit callbacks before the
// process terminates.
type Trap struct {
	mu        sync.Mutex
	installed bool
	exiting   bool
	nextID    int
	order     []int
	callbacks map[int]func() error

	exit     func(code int)
	ui       *ui.UI
	logger   logging.Logger
	ipc      io.Reader
	stdin    *os.File
	rawCtrlC bool

	signals  chan os.Signal
	stop     chan struct{}
	restored func()
}

// Option configures a Trap.
type Option func(*Trap)

// WithExitFunc replaces os.Exit.
func WithExitFunc(fn func(code int)) Option {
	return func(t *Trap) { t.exit = fn }
}

// WithUI sets the sink for the cleanup notice.
func WithUI(u *ui.UI) Option {
	return func(t *Trap) { t.ui = u }
}

// WithLogger sets the logger for callback failures.
func WithLogger(l logging.Logger) Option {
	return func(t *Trap) { t.logger = l.WithComponent("process") }
}

// WithIPC sets the reader kill messages arrive on.
func WithIPC(r io.Reader) Option {
	return func(t *Trap) { t.ipc = r }
}

// WithRawCtrlC switches a terminal stdin to raw mode and turns Ctrl+C bytes
// into SIGINT. Windows consoles do not deliver the signal otherwise.
func WithRawCtrlC(enabled bool) Option {
	return func(t *Trap) { t.rawCtrlC = enabled }
}

// New creates an uninstalled Trap.
func New(opts ...Option) *Trap {
	t := &Trap{
		callbacks: make(map[int]func() error),
		exit:      os.Exit,
		ui:        ui.Discard(),
		logger:    logging.NewNopLogger(),
		stdin:     os.Stdin,
		rawCtrlC:  runtime.GOOS == "windows",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var (
	defaultTrap *Trap
	defaultOnce sync.Once
)

// Default returns the process-wide Trap. The IPC channel comes from
// KILN_IPC_FD when set.
func Default() *Trap {
	defaultOnce.Do(func() {
		var opts []Option
		if r := ipcFromEnv(); r != nil {
			opts = append(opts, WithIPC(r))
		}
		defaultTrap = New(append(opts, WithUI(ui.NewStd()))...)
	})
	return defaultTrap
}

func ipcFromEnv() io.Reader {
	raw := os.Getenv(IPCEnv)
	if raw == "" {
		return nil
	}
	fd, err := strconv.Atoi(raw)
	if err != nil || fd < 0 {
		return nil
	}
	return os.NewFile(uintptr(fd), "kiln-ipc")
}

// Installed reports whether handlers are active.
func (t *Trap) Installed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.installed
}

// InstallOnce installs the signal, IPC and Ctrl+C handlers. Later calls do
// nothing.
func (t *Trap) InstallOnce() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.installed {
		return
	}
	t.installed = true
	t.stop = make(chan struct{})
	t.signals = make(chan os.Signal, 1)
	signal.Notify(t.signals, os.Interrupt, syscall.SIGTERM)

	go t.watchSignals(t.signals, t.stop)
	if t.ipc != nil {
		go t.watchIPC(t.ipc, t.stop)
	}
	if t.rawCtrlC {
		t.startRawCtrlC()
	}
}

func (t *Trap) watchSignals(signals <-chan os.Signal, stop <-chan struct{}) {
	select {
	case sig := <-signals:
		t.terminate(sig.String())
	case <-stop:
	}
}

func (t *Trap) watchIPC(r io.Reader, stop <-chan struct{}) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-stop:
			return
		default:
		}
		if IsKillMessage(scanner.Text()) {
			t.terminate("kill message")
			return
		}
	}
}

// IsKillMessage reports whether one IPC line asks the process to exit. A
// bare "kill" line and the JSON object {"kill":true} both qualify.
func IsKillMessage(line string) bool {
	line = strings.TrimSpace(line)
	if line == "kill" {
		return true
	}
	if !gjson.Valid(line) {
		return false
	}
	return gjson.Get(line, "kill").Bool()
}

func (t *Trap) startRawCtrlC() {
	fd := int(t.stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		t.logger.Warn(context.Background(), err, "could not switch stdin to raw mode")
		return
	}
	t.restored = func() { _ = term.Restore(fd, state) }
	go t.watchCtrlC(t.stdin, t.stop)
}

func (t *Trap) watchCtrlC(r io.Reader, stop <-chan struct{}) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		select {
		case <-stop:
			return
		default:
		}
		for _, b := range buf[:n] {
			if b == ctrlC {
				t.terminate(os.Interrupt.String())
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// OnExit registers fn to run before the process exits. The returned func
// unregisters it.
func (t *Trap) OnExit(fn func() error) (unregister func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.callbacks[id] = fn
	t.order = append(t.order, id)

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.callbacks, id)
	}
}

func (t *Trap) terminate(reason string) {
	t.logger.Info(context.Background(), "terminating", "reason", reason)
	t.ui.StartProgress("cleaning up...")
	t.Exit(1)
}

// Exit runs every registered callback once, in registration order, then
// exits with code. Concurrent and repeated calls after the first are
// ignored.
func (t *Trap) Exit(code int) {
	t.mu.Lock()
	if t.exiting {
		t.mu.Unlock()
		return
	}
	t.exiting = true
	fns := make([]func() error, 0, len(t.order))
	for _, id := range t.order {
		if fn, ok := t.callbacks[id]; ok {
			fns = append(fns, fn)
		}
	}
	restore := t.restored
	exit := t.exit
	t.mu.Unlock()

	for _, fn := range fns {
		t.runCallback(fn)
	}
	t.ui.StopProgress()
	if restore != nil {
		restore()
	}
	exit(code)
}

func (t *Trap) runCallback(fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(context.Background(), fmt.Errorf("%v", r), "exit callback panicked")
		}
	}()
	if err := fn(); err != nil {
		t.logger.Error(context.Background(), err, "exit callback failed")
	}
}

// Reset uninstalls handlers and forgets callbacks.
func (t *Trap) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.installed {
		signal.Stop(t.signals)
		close(t.stop)
	}
	if t.restored != nil {
		t.restored()
		t.restored = nil
	}
	t.installed = false
	t.exiting = false
	t.callbacks = make(map[int]func() error)
	t.order = nil
}
