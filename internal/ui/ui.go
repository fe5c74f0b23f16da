// Package ui is the user-facing output sink: line based writes with leveled
// coloring plus a simple progress indicator for long running steps.
package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// UI writes command output. It is safe for concurrent use.
type UI struct {
	out         io.Writer
	errOut      io.Writer
	interactive bool

	mu       sync.Mutex
	progress chan struct{}
	done     chan struct{}

	green  *color.Color
	yellow *color.Color
	red    *color.Color
	cyan   *color.Color
}

// Option configures a UI.
type Option func(*UI)

// WithColor forces color output on or off.
func WithColor(enabled bool) Option {
	return func(u *UI) {
		for _, c := range []*color.Color{u.green, u.yellow, u.red, u.cyan} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// WithInteractive overrides terminal detection for the progress spinner.
func WithInteractive(interactive bool) Option {
	return func(u *UI) { u.interactive = interactive }
}

// New creates a UI writing regular output to out and errors to errOut.
func New(out, errOut io.Writer, opts ...Option) *UI {
	u := &UI{
		out:         out,
		errOut:      errOut,
		interactive: isTerminal(out),
		green:       color.New(color.FgGreen),
		yellow:      color.New(color.FgYellow),
		red:         color.New(color.FgRed),
		cyan:        color.New(color.FgCyan),
	}
	for _, opt := range opts {
		opt(u)
	}

	return u
}

// NewStd creates a UI bound to the process stdout and stderr.
func NewStd() *UI {
	return New(os.Stdout, os.Stderr)
}

// Discard returns a UI that drops all output.
func Discard() *UI {
	return New(io.Discard, io.Discard, WithColor(false), WithInteractive(false))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Out returns the writer used for regular output.
func (u *UI) Out() io.Writer { return u.out }

// WriteLine writes one plain line.
func (u *UI) WriteLine(format string, args ...interface{}) {
	u.write(u.out, nil, format, args...)
}

// WriteInfoLine writes one cyan line.
func (u *UI) WriteInfoLine(format string, args ...interface{}) {
	u.write(u.out, u.cyan, format, args...)
}

// WriteSuccessLine writes one green line.
func (u *UI) WriteSuccessLine(format string, args ...interface{}) {
	u.write(u.out, u.green, format, args...)
}

// WriteWarnLine writes one yellow line prefixed with WARNING.
func (u *UI) WriteWarnLine(format string, args ...interface{}) {
	u.write(u.out, u.yellow, "WARNING: "+format, args...)
}

// WriteErrorLine writes one red line to the error stream.
func (u *UI) WriteErrorLine(format string, args ...interface{}) {
	u.write(u.errOut, u.red, format, args...)
}

func (u *UI) write(w io.Writer, c *color.Color, format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.clearProgressLocked()
	if c != nil {
		msg = c.Sprint(msg)
	}
	fmt.Fprintln(w, msg)
}

// WriteError reports err. Silent errors print their message only; build
// errors add their file location; anything else also prints the wrapped
// cause chain when verbose is set.
func (u *UI) WriteError(err error, verbose bool) {
	if err == nil {
		return
	}

	if kerrors.IsSilent(err) {
		u.WriteErrorLine("%s", err.Error())
		return
	}

	var ke *kerrors.Error
	if kerrors.IsBuildError(err) && errors.As(err, &ke) {
		if loc := ke.Location(); loc != "" {
			u.WriteErrorLine("File: %s", loc)
		}
		u.WriteErrorLine("%s", ke.Message)
		if verbose && ke.Cause != nil {
			u.WriteErrorLine("%s", ke.Cause.Error())
		}
		return
	}

	u.WriteErrorLine("%s", err.Error())
	if verbose {
		for _, line := range causeChain(err) {
			u.WriteErrorLine("  caused by: %s", line)
		}
	}
}

// StartProgress shows msg with a spinner on interactive terminals, or as a
// plain line otherwise. A running indicator is replaced.
func (u *UI) StartProgress(msg string) {
	u.StopProgress()

	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.interactive {
		fmt.Fprintln(u.out, msg)
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	u.progress, u.done = stop, done
	go u.spin(msg, stop, done)
}

// StopProgress clears the spinner if one is running.
func (u *UI) StopProgress() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.clearProgressLocked()
}

func (u *UI) clearProgressLocked() {
	if u.progress == nil {
		return
	}
	close(u.progress)
	done := u.done
	u.progress, u.done = nil, nil
	u.mu.Unlock()
	<-done
	u.mu.Lock()
	fmt.Fprint(u.out, "\r\033[K")
}

func (u *UI) spin(msg string, stop, done chan struct{}) {
	defer close(done)
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		u.mu.Lock()
		fmt.Fprintf(u.out, "\r%s %s", frames[i%len(frames)], msg)
		u.mu.Unlock()

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func causeChain(err error) []string {
	var chain []string
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return chain
		}
		err = u.Unwrap()
		if err == nil {
			return chain
		}
		chain = append(chain, err.Error())
	}
}
