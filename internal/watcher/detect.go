package watcher

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/ui"
)

// WatchmanDocs is printed with every fallback message.
const WatchmanDocs = "https://facebook.github.io/watchman/docs/install"

// MinWatchmanVersion is the oldest watchman release kiln accepts.
const MinWatchmanVersion = "3.0.0"

// Prober runs `watchman version` and returns its stdout.
type Prober interface {
	WatchmanVersion(ctx context.Context) ([]byte, error)
}

// ExecProber invokes the watchman binary on PATH.
type ExecProber struct{}

// WatchmanVersion implements Prober.
func (ExecProber) WatchmanVersion(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "watchman", "version").Output()
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) ([]byte, error)

// WatchmanVersion implements Prober.
func (f ProberFunc) WatchmanVersion(ctx context.Context) ([]byte, error) { return f(ctx) }

// Detect picks watchman when a usable version is installed and node
// otherwise. Every fallback is explained on u.
func Detect(ctx context.Context, prober Prober, u *ui.UI) string {
	out, err := prober.WatchmanVersion(ctx)
	if err != nil {
		fallback(u, "Could not start watchman; falling back to the node watcher for file system events.")
		return BackendNode
	}
	if !gjson.ValidBytes(out) {
		fallback(u, "Looks like you have a different program called watchman; falling back to the node watcher.")
		return BackendNode
	}
	version := gjson.GetBytes(out, "version").String()
	v := watchmanSemver(version)
	if !semver.IsValid(v) || semver.Compare(v, "v"+MinWatchmanVersion) < 0 {
		fallback(u, fmt.Sprintf(
			"Invalid watchman found, version [%s] does not satisfy [>=%s]; falling back to the node watcher.",
			version, MinWatchmanVersion))
		return BackendNode
	}
	return BackendWatchman
}

// watchmanSemver maps a watchman version onto semver. Newer releases
// use calendar versions such as 2024.01.22.00; only the first three
// numeric components take part in the comparison.
func watchmanSemver(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "v" + version
		}
		parts[i] = strconv.Itoa(n)
	}
	return "v" + strings.Join(parts, ".")
}

func fallback(u *ui.UI, msg string) {
	u.WriteWarnLine("%s", msg)
	u.WriteLine("Visit %s for more info.", WatchmanDocs)
}

// Resolve maps a watcher option to a Backend. "events", "watchman" and ""
// run detection; "polling" and "node" are used as given.
func Resolve(ctx context.Context, name string, prober Prober, u *ui.UI) (Backend, error) {
	switch name {
	case BackendPolling:
		return PollingBackend{}, nil
	case BackendNode:
		return NodeBackend{}, nil
	case "", BackendEvents, BackendWatchman:
		if prober == nil {
			prober = ExecProber{}
		}
		if Detect(ctx, prober, u) == BackendWatchman {
			return WatchmanBackend{}, nil
		}
		return NodeBackend{}, nil
	default:
		return nil, kerrors.NewConfigError(kerrors.ErrCodeUnknownWatcher,
			fmt.Sprintf("Unknown watcher type %q. Use one of events, polling, node or watchman.", name))
	}
}
