package task

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/kiln/internal/livereload"
	"github.com/conneroisu/kiln/internal/opts"
	"github.com/conneroisu/kiln/internal/server"
	"github.com/conneroisu/kiln/internal/watcher"
)

type serveTask struct{ d Deps }

func newServeTask(d Deps) Task { return &serveTask{d: d} }

// Run builds and watches the project, serves the output and pushes
// LiveReload notifications until ctx ends.
func (t *serveTask) Run(ctx context.Context, o opts.Values) error {
	cfg := t.d.Project.Config

	b, err := newBuilder(t.d, o)
	if err != nil {
		return err
	}
	defer b.Cleanup()

	w, err := newWatcher(ctx, t.d, o, b)
	if err != nil {
		return err
	}

	host := o.String("host")
	if host == "" {
		host = cfg.Server.Host
	}
	port := cfg.Server.Port
	if o.Has("port") {
		port = o.Int("port")
	}

	var lr *livereload.Server
	var changes <-chan watcher.Change
	if !o.Has("live-reload") || o.Bool("live-reload") {
		lrHost := o.String("live-reload-host")
		if lrHost == "" {
			lrHost = host
		}
		lrPort := cfg.Server.LiveReloadPort
		if o.Has("live-reload-port") {
			lrPort = o.Int("live-reload-port")
		}
		lr = livereload.New(lrHost, lrPort, t.d.Logger)
		changes = w.Changes()
	}

	var middlewareDir string
	if cfg.Server.MiddlewareDir != "" {
		middlewareDir = filepath.Join(t.d.Project.Root, cfg.Server.MiddlewareDir)
	}

	srv, err := server.New(server.Options{
		Host:          host,
		Port:          port,
		SSL:           o.Bool("ssl"),
		SSLKey:        o.String("ssl-key"),
		SSLCert:       o.String("ssl-cert"),
		Proxy:         o.String("proxy"),
		OutputPath:    b.OutputPath(),
		MiddlewareDir: middlewareDir,
		Compress:      cfg.Server.Compress,
		Addons:        b.Addons(),
		Watcher:       w,
		Changes:       changes,
		WatchRoots:    w.Roots(),
		LiveReload:    lr,
		UI:            t.d.UI,
		Logger:        t.d.Logger,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = srv.Stop()
		return err
	}

	t.d.UI.WriteLine("Serving on %s", srv.URL())
	return srv.Run(ctx)
}
