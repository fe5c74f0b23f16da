// Package server runs the development HTTP server: it serves build output
// through the middleware chain, restarts in place when project middleware
// changes and forwards rebuilds to the LiveReload server.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/kiln/internal/build"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/livereload"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/ui"
	"github.com/conneroisu/kiln/internal/validation"
	"github.com/conneroisu/kiln/internal/watcher"
)

// MiddlewareDebounce coalesces bursts of middleware file changes into one
// restart.
const MiddlewareDebounce = 100 * time.Millisecond

// Readier is satisfied by watcher.Watcher.
type Readier interface {
	WaitReady(ctx context.Context) error
}

// Options configures a DevServer.
type Options struct {
	Host    string
	Port    int
	SSL     bool
	SSLKey  string
	SSLCert string
	// Proxy forwards requests that match no output file.
	Proxy      string
	OutputPath string
	// MiddlewareDir holds index.yml and is watched for restarts.
	MiddlewareDir string
	Compress      bool
	Addons        []build.Addon
	Watcher       Readier
	// Changes are forwarded to LiveReload with paths made relative to the
	// WatchRoots entry that contains them.
	Changes    <-chan watcher.Change
	WatchRoots []string
	LiveReload *livereload.Server
	UI         *ui.UI
	Logger     logging.Logger
}

// DevServer owns one listening HTTP server at a time.
type DevServer struct {
	opts        Options
	ui          *ui.UI
	logger      logging.Logger
	modules     *ModuleCache
	sockets     *socketRegistry
	proxyTarget *url.URL
	tlsConfig   *tls.Config

	mu     sync.Mutex
	srv    *http.Server
	ln     net.Listener
	served chan struct{}

	restartMu sync.Mutex
	inflight  *cycle
	next      *cycle
	restarts  chan struct{}
	// beforeInvalidate runs after stop and before the cycle is marked as
	// invalidating. Tests use it to hold a cycle in place.
	beforeInvalidate func()
	// afterInvalidate runs once the cycle is marked as invalidating.
	afterInvalidate func()
}

// New validates opts and creates a DevServer.
func New(opts Options) (*DevServer, error) {
	if opts.UI == nil {
		opts.UI = ui.Discard()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.MiddlewareDir != "" {
		dir, err := filepath.Abs(opts.MiddlewareDir)
		if err != nil {
			return nil, err
		}
		opts.MiddlewareDir = dir
	}
	s := &DevServer{
		opts:    opts,
		ui:      opts.UI,
		logger:  opts.Logger.WithComponent("server"),
		modules: NewModuleCache(32),
		sockets: newSocketRegistry(),
	}

	if opts.Proxy != "" {
		target, err := validation.ProxyURL(opts.Proxy)
		if err != nil {
			return nil, kerrors.NewConfigError(kerrors.ErrCodeInvalidOption,
				fmt.Sprintf("The proxy URL %q is invalid: %v.", opts.Proxy, err))
		}
		s.proxyTarget = target
	}

	if opts.SSL {
		cfg, err := loadTLS(opts.SSLKey, opts.SSLCert)
		if err != nil {
			return nil, err
		}
		s.tlsConfig = cfg
	}
	return s, nil
}

func loadTLS(keyPath, certPath string) (*tls.Config, error) {
	if _, err := os.Stat(keyPath); err != nil {
		return nil, kerrors.NewConfigError(kerrors.ErrCodeSSLFiles, fmt.Sprintf(
			"SSL key couldn't be found in %q, please provide a path to an existing ssl key file with --ssl-key", keyPath))
	}
	if _, err := os.Stat(certPath); err != nil {
		return nil, kerrors.NewConfigError(kerrors.ErrCodeSSLFiles, fmt.Sprintf(
			"SSL certificate couldn't be found in %q, please provide a path to an existing ssl certificate file with --ssl-cert", certPath))
	}
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, kerrors.NewConfigError(kerrors.ErrCodeSSLFiles,
			fmt.Sprintf("SSL key and certificate could not be loaded: %v", err))
	}
	return &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}, nil
}

func (s *DevServer) scheme() string {
	if s.tlsConfig != nil {
		return "https"
	}
	return "http"
}

// displayHost is the host shown to users.
func (s *DevServer) displayHost() string {
	if s.opts.Host == "" || s.opts.Host == "0.0.0.0" || s.opts.Host == "::" {
		return "localhost"
	}
	return s.opts.Host
}

// URL returns the address users should open.
func (s *DevServer) URL() string {
	port := s.opts.Port
	if addr := s.Addr(); addr != "" {
		if _, p, err := net.SplitHostPort(addr); err == nil {
			port, _ = strconv.Atoi(p)
		}
	}
	return fmt.Sprintf("%s://%s/", s.scheme(), net.JoinHostPort(s.displayHost(), strconv.Itoa(port)))
}

// Addr returns the bound address or "" when stopped.
func (s *DevServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start binds the HTTP server. It returns once the listener is open.
func (s *DevServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("server already started")
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return kerrors.NewConfigError(kerrors.ErrCodeBind, fmt.Sprintf(
			"Could not serve on %s://%s. It is either in use or you do not have permission.",
			s.scheme(), net.JoinHostPort(s.displayHost(), strconv.Itoa(s.opts.Port)))).WithContext("cause", err.Error())
	}

	srv := &http.Server{
		Handler:           s.handler(),
		ConnState:         s.sockets.track,
		ReadHeaderTimeout: 30 * time.Second,
	}
	if s.tlsConfig != nil {
		srv.TLSConfig = s.tlsConfig.Clone()
		if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
			ln.Close()
			return fmt.Errorf("configuring http2: %w", err)
		}
		ln = tls.NewListener(ln, srv.TLSConfig)
	}

	served := make(chan struct{})
	s.srv = srv
	s.ln = ln
	s.served = served
	go func() {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), err, "http server stopped")
		}
	}()
	s.logger.Info(ctx, "listening", "addr", ln.Addr().String())
	return nil
}

// Stop force-closes every open socket and then the listener.
func (s *DevServer) Stop() error {
	s.mu.Lock()
	srv, served := s.srv, s.served
	s.srv, s.ln, s.served = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	destroyed := s.sockets.destroyAll()
	err := srv.Close()
	<-served
	s.logger.Debug(context.Background(), "stopped", "sockets_destroyed", destroyed)
	return err
}

// Run starts the server unless Start was already called, then LiveReload
// and the middleware watcher, and blocks until ctx ends.
func (s *DevServer) Run(ctx context.Context) error {
	if s.Addr() == "" {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if lr := s.opts.LiveReload; lr != nil {
		if err := lr.Start(); err != nil {
			s.ui.WriteWarnLine("%s", err.Error())
		} else {
			g.Go(func() error {
				<-gctx.Done()
				return lr.Close()
			})
		}
	}

	if s.opts.Changes != nil {
		g.Go(func() error {
			s.forwardChanges(gctx)
			return nil
		})
	}

	if s.opts.MiddlewareDir != "" {
		if _, err := os.Stat(s.opts.MiddlewareDir); err == nil {
			g.Go(func() error {
				return s.watchMiddleware(gctx)
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.Stop()
	})

	return g.Wait()
}

func (s *DevServer) forwardChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-s.opts.Changes:
			if !ok {
				return
			}
			if s.opts.LiveReload != nil {
				s.opts.LiveReload.Notify(reloadPaths(s.opts.WatchRoots, change.Files))
			}
		}
	}
}

// reloadPaths rewrites absolute source paths relative to the watch root
// holding them. Paths outside every root keep their base name.
func reloadPaths(roots, files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Base(f)
		for _, root := range roots {
			rel, err := filepath.Rel(root, f)
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				p = rel
				break
			}
		}
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

// watchMiddleware restarts the server after the middleware dir settles.
func (s *DevServer) watchMiddleware(ctx context.Context) error {
	events, errs, err := watcher.NodeBackend{}.Start(ctx, []string{s.opts.MiddlewareDir}, nil)
	if err != nil {
		return err
	}
	batches := watcher.NewDebouncer(MiddlewareDebounce).Run(ctx, events)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn(ctx, err, "middleware watcher error")
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			s.logger.Info(ctx, "middleware changed", "files", len(batch))
			if err := s.RestartHTTPServer(ctx); err != nil {
				s.ui.WriteError(err, false)
			}
		}
	}
}
