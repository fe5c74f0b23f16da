package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/version"
)

// HealthPath reports server status as JSON.
const HealthPath = "/_kiln/health"

// handler assembles the chain: compression, project middleware, addon
// middleware in registration order, then static files or the proxy.
func (s *DevServer) handler() http.Handler {
	h := s.assets()

	for i := len(s.opts.Addons) - 1; i >= 0; i-- {
		if mw, ok := s.opts.Addons[i].(build.ServerMiddlewarer); ok {
			h = mw.ServerMiddleware(h)
		}
	}

	h = s.projectMiddleware(h)
	h = s.health(h)
	h = s.logRequests(h)

	if s.opts.Compress {
		h = gzhttp.GzipHandler(h)
	}
	return h
}

func (s *DevServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *DevServer) health(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != HealthPath {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"version":   version.GetShortVersion(),
			"sockets":   s.sockets.len(),
			"timestamp": time.Now().UTC(),
		})
	})
}

func (s *DevServer) modulePath() string {
	if s.opts.MiddlewareDir == "" {
		return ""
	}
	return filepath.Join(s.opts.MiddlewareDir, ModuleFile)
}

func (s *DevServer) projectMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := s.modulePath()
		if p == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := os.Stat(p); err != nil {
			next.ServeHTTP(w, r)
			return
		}
		m, err := s.modules.Load(p)
		if err != nil {
			s.logger.Error(r.Context(), err, "loading project middleware")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if m.Serve(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// assets serves the build output once the watcher's build is ready,
// falling back to the proxy and then to index.html for HTML requests.
func (s *DevServer) assets() http.Handler {
	var proxy *httputil.ReverseProxy
	if s.proxyTarget != nil {
		proxy = httputil.NewSingleHostReverseProxy(s.proxyTarget)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Watcher != nil {
			if err := s.waitReady(r.Context()); err != nil {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("Build Error\n\n" + err.Error() + "\n"))
				return
			}
		}

		clean := path.Clean("/" + r.URL.Path)
		file := filepath.Join(s.opts.OutputPath, filepath.FromSlash(clean))
		if info, err := os.Stat(file); err == nil {
			if !info.IsDir() {
				http.ServeFile(w, r, file)
				return
			}
			index := filepath.Join(file, "index.html")
			if _, err := os.Stat(index); err == nil {
				http.ServeFile(w, r, index)
				return
			}
		}

		if proxy != nil {
			proxy.ServeHTTP(w, r)
			return
		}

		if (r.Method == http.MethodGet || r.Method == http.MethodHead) && acceptsHTML(r) {
			index := filepath.Join(s.opts.OutputPath, "index.html")
			if _, err := os.Stat(index); err == nil {
				http.ServeFile(w, r, index)
				return
			}
		}
		http.NotFound(w, r)
	})
}

func (s *DevServer) waitReady(ctx context.Context) error {
	return s.opts.Watcher.WaitReady(ctx)
}

func acceptsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}
