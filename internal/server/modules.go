package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

// ModuleFile is the project middleware module inside the middleware dir.
const ModuleFile = "index.yml"

// Route is one declarative project middleware rule.
type Route struct {
	// Path matches exactly, or as a prefix when it ends in "/*".
	Path    string            `yaml:"path"`
	Method  string            `yaml:"method"`
	Status  int               `yaml:"status"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
	// File is served as the body, relative to the middleware dir.
	File  string `yaml:"file"`
	Proxy string `yaml:"proxy"`
}

// Module is a parsed index.yml.
type Module struct {
	Dir    string  `yaml:"-"`
	Routes []Route `yaml:"routes"`

	proxies map[int]*httputil.ReverseProxy
}

// LoadModule parses path.
func LoadModule(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Module
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)
	m.proxies = make(map[int]*httputil.ReverseProxy)
	for i, r := range m.Routes {
		if r.Path == "" {
			return nil, fmt.Errorf("%s: route %d has no path", path, i)
		}
		if r.Proxy == "" {
			continue
		}
		target, err := url.Parse(r.Proxy)
		if err != nil {
			return nil, fmt.Errorf("%s: route %d proxy: %w", path, i, err)
		}
		m.proxies[i] = httputil.NewSingleHostReverseProxy(target)
	}
	return &m, nil
}

func (r Route) matches(req *http.Request) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, req.Method) {
		return false
	}
	if prefix, ok := strings.CutSuffix(r.Path, "/*"); ok {
		return req.URL.Path == prefix || strings.HasPrefix(req.URL.Path, prefix+"/")
	}
	return req.URL.Path == r.Path
}

// Serve handles req if a route matches and reports whether it did.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) bool {
	for i, r := range m.Routes {
		if !r.matches(req) {
			continue
		}
		if p, ok := m.proxies[i]; ok {
			p.ServeHTTP(w, req)
			return true
		}
		for k, v := range r.Headers {
			w.Header().Set(k, v)
		}
		body := []byte(r.Body)
		if r.File != "" {
			data, err := os.ReadFile(filepath.Join(m.Dir, filepath.FromSlash(r.File)))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return true
			}
			body = data
		}
		status := r.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return true
	}
	return false
}

// ModuleCache caches parsed modules by absolute path.
type ModuleCache struct {
	cache *lru.Cache[string, *Module]
}

// NewModuleCache creates a cache holding up to size modules.
func NewModuleCache(size int) *ModuleCache {
	if size <= 0 {
		size = 16
	}
	// New only fails for a non-positive size.
	c, _ := lru.New[string, *Module](size)
	return &ModuleCache{cache: c}
}

// Load returns the cached module for path, parsing it on a miss.
func (c *ModuleCache) Load(path string) (*Module, error) {
	if m, ok := c.cache.Get(path); ok {
		return m, nil
	}
	m, err := LoadModule(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, m)
	return m, nil
}

// InvalidatePrefix drops every module whose path starts with prefix and
// returns how many were dropped.
func (c *ModuleCache) InvalidatePrefix(prefix string) int {
	n := 0
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
			n++
		}
	}
	return n
}

// Len returns the number of cached modules.
func (c *ModuleCache) Len() int { return c.cache.Len() }
