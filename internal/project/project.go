// Package project locates the kiln project that encloses a directory.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/conneroisu/kiln/internal/config"
)

// Project is a directory tree rooted at a kiln.yml.
type Project struct {
	Root        string
	Config      *config.Config
	PackageJSON PackageJSON
	null        bool
}

// Null is the project handle used outside any project.
func Null() *Project {
	return &Project{Config: config.Default(), null: true}
}

// IsProject reports whether p is a real project.
func (p *Project) IsProject() bool {
	return p != nil && !p.null
}

// Find walks up from dir looking for kiln.yml. Outside a project it returns
// Null and no error.
func Find(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	root, ok := findRoot(abs)
	if !ok {
		return Null(), nil
	}
	return Load(root)
}

// Load reads the project rooted at root.
func Load(root string) (*Project, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	pkg, err := ReadPackageJSON(filepath.Join(root, "package.json"))
	if err != nil {
		return nil, err
	}
	return &Project{Root: root, Config: cfg, PackageJSON: pkg}, nil
}

func findRoot(dir string) (string, bool) {
	for {
		if info, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil && !info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// PackageJSON is the subset of package.json kiln reads.
type PackageJSON struct {
	Name            string
	Version         string
	Dependencies    map[string]string
	DevDependencies map[string]string
}

// ReadPackageJSON parses path. A missing file yields an empty PackageJSON.
func ReadPackageJSON(path string) (PackageJSON, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return PackageJSON{}, nil
	}
	if err != nil {
		return PackageJSON{}, err
	}
	if !gjson.ValidBytes(data) {
		return PackageJSON{}, fmt.Errorf("%s is not valid JSON", path)
	}
	doc := gjson.ParseBytes(data)
	return PackageJSON{
		Name:            doc.Get("name").String(),
		Version:         doc.Get("version").String(),
		Dependencies:    stringMap(doc.Get("dependencies")),
		DevDependencies: stringMap(doc.Get("devDependencies")),
	}, nil
}

func stringMap(r gjson.Result) map[string]string {
	out := map[string]string{}
	r.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.String()
		return true
	})
	return out
}

// DependencyVersion returns the declared version range of name from
// dependencies or devDependencies.
func (p PackageJSON) DependencyVersion(name string) (string, bool) {
	if v, ok := p.Dependencies[name]; ok {
		return v, true
	}
	v, ok := p.DevDependencies[name]
	return v, ok
}
