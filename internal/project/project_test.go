package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "kiln.yml"), []byte("name: demo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"),
		[]byte(`{"name":"demo","dependencies":{"a":"^1.0.0"},"devDependencies":{"b":"2.1.0"}}`), 0o644))
	nested := filepath.Join(root, "app", "components")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	p, err := Find(nested)
	require.NoError(t, err)
	assert.True(t, p.IsProject())

	want, _ := filepath.EvalSymlinks(root)
	got, _ := filepath.EvalSymlinks(p.Root)
	assert.Equal(t, want, got)
	assert.Equal(t, "demo", p.Config.Name)
	assert.Equal(t, "demo", p.PackageJSON.Name)

	v, ok := p.PackageJSON.DependencyVersion("b")
	assert.True(t, ok)
	assert.Equal(t, "2.1.0", v)
	_, ok = p.PackageJSON.DependencyVersion("c")
	assert.False(t, ok)
}

func TestFindOutsideProject(t *testing.T) {
	p, err := Find(t.TempDir())
	require.NoError(t, err)
	assert.False(t, p.IsProject())
	assert.NotNil(t, p.Config)
}

func TestReadPackageJSON(t *testing.T) {
	dir := t.TempDir()

	pkg, err := ReadPackageJSON(filepath.Join(dir, "package.json"))
	require.NoError(t, err)
	assert.Empty(t, pkg.Name)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = ReadPackageJSON(bad)
	assert.Error(t, err)
}
