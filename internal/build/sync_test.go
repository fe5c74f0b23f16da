package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/project"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestSyncMirrorsTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "dist")

	writeTree(t, src, map[string]string{
		"index.html":        "v1",
		"assets/app.js":     "js",
		"assets/vendor.css": "css",
	})
	stats, err := Sync(src, dst)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Copied: 3}, stats)

	writeTree(t, src, map[string]string{"index.html": "v2"})
	require.NoError(t, os.RemoveAll(filepath.Join(src, "assets")))
	writeTree(t, dst, map[string]string{"stale/old.txt": "old"})

	stats, err = Sync(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Copied)
	assert.Equal(t, 3, stats.Removed)

	data, err := os.ReadFile(filepath.Join(dst, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	_, err = os.Stat(filepath.Join(dst, "assets"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dst, "stale"))
	assert.True(t, os.IsNotExist(err))

	stats, err = Sync(src, dst)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Unchanged: 1}, stats)
}

func TestSyncSameSizeDifferentContent(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "abc"})
	writeTree(t, dst, map[string]string{"a.txt": "xyz"})

	stats, err := Sync(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Copied)
}

func TestSyncEntryChangesType(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dist")

	src := t.TempDir()
	writeTree(t, src, map[string]string{"assets": "file"})
	_, err := Sync(src, dst)
	require.NoError(t, err)

	src = t.TempDir()
	writeTree(t, src, map[string]string{"assets/app.js": "js", "assets/img/logo.svg": "svg"})
	stats, err := Sync(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Copied)
	assert.Equal(t, 1, stats.Removed)
	data, err := os.ReadFile(filepath.Join(dst, "assets", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "js", string(data))

	src = t.TempDir()
	writeTree(t, src, map[string]string{"assets": "file again"})
	stats, err = Sync(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Copied)
	assert.Equal(t, 2, stats.Removed)
	data, err = os.ReadFile(filepath.Join(dst, "assets"))
	require.NoError(t, err)
	assert.Equal(t, "file again", string(data))
}

func TestCanDeleteOutputPath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "home", "me", "app")
	tests := []struct {
		out  string
		want bool
	}{
		{root, false},
		{root + string(filepath.Separator), false},
		{filepath.Dir(root), false},
		{filepath.Join(string(filepath.Separator), "home"), false},
		{string(filepath.Separator), false},
		{filepath.Join(root, "dist"), true},
		{filepath.Join(filepath.Dir(root), "app-dist"), true},
		{filepath.Join(string(filepath.Separator), "tmp", "out"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanDeleteOutputPath(root, tt.out), tt.out)
	}
}

func TestCheckEnvironment(t *testing.T) {
	pkg := project.PackageJSON{
		Dependencies:    map[string]string{"old": "^1.2.0", "fresh": "~3.1.0", "weird": "latest"},
		DevDependencies: map[string]string{"dev-old": "0.9.0"},
	}
	warnings := CheckEnvironment(pkg, map[string]string{
		"old":     "2.0.0",
		"fresh":   "3.0.0",
		"weird":   "1.0.0",
		"dev-old": "1.0.0",
		"absent":  "1.0.0",
	})
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "dev-old 0.9.0")
	assert.Contains(t, warnings[1], "old ^1.2.0")
}
