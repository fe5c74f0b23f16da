package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRC(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
}

func TestLoadProjectOverridesHome(t *testing.T) {
	home := t.TempDir()
	root := t.TempDir()
	writeRC(t, home, `{"port": 3000, "outputPath": "home-dist", "liveReload": false}`)
	writeRC(t, root, `{"port": 5000, "environment": "production"}`)

	s, err := Load(root, home)
	require.NoError(t, err)

	port, ok := s.Get("port")
	require.True(t, ok)
	assert.EqualValues(t, 5000, port)

	out, ok := s.Get("output-path")
	require.True(t, ok)
	assert.Equal(t, "home-dist", out)

	lr, ok := s.Get("live-reload")
	require.True(t, ok)
	assert.Equal(t, false, lr)

	env, _ := s.Get("environment")
	assert.Equal(t, "production", env)
}

func TestLoadProjectWinsAcrossSpellings(t *testing.T) {
	home := t.TempDir()
	root := t.TempDir()
	writeRC(t, home, `{"outputPath": "home", "live_reload": true}`)
	writeRC(t, root, `{"output-path": "project", "liveReload": false}`)

	for i := 0; i < 50; i++ {
		s, err := Load(root, home)
		require.NoError(t, err)

		out, _ := s.Get("output-path")
		require.Equal(t, "project", out)
		lr, _ := s.Get("live-reload")
		require.Equal(t, false, lr)
		require.Equal(t, 2, s.Len())
	}
}

func TestLoadMissingFiles(t *testing.T) {
	s, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	_, ok := s.Get("port")
	assert.False(t, ok)
}

func TestLoadInvalidJSON(t *testing.T) {
	root := t.TempDir()
	writeRC(t, root, `{"port":`)
	_, err := Load(root, "")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "output-path", Normalize("outputPath"))
	assert.Equal(t, "output-path", Normalize("output_path"))
	assert.Equal(t, "output-path", Normalize("output-path"))
	assert.Equal(t, "port", Normalize("port"))
}

func TestNilSettings(t *testing.T) {
	var s *Settings
	_, ok := s.Get("port")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}
