package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		env         map[string]string
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:    "defaults",
			content: "name: app\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "app", cfg.Name)
				assert.Equal(t, 4200, cfg.Server.Port)
				assert.Equal(t, 35729, cfg.Server.LiveReloadPort)
				assert.Equal(t, "server", cfg.Server.MiddlewareDir)
				assert.True(t, cfg.Server.Compress)
				assert.Contains(t, cfg.Build.Ignore, "node_modules")
			},
		},
		{
			name: "addons and pipeline",
			content: `
build:
  command: "cp -r app/. {{output}}"
addons:
  - name: first
    pre_build: "echo first"
    headers:
      X-Kiln: "yes"
  - name: second
    post_build: "echo second"
min_versions:
  kiln-instrumentation: 2.0.0
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "cp -r app/. {{output}}", cfg.Build.Command)
				require.Len(t, cfg.Addons, 2)
				assert.Equal(t, "first", cfg.Addons[0].Name)
				assert.Equal(t, "echo first", cfg.Addons[0].PreBuild)
				assert.Equal(t, "yes", cfg.Addons[0].Headers["x-kiln"])
				assert.Equal(t, "echo second", cfg.Addons[1].PostBuild)
				assert.Equal(t, "2.0.0", cfg.MinVersions["kiln-instrumentation"])
			},
		},
		{
			name:    "environment override",
			content: "server:\n  port: 3000\n",
			env:     map[string]string{"KILN_SERVER_PORT": "5000"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5000, cfg.Server.Port)
			},
		},
		{
			name:        "unknown watcher",
			content:     "watcher: inotify\n",
			expectError: true,
		},
		{
			name:        "duplicate addon",
			content:     "addons:\n  - name: a\n  - name: a\n",
			expectError: true,
		},
		{
			name:        "invalid port",
			content:     "server:\n  port: 70000\n",
			expectError: true,
		},
		{
			name:        "malformed yaml",
			content:     "server: [\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			dir := writeConfig(t, tt.content)

			cfg, err := Load(dir)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestValidationErrorMessage(t *testing.T) {
	err := Validate(&Config{Watcher: "inotify"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watcher")
	assert.Contains(t, err.Error(), "polling")
}
