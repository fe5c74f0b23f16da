package npm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

func TestDetect(t *testing.T) {
	root := t.TempDir()

	m, err := Detect(root, "")
	require.NoError(t, err)
	assert.Equal(t, NPM, m)

	require.NoError(t, os.WriteFile(filepath.Join(root, "yarn.lock"), nil, 0o644))
	m, err = Detect(root, "")
	require.NoError(t, err)
	assert.Equal(t, Yarn, m)

	m, err = Detect(root, PNPM)
	require.NoError(t, err)
	assert.Equal(t, PNPM, m)

	_, err = Detect(root, "bower")
	require.Error(t, err)
	assert.True(t, kerrors.IsSilent(err))
}

func TestInstallArgs(t *testing.T) {
	tests := []struct {
		manager string
		opts    Options
		want    []string
	}{
		{NPM, Options{}, []string{"install"}},
		{NPM, Options{Packages: []string{"a"}, SaveDev: true, SaveExact: true}, []string{"install", "--save-dev", "--save-exact", "a"}},
		{NPM, Options{Packages: []string{"a", "b"}}, []string{"install", "--save", "a", "b"}},
		{Yarn, Options{Packages: []string{"a"}, SaveDev: true}, []string{"add", "--dev", "a"}},
		{PNPM, Options{Packages: []string{"a"}, SaveExact: true}, []string{"add", "--exact", "a"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InstallArgs(tt.manager, tt.opts))
	}
}

func TestUninstallArgs(t *testing.T) {
	assert.Equal(t, []string{"uninstall", "--save", "a"}, UninstallArgs(NPM, Options{Packages: []string{"a"}}))
	assert.Equal(t, []string{"remove", "a"}, UninstallArgs(Yarn, Options{Packages: []string{"a"}}))
}
