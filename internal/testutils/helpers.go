// Package testutils holds fixtures shared by kiln package tests.
package testutils

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/process"
	"github.com/conneroisu/kiln/internal/project"
)

// MinimalConfig is a kiln.yml with nothing but a name.
const MinimalConfig = "name: demo\n"

// CreateTempProject writes kilnYML and files into a fresh temporary
// directory and returns its path. File names use forward slashes.
func CreateTempProject(t *testing.T, kilnYML string, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "kiln.yml"), []byte(kilnYML), 0o644))
	WriteFiles(t, root, files)
	return root
}

// WriteFiles creates each file under root, making parent directories.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// LoadProject creates a temporary project and loads it.
func LoadProject(t *testing.T, kilnYML string, files map[string]string) *project.Project {
	t.Helper()
	p, err := project.Load(CreateTempProject(t, kilnYML, files))
	require.NoError(t, err)
	return p
}

// NewTrap returns a trap that never exits the test binary and is reset
// when the test ends.
func NewTrap(t *testing.T) *process.Trap {
	t.Helper()
	trap := process.New(process.WithExitFunc(func(int) {}), process.WithRawCtrlC(false))
	t.Cleanup(trap.Reset)
	return trap
}

// SyncBuffer is a bytes.Buffer safe for concurrent writers such as a
// running watcher and the test goroutine.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// WaitForFileContent waits until path holds want.
func WaitForFileContent(t *testing.T, path, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && string(data) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("file %s did not contain %q within %v", path, want, timeout)
}
