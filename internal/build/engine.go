package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// Request describes one pipeline evaluation.
type Request struct {
	Count           int
	Environment     string
	InvalidatedFile string
	Annotation      string
}

// Result is the outcome of one pipeline evaluation.
type Result struct {
	// Directory holds the pipeline output. It is owned by the engine and
	// only valid until the next Build.
	Directory string
	Output    []byte
	Duration  time.Duration
	Request   Request
}

// Engine is the external pipeline. It is opaque to the Builder.
type Engine interface {
	Build(ctx context.Context, req Request) (Result, error)
	Cleanup() error
}

// OutputPlaceholder is replaced in pipeline commands with the staging
// directory the pipeline must write into.
const OutputPlaceholder = "{{output}}"

// ExecEngine runs a shell command as the pipeline. With an empty Command it
// copies Sources from the project root into the staging directory.
type ExecEngine struct {
	Command string
	Dir     string
	Sources []string
	Env     []string

	mu      sync.Mutex
	staging string
}

// NewExecEngine creates an engine rooted at dir.
func NewExecEngine(dir, command string, sources []string) *ExecEngine {
	return &ExecEngine{Command: command, Dir: dir, Sources: sources}
}

func (e *ExecEngine) stagingDir() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.staging != "" {
		if err := os.RemoveAll(e.staging); err != nil {
			return "", err
		}
		return e.staging, os.MkdirAll(e.staging, 0o755)
	}
	dir, err := os.MkdirTemp("", "kiln-build-")
	if err != nil {
		return "", err
	}
	e.staging = dir
	return dir, nil
}

// Build implements Engine.
func (e *ExecEngine) Build(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	out, err := e.stagingDir()
	if err != nil {
		return Result{}, kerrors.NewIOError(kerrors.ErrCodeBuildFailed, "preparing build directory", err)
	}

	res := Result{Directory: out, Request: req}
	if strings.TrimSpace(e.Command) == "" {
		err = e.copySources(out)
	} else {
		res.Output, err = e.run(ctx, out, req)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	return res, nil
}

func (e *ExecEngine) run(ctx context.Context, out string, req Request) ([]byte, error) {
	command := strings.ReplaceAll(e.Command, OutputPlaceholder, out)
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = e.Dir
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Env = append(cmd.Env,
		"KILN_OUTPUT_DIR="+out,
		"KILN_ENV="+req.Environment,
		"KILN_INVALIDATED_FILE="+req.InvalidatedFile,
	)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.Bytes(), kerrors.ParseBuildOutput(buf.Bytes(), err)
	}
	return buf.Bytes(), nil
}

func (e *ExecEngine) copySources(out string) error {
	for _, src := range e.Sources {
		from := filepath.Join(e.Dir, src)
		info, err := os.Stat(from)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return kerrors.NewIOError(kerrors.ErrCodeBuildFailed, "reading "+src, err)
		}
		if !info.IsDir() {
			if err := copyFile(from, filepath.Join(out, filepath.Base(src)), info.Mode()); err != nil {
				return err
			}
			continue
		}
		if err := copyTree(from, out); err != nil {
			return kerrors.NewIOError(kerrors.ErrCodeBuildFailed, "copying "+src, err)
		}
	}
	return nil
}

// Cleanup removes the staging directory. It is safe before any Build.
func (e *ExecEngine) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.staging == "" {
		return nil
	}
	dir := e.staging
	e.staging = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}

func copyTree(from, to string) error {
	return filepath.WalkDir(from, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(from, to string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
