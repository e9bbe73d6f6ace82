// Copyright 2026 The Focus Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package procdriver runs external binaries. Every subprocess this module
// spawns - git, the build tool - runs through a Driver so that
// scratch-directory management, output capture, and the explicit-cwd
// contract are handled in exactly one place.
package procdriver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// Driver spawns subprocesses in a per-invocation scratch directory.
type Driver struct {
	// RootDir is the parent directory under which scratch directories are
	// created. Defaults to os.TempDir() (see New).
	RootDir string

	// CompressThreshold is the captured-stream size, in bytes, at or above
	// which a stream is transparently xz-compressed before being left on disk.
	// Zero selects a 1 MiB default.
	CompressThreshold int64
}

const defaultCompressThreshold = 1 << 20 // 1 MiB

// New returns a Driver rooted at rootDir. If rootDir is "", it defaults to
// os.TempDir(), matching FOCUS_WORKING_DIRECTORY's documented fallback.
func New(rootDir string) *Driver {
	if rootDir == "" {
		rootDir = os.TempDir()
	}
	return &Driver{RootDir: rootDir, CompressThreshold: defaultCompressThreshold}
}

// Invocation describes a single subprocess call.
type Invocation struct {
	// Name is the binary to execute, e.g. "git" or "bazel".
	Name string
	Args []string

	// Cwd is the working directory the subprocess runs in. It is required:
	// the driver never inherits the parent process's current directory.
	Cwd string

	// AllowNonZeroExit, when true, treats a non-zero exit code as a normal
	// (non-error) outcome that the caller inspects via Result.ExitCode.
	AllowNonZeroExit bool

	// PreserveSandbox keeps the scratch directory on disk even after a
	// successful run, for later inspection.
	PreserveSandbox bool

	// Stdin, if set, is copied to the subprocess's standard input.
	Stdin io.Reader
}

// Result is the outcome of one Invocation.
type Result struct {
	ExitCode   int
	ScratchDir string

	stdoutPath string
	stderrPath string
	preserve   bool
}

// Stdout returns a reader over the captured standard output, transparently
// decompressing it if it was xz-compressed on write.
func (r *Result) Stdout() (io.ReadCloser, error) { return openCaptured(r.stdoutPath) }

// Stderr returns a reader over the captured standard error.
func (r *Result) Stderr() (io.ReadCloser, error) { return openCaptured(r.stderrPath) }

// StdoutBytes reads the entirety of the captured standard output.
func (r *Result) StdoutBytes() ([]byte, error) { return readAllCaptured(r.stdoutPath) }

// StderrBytes reads the entirety of the captured standard error.
func (r *Result) StderrBytes() ([]byte, error) { return readAllCaptured(r.stderrPath) }

// Close removes the scratch directory unless the invocation asked to
// preserve it, or the invocation failed. Failed sandboxes stay around for
// debugging; PreserveSandbox forces retention regardless of outcome.
func (r *Result) Close() error {
	if r.preserve {
		return nil
	}
	return os.RemoveAll(r.ScratchDir)
}

// ExitError is returned when a subprocess exits non-zero and the caller did
// not opt out via AllowNonZeroExit.
type ExitError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s %v: exit code %d: %s", e.Name, e.Args, e.ExitCode, e.Stderr)
}

// Run spawns inv.Name with inv.Args in inv.Cwd, capturing stdout/stderr into
// files under a fresh scratch directory rather than memory buffers, so a
// misbehaving subprocess's output cannot blow up this process's heap.
func (d *Driver) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Cwd == "" {
		return nil, fmt.Errorf("procdriver: Cwd must be set explicitly for %s", inv.Name)
	}

	scratchDir, err := os.MkdirTemp(d.RootDir, "focus-"+inv.Name+"-*")
	if err != nil {
		return nil, fmt.Errorf("procdriver: creating scratch dir: %w", err)
	}

	stdoutPath := filepath.Join(scratchDir, "stdout")
	stderrPath := filepath.Join(scratchDir, "stderr")
	stdoutFile, err := os.Create(stdoutPath)
	if err != nil {
		os.RemoveAll(scratchDir)
		return nil, err
	}
	defer stdoutFile.Close()
	stderrFile, err := os.Create(stderrPath)
	if err != nil {
		os.RemoveAll(scratchDir)
		return nil, err
	}
	defer stderrFile.Close()

	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Cwd
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	if inv.Stdin != nil {
		cmd.Stdin = inv.Stdin
	}

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !isExitError(runErr, &exitErr) {
			os.RemoveAll(scratchDir)
			return nil, fmt.Errorf("procdriver: spawning %s: %w", inv.Name, runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	stdoutFile.Close()
	stderrFile.Close()
	if err := d.compressIfLarge(stdoutPath); err != nil {
		return nil, err
	}
	if err := d.compressIfLarge(stderrPath); err != nil {
		return nil, err
	}

	success := exitCode == 0 || inv.AllowNonZeroExit
	result := &Result{
		ExitCode:   exitCode,
		ScratchDir: scratchDir,
		stdoutPath: stdoutPath,
		stderrPath: stderrPath,
		preserve:   inv.PreserveSandbox || !success,
	}

	if !success {
		stderr, _ := result.StderrBytes()
		return result, &ExitError{Name: inv.Name, Args: inv.Args, ExitCode: exitCode, Stderr: string(stderr)}
	}
	return result, nil
}

func isExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

func (d *Driver) compressIfLarge(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	threshold := d.CompressThreshold
	if threshold == 0 {
		threshold = defaultCompressThreshold
	}
	if info.Size() < threshold {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var compressed bytes.Buffer
	w, err := xz.NewWriter(&compressed)
	if err != nil {
		return fmt.Errorf("procdriver: creating xz writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := os.WriteFile(path+".xz", compressed.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Remove(path)
}

func openCaptured(path string) (io.ReadCloser, error) {
	if f, err := os.Open(path + ".xz"); err == nil {
		r, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &xzReadCloser{reader: r, file: f}, nil
	}
	return os.Open(path)
}

func readAllCaptured(path string) ([]byte, error) {
	r, err := openCaptured(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// xzReadCloser adapts an xz.Reader (which has no Close method of its own)
// to io.ReadCloser by closing the underlying file.
type xzReadCloser struct {
	reader *xz.Reader
	file   *os.File
}

func (r *xzReadCloser) Read(p []byte) (int, error) { return r.reader.Read(p) }
func (r *xzReadCloser) Close() error                { return r.file.Close() }
