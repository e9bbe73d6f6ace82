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

// Package vcsgit wraps the git plumbing commands this module shells out to:
// sparse-checkout, config, rev-parse, hash-object, cat-file, update-ref,
// for-each-ref, fetch, and push. Every call goes through a
// procdriver.Driver with an explicit working directory and captured
// output.
package vcsgit

import (
	"context"
	"fmt"
	"strings"

	"github.com/focusvcs/focus/internal/procdriver"
)

// Repo is a handle on a git working copy rooted at Dir.
type Repo struct {
	Dir string
	// Bin is the git binary to invoke. Empty means "git" (resolved via
	// PATH), overridable by callers that honor FOCUS_GIT_BINARY_PATH.
	Bin    string
	driver *procdriver.Driver
}

// Open returns a Repo handle backed by driver, rooted at dir. It performs no
// I/O; callers that need to verify dir is a git repo should call Status.
func Open(dir string, driver *procdriver.Driver) *Repo {
	return &Repo{Dir: dir, driver: driver}
}

func (r *Repo) bin() string {
	if r.Bin != "" {
		return r.Bin
	}
	return "git"
}

// run spawns one git invocation. The caller owns the returned Result and
// must Close it after reading any captured output; Close is what releases
// the invocation's scratch directory.
func (r *Repo) run(ctx context.Context, allowNonZero bool, args ...string) (*procdriver.Result, error) {
	return r.driver.Run(ctx, procdriver.Invocation{
		Name:             r.bin(),
		Args:             args,
		Cwd:              r.Dir,
		AllowNonZeroExit: allowNonZero,
	})
}

func (r *Repo) output(ctx context.Context, args ...string) (string, error) {
	result, err := r.run(ctx, false, args...)
	if result != nil {
		defer result.Close()
	}
	if err != nil {
		return "", err
	}
	out, err := result.StdoutBytes()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// StatusEntry is one line of `git status --porcelain=v1` output.
type StatusEntry struct {
	// Code is the two-letter XY status code, e.g. " M", "??", "A ".
	Code string
	Path string
}

// IsDirty reports whether there are any staged or unstaged changes.
func (r *Repo) IsDirty(ctx context.Context) (bool, error) {
	entries, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// Status returns the parsed output of `git status --porcelain=v1 --no-renames`.
func (r *Repo) Status(ctx context.Context) ([]StatusEntry, error) {
	out, err := r.output(ctx, "status", "--porcelain=v1", "--no-renames")
	if err != nil {
		return nil, fmt.Errorf("vcsgit: status: %w", err)
	}
	var entries []StatusEntry
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if len(line) < 4 {
			continue
		}
		entries = append(entries, StatusEntry{Code: line[:2], Path: strings.TrimSpace(line[3:])})
	}
	return entries, nil
}

// RevParse resolves a revision expression (e.g. "HEAD", "origin/main") to a
// full object ID.
func (r *Repo) RevParse(ctx context.Context, rev string) (string, error) {
	out, err := r.output(ctx, "rev-parse", rev)
	if err != nil {
		return "", fmt.Errorf("vcsgit: rev-parse %s: %w", rev, err)
	}
	return strings.TrimSpace(out), nil
}

// ReadConfig runs `git config --get <key>` and returns its value. It always
// invokes the subprocess rather than consulting any cache, because a config
// value can change underneath a long-lived process (e.g. a user editing
// .git/config between sync invocations).
func (r *Repo) ReadConfig(ctx context.Context, key string) (string, bool, error) {
	result, err := r.run(ctx, true, "config", "--get", key)
	if result != nil {
		defer result.Close()
	}
	if err != nil {
		return "", false, fmt.Errorf("vcsgit: config --get %s: %w", key, err)
	}
	if result.ExitCode == 1 {
		return "", false, nil
	}
	if result.ExitCode != 0 {
		stderr, _ := result.StderrBytes()
		return "", false, fmt.Errorf("vcsgit: config --get %s: %s", key, stderr)
	}
	out, err := result.StdoutBytes()
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(string(out)), true, nil
}

// WriteConfig runs `git config <key> <value>`.
func (r *Repo) WriteConfig(ctx context.Context, key, value string) error {
	if _, err := r.output(ctx, "config", key, value); err != nil {
		return fmt.Errorf("vcsgit: config %s: %w", key, err)
	}
	return nil
}

// SparseCheckoutInit enables cone-mode sparse-checkout.
func (r *Repo) SparseCheckoutInit(ctx context.Context) error {
	if _, err := r.output(ctx, "sparse-checkout", "init", "--cone"); err != nil {
		return fmt.Errorf("vcsgit: sparse-checkout init: %w", err)
	}
	return nil
}

// SparseCheckoutSet replaces the sparse-checkout pattern set with paths and
// materializes the working tree.
func (r *Repo) SparseCheckoutSet(ctx context.Context, paths []string) error {
	args := append([]string{"sparse-checkout", "set"}, paths...)
	if _, err := r.output(ctx, args...); err != nil {
		return fmt.Errorf("vcsgit: sparse-checkout set: %w", err)
	}
	return nil
}

// SparseCheckoutList returns the current sparse-checkout pattern set.
func (r *Repo) SparseCheckoutList(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "sparse-checkout", "list")
	if err != nil {
		return nil, fmt.Errorf("vcsgit: sparse-checkout list: %w", err)
	}
	return splitNonEmptyLines(out), nil
}

// HashObject computes and optionally writes a git blob object for data,
// returning its object ID. The index uses it to content-address cached
// blobs inside the repo's own object database.
func (r *Repo) HashObject(ctx context.Context, data []byte, write bool) (string, error) {
	args := []string{"hash-object", "--stdin"}
	if write {
		args = append(args, "-w")
	}
	result, err := r.driver.Run(ctx, procdriver.Invocation{
		Name:  r.bin(),
		Args:  args,
		Cwd:   r.Dir,
		Stdin: strings.NewReader(string(data)),
	})
	if result != nil {
		defer result.Close()
	}
	if err != nil {
		return "", fmt.Errorf("vcsgit: hash-object: %w", err)
	}
	out, err := result.StdoutBytes()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// CatFile reads a git object's raw content by object ID.
func (r *Repo) CatFile(ctx context.Context, oid string) ([]byte, error) {
	result, err := r.run(ctx, false, "cat-file", "-p", oid)
	if result != nil {
		defer result.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("vcsgit: cat-file %s: %w", oid, err)
	}
	return result.StdoutBytes()
}

// ObjectExists reports whether oid names an object present in the local
// object database, via `git cat-file -e`.
func (r *Repo) ObjectExists(ctx context.Context, oid string) (bool, error) {
	result, err := r.run(ctx, true, "cat-file", "-e", oid)
	if result != nil {
		defer result.Close()
	}
	if err != nil {
		return false, fmt.Errorf("vcsgit: cat-file -e %s: %w", oid, err)
	}
	return result.ExitCode == 0, nil
}

// UpdateRef creates or moves ref to point at oid.
func (r *Repo) UpdateRef(ctx context.Context, ref, oid string) error {
	if _, err := r.output(ctx, "update-ref", ref, oid); err != nil {
		return fmt.Errorf("vcsgit: update-ref %s %s: %w", ref, oid, err)
	}
	return nil
}

// DeleteRef removes ref.
func (r *Repo) DeleteRef(ctx context.Context, ref string) error {
	if _, err := r.output(ctx, "update-ref", "-d", ref); err != nil {
		return fmt.Errorf("vcsgit: update-ref -d %s: %w", ref, err)
	}
	return nil
}

// Ref is one line of `git for-each-ref` output.
type Ref struct {
	OID  string
	Name string
}

// ForEachRef lists refs matching pattern (e.g. "refs/focus/index/*").
func (r *Repo) ForEachRef(ctx context.Context, pattern string) ([]Ref, error) {
	out, err := r.output(ctx, "for-each-ref", "--format=%(objectname) %(refname)", pattern)
	if err != nil {
		return nil, fmt.Errorf("vcsgit: for-each-ref %s: %w", pattern, err)
	}
	var refs []Ref
	for _, line := range splitNonEmptyLines(out) {
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		refs = append(refs, Ref{OID: fields[0], Name: fields[1]})
	}
	return refs, nil
}

// Fetch runs `git fetch <remote> <refspecs...>`.
func (r *Repo) Fetch(ctx context.Context, remote string, refspecs ...string) error {
	args := append([]string{"fetch", remote}, refspecs...)
	if _, err := r.output(ctx, args...); err != nil {
		return fmt.Errorf("vcsgit: fetch %s: %w", remote, err)
	}
	return nil
}

// Push runs `git push <remote> <refspecs...>`.
func (r *Repo) Push(ctx context.Context, remote string, refspecs ...string) error {
	args := append([]string{"push", remote}, refspecs...)
	if _, err := r.output(ctx, args...); err != nil {
		return fmt.Errorf("vcsgit: push %s: %w", remote, err)
	}
	return nil
}

// CurrentBranch returns the short name of the currently checked-out branch,
// or "" in detached-HEAD state.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	result, err := r.run(ctx, true, "symbolic-ref", "--short", "-q", "HEAD")
	if result != nil {
		defer result.Close()
	}
	if err != nil {
		return "", fmt.Errorf("vcsgit: symbolic-ref: %w", err)
	}
	if result.ExitCode != 0 {
		return "", nil
	}
	out, err := result.StdoutBytes()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
