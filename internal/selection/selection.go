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

// Package selection persists the user's durable selection:
// .focus/projects.json and .focus/targets.json, each a push/pop/remove
// stack, written with a temp-file-then-rename so a crash mid-write never
// leaves a half-written file behind. A Store refuses to operate on a
// directory that isn't a focused repository (no .focus/ present).
package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/focusvcs/focus/internal/target"
)

// ErrNotAFocusedRepo is returned by Open when repoRoot has no .focus/
// directory.
var ErrNotAFocusedRepo = errors.New("selection: not a focused repository")

const focusDirName = ".focus"

// Store is a handle on one repo's selection state.
type Store struct {
	FocusDir string
}

// Open validates that repoRoot/.focus exists and returns a Store over it.
func Open(repoRoot string) (*Store, error) {
	focusDir := filepath.Join(repoRoot, focusDirName)
	info, err := os.Stat(focusDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAFocusedRepo
		}
		return nil, fmt.Errorf("selection: statting %s: %w", focusDir, err)
	}
	if !info.IsDir() {
		return nil, ErrNotAFocusedRepo
	}
	return &Store{FocusDir: focusDir}, nil
}

// Init creates repoRoot/.focus if absent, so a fresh repository can be
// focused for the first time.
func Init(repoRoot string) (*Store, error) {
	focusDir := filepath.Join(repoRoot, focusDirName)
	if err := os.MkdirAll(focusDir, 0o755); err != nil {
		return nil, fmt.Errorf("selection: creating %s: %w", focusDir, err)
	}
	return &Store{FocusDir: focusDir}, nil
}

type stackFile struct {
	Stack []string `json:"stack"`
}

func (s *Store) readStack(filename string) ([]string, error) {
	path := filepath.Join(s.FocusDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("selection: reading %s: %w", filename, err)
	}
	var file stackFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("selection: parsing %s: %w", filename, err)
	}
	return file.Stack, nil
}

func (s *Store) writeStack(filename string, stack []string) error {
	path := filepath.Join(s.FocusDir, filename)
	data, err := json.MarshalIndent(stackFile{Stack: stack}, "", "  ")
	if err != nil {
		return fmt.Errorf("selection: encoding %s: %w", filename, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("selection: writing %s: %w", filename, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("selection: renaming %s into place: %w", filename, err)
	}
	return nil
}

const (
	projectsFile = "projects.json"
	targetsFile  = "targets.json"
)

// ListProjects returns the currently selected project-layer names,
// bottom-of-stack first.
func (s *Store) ListProjects() ([]string, error) { return s.readStack(projectsFile) }

// PushProjects pushes names onto the top of the project stack, in order,
// skipping any name already present (pushing an already-selected project is
// a no-op for that name, matching a set-like "selected" semantics while
// preserving push order for everything else).
func (s *Store) PushProjects(names ...string) error {
	stack, err := s.ListProjects()
	if err != nil {
		return err
	}
	stack = pushUnique(stack, names)
	return s.writeStack(projectsFile, stack)
}

// PopProjects removes the top count entries of the project stack.
func (s *Store) PopProjects(count int) ([]string, error) {
	stack, err := s.ListProjects()
	if err != nil {
		return nil, err
	}
	stack, popped := pop(stack, count)
	return popped, s.writeStack(projectsFile, stack)
}

// RemoveProjects filters the named projects out of the stack, wherever
// they occur, preserving the relative order of what remains.
func (s *Store) RemoveProjects(names ...string) error {
	stack, err := s.ListProjects()
	if err != nil {
		return err
	}
	return s.writeStack(projectsFile, remove(stack, names))
}

// ListAdhocTargets returns the ad-hoc target stack as the "scheme:payload"
// coordinate strings they were pushed with (not re-rendered in canonical
// form), bottom-of-stack first.
func (s *Store) ListAdhocTargets() ([]string, error) { return s.readStack(targetsFile) }

// PushAdhocTargets validates and pushes coordinate strings onto the ad-hoc
// target stack.
func (s *Store) PushAdhocTargets(coordinates ...string) error {
	if _, err := target.FromStrings(coordinates); err != nil {
		return fmt.Errorf("selection: pushing adhoc targets: %w", err)
	}
	stack, err := s.ListAdhocTargets()
	if err != nil {
		return err
	}
	stack = pushUnique(stack, coordinates)
	return s.writeStack(targetsFile, stack)
}

// PopAdhocTargets removes the top count entries of the ad-hoc target
// stack.
func (s *Store) PopAdhocTargets(count int) ([]string, error) {
	stack, err := s.ListAdhocTargets()
	if err != nil {
		return nil, err
	}
	stack, popped := pop(stack, count)
	return popped, s.writeStack(targetsFile, stack)
}

// RemoveAdhocTargets filters the given coordinate strings out of the ad-hoc
// stack.
func (s *Store) RemoveAdhocTargets(coordinates ...string) error {
	stack, err := s.ListAdhocTargets()
	if err != nil {
		return err
	}
	return s.writeStack(targetsFile, remove(stack, coordinates))
}

// TargetSet resolves the ad-hoc target stack into a target.Set. Project
// layers are a higher-level concept (name -> target set, resolved by
// whatever registers project definitions) and are deliberately not
// expanded here; callers combine ListProjects' output with their own
// project registry before union-ing with this.
func (s *Store) TargetSet() (target.Set, error) {
	coords, err := s.ListAdhocTargets()
	if err != nil {
		return target.Set{}, err
	}
	return target.FromStrings(coords)
}

// Status is the result of the selection store's "status" operation: the
// contents of both stacks, and whether the working tree's sparse-checkout
// pattern set already matches what the current selection would produce.
type Status struct {
	Projects     []string
	AdhocTargets []string
	Synced       bool
}

// ComputeStatus builds a Status from the current stacks. synced is supplied
// by the caller (normally the sync engine, which alone knows how to
// resolve the selection into a pattern set and diff it against the
// pattern set `git sparse-checkout list` reports) rather than recomputed
// here, since that
// resolution requires the full resolver dispatch this package does not
// depend on.
func (s *Store) ComputeStatus(synced bool) (Status, error) {
	projects, err := s.ListProjects()
	if err != nil {
		return Status{}, err
	}
	targets, err := s.ListAdhocTargets()
	if err != nil {
		return Status{}, err
	}
	return Status{Projects: projects, AdhocTargets: targets, Synced: synced}, nil
}

func pushUnique(stack []string, names []string) []string {
	present := make(map[string]struct{}, len(stack))
	for _, n := range stack {
		present[n] = struct{}{}
	}
	for _, n := range names {
		if _, ok := present[n]; ok {
			continue
		}
		stack = append(stack, n)
		present[n] = struct{}{}
	}
	return stack
}

func pop(stack []string, count int) ([]string, []string) {
	if count <= 0 {
		return stack, nil
	}
	if count > len(stack) {
		count = len(stack)
	}
	split := len(stack) - count
	popped := make([]string, count)
	copy(popped, stack[split:])
	return stack[:split], popped
}

func remove(stack []string, names []string) []string {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := make([]string, 0, len(stack))
	for _, n := range stack {
		if _, ok := drop[n]; ok {
			continue
		}
		out = append(out, n)
	}
	return out
}
