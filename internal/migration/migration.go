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

// Package migration gates syncs on the on-disk .focus/ format version:
// a monotonic integer version compiled into the binary, compared against
// .focus/migration.version, with an ordered list of idempotent steps to
// close the gap.
package migration

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// VersionFile is the path, relative to the .focus/ directory, that the gate
// reads and writes.
const VersionFile = "migration.version"

// Step is one ordered, idempotent migration step. TargetVersion is the
// on-disk version this step produces when applied successfully.
type Step struct {
	TargetVersion int
	Name          string
	Apply         func(focusDir string) error
}

// Gate guards sync against running atop an out-of-date on-disk format.
type Gate struct {
	// RequiredVersion is the format version this binary expects, normally
	// a compile-time constant.
	RequiredVersion int
	// Steps must be sorted ascending by TargetVersion and contiguous
	// starting from 1; NewGate returns an error if they are not.
	// PerformPendingMigrations does not re-check a Gate built directly.
	Steps []Step
}

// NewGate builds a Gate for requiredVersion with steps, validating that
// steps are sorted and contiguous.
func NewGate(requiredVersion int, steps []Step) (*Gate, error) {
	for i, step := range steps {
		if step.TargetVersion != i+1 {
			return nil, fmt.Errorf("migration: step %d has TargetVersion %d, want %d", i, step.TargetVersion, i+1)
		}
	}
	return &Gate{RequiredVersion: requiredVersion, Steps: steps}, nil
}

// ReadVersion reads the on-disk version from focusDir/migration.version.
// A missing file reads as version 0 (a never-migrated repo).
func ReadVersion(focusDir string) (int, error) {
	data, err := os.ReadFile(focusDir + "/" + VersionFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("migration: reading version: %w", err)
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("migration: %s does not contain a valid version: %w", VersionFile, err)
	}
	return version, nil
}

func writeVersion(focusDir string, version int) error {
	path := focusDir + "/" + VersionFile
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(version)), 0o644); err != nil {
		return fmt.Errorf("migration: writing %s: %w", VersionFile, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("migration: renaming %s into place: %w", VersionFile, err)
	}
	return nil
}

// ErrUpgradeRequired reports that the binary's required version exceeds
// what's on disk. IsUpgradeRequired's callers return it (the sync engine
// does) instead of applying the pending steps themselves, whether or not
// steps are registered to close the gap.
type ErrUpgradeRequired struct {
	OnDisk, Required int
}

func (e *ErrUpgradeRequired) Error() string {
	return fmt.Sprintf("migration: on-disk format version %d is older than required %d", e.OnDisk, e.Required)
}

// IsUpgradeRequired reports whether the repo at focusDir is behind
// g.RequiredVersion.
func (g *Gate) IsUpgradeRequired(focusDir string) (bool, error) {
	onDisk, err := ReadVersion(focusDir)
	if err != nil {
		return false, err
	}
	return onDisk < g.RequiredVersion, nil
}

// PerformPendingMigrations applies every registered step whose
// TargetVersion exceeds the on-disk version, in order, writing the new
// version to disk after each step succeeds so a failure partway through
// leaves the repo at the last successfully applied version rather than
// losing progress.
func (g *Gate) PerformPendingMigrations(focusDir string) error {
	current, err := ReadVersion(focusDir)
	if err != nil {
		return err
	}
	for _, step := range g.Steps {
		if step.TargetVersion <= current {
			continue
		}
		if err := step.Apply(focusDir); err != nil {
			return fmt.Errorf("migration: step %q (-> v%d): %w", step.Name, step.TargetVersion, err)
		}
		if err := writeVersion(focusDir, step.TargetVersion); err != nil {
			return err
		}
		current = step.TargetVersion
	}
	return nil
}
