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

package selection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/focusvcs/focus/internal/target"
)

// ProjectDefinitions reads the target lists that project-stack entries
// name, stored one JSON file per project under
// .focus/projects/<name>.json. It is kept separate from Store because a
// project definition is authored content, not mutated by push/pop the way
// the stacks are.
type ProjectDefinitions struct {
	dir string
}

const projectsSubdir = "projects"

// OpenProjectDefinitions returns a handle on s's project-definition
// directory, creating it if absent.
func (s *Store) OpenProjectDefinitions() (*ProjectDefinitions, error) {
	dir := filepath.Join(s.FocusDir, projectsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("selection: creating %s: %w", dir, err)
	}
	return &ProjectDefinitions{dir: dir}, nil
}

type projectDefFile struct {
	Targets []string `json:"targets"`
}

// Targets loads the coordinate list a project definition names and parses
// it into a target.Set, for use as syncengine.Engine.ProjectTargets.
func (p *ProjectDefinitions) Targets(name string) (target.Set, error) {
	path := filepath.Join(p.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return target.Set{}, fmt.Errorf("selection: project %q has no definition at %s", name, path)
		}
		return target.Set{}, fmt.Errorf("selection: reading project %q: %w", name, err)
	}
	var file projectDefFile
	if err := json.Unmarshal(data, &file); err != nil {
		return target.Set{}, fmt.Errorf("selection: parsing project %q: %w", name, err)
	}
	return target.FromStrings(file.Targets)
}

// Write persists a project definition's target list, temp-file-then-rename
// like every other mutation under .focus/.
func (p *ProjectDefinitions) Write(name string, coordinates []string) error {
	if _, err := target.FromStrings(coordinates); err != nil {
		return fmt.Errorf("selection: writing project %q: %w", name, err)
	}
	data, err := json.MarshalIndent(projectDefFile{Targets: coordinates}, "", "  ")
	if err != nil {
		return fmt.Errorf("selection: encoding project %q: %w", name, err)
	}
	path := filepath.Join(p.dir, name+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("selection: writing %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}
