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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnfocusedRepo(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotAFocusedRepo)
}

func TestInitThenOpen(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root)
	require.NoError(t, err)

	store, err := Open(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".focus"), store.FocusDir)
}

func TestProjectPushPopRemove(t *testing.T) {
	root := t.TempDir()
	store, err := Init(root)
	require.NoError(t, err)

	require.NoError(t, store.PushProjects("web", "api"))
	projects, err := store.ListProjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"web", "api"}, projects)

	require.NoError(t, store.PushProjects("web"))
	projects, err = store.ListProjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"web", "api"}, projects, "re-pushing an already-selected project is a no-op")

	require.NoError(t, store.PushProjects("infra"))
	popped, err := store.PopProjects(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"infra"}, popped)

	require.NoError(t, store.RemoveProjects("web"))
	projects, err = store.ListProjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, projects)
}

func TestAdhocTargetsValidatesCoordinates(t *testing.T) {
	root := t.TempDir()
	store, err := Init(root)
	require.NoError(t, err)

	err = store.PushAdhocTargets("not-a-valid-coordinate-scheme")
	require.Error(t, err)

	require.NoError(t, store.PushAdhocTargets("bazel://src/app:app", "directory:src/lib"))
	coords, err := store.ListAdhocTargets()
	require.NoError(t, err)
	assert.Len(t, coords, 2)

	set, err := store.TargetSet()
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestWritesAreAtomic(t *testing.T) {
	root := t.TempDir()
	store, err := Init(root)
	require.NoError(t, err)

	require.NoError(t, store.PushProjects("a"))
	_, statErr := os.Stat(filepath.Join(store.FocusDir, projectsFile+".tmp"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestComputeStatus(t *testing.T) {
	root := t.TempDir()
	store, err := Init(root)
	require.NoError(t, err)
	require.NoError(t, store.PushProjects("web"))

	status, err := store.ComputeStatus(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, status.Projects)
	assert.True(t, status.Synced)
}
