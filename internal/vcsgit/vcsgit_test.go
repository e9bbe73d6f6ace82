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

package vcsgit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusvcs/focus/internal/procdriver"
)

// initRepo creates a fresh git repository in a temp dir, with one commit,
// and returns a Repo handle over it.
func initRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	driver := procdriver.New(t.TempDir())
	repo := Open(dir, driver)
	ctx := context.Background()

	run := func(args ...string) {
		result, err := driver.Run(ctx, procdriver.Invocation{Name: "git", Args: args, Cwd: dir})
		require.NoError(t, err)
		require.NoError(t, result.Close())
	}
	run("init", "-q")
	run("config", "user.email", "focus@example.com")
	run("config", "user.name", "focus")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run("add", "README.md")
	run("commit", "-q", "-m", "initial")

	return repo
}

func TestStatusCleanAndDirty(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()

	dirty, err := repo.IsDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir, "untracked.txt"), []byte("x"), 0o644))

	dirty, err = repo.IsDirty(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)

	entries, err := repo.Status(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "??", entries[0].Code)
	assert.Equal(t, "untracked.txt", entries[0].Path)
}

func TestRevParseHEAD(t *testing.T) {
	repo := initRepo(t)
	oid, err := repo.RevParse(context.Background(), "HEAD")
	require.NoError(t, err)
	assert.Len(t, oid, 40)
}

func TestReadConfigMissingKeyIsNotAnError(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()

	value, ok, err := repo.ReadConfig(ctx, "focus.nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)

	require.NoError(t, repo.WriteConfig(ctx, "focus.nonexistent", "present"))
	value, ok, err = repo.ReadConfig(ctx, "focus.nonexistent")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "present", value)
}

func TestHashObjectAndCatFileRoundTrip(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()

	oid, err := repo.HashObject(ctx, []byte("focus index blob"), true)
	require.NoError(t, err)
	require.Len(t, oid, 40)

	exists, err := repo.ObjectExists(ctx, oid)
	require.NoError(t, err)
	assert.True(t, exists)

	content, err := repo.CatFile(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, "focus index blob", string(content))
}

func TestUpdateRefAndForEachRef(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()

	oid, err := repo.RevParse(ctx, "HEAD")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateRef(ctx, "refs/focus/index/abc123", oid))

	refs, err := repo.ForEachRef(ctx, "refs/focus/index/*")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, oid, refs[0].OID)
	assert.Equal(t, "refs/focus/index/abc123", refs[0].Name)

	require.NoError(t, repo.DeleteRef(ctx, "refs/focus/index/abc123"))
	refs, err = repo.ForEachRef(ctx, "refs/focus/index/*")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCurrentBranch(t *testing.T) {
	repo := initRepo(t)
	branch, err := repo.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, branch)
}

func TestSparseCheckoutInitAndSet(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(repo.Dir, "src", "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir, "src", "app", "main.go"), []byte("package app"), 0o644))

	require.NoError(t, repo.SparseCheckoutInit(ctx))
	require.NoError(t, repo.SparseCheckoutSet(ctx, []string{"src/app"}))

	patterns, err := repo.SparseCheckoutList(ctx)
	require.NoError(t, err)
	assert.Contains(t, patterns, "src/app")
}
