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

package depindex

import (
	"container/heap"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusvcs/focus/internal/procdriver"
	"github.com/focusvcs/focus/internal/resolve"
	"github.com/focusvcs/focus/internal/vcsgit"
)

func initRepo(t *testing.T) *vcsgit.Repo {
	t.Helper()
	dir := t.TempDir()
	driver := procdriver.New(t.TempDir())
	repo := vcsgit.Open(dir, driver)
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

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	h1 := hashBytes([]byte("a"))
	h2 := hashBytes([]byte("b"))
	rec := record{
		keyKind:   resolve.KeyKindPath,
		keyString: "Path(src/app)",
		valueKind: resolve.ValueKindPackageInfo,
		path:      "src/app",
		includes:  []string{"src/app/*.go", "src/app/main.go"},
		depHashes: []ContentHash{h2, h1},
	}
	encoded := encodeRecord(rec)
	decoded, err := decodeRecord(encoded)
	require.NoError(t, err)

	assert.Equal(t, rec.keyKind, decoded.keyKind)
	assert.Equal(t, rec.keyString, decoded.keyString)
	assert.Equal(t, rec.valueKind, decoded.valueKind)
	assert.Equal(t, rec.path, decoded.path)
	assert.ElementsMatch(t, rec.includes, decoded.includes)
	assert.ElementsMatch(t, rec.depHashes, decoded.depHashes)
}

func TestHashIsDeterministicUnderDepPermutation(t *testing.T) {
	a := hashBytes([]byte("a"))
	b := hashBytes([]byte("b"))
	rec1 := record{keyString: "k", path: "p", depHashes: []ContentHash{a, b}}
	rec2 := record{keyString: "k", path: "p", depHashes: []ContentHash{b, a}}
	assert.Equal(t, hashBytes(encodeRecord(rec1)), hashBytes(encodeRecord(rec2)))
}

func TestHashLeafKey(t *testing.T) {
	ix := New(nil, "", nil, resolve.CacheOptions{})
	key := resolve.PathKey("src/app")
	ix.Put(key, resolve.PathValue("src/app"))

	hash, err := ix.Hash(context.Background(), key)
	require.NoError(t, err)
	assert.NotEqual(t, ContentHash{}, hash)

	again, err := ix.Hash(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, hash, again, "repeated Hash on the same key must be stable")

	origin, ok := ix.OriginatingKey(hash)
	require.True(t, ok)
	assert.Equal(t, key, origin)
}

func TestHashDetectsCycle(t *testing.T) {
	ix := New(nil, "", nil, resolve.CacheOptions{})
	keyA := resolve.DummyKey("a")
	keyB := resolve.DummyKey("b")
	ix.Put(keyA, resolve.PackageInfoValue([]resolve.Key{keyB}, nil))
	ix.Put(keyB, resolve.PackageInfoValue([]resolve.Key{keyA}, nil))

	_, err := ix.Hash(context.Background(), keyA)
	require.Error(t, err)
	var cycleErr *ErrCycleDetected
	require.ErrorAs(t, err, &cycleErr)
}

func TestHashMissingKeyErrors(t *testing.T) {
	ix := New(nil, "", nil, resolve.CacheOptions{})
	_, err := ix.Hash(context.Background(), resolve.PathKey("nowhere"))
	require.Error(t, err)
	var missingErr *MissingKeysError
	require.ErrorAs(t, err, &missingErr)
}

func TestHashResolvesTransitiveDeps(t *testing.T) {
	ix := New(nil, "", nil, resolve.CacheOptions{})
	leaf := resolve.PathKey("src/lib")
	parent := resolve.PathKey("src/app")
	ix.Put(leaf, resolve.PathValue("src/lib"))
	ix.Put(parent, resolve.PackageInfoValue([]resolve.Key{leaf}, []string{"src/app/*.go"}))

	hash, err := ix.Hash(context.Background(), parent)
	require.NoError(t, err)
	assert.NotEqual(t, ContentHash{}, hash)
}

func TestGeneratePersistsToL2AndShortCircuitsOnRerun(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()
	ix := New(repo, "", nil, resolve.CacheOptions{})

	leaf := resolve.PathKey("src/lib")
	parent := resolve.PathKey("src/app")
	deps := map[resolve.Key]resolve.Value{
		leaf:   resolve.PathValue("src/lib"),
		parent: resolve.PackageInfoValue([]resolve.Key{leaf}, []string{"src/app/*.go"}),
	}

	require.NoError(t, ix.Generate(ctx, deps))

	refs, err := repo.ForEachRef(ctx, "refs/focus/*")
	require.NoError(t, err)
	assert.NotEmpty(t, refs)

	fresh := New(repo, "", nil, resolve.CacheOptions{})
	hash, err := fresh.Hash(ctx, parent)
	require.NoError(t, err, "a fresh index with no resolver must still find the hash via L2's key-fingerprint ref")
	original, err := ix.Hash(ctx, parent)
	require.NoError(t, err)
	assert.Equal(t, original, hash)
}

func TestClearRemovesL2Refs(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()
	ix := New(repo, "", nil, resolve.CacheOptions{})

	key := resolve.PathKey("src/app")
	ix.Put(key, resolve.PathValue("src/app"))
	_, err := ix.Hash(ctx, key)
	require.NoError(t, err)

	require.NoError(t, ix.Clear(ctx))

	refs, err := repo.ForEachRef(ctx, "refs/focus/*")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestReadValueRoundTripsThroughObjectDatabase(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()
	ix := New(repo, "", nil, resolve.CacheOptions{})

	key := resolve.PathKey("src/app")
	ix.Put(key, resolve.PathValue("src/app"))
	hash, err := ix.Hash(ctx, key)
	require.NoError(t, err)

	value, err := ix.ReadValue(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, resolve.PathValue("src/app"), value)
}

func TestReadValueDetectsCorruption(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()
	ix := New(repo, "", nil, resolve.CacheOptions{})

	key := resolve.PathKey("src/app")
	ix.Put(key, resolve.PathValue("src/app"))
	hash, err := ix.Hash(ctx, key)
	require.NoError(t, err)

	// Repoint the ref at a blob whose record decodes fine but hashes
	// differently.
	tampered := encodePayload(record{
		keyKind:   resolve.KeyKindPath,
		keyString: "Path(src/evil)",
		valueKind: resolve.ValueKindPath,
		path:      "src/evil",
	})
	oid, err := repo.HashObject(ctx, tampered, true)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateRef(ctx, hash.RefName(), oid))

	_, err = ix.ReadValue(ctx, hash)
	var mismatch *HashMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, hash, mismatch.Ref)
}

func TestTransitiveDepMutationChangesRootHash(t *testing.T) {
	build := func(leafPath string) ContentHash {
		ix := New(nil, "", nil, resolve.CacheOptions{})
		leaf := resolve.PathKey("src/lib")
		mid := resolve.DummyKey("mid")
		root := resolve.DummyKey("root")
		ix.Put(leaf, resolve.PathValue(leafPath))
		ix.Put(mid, resolve.PackageInfoValue([]resolve.Key{leaf}, nil))
		ix.Put(root, resolve.PackageInfoValue([]resolve.Key{mid}, nil))
		hash, err := ix.Hash(context.Background(), root)
		require.NoError(t, err)
		return hash
	}

	assert.Equal(t, build("src/lib"), build("src/lib"))
	assert.NotEqual(t, build("src/lib"), build("src/lib2"),
		"mutating a transitive dep's value must change the root hash")
}

func TestGenQueuePopsHighestFanOutFirst(t *testing.T) {
	queue := genQueue{
		{key: resolve.DummyKey("leaf"), depCount: 0},
		{key: resolve.DummyKey("root"), depCount: 5},
		{key: resolve.DummyKey("mid"), depCount: 2},
	}
	heap.Init(&queue)

	var order []int
	for queue.Len() > 0 {
		order = append(order, heap.Pop(&queue).(genTask).depCount)
	}
	assert.Equal(t, []int{5, 2, 0}, order)
}

func TestGenerateDisjointKeysBothSucceedConcurrently(t *testing.T) {
	ix := New(nil, "", nil, resolve.CacheOptions{ResolutionThreads: 4})
	deps := map[resolve.Key]resolve.Value{
		resolve.PathKey("a"): resolve.PathValue("a"),
		resolve.PathKey("b"): resolve.PathValue("b"),
		resolve.PathKey("c"): resolve.PathValue("c"),
	}
	require.NoError(t, ix.Generate(context.Background(), deps))
	for key := range deps {
		hash, err := ix.Hash(context.Background(), key)
		require.NoError(t, err)
		assert.NotEqual(t, ContentHash{}, hash)
	}
}
