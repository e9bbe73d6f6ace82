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

// Package depindex is the content-addressed dependency index: it turns a
// dependency key into a ContentHash that is stable iff the
// transitive build graph reachable from that key is stable, caching the
// result across three layers (L1 in-memory, L2 the local VCS object
// database, L3 a configured remote) so that a machine with the same inputs
// can skip re-resolving.
package depindex

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/focusvcs/focus/internal/resolve"
	"github.com/focusvcs/focus/internal/vcsgit"
)

// ErrCycleDetected is returned by Hash when a key's transitive deps loop
// back to a key already on the current resolution path.
type ErrCycleDetected struct {
	Path []resolve.Key
}

func (e *ErrCycleDetected) Error() string {
	return fmt.Sprintf("depindex: cycle detected: %v", e.Path)
}

// MissingKeysError reports keys this index could neither find cached nor
// resolve.
type MissingKeysError struct {
	Keys []resolve.Key
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("depindex: missing %d key(s): %v", len(e.Keys), e.Keys)
}

// HashMismatchError indicates index corruption: an object read back from
// the store does not hash to the ref name it was pinned under. It is never
// recoverable; the remediation is clearing the index.
type HashMismatchError struct {
	Ref    ContentHash
	Actual ContentHash
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("depindex: object under %s hashes to %s; index is corrupt", e.Ref.RefName(), e.Actual)
}

// ResolveFunc resolves a single key to its Value on a cache miss, normally
// backed by internal/resolve.Dispatcher for a singleton target equivalent
// to the key. ok is false if the key cannot be resolved at all (distinct
// from a transient error).
type ResolveFunc func(ctx context.Context, key resolve.Key) (value resolve.Value, ok bool, err error)

// Index is the handle on one repo's dependency-key cache.
type Index struct {
	mu       sync.RWMutex
	keyHash  map[string]ContentHash      // L1: key canonical string -> hash
	values   map[string]resolve.Value    // L1: key canonical string -> value
	resolved map[ContentHash]resolve.Key // L1: hash -> originating key, for Get(hash)

	repo    *vcsgit.Repo // L2/L3 backing store; nil disables on-disk caching
	remote  string
	resolve ResolveFunc

	threads            int
	breakOnMissingKeys bool
}

// New builds an Index. repo may be nil to run purely in-memory (useful for
// tests and for resolvers that never need L2/L3). opts mirrors
// resolve.CacheOptions: ResolutionThreads 0 means GOMAXPROCS(0).
func New(repo *vcsgit.Repo, remote string, resolveFn ResolveFunc, opts resolve.CacheOptions) *Index {
	threads := opts.ResolutionThreads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	return &Index{
		keyHash:            make(map[string]ContentHash),
		values:             make(map[string]resolve.Value),
		resolved:           make(map[ContentHash]resolve.Key),
		repo:               repo,
		remote:             remote,
		resolve:            resolveFn,
		threads:            threads,
		breakOnMissingKeys: opts.BreakOnMissingKeys,
	}
}

// Put seeds the L1 value cache for key, as done when a resolver's full
// Result is handed to the index in bulk.
func (ix *Index) Put(key resolve.Key, value resolve.Value) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.values[key.String()] = value
}

// OriginatingKey returns the Key that produced hash, if this process has
// computed or looked up that hash since it started.
func (ix *Index) OriginatingKey(hash ContentHash) (resolve.Key, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	key, ok := ix.resolved[hash]
	return key, ok
}

// Get returns the Value for key, consulting L1 and then the ResolveFunc.
// It does not consult L2/L3 for the full Value, only Hash's key-fingerprint
// short-cut does; a stored record carries its deps as hashes, not keys, so
// a full Value cannot be rebuilt from L2 alone.
func (ix *Index) Get(ctx context.Context, key resolve.Key) (resolve.Value, bool, error) {
	ix.mu.RLock()
	value, ok := ix.values[key.String()]
	ix.mu.RUnlock()
	if ok {
		return value, true, nil
	}
	if ix.resolve == nil {
		return resolve.Value{}, false, nil
	}
	value, ok, err := ix.resolve(ctx, key)
	if err != nil {
		return resolve.Value{}, false, err
	}
	if ok {
		ix.Put(key, value)
	}
	return value, ok, nil
}

// Hash computes (or returns the cached) ContentHash for key: resolve the
// value, recursively hash its deps (cycle-checked), canonically serialize
// and hash. L1 and L2 are consulted, in that order, before falling back to
// recomputation; a successful recomputation is persisted back to L1 and,
// if a VCS repo is configured, L2.
func (ix *Index) Hash(ctx context.Context, key resolve.Key) (ContentHash, error) {
	return ix.hash(ctx, key, nil)
}

func (ix *Index) hash(ctx context.Context, key resolve.Key, path []resolve.Key) (ContentHash, error) {
	for _, visited := range path {
		if visited == key {
			return ContentHash{}, &ErrCycleDetected{Path: append(append([]resolve.Key(nil), path...), key)}
		}
	}

	ix.mu.RLock()
	cached, ok := ix.keyHash[key.String()]
	ix.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if hash, ok, err := ix.lookupL2ByKey(ctx, key); err != nil {
		return ContentHash{}, err
	} else if ok {
		ix.mu.Lock()
		ix.keyHash[key.String()] = hash
		ix.resolved[hash] = key
		ix.mu.Unlock()
		return hash, nil
	}

	value, ok, err := ix.Get(ctx, key)
	if err != nil {
		return ContentHash{}, err
	}
	if !ok {
		// break_on_missing_keys is a debug contract distinguishing
		// "abort immediately" from "surface for diagnostic display"; both
		// paths currently return the same error type, leaving the choice of
		// whether to abort to the caller.
		return ContentHash{}, &MissingKeysError{Keys: []resolve.Key{key}}
	}

	nextPath := append(append([]resolve.Key(nil), path...), key)
	depHashes := make([]ContentHash, 0, len(value.Deps))
	for _, dep := range value.Deps {
		depHash, err := ix.hash(ctx, dep, nextPath)
		if err != nil {
			return ContentHash{}, err
		}
		depHashes = append(depHashes, depHash)
	}

	rec := record{
		keyKind:   key.Kind,
		keyString: key.String(),
		valueKind: value.Kind,
		path:      value.Path,
		includes:  value.Includes,
		depHashes: depHashes,
	}
	hash := hashBytes(encodeRecord(rec))

	ix.mu.Lock()
	ix.keyHash[key.String()] = hash
	ix.resolved[hash] = key
	ix.mu.Unlock()

	if ix.repo != nil {
		if err := ix.persistL2(ctx, hash, key, rec); err != nil {
			return ContentHash{}, fmt.Errorf("depindex: persisting %v to L2: %w", key, err)
		}
	}

	return hash, nil
}

// lookupL2ByKey consults the key-fingerprint -> hash ref, short-circuiting
// recursive recomputation entirely when another process (or an earlier
// run) already published this key's hash.
func (ix *Index) lookupL2ByKey(ctx context.Context, key resolve.Key) (ContentHash, bool, error) {
	if ix.repo == nil {
		return ContentHash{}, false, nil
	}
	oid, err := ix.repo.RevParse(ctx, keyFingerprintRefName(key))
	if err != nil {
		return ContentHash{}, false, nil // ref absent: not cached, not an error
	}
	content, err := ix.repo.CatFile(ctx, oid)
	if err != nil {
		return ContentHash{}, false, fmt.Errorf("reading key-fingerprint blob: %w", err)
	}
	hash, err := ParseContentHash(string(content))
	if err != nil {
		return ContentHash{}, false, fmt.Errorf("decoding key-fingerprint blob: %w", err)
	}
	return hash, true, nil
}

func (ix *Index) persistL2(ctx context.Context, hash ContentHash, key resolve.Key, rec record) error {
	payload := encodePayload(rec)
	oid, err := ix.repo.HashObject(ctx, payload, true)
	if err != nil {
		return fmt.Errorf("hash-object: %w", err)
	}
	if err := ix.repo.UpdateRef(ctx, hash.RefName(), oid); err != nil {
		return fmt.Errorf("update-ref %s: %w", hash.RefName(), err)
	}

	fingerprintOID, err := ix.repo.HashObject(ctx, []byte(hash.String()), true)
	if err != nil {
		return fmt.Errorf("hash-object (fingerprint): %w", err)
	}
	if err := ix.repo.UpdateRef(ctx, keyFingerprintRefName(key), fingerprintOID); err != nil {
		return fmt.Errorf("update-ref %s: %w", keyFingerprintRefName(key), err)
	}
	return nil
}

// genTask is one key a Generate call will hash, weighted by its direct
// dependency count.
type genTask struct {
	key      resolve.Key
	depCount int
}

// genQueue is a max-heap over genTasks by dependency count: the bounded
// worker pool picks up the (likely) longest-running hash computations
// first, before it runs out of other work to overlap them with.
type genQueue []genTask

func (q genQueue) Len() int           { return len(q) }
func (q genQueue) Less(i, j int) bool { return q[i].depCount > q[j].depCount }
func (q genQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *genQueue) Push(x any)        { *q = append(*q, x.(genTask)) }
func (q *genQueue) Pop() any {
	old := *q
	last := old[len(old)-1]
	*q = old[:len(old)-1]
	return last
}

// Generate ensures every key in deps has a computed, L2-persisted hash:
// it seeds L1 from deps, then hashes every key through a worker pool
// bounded by the index's configured thread count, dispatching the
// highest-fan-out keys first. Two concurrent Generate calls over disjoint
// keys both succeed; on the same key they race harmlessly onto the same
// content-addressed result.
func (ix *Index) Generate(ctx context.Context, deps map[resolve.Key]resolve.Value) error {
	for key, value := range deps {
		ix.Put(key, value)
	}

	queue := make(genQueue, 0, len(deps))
	for key, value := range deps {
		queue = append(queue, genTask{key: key, depCount: len(value.Deps)})
	}
	heap.Init(&queue)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(ix.threads)

	for queue.Len() > 0 {
		task := heap.Pop(&queue).(genTask)
		group.Go(func() error {
			_, err := ix.Hash(groupCtx, task.key)
			return err
		})
	}
	return group.Wait()
}

// ReadValue reads the object pinned under hash's ref back out of the
// object database and decodes its Value payload, after checking that the
// stored record still hashes to the ref it was read from. The returned
// Value carries the record's kind, path, and includes; its dependencies are
// stored as hashes, so Deps is always empty here.
func (ix *Index) ReadValue(ctx context.Context, hash ContentHash) (resolve.Value, error) {
	if ix.repo == nil {
		return resolve.Value{}, errors.New("depindex: no VCS repo configured")
	}
	oid, err := ix.repo.RevParse(ctx, hash.RefName())
	if err != nil {
		return resolve.Value{}, fmt.Errorf("depindex: no object pinned under %s: %w", hash.RefName(), err)
	}
	payload, err := ix.repo.CatFile(ctx, oid)
	if err != nil {
		return resolve.Value{}, fmt.Errorf("depindex: reading %s: %w", hash.RefName(), err)
	}
	rec, err := decodePayload(payload)
	if err != nil {
		return resolve.Value{}, err
	}
	if actual := hashBytes(encodeRecord(rec)); actual != hash {
		return resolve.Value{}, &HashMismatchError{Ref: hash, Actual: actual}
	}
	if rec.valueKind == resolve.ValueKindPath {
		return resolve.PathValue(rec.path), nil
	}
	return resolve.PackageInfoValue(nil, rec.includes), nil
}

// Fetch performs a ref-pattern fetch of the focus index namespace from the
// configured remote, populating L2. A missing or unreachable remote is the
// caller's concern; Fetch itself just reports the error, and callers for
// whom the fetch is best-effort log and continue.
func (ix *Index) Fetch(ctx context.Context) error {
	if ix.repo == nil {
		return errors.New("depindex: no VCS repo configured")
	}
	if ix.remote == "" {
		return errors.New("depindex: no remote configured")
	}
	return ix.repo.Fetch(ctx, ix.remote, "refs/focus/*:refs/focus/*")
}

// Push publishes every locally-known ref in the focus index namespace to
// the configured remote.
func (ix *Index) Push(ctx context.Context) error {
	if ix.repo == nil {
		return errors.New("depindex: no VCS repo configured")
	}
	if ix.remote == "" {
		return errors.New("depindex: no remote configured")
	}
	return ix.repo.Push(ctx, ix.remote, "refs/focus/*:refs/focus/*")
}

// Clear drops every cached entry, both in-memory and (if a repo is
// configured) every ref in the focus index namespace on disk.
func (ix *Index) Clear(ctx context.Context) error {
	ix.mu.Lock()
	ix.keyHash = make(map[string]ContentHash)
	ix.values = make(map[string]resolve.Value)
	ix.resolved = make(map[ContentHash]resolve.Key)
	ix.mu.Unlock()

	if ix.repo == nil {
		return nil
	}
	refs, err := ix.repo.ForEachRef(ctx, "refs/focus/*")
	if err != nil {
		return fmt.Errorf("depindex: listing refs to clear: %w", err)
	}
	for _, ref := range refs {
		if err := ix.repo.DeleteRef(ctx, ref.Name); err != nil {
			return fmt.Errorf("depindex: deleting %s: %w", ref.Name, err)
		}
	}
	return nil
}
