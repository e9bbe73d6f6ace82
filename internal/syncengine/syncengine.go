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

// Package syncengine reconciles the sparse checkout with the selection:
// it re-resolves the current selection, diffs the result against the
// on-disk sparse-checkout pattern set, and - only if they differ -
// reconciles the working tree, all under the repo's exclusive lock.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/focusvcs/focus/internal/depindex"
	"github.com/focusvcs/focus/internal/lockfile"
	"github.com/focusvcs/focus/internal/migration"
	"github.com/focusvcs/focus/internal/resolve"
	"github.com/focusvcs/focus/internal/selection"
	"github.com/focusvcs/focus/internal/target"
	"github.com/focusvcs/focus/internal/vcsgit"
)

// ErrDirtyWorkingTree is returned by Sync when the tracked working tree
// has uncommitted changes.
var ErrDirtyWorkingTree = errors.New("syncengine: working tree is not clean")

// SyncFailedError wraps a failure in the only working-tree-mutating step
// of sync, carrying the VCS's stderr when available.
type SyncFailedError struct {
	Err error
}

func (e *SyncFailedError) Error() string { return fmt.Sprintf("syncengine: sync failed: %v", e.Err) }
func (e *SyncFailedError) Unwrap() error { return e.Err }

// Trigger distinguishes an interactive sync from one invoked by scheduled
// maintenance. The engine only stamps the tag on the run it performs;
// deciding when a scheduled run happens is the scheduler's business.
type Trigger string

const (
	TriggerInteractive Trigger = "interactive"
	TriggerScheduled   Trigger = "scheduled"
)

// Outcome records the result of one sync run, persisted as the success
// marker under .focus/.
type Outcome struct {
	Trigger    Trigger
	Changed    bool
	Paths      []string
	RemoteSkip bool // true if step 5's best-effort index fetch was attempted and failed
}

// Engine ties together the durable pieces a sync needs: the selection
// store, the resolver dispatch table, the dependency-key index, the
// migration gate, and the backing git repo.
type Engine struct {
	RepoRoot string
	Store    *selection.Store
	Repo     *vcsgit.Repo
	Dispatch *resolve.Dispatcher
	Index    *depindex.Index
	Gate     *migration.Gate

	// ProjectTargets resolves a project-stack entry (a name) into the
	// target.Set it contributes, since project definitions are a registry
	// selection.Store deliberately does not own (see its TargetSet doc).
	ProjectTargets func(name string) (target.Set, error)

	// Remote is the configured index remote; "" disables step 5's
	// best-effort fetch.
	Remote string
}

const lockFileName = "focus.lock"

// Sync runs one lock -> gate -> dirty-check -> resolve -> diff ->
// reconcile pass. fetchIndex gates the best-effort remote index fetch;
// trigger is stamped onto the outcome.
func (e *Engine) Sync(ctx context.Context, fetchIndex bool, trigger Trigger) (*Outcome, error) {
	focusDir := e.Store.FocusDir

	lock, err := lockfile.Acquire(filepath.Join(focusDir, lockFileName))
	if err != nil {
		if errors.Is(err, lockfile.ErrBusy) {
			return nil, lockfile.ErrBusy
		}
		return nil, err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			log.Printf("syncengine: releasing lock: %v", releaseErr)
		}
	}()

	if upgrade, err := e.Gate.IsUpgradeRequired(focusDir); err != nil {
		return nil, err
	} else if upgrade {
		onDisk, err := migration.ReadVersion(focusDir)
		if err != nil {
			return nil, err
		}
		return nil, &migration.ErrUpgradeRequired{OnDisk: onDisk, Required: e.Gate.RequiredVersion}
	}

	// .focus/ holds the engine's own state (the lock taken above, the
	// selection stacks), so its entries do not make the tree dirty.
	entries, err := e.Repo.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: checking working tree status: %w", err)
	}
	focusPrefix := filepath.Base(focusDir) + "/"
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Path, focusPrefix) {
			return nil, ErrDirtyWorkingTree
		}
	}

	if err := e.Repo.SparseCheckoutInit(ctx); err != nil {
		return nil, fmt.Errorf("syncengine: initializing sparse-checkout: %w", err)
	}

	targets, err := e.composeTargetSet()
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Trigger: trigger}

	if fetchIndex && e.Remote != "" {
		if err := e.Index.Fetch(ctx); err != nil {
			log.Printf("syncengine: best-effort index fetch from %s failed, continuing: %v", e.Remote, err)
			outcome.RemoteSkip = true
		}
	}

	result, err := e.Dispatch.Resolve(ctx, &resolve.Request{RepoRoot: e.RepoRoot, Targets: targets})
	if err != nil {
		return nil, fmt.Errorf("syncengine: resolving selection: %w", err)
	}
	if err := e.Index.Generate(ctx, result.PackageDeps); err != nil {
		log.Printf("syncengine: warming dependency index failed, continuing with resolved paths: %v", err)
	}

	desired := result.SortedPaths()

	current, err := e.Repo.SparseCheckoutList(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: reading current sparse-checkout: %w", err)
	}
	slices.Sort(current)

	outcome.Paths = desired
	outcome.Changed = !slices.Equal(current, desired)

	if outcome.Changed {
		if err := e.Repo.SparseCheckoutSet(ctx, desired); err != nil {
			return nil, &SyncFailedError{Err: err}
		}
	}

	if err := e.recordSuccessMarker(focusDir, outcome); err != nil {
		log.Printf("syncengine: recording success marker: %v", err)
	}

	return outcome, nil
}

// AddProjects pushes names onto the project stack and immediately re-syncs
// the sparse checkout to the new selection, under the same
// lock/gate/dirty-check steps as Sync. fetchIndex gates the best-effort
// remote index fetch exactly as it does there.
func (e *Engine) AddProjects(ctx context.Context, names []string, fetchIndex bool) (*Outcome, error) {
	if err := e.Store.PushProjects(names...); err != nil {
		return nil, err
	}
	return e.Sync(ctx, fetchIndex, TriggerInteractive)
}

// RemoveProjects filters names out of the project stack and immediately
// re-syncs.
func (e *Engine) RemoveProjects(ctx context.Context, names []string, fetchIndex bool) (*Outcome, error) {
	if err := e.Store.RemoveProjects(names...); err != nil {
		return nil, err
	}
	return e.Sync(ctx, fetchIndex, TriggerInteractive)
}

// AddAdhocTargets validates and pushes coordinates onto the ad-hoc target
// stack and immediately re-syncs.
func (e *Engine) AddAdhocTargets(ctx context.Context, coordinates []string, fetchIndex bool) (*Outcome, error) {
	if err := e.Store.PushAdhocTargets(coordinates...); err != nil {
		return nil, err
	}
	return e.Sync(ctx, fetchIndex, TriggerInteractive)
}

// RemoveAdhocTargets filters coordinates out of the ad-hoc target stack and
// immediately re-syncs.
func (e *Engine) RemoveAdhocTargets(ctx context.Context, coordinates []string, fetchIndex bool) (*Outcome, error) {
	if err := e.Store.RemoveAdhocTargets(coordinates...); err != nil {
		return nil, err
	}
	return e.Sync(ctx, fetchIndex, TriggerInteractive)
}

// Synced reports whether the on-disk sparse-checkout pattern set already
// matches what the current selection resolves to. It performs the same
// resolve-and-diff a Sync would, but mutates nothing and takes no lock.
func (e *Engine) Synced(ctx context.Context) (bool, error) {
	targets, err := e.composeTargetSet()
	if err != nil {
		return false, err
	}
	result, err := e.Dispatch.Resolve(ctx, &resolve.Request{RepoRoot: e.RepoRoot, Targets: targets})
	if err != nil {
		return false, fmt.Errorf("syncengine: resolving selection: %w", err)
	}
	current, err := e.Repo.SparseCheckoutList(ctx)
	if err != nil {
		return false, fmt.Errorf("syncengine: reading current sparse-checkout: %w", err)
	}
	slices.Sort(current)
	return slices.Equal(current, result.SortedPaths()), nil
}

// ComposeTargetSet loads the selection and unions the
// ad-hoc target stack with every registered project's targets. Exported so
// callers outside a Sync run (e.g. "focus index generate") can resolve the
// same TargetSet a sync would.
func (e *Engine) ComposeTargetSet() (target.Set, error) {
	return e.composeTargetSet()
}

func (e *Engine) composeTargetSet() (target.Set, error) {
	adhoc, err := e.Store.TargetSet()
	if err != nil {
		return target.Set{}, fmt.Errorf("syncengine: loading ad-hoc targets: %w", err)
	}

	projects, err := e.Store.ListProjects()
	if err != nil {
		return target.Set{}, fmt.Errorf("syncengine: loading project stack: %w", err)
	}

	set := adhoc
	for _, name := range projects {
		if e.ProjectTargets == nil {
			return target.Set{}, fmt.Errorf("syncengine: project %q selected but no project registry configured", name)
		}
		projectSet, err := e.ProjectTargets(name)
		if err != nil {
			return target.Set{}, fmt.Errorf("syncengine: resolving project %q: %w", name, err)
		}
		set = set.Join(projectSet)
	}
	return set, nil
}

const successMarkerFile = "last-sync"

func (e *Engine) recordSuccessMarker(focusDir string, outcome *Outcome) error {
	path := filepath.Join(focusDir, successMarkerFile)
	content := fmt.Sprintf("trigger=%s paths=%d\n", outcome.Trigger, len(outcome.Paths))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
