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

package resolve

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/focusvcs/focus/internal/target"
)

// CacheOptions controls the policy knobs of a resolution request.
type CacheOptions struct {
	// BreakOnMissingKeys is carried into depindex.Index. A missing key
	// makes Index.Hash return a MissingKeysError at once whether this is
	// set or not; no other behaviour depends on it.
	BreakOnMissingKeys bool
	// ResolutionThreads bounds the worker pool size used for parallel
	// resolution/hashing. 0 means "available parallelism".
	ResolutionThreads int
	// PreserveSandbox is passed along to every resolver in the Request.
	// The resolvers in this module do not read it: the bazel query
	// scratch directory is removed after a successful run either way.
	PreserveSandbox bool
}

// Request is the input to a single resolver invocation.
type Request struct {
	RepoRoot string
	Targets  target.Set
	Options  CacheOptions
}

// Result is a resolver's output: the set of repo-relative paths
// that must be materialized, and the dependency-key/value pairs discovered
// along the way.
type Result struct {
	Paths       []string
	PackageDeps map[Key]Value
}

// NewResult returns an empty, ready-to-merge Result.
func NewResult() *Result {
	return &Result{PackageDeps: make(map[Key]Value)}
}

// SortedPaths returns Paths deduplicated and sorted. Paths are always
// repo-relative, slash-separated, with no trailing slash.
func (r *Result) SortedPaths() []string {
	seen := make(map[string]struct{}, len(r.Paths))
	out := make([]string, 0, len(r.Paths))
	for _, p := range r.Paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// MissingKeysError reports keys that a resolver could not resolve.
type MissingKeysError struct {
	Keys []Key
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing %d dependency key(s): %v", len(e.Keys), e.Keys)
}

// ConflictError reports that two resolvers (or two members of the same
// resolution) produced different values for the same DependencyKey, which
// violates the caller's contract.
type ConflictError struct {
	Key Key
	A   Value
	B   Value
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting values for dependency key %v", e.Key)
}

// Resolver translates a uniform-or-not Request into a Result by consulting
// whatever external system (build tool, filesystem) backs its scheme.
type Resolver interface {
	// Resolve answers a Request. ctx governs cancellation of any
	// subprocess or I/O the resolver performs.
	Resolve(ctx context.Context, req *Request) (*Result, error)
}

// Dispatcher routes a target.Set to its scheme-specific Resolvers and
// merges their Results.
type Dispatcher struct {
	resolvers map[target.Kind]Resolver
}

// NewDispatcher builds a Dispatcher from a table of scheme -> Resolver.
// Schemes are a closed set known at compile time.
func NewDispatcher(resolvers map[target.Kind]Resolver) *Dispatcher {
	return &Dispatcher{resolvers: resolvers}
}

// Resolve partitions req.Targets by Kind, invokes the matching resolver for
// each non-empty partition, and merges the results: Paths by union,
// PackageDeps by map-union with an equal-value invariant on conflicting
// keys. Non-uniform sets are permitted.
func (d *Dispatcher) Resolve(ctx context.Context, req *Request) (*Result, error) {
	merged := NewResult()

	groups := req.Targets.Partition()
	kinds := make([]target.Kind, 0, len(groups))
	for k := range groups {
		kinds = append(kinds, k)
	}
	slices.SortFunc(kinds, func(a, b target.Kind) int { return cmp.Compare(int(a), int(b)) })

	for _, kind := range kinds {
		members := groups[kind]
		resolver, ok := d.resolvers[kind]
		if !ok {
			return nil, fmt.Errorf("no resolver registered for scheme %q", kind)
		}
		partial, err := resolver.Resolve(ctx, &Request{
			RepoRoot: req.RepoRoot,
			Targets:  target.NewSet(members...),
			Options:  req.Options,
		})
		if err != nil {
			return nil, fmt.Errorf("resolving %v targets: %w", kind, err)
		}
		if err := merge(merged, partial); err != nil {
			return nil, err
		}
	}

	return merged, nil
}

func merge(into, from *Result) error {
	into.Paths = append(into.Paths, from.Paths...)
	for key, value := range from.PackageDeps {
		if existing, ok := into.PackageDeps[key]; ok {
			if !existing.Equal(value) {
				return &ConflictError{Key: key, A: existing, B: value}
			}
			continue
		}
		into.PackageDeps[key] = value
	}
	return nil
}
