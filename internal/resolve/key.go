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

// Package resolve defines the resolution vocabulary shared by every
// coordinate resolver: dependency keys and values, the vertices and
// payloads of the build-dependency graph that internal/depindex hashes
// over, plus the Resolver interface and dispatch table that routes a
// target.Set to its scheme-specific resolvers.
package resolve

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/bazelbuild/bazel-gazelle/label"
)

func sortKeys(keys []Key)         { slices.SortFunc(keys, CompareKeys) }
func sortStrings(values []string) { slices.Sort(values) }

// KeyKind discriminates the closed set of DependencyKey variants.
type KeyKind int

const (
	KeyKindBazelPackage KeyKind = iota
	KeyKindBazelBuildFile
	KeyKindPath
	KeyKindDummyForTesting
)

func (k KeyKind) String() string {
	switch k {
	case KeyKindBazelPackage:
		return "BazelPackage"
	case KeyKindBazelBuildFile:
		return "BazelBuildFile"
	case KeyKindPath:
		return "Path"
	case KeyKindDummyForTesting:
		return "DummyForTesting"
	default:
		return fmt.Sprintf("KeyKind(%d)", int(k))
	}
}

// Key is a vertex of the build-dependency graph. It is a tagged value
// kept as a plain comparable struct rather than an interface, so that it
// can be used directly as a map key by both the dispatcher's package_deps
// merge and internal/depindex's L1 cache.
type Key struct {
	Kind KeyKind
	// Label identifies the Bazel package/BUILD file when Kind is
	// KeyKindBazelPackage or KeyKindBazelBuildFile.
	Label label.Label
	// Path identifies a repo-relative directory when Kind is KeyKindPath.
	Path string
	// Dummy is an arbitrary discriminator used only by
	// KeyKindDummyForTesting.
	Dummy string
}

func BazelPackageKey(l label.Label) Key   { return Key{Kind: KeyKindBazelPackage, Label: l} }
func BazelBuildFileKey(l label.Label) Key { return Key{Kind: KeyKindBazelBuildFile, Label: l} }
func PathKey(path string) Key             { return Key{Kind: KeyKindPath, Path: path} }
func DummyKey(discriminator string) Key   { return Key{Kind: KeyKindDummyForTesting, Dummy: discriminator} }

func (k Key) String() string {
	switch k.Kind {
	case KeyKindBazelPackage:
		return "BazelPackage(" + k.Label.String() + ")"
	case KeyKindBazelBuildFile:
		return "BazelBuildFile(" + k.Label.String() + ")"
	case KeyKindPath:
		return "Path(" + k.Path + ")"
	case KeyKindDummyForTesting:
		return "DummyForTesting(" + k.Dummy + ")"
	default:
		return fmt.Sprintf("<invalid key %v>", k.Kind)
	}
}

// CompareKeys orders two Keys by their canonical string form. Value.Equal
// uses it to compare Deps independent of their order.
func CompareKeys(a, b Key) int { return cmp.Compare(a.String(), b.String()) }

// ValueKind discriminates the closed set of DependencyValue variants.
type ValueKind int

const (
	ValueKindPath ValueKind = iota
	ValueKindPackageInfo
)

// Value is the payload attached to a Key: either a bare path or the
// package info a build node reports.
type Value struct {
	Kind ValueKind

	// Path is populated when Kind == ValueKindPath.
	Path string

	// Deps and Includes are populated when Kind == ValueKindPackageInfo.
	Deps     []Key
	Includes []string
}

func PathValue(path string) Value { return Value{Kind: ValueKindPath, Path: path} }

func PackageInfoValue(deps []Key, includes []string) Value {
	return Value{Kind: ValueKindPackageInfo, Deps: deps, Includes: includes}
}

// Equal reports whether two Values are structurally identical, ignoring
// the order of Deps/Includes. Used by the dispatcher to detect whether two
// resolvers produced conflicting values for the same Key.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind || v.Path != other.Path {
		return false
	}
	if len(v.Deps) != len(other.Deps) || len(v.Includes) != len(other.Includes) {
		return false
	}
	depsA, depsB := append([]Key(nil), v.Deps...), append([]Key(nil), other.Deps...)
	sortKeys(depsA)
	sortKeys(depsB)
	for i := range depsA {
		if depsA[i] != depsB[i] {
			return false
		}
	}
	incA, incB := append([]string(nil), v.Includes...), append([]string(nil), other.Includes...)
	sortStrings(incA)
	sortStrings(incB)
	for i := range incA {
		if incA[i] != incB[i] {
			return false
		}
	}
	return true
}
