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

package target

import (
	"fmt"
	"strings"

	"github.com/focusvcs/focus/internal/collections"
)

// Set is an unordered, unique collection of Targets annotated with a
// uniformity flag: true iff all members share one scheme (and for the empty
// set). Uniformity is exposed for callers; resolve.Dispatcher does not
// consult it, and routes members to resolvers by partitioning on Kind (so a
// directory-only selection never reaches the build tool). Equivalent
// spellings of the same coordinate collapse to one
// member because Target equality follows its canonical string form.
type Set struct {
	members collections.Set[Target]
	uniform bool
}

// NewSet builds a Set from members, deduplicating as it goes.
func NewSet(members ...Target) Set {
	return Set{
		members: collections.NewSet(members...),
		uniform: determineUniformity(members),
	}
}

// FromStrings parses each coordinate and collects the results into a Set.
func FromStrings(coordinates []string) (Set, error) {
	members := make([]Target, 0, len(coordinates))
	for _, coordinate := range coordinates {
		t, err := Parse(coordinate)
		if err != nil {
			return Set{}, fmt.Errorf("parsing coordinate %q: %w", coordinate, err)
		}
		members = append(members, t)
	}
	return NewSet(members...), nil
}

func determineUniformity(members []Target) bool {
	kinds := collections.NewSet[Kind]()
	for _, t := range members {
		kinds.Insert(t.Kind)
	}
	return len(kinds) <= 1
}

// Len returns the number of distinct members.
func (s Set) Len() int { return len(s.members) }

// Uniform reports whether every member shares one scheme. The empty set is
// uniform.
func (s Set) Uniform() bool { return s.uniform || len(s.members) == 0 }

// Contains reports membership.
func (s Set) Contains(t Target) bool { return s.members.Has(t) }

// Underlying returns the members sorted by their canonical coordinate
// string, so iteration order is deterministic everywhere a Set fans out
// into queries or results.
func (s Set) Underlying() []Target {
	return s.members.Sorted(compareTargets)
}

// Strings returns the members' canonical coordinate strings, sorted.
func (s Set) Strings() []string {
	members := s.Underlying()
	out := make([]string, len(members))
	for i, t := range members {
		out[i] = t.String()
	}
	return out
}

// Partition groups the members by scheme. Each group is sorted by canonical
// coordinate string.
func (s Set) Partition() map[Kind][]Target {
	groups := make(map[Kind][]Target)
	for _, t := range s.Underlying() {
		groups[t.Kind] = append(groups[t.Kind], t)
	}
	return groups
}

// Join returns the union of s and other as a new Set; neither input is
// modified.
func (s Set) Join(other Set) Set {
	merged := s.members.Union(other.members)
	return NewSet(merged.Elems()...)
}

func (s Set) String() string {
	return "{" + strings.Join(s.Strings(), ", ") + "}"
}

func compareTargets(a, b Target) int { return strings.Compare(a.String(), b.String()) }
