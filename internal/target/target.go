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

// Package target models the coordinate language users select build targets
// with: "scheme:payload" strings parsed into typed Targets, Bazel-style
// labels, and uniformity-annotated target sets. Parsing never performs I/O.
package target

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedScheme is the kind wrapped when a coordinate names a scheme
// outside the closed set (bazel, directory, pants).
var ErrUnsupportedScheme = errors.New("target: unsupported scheme")

// ErrTokenization is returned when a coordinate has no "scheme:" prefix at
// all.
var ErrTokenization = errors.New("target: coordinate has no scheme separator")

// Kind discriminates the closed set of coordinate schemes.
type Kind int

const (
	KindBazel Kind = iota
	KindDirectory
	KindPants
)

func (k Kind) String() string {
	switch k {
	case KindBazel:
		return "bazel"
	case KindDirectory:
		return "directory"
	case KindPants:
		return "pants"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Target is one user-supplied build selector. It is a tagged value: exactly
// the field selected by Kind is populated. All fields are comparable, so a
// Target can key a map directly.
type Target struct {
	Kind Kind

	// Bazel is populated when Kind == KindBazel.
	Bazel Label
	// Directory is populated when Kind == KindDirectory. The payload is
	// free-form and kept verbatim.
	Directory string
	// Pants is populated when Kind == KindPants. The payload is free-form
	// and kept verbatim.
	Pants string
}

// Bazel wraps a parsed Label as a Target.
func Bazel(l Label) Target { return Target{Kind: KindBazel, Bazel: l} }

// Directory wraps a repo-relative directory path as a Target.
func Directory(path string) Target { return Target{Kind: KindDirectory, Directory: path} }

// Pants wraps a Pants target spec as a Target.
func Pants(spec string) Target { return Target{Kind: KindPants, Pants: spec} }

// String renders the canonical "scheme:payload" coordinate form. Parsing
// the result yields t back unchanged, which is also what deduplicates
// equivalent spellings of the same coordinate inside a Set.
func (t Target) String() string {
	switch t.Kind {
	case KindBazel:
		return "bazel:" + t.Bazel.String()
	case KindDirectory:
		return "directory:" + t.Directory
	case KindPants:
		return "pants:" + t.Pants
	default:
		return fmt.Sprintf("<invalid target kind %v>", t.Kind)
	}
}

// Parse parses one "scheme:payload" coordinate. The scheme match is
// case-insensitive; the payload is a Label for bazel and free-form for
// directory and pants.
func Parse(coordinate string) (Target, error) {
	scheme, payload, found := strings.Cut(coordinate, ":")
	if !found {
		return Target{}, fmt.Errorf("%w: %q", ErrTokenization, coordinate)
	}
	switch strings.ToLower(scheme) {
	case "bazel":
		l, err := ParseLabel(payload)
		if err != nil {
			return Target{}, err
		}
		return Bazel(l), nil
	case "directory":
		return Directory(payload), nil
	case "pants":
		return Pants(payload), nil
	default:
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}
