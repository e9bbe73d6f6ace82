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

// Package bazelkey translates bazelquery.Target nodes into the key/value
// vocabulary of internal/resolve, using gazelle's label.Label to represent
// a resolved package identity.
package bazelkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/focusvcs/focus/internal/resolve"
)

// packageIdentityName is a sentinel target name used to key a
// resolve.Key onto a Bazel *package* rather than any one of its targets.
// It names no real target, but it is part of the key's canonical string,
// so it shows up in key displays and feeds the key's ContentHash;
// changing it changes every package key's hash.
const packageIdentityName = "all"

// PackageKey builds the resolve.Key for the Bazel package containing a
// queried rule target. Every rule in the same package maps to the same
// key; resolution tracks packages, not individual rules.
func PackageKey(l label.Label) resolve.Key {
	return resolve.BazelPackageKey(label.New(l.Repo, l.Pkg, packageIdentityName))
}

// BuildFileKey builds the resolve.Key for the BUILD file backing a Bazel
// package.
func BuildFileKey(l label.Label) resolve.Key {
	return resolve.BazelBuildFileKey(label.New(l.Repo, l.Pkg, "BUILD.bazel"))
}

// ParseLabel parses a Bazel label string as reported by bazel query
// (always fully qualified, e.g. "//src/app:app" or "@com_repo//pkg:name").
func ParseLabel(s string) (label.Label, error) {
	l, err := label.Parse(s)
	if err != nil {
		return label.Label{}, fmt.Errorf("bazelkey: parsing label %q: %w", s, err)
	}
	return l, nil
}

// PackageDir returns the repo-relative directory a label's package lives
// in, for projecting source-file globs to their owning paths.
func PackageDir(l label.Label) string {
	return l.Pkg
}

// ValueFor builds the resolve.Value for a rule target: its deps (as
// resolve.Key, one per dependency label's owning package) and its source
// globs (as Includes), already expanded to concrete paths by the caller via
// bazelquery.ExpandGlobAttribute.
func ValueFor(depKeys []resolve.Key, includes []string) resolve.Value {
	return resolve.PackageInfoValue(depKeys, includes)
}

// ContainingPackagePath returns the repo-relative directory that a source
// file path (as reported in srcs/hdrs) belongs to, by taking its directory
// component.
func ContainingPackagePath(sourcePath string) string {
	dir := path.Dir(sourcePath)
	if dir == "." {
		return ""
	}
	return strings.TrimSuffix(dir, "/")
}
