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

package bazelquery

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/focusvcs/focus/internal/procdriver"
	"github.com/focusvcs/focus/internal/resolve"
	"github.com/focusvcs/focus/internal/resolve/bazelfile"
	"github.com/focusvcs/focus/internal/resolve/bazelkey"
	"github.com/focusvcs/focus/internal/target"
)

// Resolver translates Bazel labels into (paths, package_deps) by
// consulting the build tool in query mode; no build actions run.
type Resolver struct {
	Driver *procdriver.Driver
}

// New builds a Resolver that drives bazel through driver.
func New(driver *procdriver.Driver) *Resolver { return &Resolver{Driver: driver} }

// Resolve implements resolve.Resolver. It builds one query expression that
// unions "deps(label)" (ellipsis labels as "deps(//pkg/...)") over every member
// of req.Targets, executes it once, and synthesizes a BazelPackage key (and
// a BazelBuildFile key, when a BUILD file is found on disk) per distinct
// package the query reports.
func (r *Resolver) Resolve(ctx context.Context, req *resolve.Request) (*resolve.Result, error) {
	members := req.Targets.Underlying()
	exprs := make([]string, 0, len(members))
	for _, m := range members {
		if m.Kind != target.KindBazel {
			return nil, fmt.Errorf("bazelquery: unexpected target kind %v", m.Kind)
		}
		exprs = append(exprs, queryExprFor(m.Bazel))
	}
	if len(exprs) == 0 {
		return resolve.NewResult(), nil
	}
	expr := strings.Join(exprs, " union ")

	nodes, err := Run(ctx, r.Driver, req.RepoRoot, expr)
	if err != nil {
		return nil, err
	}

	result := resolve.NewResult()
	seenPackages := make(map[string]bool)
	pathSeen := make(map[string]bool)

	for _, node := range nodes {
		if node.Type != "RULE" {
			continue
		}
		ruleLabel, err := bazelkey.ParseLabel(node.Label())
		if err != nil {
			return nil, err
		}
		pkgKey := bazelkey.PackageKey(ruleLabel)

		var depKeys []resolve.Key
		for _, depStr := range node.Deps() {
			depLabel, err := bazelkey.ParseLabel(depStr)
			if err != nil {
				continue // a dep label that fails to parse is skipped; @external//... labels parse and are kept as keys
			}
			depKeys = append(depKeys, bazelkey.PackageKey(depLabel))
		}

		var includes []string
		for _, attrName := range []string{"srcs", "hdrs"} {
			attr := node.GetNamedAttribute(attrName)
			expanded, err := ExpandGlobAttribute(os.DirFS(req.RepoRoot), bazelkey.PackageDir(ruleLabel), attr)
			if err != nil {
				return nil, err
			}
			includes = append(includes, expanded...)
		}

		if existing, ok := result.PackageDeps[pkgKey]; ok {
			merged := resolve.PackageInfoValue(mergeKeys(existing.Deps, depKeys), mergeStrings(existing.Includes, includes))
			result.PackageDeps[pkgKey] = merged
		} else {
			result.PackageDeps[pkgKey] = bazelkey.ValueFor(depKeys, includes)
		}

		pkgDir := bazelkey.PackageDir(ruleLabel)
		if !pathSeen[pkgDir] {
			pathSeen[pkgDir] = true
			result.Paths = append(result.Paths, pkgDir)
		}
		for _, include := range includes {
			if dir := bazelkey.ContainingPackagePath(include); dir != "" && !pathSeen[dir] {
				pathSeen[dir] = true
				result.Paths = append(result.Paths, dir)
			}
		}

		if !seenPackages[pkgDir] {
			seenPackages[pkgDir] = true
			if content, buildPath, ok := readBuildFile(req.RepoRoot, pkgDir); ok {
				canon, err := bazelfile.Canonicalize(buildPath, content)
				if err != nil {
					return nil, fmt.Errorf("bazelquery: canonicalizing %s: %w", buildPath, err)
				}
				result.PackageDeps[bazelkey.BuildFileKey(ruleLabel)] = resolve.PathValue(string(canon))
			}
		}
	}

	return result, nil
}

func queryExprFor(l target.Label) string {
	if l.Name.Ellipsis {
		path := l.Path
		if l.ExternalRepository != "" {
			path = l.ExternalRepository + "//" + path
		} else {
			path = "//" + path
		}
		return fmt.Sprintf("deps(%s/...)", path)
	}
	return fmt.Sprintf("deps(%s)", l.String())
}

func readBuildFile(repoRoot, pkgDir string) ([]byte, string, bool) {
	for _, name := range []string{"BUILD.bazel", "BUILD"} {
		path := repoRoot + "/" + pkgDir + "/" + name
		if pkgDir == "" {
			path = repoRoot + "/" + name
		}
		if content, err := os.ReadFile(path); err == nil {
			return content, name, true
		}
	}
	return nil, "", false
}

func mergeKeys(a, b []resolve.Key) []resolve.Key {
	seen := make(map[resolve.Key]bool, len(a))
	out := append([]resolve.Key(nil), a...)
	for _, k := range a {
		seen[k] = true
	}
	for _, k := range b {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func mergeStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
