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

// Package bazelquery invokes "bazel query" and parses its machine-readable
// output. Output is requested as --output=streamed_jsonproto, newline-
// delimited JSON with one Target message per line, which avoids a build
// dependency on generated bindings for bazel's blaze_query proto schema.
package bazelquery

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/focusvcs/focus/internal/procdriver"
)

// Attribute is one rule attribute as reported by streamed_jsonproto.
type Attribute struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	StringValue     string   `json:"stringValue,omitempty"`
	StringListValue []string `json:"stringListValue,omitempty"`
}

// Target is one query result node: either a rule (Type == "RULE") or a
// source file (Type == "SOURCE_FILE").
type Target struct {
	Type       string      `json:"type"`
	Rule       *ruleNode   `json:"rule,omitempty"`
	SourceFile *sourceNode `json:"sourceFile,omitempty"`
}

type ruleNode struct {
	Name      string      `json:"name"`
	RuleClass string      `json:"ruleClass"`
	Location  string      `json:"location"`
	Attribute []Attribute `json:"attribute"`
}

type sourceNode struct {
	Name string `json:"name"`
}

// Label returns the target's fully-qualified label string, regardless of
// whether it is a rule or a source file node.
func (t Target) Label() string {
	if t.Rule != nil {
		return t.Rule.Name
	}
	if t.SourceFile != nil {
		return t.SourceFile.Name
	}
	return ""
}

// BuildFileHint returns the location string bazel reports for a rule node,
// normally the BUILD file (and position) the rule was declared in; "" for
// non-rule nodes.
func (t Target) BuildFileHint() string {
	if t.Rule == nil {
		return ""
	}
	return t.Rule.Location
}

// GetNamedAttribute returns the rule attribute named name, or nil if the
// target is not a rule or has no such attribute.
func (t Target) GetNamedAttribute(name string) *Attribute {
	if t.Rule == nil {
		return nil
	}
	for i := range t.Rule.Attribute {
		if t.Rule.Attribute[i].Name == name {
			return &t.Rule.Attribute[i]
		}
	}
	return nil
}

// RuleClass returns the target's rule class ("go_library", ...), or "" for
// non-rule nodes.
func (t Target) RuleClass() string {
	if t.Rule == nil {
		return ""
	}
	return t.Rule.RuleClass
}

// Deps returns the label strings in the rule's "deps" attribute, or nil.
func (t Target) Deps() []string {
	if attr := t.GetNamedAttribute("deps"); attr != nil {
		return attr.StringListValue
	}
	return nil
}

// ExpandGlobAttribute resolves a glob-attribute's string list (e.g. "srcs",
// "hdrs") against the filesystem rooted at pkgDir, so that literal
// filenames and glob patterns are both accepted uniformly.
func ExpandGlobAttribute(fsys fs.FS, pkgDir string, attr *Attribute) ([]string, error) {
	if attr == nil {
		return nil, nil
	}
	var out []string
	for _, pattern := range attr.StringListValue {
		matches, err := doublestar.Glob(fsys, pkgDir+"/"+pattern)
		if err != nil {
			return nil, fmt.Errorf("bazelquery: expanding glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			out = append(out, pkgDir+"/"+pattern)
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}

// Run invokes "bazel query <expr> --output=streamed_jsonproto
// --incompatible_disallow_empty_glob=false" in cwd through driver, and
// decodes the newline-delimited JSON result stream.
func Run(ctx context.Context, driver *procdriver.Driver, cwd, expr string) ([]Target, error) {
	result, err := driver.Run(ctx, procdriver.Invocation{
		Name: "bazel",
		Args: []string{"query", expr, "--output=streamed_jsonproto", "--incompatible_disallow_empty_glob=false"},
		Cwd:  cwd,
	})
	if result != nil {
		defer result.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("bazelquery: %q: %w", expr, err)
	}

	stdout, err := result.StdoutBytes()
	if err != nil {
		return nil, fmt.Errorf("bazelquery: reading output: %w", err)
	}

	var targets []Target
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var target Target
		if err := json.Unmarshal(line, &target); err != nil {
			return nil, fmt.Errorf("bazelquery: decoding result line: %w", err)
		}
		targets = append(targets, target)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bazelquery: scanning output: %w", err)
	}
	return targets, nil
}
