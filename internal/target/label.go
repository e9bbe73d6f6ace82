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
	"errors"
	"fmt"
	"strings"
)

// ErrLabelParse is the kind wrapped by every label syntax error.
var ErrLabelParse = errors.New("target: malformed label")

// TargetName is the target portion of a Label: either an explicit name or
// the recursive ellipsis wildcard ("every target under this path"). Exactly
// one of the two forms is populated.
type TargetName struct {
	Name     string
	Ellipsis bool
}

func (n TargetName) String() string {
	if n.Ellipsis {
		return "..."
	}
	return n.Name
}

// Label is a Bazel-style target reference [@repo]//p1/p2[:name|/...]. All
// fields are comparable so a Label (and the Target wrapping it) can be used
// directly as a map key. Path holds the slash-joined package path with no
// leading or trailing slash; "" means the workspace root.
type Label struct {
	// ExternalRepository is the "@repo" token verbatim, or "" for the main
	// workspace.
	ExternalRepository string
	Path               string
	Name               TargetName
}

// PathComponents returns Path split on "/", or nil for the root package.
func (l Label) PathComponents() []string {
	if l.Path == "" {
		return nil
	}
	return strings.Split(l.Path, "/")
}

// String renders the canonical display form: always beginning with "//"
// (after the external-repository token, if any), with ":name" elided only
// for the ellipsis form. Parsing the result yields l back unchanged.
func (l Label) String() string {
	var sb strings.Builder
	sb.WriteString(l.ExternalRepository)
	sb.WriteString("//")
	sb.WriteString(l.Path)
	if l.Name.Ellipsis {
		if l.Path != "" {
			sb.WriteString("/")
		}
		sb.WriteString("...")
	} else {
		sb.WriteString(":")
		sb.WriteString(l.Name.Name)
	}
	return sb.String()
}

// ParseLabel parses a label string. The grammar is total over well-formed
// input: a leading "//" is optional, "@repo//" selects an external
// repository, a "/..." suffix selects every target under the path
// recursively, and a label with no explicit ":name" names the target after
// its last path component.
func ParseLabel(s string) (Label, error) {
	var l Label
	rest := s

	if strings.HasPrefix(rest, "@") {
		sep := strings.Index(rest, "//")
		if sep < 0 {
			return Label{}, fmt.Errorf("%w: %q has an external repository but no //", ErrLabelParse, s)
		}
		if sep == 1 {
			return Label{}, fmt.Errorf("%w: %q has an empty external repository name", ErrLabelParse, s)
		}
		l.ExternalRepository = rest[:sep]
		rest = rest[sep+2:]
	} else {
		rest = strings.TrimPrefix(rest, "//")
	}

	if rest == "" {
		return Label{}, fmt.Errorf("%w: %q names no package or target", ErrLabelParse, s)
	}

	if rest == "..." || strings.HasSuffix(rest, "/...") {
		l.Name = TargetName{Ellipsis: true}
		l.Path = strings.TrimSuffix(strings.TrimSuffix(rest, "..."), "/")
		if err := checkPath(s, l.Path); err != nil {
			return Label{}, err
		}
		return l, nil
	}

	path, name, explicit := strings.Cut(rest, ":")
	if explicit {
		if name == "" {
			return Label{}, fmt.Errorf("%w: %q has an empty target name", ErrLabelParse, s)
		}
		if strings.ContainsAny(name, "/:") {
			return Label{}, fmt.Errorf("%w: %q has an invalid target name %q", ErrLabelParse, s, name)
		}
	}
	if err := checkPath(s, path); err != nil {
		return Label{}, err
	}
	if !explicit {
		components := strings.Split(path, "/")
		name = components[len(components)-1]
	}

	l.Path = path
	l.Name = TargetName{Name: name}
	return l, nil
}

func checkPath(label, path string) error {
	if path == "" {
		return nil
	}
	for _, component := range strings.Split(path, "/") {
		if component == "" {
			return fmt.Errorf("%w: %q has an empty path component", ErrLabelParse, label)
		}
	}
	return nil
}
