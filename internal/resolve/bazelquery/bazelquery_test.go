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
	"encoding/json"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusvcs/focus/internal/target"
)

const ruleLine = `{"type":"RULE","rule":{"name":"//src/app:app","ruleClass":"go_library","location":"/ws/src/app/BUILD.bazel:3:11","attribute":[{"name":"srcs","type":"label_list","stringListValue":["main.go","*.go"]},{"name":"deps","type":"label_list","stringListValue":["//src/lib:lib"]}]}}`

func TestDecodeRuleNode(t *testing.T) {
	var node Target
	require.NoError(t, json.Unmarshal([]byte(ruleLine), &node))

	assert.Equal(t, "RULE", node.Type)
	assert.Equal(t, "//src/app:app", node.Label())
	assert.Equal(t, "go_library", node.RuleClass())
	assert.Equal(t, []string{"//src/lib:lib"}, node.Deps())
	assert.Equal(t, "/ws/src/app/BUILD.bazel:3:11", node.BuildFileHint())

	srcs := node.GetNamedAttribute("srcs")
	require.NotNil(t, srcs)
	assert.Equal(t, []string{"main.go", "*.go"}, srcs.StringListValue)
	assert.Nil(t, node.GetNamedAttribute("hdrs"))
}

func TestDecodeSourceFileNode(t *testing.T) {
	line := `{"type":"SOURCE_FILE","sourceFile":{"name":"//src/app:main.go"}}`
	var node Target
	require.NoError(t, json.Unmarshal([]byte(line), &node))

	assert.Equal(t, "SOURCE_FILE", node.Type)
	assert.Equal(t, "//src/app:main.go", node.Label())
	assert.Equal(t, "", node.RuleClass())
	assert.Nil(t, node.Deps())
}

func TestExpandGlobAttribute(t *testing.T) {
	fsys := fstest.MapFS{
		"src/app/main.go":   {Data: []byte("package app")},
		"src/app/util.go":   {Data: []byte("package app")},
		"src/app/README.md": {Data: []byte("docs")},
	}
	attr := &Attribute{
		Name:            "srcs",
		StringListValue: []string{"*.go", "generated.go"},
	}

	got, err := ExpandGlobAttribute(fsys, "src/app", attr)
	require.NoError(t, err)
	// Globs expand against the filesystem; literal names with no match are
	// kept verbatim (a generated file may not exist yet at query time).
	assert.ElementsMatch(t, []string{
		"src/app/main.go",
		"src/app/util.go",
		"src/app/generated.go",
	}, got)
}

func TestExpandGlobAttributeNilIsEmpty(t *testing.T) {
	got, err := ExpandGlobAttribute(fstest.MapFS{}, "src/app", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryExprForLabels(t *testing.T) {
	for _, tc := range []struct {
		label string
		want  string
	}{
		{"//src/app:app", "deps(//src/app:app)"},
		{"//src/app/...", "deps(//src/app/...)"},
		{"@remote//lib/...", "deps(@remote//lib/...)"},
	} {
		l, err := target.ParseLabel(tc.label)
		require.NoError(t, err)
		assert.Equal(t, tc.want, queryExprFor(l))
	}
}
