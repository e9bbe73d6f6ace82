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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  Label
	}{
		{
			input: "//foo/bar/...",
			want:  Label{Path: "foo/bar", Name: TargetName{Ellipsis: true}},
		},
		{
			input: "//foo/bar:baz",
			want:  Label{Path: "foo/bar", Name: TargetName{Name: "baz"}},
		},
		{
			input: "//foo/bar",
			want:  Label{Path: "foo/bar", Name: TargetName{Name: "bar"}},
		},
		{
			input: "foo/bar",
			want:  Label{Path: "foo/bar", Name: TargetName{Name: "bar"}},
		},
		{
			input: "@remote//lib:lib",
			want:  Label{ExternalRepository: "@remote", Path: "lib", Name: TargetName{Name: "lib"}},
		},
		{
			input: "@remote//...",
			want:  Label{ExternalRepository: "@remote", Name: TargetName{Ellipsis: true}},
		},
		{
			input: "//...",
			want:  Label{Name: TargetName{Ellipsis: true}},
		},
		{
			input: "//:root",
			want:  Label{Name: TargetName{Name: "root"}},
		},
	} {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseLabel(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLabelErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"//",
		"@//foo",
		"@remote",
		"//foo//bar",
		"//foo/",
		"//foo:",
		"//foo:a:b",
		"//foo:a/b",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseLabel(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLabelParse)
		})
	}
}

// Display is canonical: re-parsing a displayed label yields the identical
// Label, and re-displaying is a fixed point.
func TestLabelDisplayRoundTrip(t *testing.T) {
	for _, input := range []string{
		"//foo/bar/...",
		"//foo/bar:baz",
		"foo/bar",
		"@remote//lib",
		"//...",
		"//:root",
	} {
		parsed, err := ParseLabel(input)
		require.NoError(t, err)

		displayed := parsed.String()
		reparsed, err := ParseLabel(displayed)
		require.NoError(t, err)
		assert.Equal(t, parsed, reparsed, "parse(display(L)) must equal L for %q", input)
		assert.Equal(t, displayed, reparsed.String())
	}
}

func TestLabelDisplayForms(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  string
	}{
		{"//foo/bar/...", "//foo/bar/..."},
		{"foo/bar", "//foo/bar:bar"},
		{"@remote//lib", "@remote//lib:lib"},
		{"//...", "//..."},
	} {
		l, err := ParseLabel(tc.input)
		require.NoError(t, err)
		assert.Equal(t, tc.want, l.String())
	}
}

func TestPathComponents(t *testing.T) {
	l, err := ParseLabel("//foo/bar/...")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar"}, l.PathComponents())

	root, err := ParseLabel("//:root")
	require.NoError(t, err)
	assert.Nil(t, root.PathComponents())
}
