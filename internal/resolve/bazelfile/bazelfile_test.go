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

package bazelfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeIsStableUnderReformatting(t *testing.T) {
	loose := []byte(`go_library(name = "app", srcs = ["main.go"],
        deps = [ "//src/lib:lib" ])`)
	tight := []byte(`go_library(
    name = "app",
    srcs = ["main.go"],
    deps = ["//src/lib:lib"],
)`)

	canonLoose, err := Canonicalize("BUILD.bazel", loose)
	require.NoError(t, err)
	canonTight, err := Canonicalize("BUILD.bazel", tight)
	require.NoError(t, err)

	assert.Equal(t, string(canonTight), string(canonLoose))
}

func TestCanonicalizeRejectsInvalidSyntax(t *testing.T) {
	_, err := Canonicalize("BUILD.bazel", []byte(`go_library(name = `))
	require.Error(t, err)
}
