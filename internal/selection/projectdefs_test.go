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

package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectDefinitionsWriteAndRead(t *testing.T) {
	store, err := Init(t.TempDir())
	require.NoError(t, err)

	defs, err := store.OpenProjectDefinitions()
	require.NoError(t, err)

	require.NoError(t, defs.Write("web", []string{"directory:src/web", "bazel://src/web:app"}))

	set, err := defs.Targets("web")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestProjectDefinitionsMissing(t *testing.T) {
	store, err := Init(t.TempDir())
	require.NoError(t, err)
	defs, err := store.OpenProjectDefinitions()
	require.NoError(t, err)

	_, err = defs.Targets("missing")
	assert.Error(t, err)
}
