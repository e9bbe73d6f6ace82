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

package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.NoError(t, lock.Release())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAcquireTwiceIsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.lock")

	first, err := Acquire(path)
	require.NoError(t, err)
	defer first.Release()

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestReAcquireAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.lock")

	first, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestHeldByReportsPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	pid, err := HeldBy(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
