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

// Package lockfile is the advisory exclusive repo lock:
// .focus/focus.lock, taken with O_CREATE|O_EXCL so a second concurrent
// sync fails fast instead of racing the first.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrBusy is returned by Acquire when another process already holds the
// lock.
var ErrBusy = errors.New("lockfile: already locked by another process")

// Lock represents a held exclusive lock. The zero value is not a valid
// Lock; obtain one via Acquire.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the exclusive lock at path, writing the current process's
// PID into the lock file for diagnostic purposes. It returns ErrBusy if the
// lock is already held.
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("lockfile: acquiring %s: %w", path, err)
	}
	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("lockfile: writing pid to %s: %w", path, err)
	}
	return &Lock{path: path, file: file}, nil
}

// Release closes and removes the lock file. It is safe to call from a
// deferred statement immediately after Acquire succeeds, so a panicking
// caller still releases the lock.
func (l *Lock) Release() error {
	closeErr := l.file.Close()
	removeErr := os.Remove(l.path)
	if removeErr != nil {
		return fmt.Errorf("lockfile: releasing %s: %w", l.path, removeErr)
	}
	return closeErr
}

// HeldBy reads the PID recorded in an existing lock file at path, for
// diagnostic messages ("sync already running as pid %d"). It does not
// itself acquire or validate the lock.
func HeldBy(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("lockfile: reading %s: %w", path, err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("lockfile: %s does not contain a valid pid: %w", path, err)
	}
	return pid, nil
}
