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

// Package bazelfile canonicalizes BUILD file content through buildifier's
// parser before it is hashed as a BazelBuildFile dependency value, so that
// a pure reformatting of a BUILD file (whitespace, quote style, attribute
// order within a call) does not change its ContentHash.
package bazelfile

import (
	"fmt"

	"github.com/bazelbuild/buildtools/build"
)

// Canonicalize parses data as a BUILD file named path and re-serializes it
// through buildifier's canonical formatter.
func Canonicalize(path string, data []byte) ([]byte, error) {
	file, err := build.ParseBuild(path, data)
	if err != nil {
		return nil, fmt.Errorf("bazelfile: parsing %s: %w", path, err)
	}
	return build.Format(file), nil
}
