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

// Package dirresolve resolves directory targets: an identity mapping from
// a Directory target to a repo-relative path. It performs no I/O.
package dirresolve

import (
	"context"
	"fmt"

	"github.com/focusvcs/focus/internal/resolve"
	"github.com/focusvcs/focus/internal/target"
)

// Resolver resolves Directory targets verbatim.
type Resolver struct{}

func New() *Resolver { return &Resolver{} }

func (*Resolver) Resolve(_ context.Context, req *resolve.Request) (*resolve.Result, error) {
	result := resolve.NewResult()
	for _, t := range req.Targets.Underlying() {
		if t.Kind != target.KindDirectory {
			return nil, fmt.Errorf("dirresolve: unexpected target kind %v", t.Kind)
		}
		result.Paths = append(result.Paths, t.Directory)
		result.PackageDeps[resolve.PathKey(t.Directory)] = resolve.PathValue(t.Directory)
	}
	return result, nil
}
