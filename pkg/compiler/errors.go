// Copyright 2025 Tom Barlow
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

package compiler

import (
	"errors"

	"github.com/tombee/wic/pkg/ast"
	wicerrors "github.com/tombee/wic/pkg/errors"
)

// Error categories reported by Category.
const (
	CategorySchema     = "schema"
	CategoryResolution = "resolution"
	CategoryMerge      = "merge"
	CategorySynthesis  = "synthesis"
	CategoryCycle      = "cycle"
	CategoryConfig     = "config"
	CategoryInternal   = "internal"
)

// Category names the kind of compile failure err represents. Missing files
// count as resolution failures.
func Category(err error) string {
	var (
		schemaErr    *ast.SchemaError
		resolveErr   *ast.ResolutionError
		notFoundErr  *wicerrors.NotFoundError
		mergeErr     *ast.MergeConflictError
		synthesisErr *ast.SynthesisError
		cycleErr     *ast.CycleError
		configErr    *wicerrors.ConfigError
	)
	switch {
	case errors.As(err, &schemaErr):
		return CategorySchema
	case errors.As(err, &cycleErr):
		return CategoryCycle
	case errors.As(err, &resolveErr), errors.As(err, &notFoundErr):
		return CategoryResolution
	case errors.As(err, &mergeErr):
		return CategoryMerge
	case errors.As(err, &synthesisErr):
		return CategorySynthesis
	case errors.As(err, &configErr):
		return CategoryConfig
	default:
		return CategoryInternal
	}
}
