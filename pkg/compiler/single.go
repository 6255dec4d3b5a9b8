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
	"strings"

	"github.com/tombee/wic/pkg/ast"
	"github.com/tombee/wic/pkg/searchpath"
)

// SingleStep builds a one-step document that runs stem with args.
//
// For a tool, args become the step's own arguments. For a DSL document
// (stem ending in .wic) the step has no arguments and args is applied as
// the document's step overrides, so it can re-parameterize the
// sub-workflow's steps. The returned id names the document.
func SingleStep(stem string, args ast.Map) (ast.StepID, *ast.Node) {
	if strings.HasSuffix(stem, searchpath.Extension) {
		meta := ast.Map{
			ast.KeySteps: ast.Map{
				ast.StepKey(1, stem): ast.Map{
					ast.KeyWic: ast.Map{ast.KeySteps: orEmpty(args)},
				},
			},
		}
		node := &ast.Node{
			Meta: meta,
			Body: &ast.Sequence{Steps: []ast.Step{{Key: stem, Value: ast.Empty{}}}},
			Rest: ast.Map{},
		}
		return ast.NewStepID(ast.FileStem(stem), ast.DefaultNamespace), node
	}

	var value ast.StepValue = ast.Empty{}
	if len(args) > 0 {
		value = &ast.ToolArgs{Args: args}
	}
	node := &ast.Node{
		Body: &ast.Sequence{Steps: []ast.Step{{Key: stem, Value: value}}},
		Rest: ast.Map{},
	}
	return ast.NewStepID(ast.FileStem(stem)+"_only", ast.DefaultNamespace), node
}

func orEmpty(m ast.Map) ast.Map {
	if m == nil {
		return ast.Map{}
	}
	return m
}
