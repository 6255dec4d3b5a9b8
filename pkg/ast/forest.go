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

package ast

// Forest is a tree of trees: the root document plus one child forest per
// backend alternative or per sub-workflow step.
type Forest struct {
	Tree     Tree
	Children []ForestChild
}

// ForestChild is a child forest with the identity it was reached under.
type ForestChild struct {
	ID     StepID
	Forest Forest
}

// ToForest re-expresses a tree as a forest. Backends become sibling child
// forests and the dispatch node's steps are not traversed; otherwise every
// sub-workflow step contributes one child, in step order. The input is not
// modified and the returned forest shares its nodes.
func ToForest(tree Tree) Forest {
	forest := Forest{Tree: tree}
	switch body := tree.Root.Body.(type) {
	case *Dispatch:
		for _, b := range body.Backends {
			forest.Children = append(forest.Children, ForestChild{
				ID:     b.ID,
				Forest: ToForest(Tree{ID: b.ID, Root: b.Tree}),
			})
		}
	case *Sequence:
		for i, step := range body.Steps {
			sub, ok := step.Value.(*SubWorkflow)
			if !ok {
				continue
			}
			childID := NewStepID(step.Key, tree.Root.StepNamespace(i+1, step.Key))
			forest.Children = append(forest.Children, ForestChild{
				ID:     childID,
				Forest: ToForest(Tree{ID: childID, Root: sub.Subtree}),
			})
		}
	}
	return forest
}

// Walk visits the forest depth-first, parents before children. depth is 0 for
// the root. Returning false from fn skips the node's children.
func (f Forest) Walk(fn func(depth int, tree Tree) bool) {
	f.walk(0, fn)
}

func (f Forest) walk(depth int, fn func(int, Tree) bool) {
	if !fn(depth, f.Tree) {
		return
	}
	for _, c := range f.Children {
		c.Forest.walk(depth+1, fn)
	}
}

// Len returns the number of trees in the forest, including the root.
func (f Forest) Len() int {
	n := 0
	f.Walk(func(int, Tree) bool {
		n++
		return true
	})
	return n
}
