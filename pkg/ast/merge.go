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

import (
	"fmt"
)

// MergeOverrides merges src over dst. For keys present on both sides,
// mappings are merged recursively and any other value is replaced by src's,
// provided both values are of the same kind. A kind mismatch is an error.
// Neither input is modified and the result shares no structure with them.
func MergeOverrides(dst, src Map) (Map, error) {
	return mergeMaps(dst, src, nil)
}

func mergeMaps(dst, src Map, path []string) (Map, error) {
	out := cloneMap(dst)
	if out == nil {
		out = Map{}
	}
	for key, override := range src {
		existing, ok := out[key]
		if !ok {
			out[key] = cloneValue(override)
			continue
		}
		keyPath := append(path[:len(path):len(path)], key)
		if kindOf(existing) != kindOf(override) {
			return nil, &MergeConflictError{Path: keyPath, Existing: existing, Override: override}
		}
		if existingMap, ok := existing.(Map); ok {
			merged, err := mergeMaps(existingMap, override.(Map), keyPath)
			if err != nil {
				return nil, err
			}
			out[key] = merged
			continue
		}
		out[key] = cloneValue(override)
	}
	return out, nil
}

// kindOf returns the value class used for override type checks.
func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case Map:
		return "mapping"
	case []any:
		return "sequence"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Merge applies parameter passing to a loaded tree. parent is the override
// block supplied by the enclosing workflow (nil at the root). Values from
// parent win over the document's own values, recursively, so an ancestor can
// re-parameterize any step at any depth.
func Merge(tree Tree, parent Map) (Tree, error) {
	root, err := mergeNode(tree.ID, tree.Root, parent)
	if err != nil {
		return Tree{}, err
	}
	return Tree{ID: tree.ID, Root: root}, nil
}

func mergeNode(id StepID, n *Node, parent Map) (*Node, error) {
	if n == nil {
		return nil, fmt.Errorf("%s: nil document", id)
	}

	self := n.Meta
	if self == nil {
		self = Map{}
	}
	merged, err := MergeOverrides(Map{KeyWic: self}, parent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id.Stem, err)
	}
	meta, ok := merged[KeyWic].(Map)
	if !ok {
		return nil, &MergeConflictError{Path: []string{KeyWic}, Existing: self, Override: merged[KeyWic]}
	}
	if b, ok := meta[KeyBackends]; ok {
		return nil, &MergeConflictError{Path: []string{KeyWic, KeyBackends}, Existing: nil, Override: b}
	}

	out := n.shallow()
	out.Meta = meta

	switch body := n.Body.(type) {
	case *Dispatch:
		backends := make([]Backend, 0, len(body.Backends))
		for _, b := range body.Backends {
			child, err := mergeNode(b.ID, b.Tree, parent)
			if err != nil {
				return nil, err
			}
			backends = append(backends, Backend{ID: b.ID, Tree: child})
		}
		out.Body = &Dispatch{Backends: backends}
		return out, nil

	case *Sequence:
		steps := make([]Step, 0, len(body.Steps))
		for i, step := range body.Steps {
			overrides := out.StepOverrides(i+1, step.Key)
			switch val := step.Value.(type) {
			case *SubWorkflow:
				childID := NewStepID(step.Key, id.Namespace)
				sub, err := mergeNode(childID, val.Subtree, overrides)
				if err != nil {
					return nil, err
				}
				steps = append(steps, Step{Key: step.Key, Value: &SubWorkflow{
					Subtree:    sub,
					ParentArgs: cloneMap(val.ParentArgs),
				}})
			default:
				args, err := mergeToolArgs(val, overrides)
				if err != nil {
					return nil, fmt.Errorf("%s: step %s: %w", id.Stem, step.Key, err)
				}
				steps = append(steps, Step{Key: step.Key, Value: &ToolArgs{Args: args}})
			}
		}
		out.Body = &Sequence{Steps: steps}
		return out, nil

	default:
		return nil, fmt.Errorf("%s: document has no body", id)
	}
}

// mergeToolArgs merges a leaf step's override block over its own arguments.
// DSL metadata never reaches tool arguments: the wic key is dropped from the
// override block first.
func mergeToolArgs(v StepValue, overrides Map) (Map, error) {
	var own Map
	if ta, ok := v.(*ToolArgs); ok {
		own = ta.Args
	}
	args := overrides
	if _, ok := overrides[KeyWic]; ok {
		args = cloneMap(overrides)
		delete(args, KeyWic)
	}
	return MergeOverrides(own, args)
}
