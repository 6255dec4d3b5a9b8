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

// Package ast holds the in-memory tree of a DSL workflow and the passes that
// transform it: loading, parameter merging, forest building and inline script
// tool synthesis.
//
// A document is decoded once into a Node whose shape is a closed set of
// variants. Each pass is a total match over those variants and returns a new
// tree; nothing in this package mutates its input.
package ast

import (
	"fmt"
)

// Reserved document keys.
const (
	KeyWic        = "wic"
	KeySteps      = "steps"
	KeyBackends   = "backends"
	KeyNamespace  = "namespace"
	KeySubtree    = "subtree"
	KeyParentArgs = "parentargs"
	KeyIn         = "in"
)

// Map is an untyped DSL mapping.
type Map = map[string]any

// Node is one DSL document.
type Node struct {
	// Meta is the reserved wic: block without its backends entry.
	Meta Map
	// Body is either *Dispatch or *Sequence.
	Body Body
	// Rest holds every other top-level key, preserved verbatim.
	Rest Map
}

// Body is the closed set of document shapes.
type Body interface {
	isBody()
}

// Dispatch is a document declaring interchangeable backend implementations.
// It has no steps of its own.
type Dispatch struct {
	Backends []Backend
}

// Sequence is a document with an ordered list of steps.
type Sequence struct {
	Steps []Step
}

func (*Dispatch) isBody() {}
func (*Sequence) isBody() {}

// Backend is one alternative of a Dispatch node.
type Backend struct {
	ID   StepID
	Tree *Node
}

// Step is one entry of a Sequence. Key is the step identity reference as
// written in the document.
type Step struct {
	Key   string
	Value StepValue
}

// StepValue is the tri-state value of a step: Empty, *ToolArgs or *SubWorkflow.
type StepValue interface {
	isStepValue()
}

// Empty is an argument-less primitive step.
type Empty struct{}

// ToolArgs is the argument mapping of a primitive tool step.
type ToolArgs struct {
	Args Map
}

// SubWorkflow is a step whose referenced document has been inlined.
// Subtree and ParentArgs are kept apart until lowering.
type SubWorkflow struct {
	Subtree    *Node
	ParentArgs Map
}

func (Empty) isStepValue()        {}
func (*ToolArgs) isStepValue()    {}
func (*SubWorkflow) isStepValue() {}

// Tree pairs a document with its identity.
type Tree struct {
	ID   StepID
	Root *Node
}

// StepKey returns the override key for the step at the 1-based position.
func StepKey(position int, key string) string {
	return fmt.Sprintf("(%d, %s)", position, key)
}

// Namespace returns the document's wic.namespace, or "global".
func (n *Node) Namespace() string {
	if n == nil {
		return DefaultNamespace
	}
	if ns, ok := n.Meta[KeyNamespace].(string); ok && ns != "" {
		return ns
	}
	return DefaultNamespace
}

// StepOverrides returns the wic.steps entry for the step at position, or nil.
func (n *Node) StepOverrides(position int, key string) Map {
	if n == nil {
		return nil
	}
	steps, ok := n.Meta[KeySteps].(Map)
	if !ok {
		return nil
	}
	block, _ := steps[StepKey(position, key)].(Map)
	return block
}

// StepNamespace returns the namespace override for the step at position.
func (n *Node) StepNamespace(position int, key string) string {
	block := n.StepOverrides(position, key)
	if wic, ok := block[KeyWic].(Map); ok {
		if ns, ok := wic[KeyNamespace].(string); ok && ns != "" {
			return ns
		}
	}
	return DefaultNamespace
}

// Steps returns the steps of a Sequence node, or nil for a Dispatch node.
func (n *Node) Steps() []Step {
	if n == nil {
		return nil
	}
	if seq, ok := n.Body.(*Sequence); ok {
		return seq.Steps
	}
	return nil
}

// Backends returns the alternatives of a Dispatch node, or nil.
func (n *Node) Backends() []Backend {
	if n == nil {
		return nil
	}
	if d, ok := n.Body.(*Dispatch); ok {
		return d.Backends
	}
	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Meta: cloneMap(n.Meta),
		Rest: cloneMap(n.Rest),
	}
	switch body := n.Body.(type) {
	case *Dispatch:
		backends := make([]Backend, len(body.Backends))
		for i, b := range body.Backends {
			backends[i] = Backend{ID: b.ID, Tree: b.Tree.Clone()}
		}
		out.Body = &Dispatch{Backends: backends}
	case *Sequence:
		steps := make([]Step, len(body.Steps))
		for i, s := range body.Steps {
			steps[i] = Step{Key: s.Key, Value: cloneStepValue(s.Value)}
		}
		out.Body = &Sequence{Steps: steps}
	}
	return out
}

// shallow returns a copy of n with the same Meta and Rest and a nil Body,
// for passes that rebuild the body.
func (n *Node) shallow() *Node {
	return &Node{Meta: cloneMap(n.Meta), Rest: cloneMap(n.Rest)}
}

func cloneStepValue(v StepValue) StepValue {
	switch val := v.(type) {
	case *ToolArgs:
		return &ToolArgs{Args: cloneMap(val.Args)}
	case *SubWorkflow:
		return &SubWorkflow{Subtree: val.Subtree.Clone(), ParentArgs: cloneMap(val.ParentArgs)}
	default:
		return Empty{}
	}
}

func cloneMap(m Map) Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Map:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
