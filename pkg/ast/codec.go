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
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Decode parses a DSL document.
func Decode(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if doc.Kind == 0 {
		// empty file
		return &Node{Body: &Sequence{}}, nil
	}
	return DecodeNode(&doc)
}

// DecodeNode builds a Node from a parsed YAML document or mapping node.
// Step and backend order is preserved.
func DecodeNode(doc *yaml.Node) (*Node, error) {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return &Node{Body: &Sequence{}}, nil
		}
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: document must be a mapping", doc.Line)
	}

	n := &Node{Rest: Map{}}
	var stepsNode, backendsNode *yaml.Node
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i].Value, doc.Content[i+1]
		switch key {
		case KeySteps:
			stepsNode = val
		case KeyWic:
			meta, backends, err := decodeWic(val)
			if err != nil {
				return nil, err
			}
			n.Meta = meta
			backendsNode = backends
		default:
			var v any
			if err := val.Decode(&v); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", val.Line, key, err)
			}
			n.Rest[key] = v
		}
	}
	if len(n.Rest) == 0 {
		n.Rest = nil
	}

	if backendsNode != nil {
		backends, err := decodeBackends(backendsNode, n.Namespace())
		if err != nil {
			return nil, err
		}
		n.Body = &Dispatch{Backends: backends}
		// Steps beside backends are never traversed; keep them verbatim.
		if stepsNode != nil {
			var v any
			if err := stepsNode.Decode(&v); err != nil {
				return nil, fmt.Errorf("line %d: steps: %w", stepsNode.Line, err)
			}
			if n.Rest == nil {
				n.Rest = Map{}
			}
			n.Rest[KeySteps] = v
		}
		return n, nil
	}

	steps, err := decodeSteps(stepsNode)
	if err != nil {
		return nil, err
	}
	n.Body = &Sequence{Steps: steps}
	return n, nil
}

func decodeWic(val *yaml.Node) (Map, *yaml.Node, error) {
	if isNull(val) {
		return Map{}, nil, nil
	}
	if val.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("line %d: wic must be a mapping", val.Line)
	}
	meta := Map{}
	var backends *yaml.Node
	for i := 0; i+1 < len(val.Content); i += 2 {
		key, v := val.Content[i].Value, val.Content[i+1]
		if key == KeyBackends {
			backends = v
			continue
		}
		var decoded any
		if err := v.Decode(&decoded); err != nil {
			return nil, nil, fmt.Errorf("line %d: wic.%s: %w", v.Line, key, err)
		}
		meta[key] = decoded
	}
	return meta, backends, nil
}

func decodeBackends(val *yaml.Node, namespace string) ([]Backend, error) {
	if val.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: wic.backends must be a mapping", val.Line)
	}
	backends := make([]Backend, 0, len(val.Content)/2)
	for i := 0; i+1 < len(val.Content); i += 2 {
		name := val.Content[i].Value
		child, err := DecodeNode(val.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", name, err)
		}
		backends = append(backends, Backend{ID: NewStepID(name, namespace), Tree: child})
	}
	return backends, nil
}

func decodeSteps(val *yaml.Node) ([]Step, error) {
	if val == nil || isNull(val) {
		return nil, nil
	}
	if val.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: steps must be a sequence", val.Line)
	}
	steps := make([]Step, 0, len(val.Content))
	for _, item := range val.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, fmt.Errorf("line %d: each step must be a single-key mapping", item.Line)
		}
		key, v := item.Content[0].Value, item.Content[1]
		switch {
		case isNull(v):
			steps = append(steps, Step{Key: key, Value: Empty{}})
		case v.Kind == yaml.MappingNode:
			var args Map
			if err := v.Decode(&args); err != nil {
				return nil, fmt.Errorf("line %d: step %s: %w", v.Line, key, err)
			}
			steps = append(steps, Step{Key: key, Value: &ToolArgs{Args: args}})
		default:
			return nil, fmt.Errorf("line %d: step %s: arguments must be a mapping", v.Line, key)
		}
	}
	return steps, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// ToMap renders the node back into the untyped document shape. Resolved
// sub-workflows render as {subtree, parentargs}.
func (n *Node) ToMap() Map {
	if n == nil {
		return nil
	}
	out := cloneMap(n.Rest)
	if out == nil {
		out = Map{}
	}

	var wic Map
	if n.Meta != nil {
		wic = cloneMap(n.Meta)
	}

	switch body := n.Body.(type) {
	case *Dispatch:
		backends := Map{}
		for _, b := range body.Backends {
			backends[b.ID.Stem] = b.Tree.ToMap()
		}
		if wic == nil {
			wic = Map{}
		}
		wic[KeyBackends] = backends
	case *Sequence:
		steps := make([]any, 0, len(body.Steps))
		for _, s := range body.Steps {
			steps = append(steps, Map{s.Key: stepValueToAny(s.Value)})
		}
		out[KeySteps] = steps
	}
	if wic != nil {
		out[KeyWic] = wic
	}
	return out
}

func stepValueToAny(v StepValue) any {
	switch val := v.(type) {
	case *ToolArgs:
		return cloneMap(val.Args)
	case *SubWorkflow:
		parent := cloneMap(val.ParentArgs)
		if parent == nil {
			parent = Map{}
		}
		return Map{KeySubtree: val.Subtree.ToMap(), KeyParentArgs: parent}
	default:
		return nil
	}
}

// Encode renders the node as an ordered YAML mapping: preserved top-level
// keys first (sorted), then steps, then the wic block.
func (n *Node) Encode() (*yaml.Node, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if n == nil {
		return out, nil
	}

	keys := make([]string, 0, len(n.Rest))
	for k := range n.Rest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := appendPair(out, k, n.Rest[k]); err != nil {
			return nil, err
		}
	}

	var backends *yaml.Node
	switch body := n.Body.(type) {
	case *Sequence:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, s := range body.Steps {
			item := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			val, err := encodeStepValue(s.Value)
			if err != nil {
				return nil, fmt.Errorf("step %s: %w", s.Key, err)
			}
			item.Content = append(item.Content, scalar(s.Key), val)
			seq.Content = append(seq.Content, item)
		}
		out.Content = append(out.Content, scalar(KeySteps), seq)
	case *Dispatch:
		backends = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, b := range body.Backends {
			child, err := b.Tree.Encode()
			if err != nil {
				return nil, fmt.Errorf("backend %s: %w", b.ID.Stem, err)
			}
			backends.Content = append(backends.Content, scalar(b.ID.Stem), child)
		}
	}

	if n.Meta != nil || backends != nil {
		wic := &yaml.Node{}
		if err := wic.Encode(n.Meta); err != nil {
			return nil, err
		}
		if n.Meta == nil {
			wic = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		if backends != nil {
			wic.Style = 0
			wic.Content = append(wic.Content, scalar(KeyBackends), backends)
		}
		out.Content = append(out.Content, scalar(KeyWic), wic)
	}
	return out, nil
}

func encodeStepValue(v StepValue) (*yaml.Node, error) {
	switch val := v.(type) {
	case *ToolArgs:
		node := &yaml.Node{}
		if err := node.Encode(val.Args); err != nil {
			return nil, err
		}
		return node, nil
	case *SubWorkflow:
		sub, err := val.Subtree.Encode()
		if err != nil {
			return nil, err
		}
		parent := &yaml.Node{}
		args := val.ParentArgs
		if args == nil {
			args = Map{}
		}
		if err := parent.Encode(args); err != nil {
			return nil, err
		}
		return &yaml.Node{
			Kind:    yaml.MappingNode,
			Tag:     "!!map",
			Content: []*yaml.Node{scalar(KeySubtree), sub, scalar(KeyParentArgs), parent},
		}, nil
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
}

func appendPair(m *yaml.Node, key string, value any) error {
	v := &yaml.Node{}
	if err := v.Encode(value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	m.Content = append(m.Content, scalar(key), v)
	return nil
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// Marshal renders a tree's document as YAML with two-space indentation.
func Marshal(n *Node) ([]byte, error) {
	node, err := n.Encode()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
