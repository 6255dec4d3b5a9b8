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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMergeOverrides(t *testing.T) {
	tests := []struct {
		name string
		dst  Map
		src  Map
		want Map
	}{
		{
			name: "disjoint keys are kept",
			dst:  Map{"a": 1},
			src:  Map{"b": 2},
			want: Map{"a": 1, "b": 2},
		},
		{
			name: "scalar replaced",
			dst:  Map{"a": 1, "keep": "x"},
			src:  Map{"a": 2},
			want: Map{"a": 2, "keep": "x"},
		},
		{
			name: "nested mappings merge",
			dst:  Map{"in": Map{"x": 0, "y": "a"}},
			src:  Map{"in": Map{"x": 2}},
			want: Map{"in": Map{"x": 2, "y": "a"}},
		},
		{
			name: "sequences are replaced",
			dst:  Map{"l": []any{1, 2, 3}},
			src:  Map{"l": []any{9}},
			want: Map{"l": []any{9}},
		},
		{
			name: "ints and floats are both numbers",
			dst:  Map{"n": 1},
			src:  Map{"n": 1.5},
			want: Map{"n": 1.5},
		},
		{
			name: "null over null",
			dst:  Map{"n": nil},
			src:  Map{"n": nil},
			want: Map{"n": nil},
		},
		{
			name: "nil dst",
			dst:  nil,
			src:  Map{"a": Map{"b": true}},
			want: Map{"a": Map{"b": true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeOverrides(tt.dst, tt.src)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MergeOverrides() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeOverrides_KindMismatch(t *testing.T) {
	tests := []struct {
		name     string
		dst, src Map
		path     []string
	}{
		{"string over number", Map{"a": 1}, Map{"a": "1"}, []string{"a"}},
		{"mapping over scalar", Map{"a": Map{"b": 1}}, Map{"a": Map{"b": Map{}}}, []string{"a", "b"}},
		{"sequence over mapping", Map{"a": Map{}}, Map{"a": []any{}}, []string{"a"}},
		{"null over bool", Map{"a": true}, Map{"a": nil}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MergeOverrides(tt.dst, tt.src)
			var conflict *MergeConflictError
			require.True(t, errors.As(err, &conflict), "got %v", err)
			assert.Equal(t, tt.path, conflict.Path)
		})
	}
}

func TestMergeOverrides_NoAliasing(t *testing.T) {
	dst := Map{"a": Map{"b": []any{1}}}
	src := Map{"c": Map{"d": 1}}

	got, err := MergeOverrides(dst, src)
	require.NoError(t, err)

	got["a"].(Map)["b"].([]any)[0] = 42
	got["c"].(Map)["d"] = 42

	assert.Equal(t, 1, dst["a"].(Map)["b"].([]any)[0])
	assert.Equal(t, 1, src["c"].(Map)["d"])
}

// scenarioTree is a root with a tool step and a sub-workflow step. The root
// overrides x for the sub-workflow's only step.
func scenarioTree() Tree {
	sub := &Node{Body: &Sequence{Steps: []Step{
		{Key: "toolC", Value: &ToolArgs{Args: Map{"in": Map{"x": 0}}}},
	}}}
	root := &Node{
		Meta: Map{"steps": Map{
			"(2, stepB)": Map{"wic": Map{"steps": Map{
				"(1, toolC)": Map{"in": Map{"x": 2}},
			}}},
		}},
		Body: &Sequence{Steps: []Step{
			{Key: "stepA", Value: &ToolArgs{Args: Map{"in": Map{"x": 1}}}},
			{Key: "stepB", Value: &SubWorkflow{Subtree: sub, ParentArgs: Map{}}},
		}},
	}
	return Tree{ID: NewStepID("root", ""), Root: root}
}

func TestMerge_ParentOverridesWin(t *testing.T) {
	tree := scenarioTree()

	merged, err := Merge(tree, nil)
	require.NoError(t, err)

	steps := merged.Root.Steps()
	assert.Equal(t, &ToolArgs{Args: Map{"in": Map{"x": 1}}}, steps[0].Value)

	sub := steps[1].Value.(*SubWorkflow)
	assert.Equal(t, &ToolArgs{Args: Map{"in": Map{"x": 2}}}, sub.Subtree.Steps()[0].Value)
	assert.Equal(t, Map{}, sub.ParentArgs)

	// The override block is carried into the sub-workflow's own wic block.
	assert.Contains(t, sub.Subtree.Meta, "steps")

	// Input untouched.
	orig := tree.Root.Steps()[1].Value.(*SubWorkflow).Subtree.Steps()[0].Value.(*ToolArgs)
	assert.Equal(t, Map{"in": Map{"x": 0}}, orig.Args)
}

func TestMerge_LeafDropsWicKey(t *testing.T) {
	root := &Node{
		Meta: Map{"steps": Map{
			"(1, echo)": Map{
				"wic":  Map{"namespace": "tools"},
				"in":   Map{"msg": "override"},
				"when": true,
			},
		}},
		Body: &Sequence{Steps: []Step{{Key: "echo", Value: Empty{}}}},
	}

	merged, err := Merge(Tree{ID: NewStepID("root", ""), Root: root}, nil)
	require.NoError(t, err)

	assert.Equal(t, &ToolArgs{Args: Map{"in": Map{"msg": "override"}, "when": true}},
		merged.Root.Steps()[0].Value)
	// The document's own override block still carries the wic key.
	assert.Contains(t, root.Meta["steps"].(Map)["(1, echo)"], "wic")
}

func TestMerge_Backends(t *testing.T) {
	backend := func(v int) *Node {
		return &Node{
			Meta: Map{},
			Body: &Sequence{Steps: []Step{{Key: "t", Value: &ToolArgs{Args: Map{"in": Map{"v": v}}}}}},
		}
	}
	root := &Node{
		Meta: Map{"namespace": "ns"},
		Body: &Dispatch{Backends: []Backend{
			{ID: NewStepID("one", "ns"), Tree: backend(1)},
			{ID: NewStepID("two", "ns"), Tree: backend(2)},
		}},
	}
	parent := Map{"wic": Map{"steps": Map{"(1, t)": Map{"in": Map{"v": 9}}}}}

	merged, err := Merge(Tree{ID: NewStepID("d", "ns"), Root: root}, parent)
	require.NoError(t, err)

	backends := merged.Root.Backends()
	require.Len(t, backends, 2)
	for _, b := range backends {
		assert.Equal(t, &ToolArgs{Args: Map{"in": Map{"v": 9}}}, b.Tree.Steps()[0].Value, b.ID.Stem)
	}
	assert.Equal(t, "ns", merged.Root.Namespace())
}

func TestMerge_Conflicts(t *testing.T) {
	t.Run("backends cannot be overridden", func(t *testing.T) {
		tree := scenarioTree()
		_, err := Merge(tree, Map{"wic": Map{"backends": Map{"x": Map{}}}})
		var conflict *MergeConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, []string{"wic", "backends"}, conflict.Path)
	})

	t.Run("wic must stay a mapping", func(t *testing.T) {
		tree := scenarioTree()
		_, err := Merge(tree, Map{"wic": "nope"})
		var conflict *MergeConflictError
		assert.True(t, errors.As(err, &conflict))
	})

	t.Run("step argument kind mismatch", func(t *testing.T) {
		tree := scenarioTree()
		_, err := Merge(tree, Map{"wic": Map{"steps": Map{"(1, stepA)": Map{"in": Map{"x": "one"}}}}})
		var conflict *MergeConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, []string{"in", "x"}, conflict.Path)
	})
}

func genValue(depth int) *rapid.Generator[any] {
	gens := []*rapid.Generator[any]{
		rapid.Just[any](nil),
		rapid.Map(rapid.IntRange(-3, 3), func(i int) any { return i }),
		rapid.Map(rapid.SampledFrom([]string{"x", "y"}), func(s string) any { return s }),
		rapid.Map(rapid.Bool(), func(b bool) any { return b }),
		rapid.Map(rapid.SliceOfN(rapid.IntRange(0, 3), 0, 3), func(xs []int) any {
			out := make([]any, len(xs))
			for i, x := range xs {
				out[i] = x
			}
			return out
		}),
	}
	if depth > 0 {
		gens = append(gens, rapid.Map(genMap(depth-1), func(m Map) any { return m }))
	}
	return rapid.OneOf(gens...)
}

func genMap(depth int) *rapid.Generator[Map] {
	return rapid.Custom(func(t *rapid.T) Map {
		m := Map{}
		n := rapid.IntRange(0, 3).Draw(t, "size")
		for i := 0; i < n; i++ {
			key := rapid.SampledFrom([]string{"a", "b", "c"}).Draw(t, "key")
			m[key] = genValue(depth).Draw(t, "value")
		}
		return m
	})
}

// assertOverridden checks that every leaf of src appears unchanged in got.
func assertOverridden(t *rapid.T, got, src Map) {
	for k, v := range src {
		if sub, ok := v.(Map); ok {
			gotSub, ok := got[k].(Map)
			if !ok {
				t.Fatalf("key %s: expected mapping, got %T", k, got[k])
			}
			assertOverridden(t, gotSub, sub)
			continue
		}
		if !cmp.Equal(v, got[k]) {
			t.Fatalf("key %s: expected %v, got %v", k, v, got[k])
		}
	}
}

func TestMergeOverrides_Laws(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dst := genMap(2).Draw(t, "dst")
		src := genMap(2).Draw(t, "src")

		once, err := MergeOverrides(dst, src)
		if err != nil {
			var conflict *MergeConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("unexpected error type %T", err)
			}
			return
		}

		// Override law.
		assertOverridden(t, once, src)
		for k, v := range dst {
			if _, overridden := src[k]; !overridden && !cmp.Equal(v, once[k]) {
				t.Fatalf("key %s only in dst changed: %v -> %v", k, v, once[k])
			}
		}

		// Idempotence.
		twice, err := MergeOverrides(once, src)
		if err != nil {
			t.Fatalf("second merge failed: %v", err)
		}
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("merge not idempotent (-once +twice):\n%s", diff)
		}
	})
}

func TestMerge_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		args := genMap(2).Draw(t, "args")
		override := genMap(2).Draw(t, "override")

		tree := Tree{ID: NewStepID("root", ""), Root: &Node{
			Body: &Sequence{Steps: []Step{{Key: "tool", Value: &ToolArgs{Args: args}}}},
		}}
		parent := Map{"wic": Map{"steps": Map{"(1, tool)": override}}}

		once, err := Merge(tree, parent)
		if err != nil {
			return
		}
		twice, err := Merge(once, parent)
		if err != nil {
			t.Fatalf("second merge failed: %v", err)
		}
		if diff := cmp.Diff(once.Root.ToMap(), twice.Root.ToMap()); diff != "" {
			t.Fatalf("merge not idempotent (-once +twice):\n%s", diff)
		}
	})
}
