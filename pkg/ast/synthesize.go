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
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/wic/internal/log"
)

const (
	// KeyScript is the inline script path argument.
	KeyScript = "script"
	// KeyDockerPull is the optional container image argument.
	KeyDockerPull = "dockerPull"
	// KeyInlineInput wraps a literal value so it is not treated as an edge.
	KeyInlineInput = "wic_inline_input"
)

// DefaultToolDir is where synthesized tool definitions are written.
const DefaultToolDir = "autogenerated"

// ScriptCompiler builds and persists tool definitions for inline scripts.
type ScriptCompiler interface {
	// CompileScript introspects script and returns its tool definition.
	CompileScript(ctx context.Context, script, image string) (Map, error)
	// WriteTool persists a tool definition.
	WriteTool(path string, definition Map) error
}

// Synthesizer replaces inline-script steps with references to generated
// primitive tools.
type Synthesizer struct {
	// ScriptRoot is the directory script paths are relative to, normally the
	// directory of the root document.
	ScriptRoot string
	// OutDir receives <id>.cwl for every synthesized tool.
	OutDir   string
	Registry *Registry
	Compiler ScriptCompiler
	// NewID mints identities. Defaults to MintSyntheticID.
	NewID  func() StepID
	Logger *slog.Logger
}

// Synthesize walks tree and, for every inline-script step, generates a tool,
// registers it, and rewrites the step to reference it. The input tree is not
// modified.
func (s *Synthesizer) Synthesize(ctx context.Context, tree Tree) (Tree, error) {
	ctx, span := tracer().Start(ctx, "ast.synthesize", trace.WithAttributes(
		attribute.String(log.DocumentKey, tree.ID.Stem),
	))
	defer span.End()

	root, err := s.synthesizeNode(ctx, tree.ID, tree.Root)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Tree{}, err
	}
	return Tree{ID: tree.ID, Root: root}, nil
}

func (s *Synthesizer) synthesizeNode(ctx context.Context, id StepID, n *Node) (*Node, error) {
	if n == nil {
		return nil, fmt.Errorf("%s: nil document", id)
	}
	out := n.shallow()

	switch body := n.Body.(type) {
	case *Dispatch:
		backends := make([]Backend, 0, len(body.Backends))
		for _, b := range body.Backends {
			child, err := s.synthesizeNode(ctx, b.ID, b.Tree)
			if err != nil {
				return nil, err
			}
			backends = append(backends, Backend{ID: b.ID, Tree: child})
		}
		out.Body = &Dispatch{Backends: backends}
		return out, nil

	case *Sequence:
		steps := make([]Step, 0, len(body.Steps))
		for _, step := range body.Steps {
			switch val := step.Value.(type) {
			case *SubWorkflow:
				sub, err := s.synthesizeNode(ctx, NewStepID(step.Key, id.Namespace), val.Subtree)
				if err != nil {
					return nil, err
				}
				steps = append(steps, Step{Key: step.Key, Value: &SubWorkflow{
					Subtree:    sub,
					ParentArgs: cloneMap(val.ParentArgs),
				}})
			default:
				if FileStem(step.Key) != ScriptStep {
					steps = append(steps, Step{Key: step.Key, Value: cloneStepValue(val)})
					continue
				}
				rewritten, err := s.synthesizeStep(ctx, id, val)
				if err != nil {
					return nil, err
				}
				steps = append(steps, rewritten)
			}
		}
		out.Body = &Sequence{Steps: steps}
		return out, nil

	default:
		return nil, fmt.Errorf("%s: document has no body", id)
	}
}

func (s *Synthesizer) synthesizeStep(ctx context.Context, doc StepID, v StepValue) (Step, error) {
	var args Map
	if ta, ok := v.(*ToolArgs); ok {
		args = cloneMap(ta.Args)
	}
	in, _ := args[KeyIn].(Map)
	script, ok := unwrapInline(in[KeyScript]).(string)
	if !ok || script == "" {
		return Step{}, &SynthesisError{Script: doc.Stem, Reason: "missing script argument"}
	}
	image, _ := unwrapInline(in[KeyDockerPull]).(string)
	delete(in, KeyScript)
	delete(in, KeyDockerPull)

	path := script
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.ScriptRoot, path)
	}

	def, err := s.Compiler.CompileScript(ctx, path, image)
	if err != nil {
		return Step{}, &SynthesisError{Script: script, Reason: "cannot read ports", Cause: err}
	}

	newID := s.NewID
	if newID == nil {
		newID = MintSyntheticID
	}
	id := newID()

	outDir := s.OutDir
	if outDir == "" {
		outDir = DefaultToolDir
	}
	toolPath := filepath.Join(outDir, id.Stem+".cwl")
	// Claim the identity before touching disk so a collision never
	// overwrites another tool's file.
	if err := s.Registry.Insert(id, Tool{Path: toolPath, Definition: def}); err != nil {
		return Step{}, &SynthesisError{Script: script, Reason: "cannot register tool", Cause: err}
	}
	if err := s.Compiler.WriteTool(toolPath, def); err != nil {
		return Step{}, &SynthesisError{Script: script, Reason: "cannot write tool", Cause: err}
	}

	s.logger().Debug("synthesized tool",
		slog.String(log.DocumentKey, doc.Stem),
		slog.String(log.StepKey, id.Stem),
		slog.String("script", script),
		slog.String("path", toolPath))

	if args == nil {
		args = Map{}
	}
	return Step{Key: id.Stem, Value: &ToolArgs{Args: args}}, nil
}

func (s *Synthesizer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// unwrapInline strips one level of {wic_inline_input: v}.
func unwrapInline(v any) any {
	if m, ok := v.(Map); ok {
		if inner, ok := m[KeyInlineInput]; ok {
			return inner
		}
	}
	return v
}
