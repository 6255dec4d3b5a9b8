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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/wic/pkg/ast"
	"github.com/tombee/wic/pkg/cwl"
)

// stubPorts returns fixed ports without running Python.
type stubPorts struct {
	scripts []string
	err     error
}

func (s *stubPorts) ReadPorts(_ context.Context, script string) ([]cwl.Port, []cwl.Port, error) {
	s.scripts = append(s.scripts, script)
	if s.err != nil {
		return nil, nil, s.err
	}
	return []cwl.Port{{Name: "a", Type: "int"}}, []cwl.Port{{Name: "sum", Type: "int"}}, nil
}

// recordingMetrics captures what the compiler reports.
type recordingMetrics struct {
	mu          sync.Mutex
	results     []string
	passes      []string
	synthesized int
	registry    int
}

func (m *recordingMetrics) RecordCompile(_ context.Context, _, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *recordingMetrics) RecordPass(_ context.Context, pass string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes = append(m.passes, pass)
}

func (m *recordingMetrics) RecordSynthesized(_ context.Context, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthesized += n
}

func (m *recordingMetrics) SetRegistrySize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = n
}

func sequentialIDs() func() ast.StepID {
	n := 0
	return func() ast.StepID {
		n++
		return ast.NewSyntheticID(fmt.Sprintf("%s00000000-0000-0000-0000-%012d", ast.SyntheticPrefix, n))
	}
}

type workspace struct {
	dir       string
	workflows string
	tools     string
	opts      Options
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	w := &workspace{
		dir:       dir,
		workflows: filepath.Join(dir, "workflows"),
		tools:     filepath.Join(dir, "tools"),
	}
	w.opts = Options{
		SearchPathsWic:   map[string][]string{"global": {w.workflows}},
		SearchPathsCwl:   map[string][]string{"global": {w.tools}},
		AutogeneratedDir: filepath.Join(dir, "autogenerated"),
		ReportDir:        dir,
		MaxDepth:         32,
	}
	w.write(t, w.tools, "echo.cwl", "class: CommandLineTool\nbaseCommand: echo\n")
	return w
}

func (w *workspace) write(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const rootDoc = `
steps:
  - echo:
      in:
        x: 0
  - sub:
  - python_script:
      in:
        script: scripts/add.py
        a: 1
wic:
  steps:
    (2, sub):
      wic:
        steps:
          (1, echo):
            in:
              x: 2
`

func TestCompileFile(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, w.workflows, "sub.wic", "steps:\n  - echo:\n      in:\n        x: 1\n")
	root := w.write(t, w.workflows, "root.wic", rootDoc)

	ports := &stubPorts{}
	metrics := &recordingMetrics{}
	c, err := New(w.opts, WithPortReader(ports), WithMetrics(metrics), WithIDMinter(sequentialIDs()))
	require.NoError(t, err)

	res, err := c.CompileFile(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, ast.NewStepID("root", ast.DefaultNamespace), res.Tree.ID)
	steps := res.Tree.Root.Steps()
	require.Len(t, steps, 3)

	assert.Equal(t, ast.Map{"in": ast.Map{"x": 0}}, steps[0].Value.(*ast.ToolArgs).Args)

	sub := steps[1].Value.(*ast.SubWorkflow)
	assert.Equal(t, ast.Map{"in": ast.Map{"x": 2}}, sub.Subtree.Steps()[0].Value.(*ast.ToolArgs).Args,
		"the root's override reaches the sub-workflow")

	synthetic := ast.SyntheticPrefix + "00000000-0000-0000-0000-000000000001"
	assert.Equal(t, synthetic, steps[2].Key)
	assert.Equal(t, ast.Map{"in": ast.Map{"a": 1}}, steps[2].Value.(*ast.ToolArgs).Args)
	assert.Equal(t, []string{filepath.Join(w.workflows, "scripts", "add.py")}, ports.scripts,
		"scripts resolve against the document's directory")

	require.Len(t, res.Synthesized, 1)
	assert.Equal(t, synthetic, res.Synthesized[0].Stem)
	def, err := cwl.ReadTool(filepath.Join(w.opts.AutogeneratedDir, synthetic+cwl.Extension))
	require.NoError(t, err)
	assert.Equal(t, "CommandLineTool", def["class"])

	assert.Equal(t, 2, res.Forest.Len())
	assert.Equal(t, ast.NewStepID("sub", ast.DefaultNamespace), res.Forest.Children[0].ID)

	assert.Equal(t, []string{"ok"}, metrics.results)
	assert.Equal(t, []string{PassLoad, PassMerge, PassSynthesize, PassForest}, metrics.passes)
	assert.Equal(t, 1, metrics.synthesized)
	assert.Equal(t, 2, metrics.registry)
}

func TestCompileFile_LogsPasses(t *testing.T) {
	w := newWorkspace(t)
	root := w.write(t, w.workflows, "root.wic", "steps:\n  - echo:\n")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, err := New(w.opts, WithPortReader(&stubPorts{}), WithLogger(logger))
	require.NoError(t, err)

	_, err = c.CompileFile(context.Background(), root)
	require.NoError(t, err)

	out := buf.String()
	for _, pass := range []string{PassLoad, PassMerge, PassSynthesize, PassForest} {
		assert.Contains(t, out, "msg=\"pass complete\" document=root pass="+pass+" duration_ms=")
	}
	assert.Contains(t, out, "msg=\"compiled document\" document=root")
}

func TestCompileFile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		root     string
		ports    *stubPorts
		category string
	}{
		{
			name:     "schema violation",
			root:     "steps:\n  - nowhere:\n",
			category: CategorySchema,
		},
		{
			name:     "cycle",
			files:    map[string]string{"a.wic": "steps:\n  - b:\n", "b.wic": "steps:\n  - a:\n"},
			root:     "steps:\n  - a:\n",
			category: CategoryCycle,
		},
		{
			name: "merge conflict",
			root: `
steps:
  - echo:
      in:
        x: [1]
wic:
  steps:
    (1, echo):
      in:
        x: 1
`,
			category: CategoryMerge,
		},
		{
			name:     "synthesis",
			root:     "steps:\n  - python_script:\n      in:\n        script: s.py\n",
			ports:    &stubPorts{err: cwl.ErrMissingPorts},
			category: CategorySynthesis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorkspace(t)
			for name, content := range tt.files {
				w.write(t, w.workflows, name, content)
			}
			root := w.write(t, w.dir, "root.wic", tt.root)

			ports := tt.ports
			if ports == nil {
				ports = &stubPorts{}
			}
			metrics := &recordingMetrics{}
			c, err := New(w.opts, WithPortReader(ports), WithMetrics(metrics))
			require.NoError(t, err)

			_, err = c.CompileFile(context.Background(), root)
			require.Error(t, err)
			assert.Equal(t, tt.category, Category(err), "got %v", err)
			assert.Equal(t, []string{tt.category}, metrics.results)
		})
	}
}

func TestCompileFile_Missing(t *testing.T) {
	w := newWorkspace(t)
	c, err := New(w.opts, WithPortReader(&stubPorts{}))
	require.NoError(t, err)

	_, err = c.CompileFile(context.Background(), filepath.Join(w.dir, "missing.wic"))
	require.Error(t, err)
	assert.Equal(t, CategoryResolution, Category(err))
}

func TestCompileDocument_SingleStep(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, w.workflows, "pipeline.wic", "steps:\n  - echo:\n      in:\n        x: 1\n")
	c, err := New(w.opts, WithPortReader(&stubPorts{}))
	require.NoError(t, err)

	t.Run("tool", func(t *testing.T) {
		id, doc := SingleStep("echo", ast.Map{"in": ast.Map{"x": 5}})
		assert.Equal(t, "echo_only", id.Stem)

		res, err := c.CompileDocument(context.Background(), id, doc)
		require.NoError(t, err)
		assert.Equal(t, ast.Map{"in": ast.Map{"x": 5}}, res.Tree.Root.Steps()[0].Value.(*ast.ToolArgs).Args)
		assert.Equal(t, 1, res.Forest.Len())
	})

	t.Run("workflow", func(t *testing.T) {
		id, doc := SingleStep("pipeline.wic", ast.Map{
			ast.StepKey(1, "echo"): ast.Map{"in": ast.Map{"x": 9}},
		})
		assert.Equal(t, "pipeline", id.Stem)

		res, err := c.CompileDocument(context.Background(), id, doc)
		require.NoError(t, err)
		sub := res.Tree.Root.Steps()[0].Value.(*ast.SubWorkflow)
		assert.Equal(t, ast.Map{"in": ast.Map{"x": 9}}, sub.Subtree.Steps()[0].Value.(*ast.ToolArgs).Args)
	})
}

func TestRefresh(t *testing.T) {
	w := newWorkspace(t)
	c, err := New(w.opts, WithPortReader(&stubPorts{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, c.Registry().Stems())

	w.write(t, w.tools, "cat.cwl", "class: CommandLineTool\n")
	w.write(t, w.workflows, "later.wic", "steps: []\n")
	require.NoError(t, c.Refresh())

	assert.Equal(t, []string{"cat", "echo"}, c.Registry().Stems())
	assert.Contains(t, c.Table().Stems(), "later")
	assert.NoError(t, c.Validator().Validate(map[string]any{"steps": []any{map[string]any{"cat": nil}}}))
}

func TestNew_ConfigError(t *testing.T) {
	_, err := New(Options{SearchPathsWic: map[string][]string{"": {t.TempDir()}}})
	require.Error(t, err)
	assert.Equal(t, CategoryConfig, Category(err))
}

func TestCategory(t *testing.T) {
	assert.Equal(t, CategoryInternal, Category(errors.New("boom")))
	assert.Equal(t, CategoryCycle, Category(fmt.Errorf("wrapped: %w", &ast.CycleError{Chain: []string{"a", "a"}})))
	assert.Equal(t, CategoryResolution, Category(&ast.ResolutionError{Kind: ast.UnknownStem}))
}
