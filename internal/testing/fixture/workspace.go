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

// Package fixture builds throwaway compiler workspaces for command tests:
// a tool directory, a workflow directory, and a config file pointing at both.
package fixture

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tombee/wic/pkg/cwl"
)

// Workspace is a temporary directory laid out for compilation.
type Workspace struct {
	Dir       string
	Workflows string
	Tools     string
	Output    string
	// Config is the path of the generated config file.
	Config string
}

// New creates a workspace with an echo tool and a config file. WIC_HOME is
// pointed inside the workspace so no user config leaks in.
func New(t *testing.T) *Workspace {
	t.Helper()
	dir := t.TempDir()
	w := &Workspace{
		Dir:       dir,
		Workflows: filepath.Join(dir, "workflows"),
		Tools:     filepath.Join(dir, "tools"),
		Output:    filepath.Join(dir, "autogenerated"),
		Config:    filepath.Join(dir, "wic.yaml"),
	}
	for _, key := range []string{"WIC_AUTOGENERATED_DIR", "WIC_PYTHON", "WIC_MAX_DEPTH", "WIC_IGNORE_VALIDATION_ERRORS", "WIC_LOG_LEVEL", "WIC_DEBUG", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}
	t.Setenv("WIC_HOME", filepath.Join(dir, "home"))

	w.Write(t, w.Tools, "echo.cwl", "class: CommandLineTool\nbaseCommand: echo\n")
	require.NoError(t, os.MkdirAll(w.Workflows, 0o755))
	w.WriteConfig(t, nil)
	return w
}

// Write creates dir/name with content and returns its path.
func (w *Workspace) Write(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0o644))
	return path
}

// WriteConfig writes the workspace config. extra is merged over the
// search-path and output settings.
func (w *Workspace) WriteConfig(t *testing.T, extra map[string]any) {
	t.Helper()
	cfg := map[string]any{
		"search_paths_wic":  map[string][]string{"global": {w.Workflows}},
		"search_paths_cwl":  map[string][]string{"global": {w.Tools}},
		"autogenerated_dir": w.Output,
		"report_dir":        w.Dir,
		"log":               map[string]any{"level": "error"},
	}
	for k, v := range extra {
		cfg[k] = v
	}
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(w.Config, data, 0o644))
}

// Ports is a cwl.PortReader that returns fixed ports without running Python.
type Ports struct {
	mu      sync.Mutex
	Scripts []string
	Err     error
}

// ReadPorts records script and returns one int input and one int output.
func (p *Ports) ReadPorts(_ context.Context, script string) ([]cwl.Port, []cwl.Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Scripts = append(p.Scripts, script)
	if p.Err != nil {
		return nil, nil, p.Err
	}
	return []cwl.Port{{Name: "a", Type: "int"}}, []cwl.Port{{Name: "sum", Type: "int"}}, nil
}

// Calls returns the scripts read so far.
func (p *Ports) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Scripts...)
}
