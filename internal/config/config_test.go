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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wicerrors "github.com/tombee/wic/pkg/errors"
)

// isolate points the default config lookup at an empty directory and clears
// the environment overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("WIC_HOME", home)
	for _, key := range []string{
		"WIC_AUTOGENERATED_DIR", "WIC_PYTHON", "WIC_MAX_DEPTH",
		"WIC_IGNORE_VALIDATION_ERRORS", "WIC_LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
	return home
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.AutogeneratedDir != "autogenerated" {
		t.Errorf("expected autogenerated dir 'autogenerated', got %q", cfg.AutogeneratedDir)
	}
	if cfg.ReportDir != "." {
		t.Errorf("expected report dir '.', got %q", cfg.ReportDir)
	}
	if cfg.Python != "python3" {
		t.Errorf("expected python 'python3', got %q", cfg.Python)
	}
	if cfg.MaxDepth != 32 {
		t.Errorf("expected max depth 32, got %d", cfg.MaxDepth)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing should be opt-in")
	}
	if got := cfg.SearchPathsWic[DefaultNamespace]; len(got) != 1 || got[0] != "." {
		t.Errorf("unexpected default wic search paths: %v", cfg.SearchPathsWic)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().SearchPathsWic, cfg.SearchPathsWic)
}

func TestLoad_DefaultPath(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, "global_config.json", `{"search_paths_wic": {"global": ["/wf"], "plugins": ["/p"]}, "max_depth": 8}`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"global": {"/wf"}, "plugins": {"/p"}}, cfg.SearchPathsWic)
	assert.Equal(t, Default().SearchPathsCwl, cfg.SearchPathsCwl, "missing section falls back to defaults")
	assert.Equal(t, 8, cfg.MaxDepth)
}

func TestLoad_YAML(t *testing.T) {
	isolate(t)
	path := writeConfig(t, t.TempDir(), "wic.yaml", `
search_paths_wic:
  global: [workflows]
search_paths_cwl:
  global: [tools, more_tools]
autogenerated_dir: gen
report_dir: reports
python: /usr/bin/python3.12
ignore_validation_errors: true
log:
  level: debug
  format: json
tracing:
  enabled: true
  exporter:
    type: otlp
    endpoint: collector:4317
    insecure: true
watch:
  debounce: 500ms
  rate_limit: 0.5
  metrics_addr: ":9464"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"global": {"tools", "more_tools"}}, cfg.SearchPathsCwl)
	assert.Equal(t, "gen", cfg.AutogeneratedDir)
	assert.Equal(t, "reports", cfg.ReportDir)
	assert.Equal(t, "/usr/bin/python3.12", cfg.Python)
	assert.True(t, cfg.IgnoreValidationErrors)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "otlp", cfg.Tracing.Exporter.Type)
	assert.Equal(t, "collector:4317", cfg.Tracing.Exporter.Endpoint)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 0.5, cfg.Watch.RateLimit)
	assert.Equal(t, 1, cfg.Watch.Burst)
	assert.Equal(t, ":9464", cfg.Watch.MetricsAddr)
	assert.Equal(t, 32, cfg.MaxDepth)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("WIC_AUTOGENERATED_DIR", "/tmp/gen")
	t.Setenv("WIC_PYTHON", "python3.11")
	t.Setenv("WIC_MAX_DEPTH", "4")
	t.Setenv("WIC_IGNORE_VALIDATION_ERRORS", "true")

	path := writeConfig(t, t.TempDir(), "wic.yaml", "autogenerated_dir: gen\npython: python3\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/gen", cfg.AutogeneratedDir)
	assert.Equal(t, "python3.11", cfg.Python)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.True(t, cfg.IgnoreValidationErrors)
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		errText string
	}{
		{
			name:    "missing explicit file",
			path:    filepath.Join(dir, "missing.yaml"),
			errText: "failed to load",
		},
		{
			name:    "malformed yaml",
			path:    writeConfig(t, dir, "bad.yaml", "search_paths_wic: [unclosed\n"),
			errText: "failed to parse YAML",
		},
		{
			name:    "empty namespace",
			path:    writeConfig(t, dir, "ns.yaml", "search_paths_wic:\n  \"\": [x]\n"),
			errText: "search_paths_wic has an empty namespace name",
		},
		{
			name:    "bad log level",
			path:    writeConfig(t, dir, "level.yaml", "log:\n  level: loud\n"),
			errText: "log.level",
		},
		{
			name:    "bad exporter",
			path:    writeConfig(t, dir, "exp.yaml", "tracing:\n  exporter:\n    type: carrier-pigeon\n"),
			errText: "tracing.exporter.type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)

			var cfgErr *wicerrors.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %T", err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.SearchPathsCwl = map[string][]string{"global": {"", "ok"}}
	cfg.MaxDepth = -1
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"search_paths_cwl.global[0] is empty", "max_depth", "log.format"} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %s", want, msg)
	}
}

func TestResolveDirs(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got := ResolveDirs(map[string][]string{
		"global": {"tools", "/abs/tools", "~/shared"},
	}, "/work")

	assert.Equal(t, []string{"/work/tools", "/abs/tools", filepath.Join(home, "shared")}, got["global"])
}
