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

package cwl

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	return path
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.py")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestPythonPortReader(t *testing.T) {
	python := requirePython(t)

	tests := []struct {
		name        string
		script      string
		wantInputs  []Port
		wantOutputs []Port
		wantErr     error
	}{
		{
			name: "dict ports",
			script: `
print("noise on import")
inputs = {"a": int, "b": "File"}
outputs = {"out": str}
`,
			wantInputs:  []Port{{Name: "a", Type: "int"}, {Name: "b", Type: "File"}},
			wantOutputs: []Port{{Name: "out", Type: "str"}},
		},
		{
			name: "list ports",
			script: `
inputs = [("a", "int"), "b"]
outputs = []
`,
			wantInputs:  []Port{{Name: "a", Type: "int"}, {Name: "b", Type: "Any"}},
			wantOutputs: []Port{},
		},
		{
			name:    "missing outputs",
			script:  "inputs = {}\n",
			wantErr: ErrMissingPorts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewPythonPortReader(python)
			in, out, err := r.ReadPorts(context.Background(), writeScript(t, tt.script))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantInputs, in)
			assert.Equal(t, tt.wantOutputs, out)
		})
	}
}

func TestPythonPortReader_ImportError(t *testing.T) {
	python := requirePython(t)

	r := NewPythonPortReader(python)
	_, _, err := r.ReadPorts(context.Background(), writeScript(t, "raise RuntimeError('boom')\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, errors.Is(err, ErrMissingPorts))
}

func TestPythonPortReader_MissingInterpreter(t *testing.T) {
	r := NewPythonPortReader(filepath.Join(t.TempDir(), "no-python"))
	_, _, err := r.ReadPorts(context.Background(), "x.py")
	assert.Error(t, err)
}
