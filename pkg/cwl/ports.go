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
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrMissingPorts is returned when a script does not declare both port lists.
var ErrMissingPorts = errors.New("script must define both inputs and outputs")

// Port is one input or output of a script.
type Port struct {
	Name string
	// Type is a tool type name ("int", "File", ...) or a structured type.
	Type any
}

// PortReader introspects a script for its declared ports.
type PortReader interface {
	ReadPorts(ctx context.Context, script string) (inputs, outputs []Port, err error)
}

//go:embed harness.py
var harness string

// DefaultPortTimeout bounds a single script introspection.
const DefaultPortTimeout = 30 * time.Second

// PythonPortReader imports a script with a Python interpreter and reads its
// module-level inputs and outputs.
type PythonPortReader struct {
	// Python is the interpreter to run. Defaults to python3.
	Python string
	// Timeout bounds one introspection. Defaults to DefaultPortTimeout.
	Timeout time.Duration
}

// NewPythonPortReader creates a port reader for the given interpreter.
func NewPythonPortReader(python string) *PythonPortReader {
	return &PythonPortReader{Python: python}
}

type harnessOutput struct {
	Inputs  [][2]any `json:"inputs"`
	Outputs [][2]any `json:"outputs"`
}

// ReadPorts runs the introspection harness against script. Either list
// being absent yields ErrMissingPorts.
func (r *PythonPortReader) ReadPorts(ctx context.Context, script string) ([]Port, []Port, error) {
	python := r.Python
	if python == "" {
		python = "python3"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultPortTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, python, "-c", harness, script)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, nil, fmt.Errorf("failed to import %s: %w", script, err)
		}
		return nil, nil, fmt.Errorf("failed to import %s: %w: %s", script, err, lastLine(msg))
	}

	var out harnessOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, nil, fmt.Errorf("failed to read ports of %s: %w", script, err)
	}
	if out.Inputs == nil || out.Outputs == nil {
		return nil, nil, ErrMissingPorts
	}
	return toPorts(out.Inputs), toPorts(out.Outputs), nil
}

func toPorts(pairs [][2]any) []Port {
	ports := make([]Port, 0, len(pairs))
	for _, p := range pairs {
		name, _ := p[0].(string)
		ports = append(ports, Port{Name: name, Type: p[1]})
	}
	return ports
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
