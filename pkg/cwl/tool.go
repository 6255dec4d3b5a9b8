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

// Package cwl discovers, reads, and generates primitive tool definitions.
package cwl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tombee/wic/pkg/ast"
)

// Extension is the file extension of tool definitions.
const Extension = ".cwl"

// Version is the tool description version written into generated tools.
const Version = "v1.0"

// ErrNotMapping is returned by ReadTool when a file's top level is not a
// mapping.
var ErrNotMapping = errors.New("tool definition is not a mapping")

// pythonTypes maps Python annotation names to tool types.
var pythonTypes = map[string]string{
	"str":   "string",
	"int":   "int",
	"float": "float",
	"bool":  "boolean",
	"Path":  "File",
	"list":  "string[]",
}

func toolType(t any) any {
	if s, ok := t.(string); ok {
		if mapped, ok := pythonTypes[s]; ok {
			return mapped
		}
	}
	return t
}

// GenerateCommandLineTool builds a tool definition that runs script with one
// command-line flag per input. Each output is collected from a file named
// after the port in the working directory; non-File outputs hold a JSON
// value. A non-empty image adds a container requirement.
func GenerateCommandLineTool(script string, inputs, outputs []Port, image string) ast.Map {
	in := ast.Map{}
	for _, p := range inputs {
		in[p.Name] = ast.Map{
			"type":         toolType(p.Type),
			"inputBinding": ast.Map{"prefix": "--" + p.Name},
		}
	}
	out := ast.Map{}
	for _, p := range outputs {
		typ := toolType(p.Type)
		binding := ast.Map{"glob": p.Name}
		if typ != "File" {
			binding["loadContents"] = true
			binding["outputEval"] = "$(JSON.parse(self[0].contents))"
		}
		out[p.Name] = ast.Map{
			"type":          typ,
			"outputBinding": binding,
		}
	}

	tool := ast.Map{
		"cwlVersion":  Version,
		"class":       "CommandLineTool",
		"baseCommand": []any{"python3", script},
		"requirements": ast.Map{
			"InlineJavascriptRequirement": ast.Map{},
		},
		"inputs":  in,
		"outputs": out,
	}
	if image != "" {
		tool["requirements"].(ast.Map)["DockerRequirement"] = ast.Map{"dockerPull": image}
	}
	return tool
}

// ReadTool reads a tool definition file.
func ReadTool(path string) (ast.Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool %s: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tool %s: %w", path, err)
	}
	def := ast.Map{}
	if len(doc.Content) == 0 {
		return def, nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: %w", path, ErrNotMapping)
	}
	if err := doc.Content[0].Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse tool %s: %w", path, err)
	}
	return def, nil
}

// WriteTool writes a tool definition as YAML with two-space indentation,
// creating the parent directory if needed.
func WriteTool(path string, def ast.Map) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("failed to encode tool %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode tool %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write tool %s: %w", path, err)
	}
	return nil
}

// ScriptCompiler turns inline scripts into tool definitions by reading their
// ports. It implements ast.ScriptCompiler.
type ScriptCompiler struct {
	Ports PortReader
}

var _ ast.ScriptCompiler = (*ScriptCompiler)(nil)

// NewScriptCompiler creates a ScriptCompiler.
func NewScriptCompiler(ports PortReader) *ScriptCompiler {
	return &ScriptCompiler{Ports: ports}
}

// CompileScript reads script's ports and generates its tool definition.
func (c *ScriptCompiler) CompileScript(ctx context.Context, script, image string) (ast.Map, error) {
	inputs, outputs, err := c.Ports.ReadPorts(ctx, script)
	if err != nil {
		return nil, err
	}
	return GenerateCommandLineTool(script, inputs, outputs, image), nil
}

// WriteTool implements ast.ScriptCompiler.
func (c *ScriptCompiler) WriteTool(path string, def ast.Map) error {
	return WriteTool(path, def)
}
