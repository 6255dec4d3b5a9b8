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

package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tombee/wic/schemas"
)

// ScriptStep is the step name of an inline script.
const ScriptStep = "python_script"

// Generate builds the DSL schema for the given tool and workflow stems. Step
// names are restricted to the known stems, with or without their file
// extension, plus the inline-script step.
func Generate(toolStems, wicStems []string) (map[string]interface{}, error) {
	var base map[string]interface{}
	if err := json.Unmarshal(schemas.GetWicSchema(), &base); err != nil {
		return nil, fmt.Errorf("failed to parse embedded schema: %w", err)
	}

	items, err := lookup(base, "properties", "steps", "items")
	if err != nil {
		return nil, err
	}

	names := map[string]bool{ScriptStep: true}
	for _, s := range toolStems {
		names[s] = true
		names[s+".cwl"] = true
	}
	for _, s := range wicStems {
		names[s] = true
		names[s+".wic"] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	enum := make([]interface{}, len(sorted))
	for i, n := range sorted {
		enum[i] = n
	}
	items["propertyNames"] = map[string]interface{}{"enum": enum}
	return base, nil
}

// MustGenerate is like Generate but panics on error. The embedded schema is
// compiled into the binary, so an error here is a build defect.
func MustGenerate(toolStems, wicStems []string) map[string]interface{} {
	s, err := Generate(toolStems, wicStems)
	if err != nil {
		panic(err)
	}
	return s
}

func lookup(m map[string]interface{}, keys ...string) (map[string]interface{}, error) {
	cur := m
	for _, k := range keys {
		next, ok := cur[k].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("embedded schema has no object at %q", k)
		}
		cur = next
	}
	return cur, nil
}
