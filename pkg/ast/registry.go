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
	"fmt"
	"sort"
	"sync"
)

// Tool is a resolved primitive tool definition.
type Tool struct {
	// Path is the file the definition was read from or written to.
	Path       string
	Definition Map
}

// Registry maps identities to primitive tools. It is populated by discovery
// before any pass runs and only grows afterwards: entries are never replaced
// or removed. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[StepID]Tool
	stems map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[StepID]Tool),
		stems: make(map[string]int),
	}
}

// Insert adds a tool. Inserting an identity twice is an error.
func (r *Registry) Insert(id StepID, tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[id]; exists {
		return fmt.Errorf("tool %s already registered", id)
	}
	r.tools[id] = tool
	r.stems[id.Stem]++
	return nil
}

// Get returns the tool registered under id.
func (r *Registry) Get(id StepID) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[id]
	return t, ok
}

// HasStem reports whether any namespace has a tool with the given stem.
func (r *Registry) HasStem(stem string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.stems[stem] > 0
}

// Stems returns the sorted, de-duplicated tool stems.
func (r *Registry) Stems() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.stems))
	for s := range r.stems {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Keys returns every registered identity, sorted.
func (r *Registry) Keys() []StepID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StepID, 0, len(r.tools))
	for id := range r.tools {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}
