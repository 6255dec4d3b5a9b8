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
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultNamespace is used whenever a step or document does not name one.
const DefaultNamespace = "global"

// SyntheticPrefix prefixes every identity minted for an inline script.
const SyntheticPrefix = "python_script_"

// IDKind distinguishes identities found on disk from minted ones.
type IDKind int

const (
	// KindStatic identifies a tool or DSL file found by discovery.
	KindStatic IDKind = iota
	// KindSynthetic identifies a tool generated from an inline script.
	// Synthetic identities are never resolvable via the search-path table.
	KindSynthetic
)

func (k IDKind) String() string {
	switch k {
	case KindSynthetic:
		return "synthetic"
	default:
		return "static"
	}
}

// StepID names a primitive tool or a DSL document within a namespace.
// The kind is fixed when the identity is created and is part of its
// equality: a static and a synthetic identity never compare equal, even
// with the same stem.
type StepID struct {
	Stem      string
	Namespace string

	kind IDKind
}

// NewStepID returns a static StepID, defaulting the namespace to "global".
func NewStepID(stem, namespace string) StepID {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return StepID{Stem: stem, Namespace: namespace}
}

// NewSyntheticID returns a synthetic identity for stem in the global
// namespace. Custom minters build their identities with it.
func NewSyntheticID(stem string) StepID {
	return StepID{Stem: stem, Namespace: DefaultNamespace, kind: KindSynthetic}
}

// MintSyntheticID returns a fresh, globally unique synthetic identity.
func MintSyntheticID() StepID {
	return NewSyntheticID(SyntheticPrefix + uuid.NewString())
}

// Kind reports whether the identity was minted or discovered.
func (id StepID) Kind() IDKind {
	return id.kind
}

// FileStem returns the stem with any directory and extension removed,
// e.g. "sub/basic.wic" -> "basic".
func (id StepID) FileStem() string {
	return FileStem(id.Stem)
}

// Compare orders identities by stem, then namespace, then kind.
func (id StepID) Compare(other StepID) int {
	if c := strings.Compare(id.Stem, other.Stem); c != 0 {
		return c
	}
	if c := strings.Compare(id.Namespace, other.Namespace); c != 0 {
		return c
	}
	return int(id.kind) - int(other.kind)
}

// Less reports whether id sorts before other.
func (id StepID) Less(other StepID) bool {
	return id.Compare(other) < 0
}

func (id StepID) String() string {
	return fmt.Sprintf("%s/%s", id.Namespace, id.Stem)
}

// FileStem strips directories and a single extension from a step key.
func FileStem(key string) string {
	base := filepath.Base(key)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
