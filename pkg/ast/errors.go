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
	"strings"

	wicerrors "github.com/tombee/wic/pkg/errors"
)

// Compile-time checks that every pass error is user visible.
var (
	_ wicerrors.UserVisibleError = (*SchemaError)(nil)
	_ wicerrors.UserVisibleError = (*ResolutionError)(nil)
	_ wicerrors.UserVisibleError = (*MergeConflictError)(nil)
	_ wicerrors.UserVisibleError = (*SynthesisError)(nil)
	_ wicerrors.UserVisibleError = (*CycleError)(nil)
)

// SchemaError is returned when a document fails validation.
// The full violation detail is written to ReportPath.
type SchemaError struct {
	Document   string
	ReportPath string
	Cause      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("failed to validate %s: %v", e.Document, e.Cause)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

func (e *SchemaError) IsUserVisible() bool { return true }

func (e *SchemaError) UserMessage() string {
	return fmt.Sprintf("Failed to validate %s", e.Document)
}

func (e *SchemaError) Suggestion() string {
	if e.ReportPath == "" {
		return ""
	}
	return fmt.Sprintf("See %s for detailed technical information.", e.ReportPath)
}

// ResolutionKind classifies a ResolutionError.
type ResolutionKind int

const (
	// UnknownNamespace means the namespace has no search paths.
	UnknownNamespace ResolutionKind = iota
	// UnknownStem means the stem is not in the namespace's path table.
	UnknownStem
	// MissingFile means the resolved path does not exist.
	MissingFile
	// BadExtension means the resolved path is not a .wic file.
	BadExtension
	// SyntheticLookup means a minted identity was looked up in the search paths.
	SyntheticLookup
)

func (k ResolutionKind) String() string {
	switch k {
	case UnknownNamespace:
		return "unknown namespace"
	case UnknownStem:
		return "unknown stem"
	case MissingFile:
		return "missing file"
	case BadExtension:
		return "bad extension"
	case SyntheticLookup:
		return "synthetic lookup"
	default:
		return "unknown"
	}
}

// ResolutionError is returned when a step reference cannot be resolved to a
// DSL file.
type ResolutionError struct {
	Kind      ResolutionKind
	Namespace string
	Stem      string
	// Document is the stem of the document containing the reference.
	Document string
	Path     string
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case UnknownNamespace:
		return fmt.Sprintf("namespace %s not found in yaml paths", e.Namespace)
	case UnknownStem:
		return fmt.Sprintf("%s not found in namespace %s when attempting to read %s.wic", e.Stem, e.Namespace, e.Document)
	case MissingFile, BadExtension:
		return fmt.Sprintf("%s does not exist or is not a .wic file", e.Path)
	case SyntheticLookup:
		return fmt.Sprintf("%s is a generated tool and cannot be resolved via search paths", e.Stem)
	default:
		return fmt.Sprintf("cannot resolve %s", e.Stem)
	}
}

func (e *ResolutionError) IsUserVisible() bool { return true }

func (e *ResolutionError) UserMessage() string { return e.Error() }

func (e *ResolutionError) Suggestion() string {
	switch e.Kind {
	case UnknownNamespace:
		return "Check 'search_paths_wic' in your config file"
	case UnknownStem:
		if e.Stem == KeyIn {
			return fmt.Sprintf("Check that you have properly indented the `in` tag in %s", e.Document)
		}
		return "Check the step name and the namespace it is looked up in"
	case BadExtension:
		return "Sub-workflows must be .wic files"
	default:
		return ""
	}
}

// MergeConflictError is returned when an override's kind does not match the
// value it overrides.
type MergeConflictError struct {
	Path     []string
	Existing any
	Override any
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("cannot override %s: %s value with %s value",
		formatPath(e.Path), kindOf(e.Existing), kindOf(e.Override))
}

func (e *MergeConflictError) IsUserVisible() bool { return true }

func (e *MergeConflictError) UserMessage() string { return e.Error() }

func (e *MergeConflictError) Suggestion() string {
	return "Overrides must have the same shape as the value they replace"
}

// SynthesisError is returned when a tool cannot be generated from an inline script.
type SynthesisError struct {
	Script string
	Reason string
	Cause  error
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot generate tool for %s: %s: %v", e.Script, e.Reason, e.Cause)
	}
	return fmt.Sprintf("cannot generate tool for %s: %s", e.Script, e.Reason)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

func (e *SynthesisError) IsUserVisible() bool { return true }

func (e *SynthesisError) UserMessage() string { return e.Error() }

func (e *SynthesisError) Suggestion() string {
	return "Scripts must define module-level `inputs` and `outputs`"
}

// CycleError is returned when a DSL document includes itself, directly or
// through other documents.
type CycleError struct {
	Chain []string
	// Limit is set when the nesting depth limit was hit rather than a
	// repeated document.
	Limit int
}

func (e *CycleError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("maximum nesting depth (%d) exceeded: %s", e.Limit, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("recursion detected: %s", strings.Join(e.Chain, " -> "))
}

func (e *CycleError) IsUserVisible() bool { return true }

func (e *CycleError) UserMessage() string { return e.Error() }

func (e *CycleError) Suggestion() string {
	if e.Limit > 0 {
		return "Raise 'max_depth' in your config file"
	}
	return "A workflow cannot reference itself as a sub-workflow"
}

func formatPath(path []string) string {
	if len(path) == 0 {
		return "<root>"
	}
	return strings.Join(path, ".")
}
