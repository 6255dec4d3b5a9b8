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
	"fmt"
	"strings"
)

// ValidationError represents a single schema violation.
type ValidationError struct {
	// Path is the JSON path to the failing field (e.g., "$.steps[0]", "$.wic.namespace")
	Path string

	// Keyword is the schema keyword that failed (type, required, enum, etc.)
	Keyword string

	// Message is the human-readable error message
	Message string
}

// NewValidationError creates a new validation error.
func NewValidationError(path, keyword, message string) *ValidationError {
	return &ValidationError{
		Path:    path,
		Keyword: keyword,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %s (%s): %s", e.Path, e.Keyword, e.Message)
}

// Is implements error equality checking for errors.Is().
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return e.Path == t.Path && e.Keyword == t.Keyword
}

// ValidationErrors is every violation found in one document.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	switch len(errs) {
	case 0:
		return "no validation errors"
	case 1:
		return errs[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", errs[0].Error(), len(errs)-1)
	}
}

// Detail renders one violation per line.
func (errs ValidationErrors) Detail() string {
	var sb strings.Builder
	for _, e := range errs {
		sb.WriteString(e.Error())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Unwrap exposes the individual violations to errors.Is/As.
func (errs ValidationErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}
