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

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/wic/pkg/compiler"
	pkgerrors "github.com/tombee/wic/pkg/errors"
)

// Exit codes for wic commands.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitSchema     = 2
	ExitResolution = 3
	ExitMerge      = 4
	ExitSynthesis  = 5
	ExitCycle      = 6
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// ExitCodeFor maps a compile error to its exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch compiler.Category(err) {
	case compiler.CategorySchema:
		return ExitSchema
	case compiler.CategoryResolution:
		return ExitResolution
	case compiler.CategoryMerge:
		return ExitMerge
	case compiler.CategorySynthesis:
		return ExitSynthesis
	case compiler.CategoryCycle:
		return ExitCycle
	default:
		return ExitInternal
	}
}

// NewCompileError wraps a compile failure with the matching exit code.
func NewCompileError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitCodeFor(cause),
		Message: msg,
		Cause:   cause,
	}
}

// ReportError prints err and any suggestion to w and returns the exit code.
func ReportError(w io.Writer, err error) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(w, "Error:", err.Error())
	printUserVisibleSuggestion(w, err)
	return ExitCodeFor(err)
}

// HandleExitError reports err on stderr and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(ReportError(os.Stderr, err))
}

// printUserVisibleSuggestion prints the suggestion of the first
// UserVisibleError in the chain, if it has one.
func printUserVisibleSuggestion(w io.Writer, err error) {
	userErr, ok := pkgerrors.UserVisible(err)
	if !ok {
		return
	}
	if suggestion := userErr.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
