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
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// CLI style colors using lipgloss
var (
	// StatusOK styles success indicators
	StatusOK = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // green

	// StatusWarn styles warning indicators
	StatusWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	// StatusError styles error indicators
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	// Muted styles secondary/less important text
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray

	// Bold styles emphasized text
	Bold = lipgloss.NewStyle().Bold(true)

	// Header styles section headers
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")) // blue bold
)

// Symbols for status indicators
const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
)

// Styler renders styled text, or plain text when its writer is not a
// terminal.
type Styler struct {
	enabled bool
}

// NewStyler returns a Styler for w. Styling is enabled only when w is a
// terminal.
func NewStyler(w io.Writer) Styler {
	return Styler{enabled: IsTerminal(w)}
}

// PlainStyler never styles.
func PlainStyler() Styler {
	return Styler{}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Render applies style when styling is enabled.
func (s Styler) Render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

// OK renders a success message with a green checkmark.
func (s Styler) OK(msg string) string {
	return s.Render(StatusOK, SymbolOK) + " " + msg
}

// Warn renders a warning message with an orange symbol.
func (s Styler) Warn(msg string) string {
	return s.Render(StatusWarn, SymbolWarn) + " " + msg
}

// Error renders an error message with a red cross.
func (s Styler) Error(msg string) string {
	return s.Render(StatusError, SymbolError) + " " + msg
}
