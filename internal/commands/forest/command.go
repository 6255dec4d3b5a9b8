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

// Package forest implements the forest command, which shows how a compiled
// document splits into one tree per sub-workflow and backend.
package forest

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/wic/internal/commands/shared"
	"github.com/tombee/wic/pkg/ast"
	"github.com/tombee/wic/pkg/compiler"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Node is the JSON form of a forest.
type Node struct {
	Stem      string `json:"stem"`
	Namespace string `json:"namespace"`
	Kind      string `json:"kind"`
	Steps     int    `json:"steps"`
	Backends  int    `json:"backends,omitempty"`
	Children  []Node `json:"children,omitempty"`
}

// NewCommand creates the forest command.
func NewCommand() *cobra.Command {
	return newCommand(nil)
}

func newCommand(copts []compiler.Option) *cobra.Command {
	var (
		format string
		ignore bool
	)

	cmd := &cobra.Command{
		Use:   "forest <file.wic>",
		Short: "Show the tree-of-trees view of a compiled document",
		Long: `Forest compiles a DSL document and prints one entry per tree: the root,
each inlined sub-workflow, and each backend alternative, nested the way they
appear in the document.`,
		Example: `  wic forest workflows/main.wic
  wic forest workflows/main.wic --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != FormatText && format != FormatJSON {
				return &shared.ExitError{Code: shared.ExitInternal, Message: fmt.Sprintf("unknown format %q (want text or json)", format)}
			}
			return runForest(cmd, args[0], format, ignore, copts)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", FormatText, "Output format (text, json)")
	cmd.Flags().BoolVar(&ignore, "ignore-validation-errors", false, "Continue when a document fails schema validation")

	return cmd
}

func runForest(cmd *cobra.Command, path, format string, ignore bool, copts []compiler.Option) error {
	ctx := cmd.Context()
	env, err := shared.NewEnv(ctx, shared.EnvOptions{
		IgnoreValidationErrors: ignore,
		ErrOut:                 cmd.ErrOrStderr(),
		CompilerOptions:        copts,
	})
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	res, err := env.Compiler.CompileFile(ctx, path)
	if err != nil {
		return shared.NewCompileError("compilation failed", err)
	}

	if format == FormatJSON {
		return shared.EmitJSON(cmd.OutOrStdout(), ToNode(res.Forest))
	}
	writeText(cmd.OutOrStdout(), shared.NewStyler(cmd.OutOrStdout()), res.Forest)
	return nil
}

// ToNode converts a forest to its JSON form.
func ToNode(f ast.Forest) Node {
	n := Node{
		Stem:      f.Tree.ID.Stem,
		Namespace: f.Tree.ID.Namespace,
		Kind:      f.Tree.ID.Kind().String(),
		Steps:     len(f.Tree.Root.Steps()),
		Backends:  len(f.Tree.Root.Backends()),
	}
	for _, c := range f.Children {
		n.Children = append(n.Children, ToNode(c.Forest))
	}
	return n
}

func writeText(w io.Writer, styler shared.Styler, f ast.Forest) {
	f.Walk(func(depth int, tree ast.Tree) bool {
		indent := strings.Repeat("  ", depth)
		name := styler.Render(shared.Bold, tree.ID.Stem)
		if depth == 0 {
			name = styler.Render(shared.Header, tree.ID.Stem)
		}
		detail := fmt.Sprintf("%d steps", len(tree.Root.Steps()))
		if b := len(tree.Root.Backends()); b > 0 {
			detail = fmt.Sprintf("%d backends", b)
		}
		fmt.Fprintf(w, "%s%s %s\n", indent, name, styler.Render(shared.Muted, fmt.Sprintf("[%s] %s", tree.ID.Namespace, detail)))
		return true
	})
}
