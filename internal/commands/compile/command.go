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

// Package compile implements the compile command.
package compile

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/wic/internal/commands/shared"
	"github.com/tombee/wic/pkg/ast"
	"github.com/tombee/wic/pkg/compiler"
	wicerrors "github.com/tombee/wic/pkg/errors"
)

// NewCommand creates the compile command.
func NewCommand() *cobra.Command {
	return newCommand(nil)
}

func newCommand(copts []compiler.Option) *cobra.Command {
	var (
		out    string
		ignore bool
	)

	cmd := &cobra.Command{
		Use:   "compile <file.wic>",
		Short: "Compile a DSL document into a single expanded tree",
		Long: `Compile loads a DSL document, inlines every sub-workflow it references,
applies parameter overrides and replaces inline python_script steps with
generated tools. The expanded document is written as YAML.

Exit codes:
  0  success
  1  internal or configuration error
  2  schema validation failed
  3  unknown namespace, stem or file
  4  conflicting parameter overrides
  5  inline script could not be turned into a tool
  6  sub-workflow cycle or nesting limit`,
		Example: `  # Print the expanded document
  wic compile workflows/main.wic

  # Write it to a file and skip schema validation
  wic compile workflows/main.wic --out main.expanded.wic --ignore-validation-errors`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0], out, ignore, copts)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the expanded document to this file instead of stdout")
	cmd.Flags().BoolVar(&ignore, "ignore-validation-errors", false, "Continue when a document fails schema validation")

	return cmd
}

func runCompile(cmd *cobra.Command, path, out string, ignore bool, copts []compiler.Option) error {
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

	data, err := ast.Marshal(res.Tree.Root)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", res.Tree.ID.Stem, err)
	}

	if out == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return wicerrors.Wrapf(err, "failed to write %s", out)
	}
	if !shared.GetQuiet() {
		styler := shared.NewStyler(cmd.ErrOrStderr())
		fmt.Fprintln(cmd.ErrOrStderr(), styler.OK(fmt.Sprintf("compiled %s to %s (%d trees, %d generated tools)",
			res.Tree.ID.Stem, out, res.Forest.Len(), len(res.Synthesized))))
	}
	return nil
}
