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

// Package schema implements the schema command.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/wic/internal/commands/shared"
)

// NewCommand creates the schema command
func NewCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Output the DSL schema generated from the search paths",
		Long: `Output the JSON Schema that documents are validated against. It is
generated from the base schema plus every tool and document found on the
configured search paths, so step names are checked against what exists.

The schema can be used for editor autocompletion and validation.`,
		Example: `  # Output schema to stdout
  wic schema

  # Output schema in YAML format
  wic schema --output yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFormat != "json" && outputFormat != "yaml" {
				return &shared.ExitError{
					Code:    shared.ExitInternal,
					Message: fmt.Sprintf("invalid output format: %s (must be 'json' or 'yaml')", outputFormat),
				}
			}

			ctx := cmd.Context()
			env, err := shared.NewEnv(ctx, shared.EnvOptions{ErrOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			generated := env.Compiler.Schema()
			var output []byte
			switch outputFormat {
			case "yaml":
				output, err = yaml.Marshal(generated)
				if err != nil {
					return fmt.Errorf("failed to convert to YAML: %w", err)
				}
			default:
				output, err = json.MarshalIndent(generated, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format JSON: %w", err)
				}
				output = append(output, '\n')
			}

			_, err = cmd.OutOrStdout().Write(output)
			return err
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "Output format (json, yaml)")

	return cmd
}
