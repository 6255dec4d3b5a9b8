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

package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tombee/wic/internal/commands/compile"
	"github.com/tombee/wic/internal/commands/forest"
	"github.com/tombee/wic/internal/commands/schema"
	"github.com/tombee/wic/internal/commands/shared"
	versioncmd "github.com/tombee/wic/internal/commands/version"
	"github.com/tombee/wic/internal/commands/watch"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for wic
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wic",
		Short: "wic - workflow DSL compiler",
		Long: `wic compiles workflow DSL documents into a single expanded tool graph.
Documents reference tools and other documents by name; wic finds them on
the configured search paths, inlines sub-workflows, applies parameter
overrides, and turns inline Python scripts into generated tools.

Search paths and output directories are read from ~/wic/global_config.yaml
or the file given with --config.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, quiet, trace, config := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Only log warnings and errors")
	cmd.PersistentFlags().BoolVar(trace, "trace", false, "Export compiler pass spans (stdout exporter unless configured)")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/wic/global_config.yaml)")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Config keys use underscores; accept them as flag spellings too.
	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	cmd.AddCommand(compile.NewCommand())
	cmd.AddCommand(forest.NewCommand())
	cmd.AddCommand(watch.NewCommand())
	cmd.AddCommand(schema.NewCommand())
	cmd.AddCommand(versioncmd.NewVersionCommand())

	return cmd
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
