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

/*
Package cli provides the root command for wic.

This package creates the main Cobra command and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	wic
	├── compile    Expand a DSL document into one tree
	├── forest     Show the tree-of-trees view of a document
	├── watch      Recompile a single step on every change
	├── schema     Output the generated DSL schema
	└── version    Show version

# Exit Codes

Commands return errors wrapped in shared.ExitError; HandleExitError prints
them with any suggestion and exits with the matching code.
*/
package cli
