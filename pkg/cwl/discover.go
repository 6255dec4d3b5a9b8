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

package cwl

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tombee/wic/internal/log"
	"github.com/tombee/wic/pkg/ast"
	wicerrors "github.com/tombee/wic/pkg/errors"
	"github.com/tombee/wic/pkg/searchpath"
)

// DiscoverTools reads every tool definition under the search directories of
// each namespace into a new registry. Within a namespace the first file found
// for a stem wins.
func DiscoverTools(searchPaths map[string][]string, logger *slog.Logger) (*ast.Registry, error) {
	reg := ast.NewRegistry()
	if err := DiscoverInto(reg, searchPaths, logger); err != nil {
		return nil, err
	}
	return reg, nil
}

// DiscoverInto is like DiscoverTools but adds to an existing registry.
// Identities already present are left untouched.
func DiscoverInto(reg *ast.Registry, searchPaths map[string][]string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	namespaces := make([]string, 0, len(searchPaths))
	for ns := range searchPaths {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		if ns == "" {
			return &wicerrors.ConfigError{Key: "search_paths_cwl", Reason: "namespace name must not be empty"}
		}
		files, err := searchpath.FindFiles(searchPaths[ns], Extension)
		if err != nil {
			return &wicerrors.ConfigError{Key: "search_paths_cwl." + ns, Reason: "cannot search directories", Cause: err}
		}
		for _, f := range files {
			id := ast.NewStepID(strings.TrimSuffix(filepath.Base(f), Extension), ns)
			if _, exists := reg.Get(id); exists {
				logger.Debug("duplicate tool ignored",
					slog.String(log.NamespaceKey, ns),
					slog.String(log.StepKey, id.Stem),
					slog.String("ignored", f))
				continue
			}
			def, err := ReadTool(f)
			if errors.Is(err, ErrNotMapping) {
				logger.Warn("skipping tool that is not a mapping",
					slog.String(log.NamespaceKey, ns),
					slog.String("path", f))
				continue
			}
			if err != nil {
				return wicerrors.Wrapf(err, "discovering tools in %s", ns)
			}
			if err := reg.Insert(id, ast.Tool{Path: f, Definition: def}); err != nil {
				return err
			}
		}
		logger.Debug("discovered tools",
			slog.String(log.NamespaceKey, ns),
			slog.Int("count", len(files)))
	}
	return nil
}
