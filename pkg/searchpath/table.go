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

// Package searchpath discovers DSL files under per-namespace search roots.
package searchpath

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/wic/internal/log"
	wicerrors "github.com/tombee/wic/pkg/errors"
)

// Extension is the reserved extension of DSL files.
const Extension = ".wic"

// Table maps namespace -> file stem -> path.
type Table map[string]map[string]string

var (
	// ErrUnknownNamespace is returned by Lookup for a namespace with no files.
	ErrUnknownNamespace = errors.New("namespace not found")
	// ErrUnknownStem is returned by Lookup for a stem absent from its namespace.
	ErrUnknownStem = errors.New("stem not found")
)

// Lookup returns the path of stem within namespace ns.
func (t Table) Lookup(ns, stem string) (string, error) {
	paths, ok := t.Namespace(ns)
	if !ok {
		return "", fmt.Errorf("%s: %w", ns, ErrUnknownNamespace)
	}
	path, ok := paths[stem]
	if !ok {
		return "", fmt.Errorf("%s in %s: %w", stem, ns, ErrUnknownStem)
	}
	return path, nil
}

// Namespace returns the stem table of a namespace. An empty namespace is
// treated as missing.
func (t Table) Namespace(ns string) (map[string]string, bool) {
	paths, ok := t[ns]
	if !ok || len(paths) == 0 {
		return nil, false
	}
	return paths, true
}

// Stems returns every stem across all namespaces, sorted and de-duplicated.
func (t Table) Stems() []string {
	seen := make(map[string]bool)
	for _, paths := range t {
		for stem := range paths {
			seen[stem] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Discover builds a Table from namespace -> search directories. Within a
// namespace the first file found for a stem wins; directories are searched in
// the order given and matches within a directory in lexical order.
func Discover(searchPaths map[string][]string, logger *slog.Logger) (Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	table := make(Table, len(searchPaths))
	for ns, dirs := range searchPaths {
		if ns == "" {
			return nil, &wicerrors.ConfigError{Key: "search_paths_wic", Reason: "namespace name must not be empty"}
		}
		files, err := FindFiles(dirs, Extension)
		if err != nil {
			return nil, &wicerrors.ConfigError{Key: "search_paths_wic." + ns, Reason: "cannot search directories", Cause: err}
		}
		paths := make(map[string]string, len(files))
		for _, f := range files {
			stem := strings.TrimSuffix(filepath.Base(f), Extension)
			if prev, dup := paths[stem]; dup {
				logger.Debug("duplicate workflow stem ignored",
					slog.String(log.NamespaceKey, ns),
					slog.String("stem", stem),
					slog.String("kept", prev),
					slog.String("ignored", f))
				continue
			}
			paths[stem] = f
		}
		table[ns] = paths
	}
	return table, nil
}

// FindFiles returns the absolute paths of all files with the given extension
// under each directory, recursively. Missing directories are skipped.
func FindFiles(dirs []string, ext string) ([]string, error) {
	var out []string
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(abs, "**", "*"+ext))
		if err != nil {
			return nil, fmt.Errorf("glob pattern error in %s: %w", dir, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				out = append(out, m)
			}
		}
	}
	return out, nil
}
