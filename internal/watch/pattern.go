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

package watch

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// PatternMatcher handles include and exclude glob pattern matching for file paths.
// Patterns use doublestar syntax, so ** matches across directories.
type PatternMatcher struct {
	includePatterns []string
	excludePatterns []string
}

// NewPatternMatcher validates the patterns and returns a matcher. An empty
// include list matches every path; excludes are applied afterwards.
func NewPatternMatcher(includePatterns, excludePatterns []string) (*PatternMatcher, error) {
	for _, pattern := range includePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}
	for _, pattern := range excludePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return &PatternMatcher{
		includePatterns: includePatterns,
		excludePatterns: excludePatterns,
	}, nil
}

// Match reports whether path is included and not excluded. Each pattern is
// tried against the full path and the base name.
func (pm *PatternMatcher) Match(path string) bool {
	included := len(pm.includePatterns) == 0
	for _, pattern := range pm.includePatterns {
		if matchPattern(pattern, path) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pattern := range pm.excludePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	return true
}

func matchPattern(pattern, path string) bool {
	if matched, _ := doublestar.PathMatch(pattern, path); matched {
		return true
	}
	matched, _ := doublestar.Match(pattern, filepath.Base(path))
	return matched
}

// DefaultIncludePatterns matches DSL documents and tool definitions.
func DefaultIncludePatterns() []string {
	return []string{"*.wic", "*.cwl"}
}

// DefaultExcludePatterns returns editor temporary files and system files.
func DefaultExcludePatterns() []string {
	return []string{
		"*.swp",
		"*.swo",
		".*.sw?",
		"*~",
		"#*#",
		".#*",
		".DS_Store",
		"*.tmp",
	}
}
