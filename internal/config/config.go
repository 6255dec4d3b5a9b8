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

// Package config loads the compiler's global configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/wic/internal/tracing"
	wicerrors "github.com/tombee/wic/pkg/errors"
)

// DefaultNamespace is the namespace used when no search paths are configured.
const DefaultNamespace = "global"

// Config represents the complete compiler configuration.
type Config struct {
	// SearchPathsWic maps a namespace to the directories holding its DSL
	// documents.
	SearchPathsWic map[string][]string `yaml:"search_paths_wic"`

	// SearchPathsCwl maps a namespace to the directories holding its tool
	// definitions.
	SearchPathsCwl map[string][]string `yaml:"search_paths_cwl"`

	// AutogeneratedDir receives tools synthesized from inline scripts.
	// Environment: WIC_AUTOGENERATED_DIR
	// Default: autogenerated
	AutogeneratedDir string `yaml:"autogenerated_dir"`

	// ReportDir receives validation_<stem>.txt reports.
	// Default: .
	ReportDir string `yaml:"report_dir"`

	// Python is the interpreter used to read script ports.
	// Environment: WIC_PYTHON
	// Default: python3
	Python string `yaml:"python"`

	// MaxDepth bounds sub-workflow nesting. 0 disables the limit.
	// Default: 32
	MaxDepth int `yaml:"max_depth"`

	// IgnoreValidationErrors skips schema validation of documents.
	IgnoreValidationErrors bool `yaml:"ignore_validation_errors"`

	Log     LogConfig      `yaml:"log"`
	Tracing tracing.Config `yaml:"tracing"`
	Watch   WatchConfig    `yaml:"watch"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Default: text
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	AddSource bool `yaml:"add_source"`
}

// WatchConfig configures `wic watch`.
type WatchConfig struct {
	// Debounce coalesces bursts of file events.
	// Default: 200ms
	Debounce time.Duration `yaml:"debounce"`

	// RateLimit is the maximum number of recompiles per second.
	// Default: 2
	RateLimit float64 `yaml:"rate_limit"`

	// Burst is the number of recompiles allowed back to back.
	// Default: 1
	Burst int `yaml:"burst"`

	// MetricsAddr serves Prometheus metrics when set (e.g. ":9464").
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Default returns a Config with default values for every field.
func Default() *Config {
	return &Config{
		SearchPathsWic:   map[string][]string{DefaultNamespace: {"."}},
		SearchPathsCwl:   map[string][]string{DefaultNamespace: {"."}},
		AutogeneratedDir: "autogenerated",
		ReportDir:        ".",
		Python:           "python3",
		MaxDepth:         32,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: tracing.DefaultConfig(),
		Watch: WatchConfig{
			Debounce:  200 * time.Millisecond,
			RateLimit: 2,
			Burst:     1,
		},
	}
}

// Load reads configuration from path, or from DefaultPath when path is
// empty, then applies environment overrides and validates the result. A
// missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, &wicerrors.ConfigError{
				Key:    "config_file",
				Reason: "cannot locate the global config directory",
				Cause:  err,
			}
		}
		path = p
	}

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, &wicerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile loads configuration from a YAML (or JSON) file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Search paths in the file replace the defaults rather than merging.
	c.SearchPathsWic = nil
	c.SearchPathsCwl = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyDefaults fills in zero values so minimal configs work.
func (c *Config) applyDefaults() {
	defaults := Default()

	if len(c.SearchPathsWic) == 0 {
		c.SearchPathsWic = defaults.SearchPathsWic
	}
	if len(c.SearchPathsCwl) == 0 {
		c.SearchPathsCwl = defaults.SearchPathsCwl
	}
	if c.AutogeneratedDir == "" {
		c.AutogeneratedDir = defaults.AutogeneratedDir
	}
	if c.ReportDir == "" {
		c.ReportDir = defaults.ReportDir
	}
	if c.Python == "" {
		c.Python = defaults.Python
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = defaults.Tracing.SampleRate
	}
	if c.Tracing.Exporter.Type == "" {
		c.Tracing.Exporter.Type = defaults.Tracing.Exporter.Type
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = defaults.Watch.Debounce
	}
	if c.Watch.RateLimit <= 0 {
		c.Watch.RateLimit = defaults.Watch.RateLimit
	}
	if c.Watch.Burst <= 0 {
		c.Watch.Burst = defaults.Watch.Burst
	}
}

// loadFromEnv applies environment variable overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("WIC_AUTOGENERATED_DIR"); val != "" {
		c.AutogeneratedDir = val
	}
	if val := os.Getenv("WIC_PYTHON"); val != "" {
		c.Python = val
	}
	if val := os.Getenv("WIC_MAX_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			c.MaxDepth = depth
		}
	}
	if val := os.Getenv("WIC_IGNORE_VALIDATION_ERRORS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.IgnoreValidationErrors = b
		}
	}
	if val := os.Getenv("WIC_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Exporter.Endpoint = val
	}
}

// Validate checks that the configuration is usable. Every problem is
// reported at once.
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, validateSearchPaths("search_paths_wic", c.SearchPathsWic)...)
	errs = append(errs, validateSearchPaths("search_paths_cwl", c.SearchPathsCwl)...)

	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Sprintf("max_depth must not be negative, got %d", c.MaxDepth))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	validExporters := map[string]bool{
		tracing.ExporterStdout: true, tracing.ExporterOTLP: true,
		tracing.ExporterOTLPHTTP: true, tracing.ExporterNone: true,
	}
	if !validExporters[c.Tracing.Exporter.Type] {
		errs = append(errs, fmt.Sprintf("tracing.exporter.type must be one of [stdout, otlp, otlp-http, none], got %q", c.Tracing.Exporter.Type))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return &wicerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed:\n  - " + strings.Join(errs, "\n  - "),
		}
	}
	return nil
}

func validateSearchPaths(key string, paths map[string][]string) []string {
	namespaces := make([]string, 0, len(paths))
	for ns := range paths {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	var errs []string
	for _, ns := range namespaces {
		if ns == "" {
			errs = append(errs, fmt.Sprintf("%s has an empty namespace name", key))
			continue
		}
		for i, dir := range paths[ns] {
			if strings.TrimSpace(dir) == "" {
				errs = append(errs, fmt.Sprintf("%s.%s[%d] is empty", key, ns, i))
			}
		}
	}
	return errs
}

// ResolveDirs returns a copy of paths with every relative directory joined
// to base and "~/" expanded.
func ResolveDirs(paths map[string][]string, base string) map[string][]string {
	home, _ := os.UserHomeDir()
	out := make(map[string][]string, len(paths))
	for ns, dirs := range paths {
		resolved := make([]string, 0, len(dirs))
		for _, dir := range dirs {
			switch {
			case strings.HasPrefix(dir, "~/") && home != "":
				dir = filepath.Join(home, dir[2:])
			case !filepath.IsAbs(dir):
				dir = filepath.Join(base, dir)
			}
			resolved = append(resolved, filepath.Clean(dir))
		}
		out[ns] = resolved
	}
	return out
}
