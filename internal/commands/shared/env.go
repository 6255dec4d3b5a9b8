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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/tombee/wic/internal/config"
	"github.com/tombee/wic/internal/log"
	"github.com/tombee/wic/internal/tracing"
	"github.com/tombee/wic/pkg/compiler"
)

// EnvOptions adjusts how a command environment is built.
type EnvOptions struct {
	// IgnoreValidationErrors forces validation off regardless of config.
	IgnoreValidationErrors bool
	// ErrOut receives logs and stdout-exporter spans. Default: os.Stderr.
	ErrOut io.Writer
	// CompilerOptions are passed to compiler.New after the defaults.
	CompilerOptions []compiler.Option
}

// Env bundles what every compile command needs.
type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Tracing  *tracing.Provider
	Compiler *compiler.Compiler
}

// NewEnv loads configuration, then builds the logger, the tracing provider
// and a compiler over the configured search paths. Relative search paths are
// resolved against the working directory.
func NewEnv(ctx context.Context, opts EnvOptions) (*Env, error) {
	errOut := opts.ErrOut
	if errOut == nil {
		errOut = os.Stderr
	}

	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if opts.IgnoreValidationErrors {
		cfg.IgnoreValidationErrors = true
	}

	logger := log.New(loggerConfig(cfg, errOut))

	tcfg := cfg.Tracing
	if GetTrace() {
		tcfg.Enabled = true
	}
	tcfg.ServiceVersion = version
	tcfg.Exporter.Writer = errOut
	provider, err := tracing.Setup(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	copts := append([]compiler.Option{
		compiler.WithLogger(logger),
		compiler.WithMetrics(provider.Metrics()),
	}, opts.CompilerOptions...)
	c, err := compiler.New(compiler.Options{
		SearchPathsWic:         config.ResolveDirs(cfg.SearchPathsWic, wd),
		SearchPathsCwl:         config.ResolveDirs(cfg.SearchPathsCwl, wd),
		AutogeneratedDir:       cfg.AutogeneratedDir,
		ReportDir:              cfg.ReportDir,
		Python:                 cfg.Python,
		MaxDepth:               cfg.MaxDepth,
		IgnoreValidationErrors: cfg.IgnoreValidationErrors,
		ScriptRoot:             wd,
	}, copts...)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	return &Env{Config: cfg, Logger: logger, Tracing: provider, Compiler: c}, nil
}

// Close flushes spans and metrics.
func (e *Env) Close(ctx context.Context) error {
	return e.Tracing.Shutdown(ctx)
}

// WatchDirs returns every configured search directory, resolved.
func (e *Env) WatchDirs() []string {
	wd, _ := os.Getwd()
	var dirs []string
	seen := make(map[string]bool)
	for _, paths := range []map[string][]string{e.Config.SearchPathsWic, e.Config.SearchPathsCwl} {
		for _, list := range config.ResolveDirs(paths, wd) {
			for _, dir := range list {
				if !seen[dir] {
					seen[dir] = true
					dirs = append(dirs, dir)
				}
			}
		}
	}
	sort.Strings(dirs)
	return dirs
}

func loggerConfig(cfg *config.Config, out io.Writer) *log.Config {
	lc := &log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		Output:    out,
		AddSource: cfg.Log.AddSource,
	}
	if env := log.FromEnv(); env.AddSource {
		lc.AddSource = true
		if env.Level == "debug" {
			lc.Level = "debug"
		}
	}
	switch {
	case GetVerbose():
		lc.Level = "debug"
	case GetQuiet():
		lc.Level = "warn"
	}
	return lc
}
