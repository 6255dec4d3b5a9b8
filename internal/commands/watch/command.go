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

// Package watch implements the watch command: compile a single step and
// recompile it whenever a document or tool on the search paths changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/wic/internal/commands/shared"
	filewatch "github.com/tombee/wic/internal/watch"
	"github.com/tombee/wic/pkg/ast"
	"github.com/tombee/wic/pkg/compiler"
	wicerrors "github.com/tombee/wic/pkg/errors"
)

type options struct {
	argsFile    string
	outDir      string
	metricsAddr string
	once        bool
}

// NewCommand creates the watch command.
func NewCommand() *cobra.Command {
	return newCommand(nil)
}

func newCommand(copts []compiler.Option) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "watch <stem>",
		Short: "Recompile a single tool or document whenever the search paths change",
		Long: `Watch wraps one tool or DSL document in a single-step workflow, compiles it,
and recompiles it each time a .wic or .cwl file under the configured search
paths changes. Discovery is re-run before every recompile, so new files are
picked up. Schema validation errors are ignored while watching.

A stem ending in .wic names a DSL document; anything else names a tool.
--args supplies the step's arguments, or the document's step overrides.`,
		Example: `  # Recompile a tool with arguments from a file
  wic watch echo --args echo.args.yaml

  # Watch a document and expose metrics
  wic watch pipeline.wic --metrics-addr 127.0.0.1:9464`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], opts, copts)
		},
	}

	cmd.Flags().StringVar(&opts.argsFile, "args", "", "YAML file with the step's arguments")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Directory for compiled documents (default: autogenerated_dir)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Compile once and exit")

	return cmd
}

func runWatch(cmd *cobra.Command, stem string, opts options, copts []compiler.Option) error {
	args, err := readArgs(opts.argsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := shared.NewEnv(ctx, shared.EnvOptions{
		IgnoreValidationErrors: true,
		ErrOut:                 cmd.ErrOrStderr(),
		CompilerOptions:        copts,
	})
	if err != nil {
		return err
	}
	defer env.Close(context.WithoutCancel(ctx))

	outDir := opts.outDir
	if outDir == "" {
		outDir = env.Config.AutogeneratedDir
	}
	id, node := compiler.SingleStep(stem, args)
	s := &session{
		env:     env,
		id:      id,
		node:    node,
		outDir:  outDir,
		out:     cmd.OutOrStdout(),
		styler:  shared.NewStyler(cmd.OutOrStdout()),
		ignored: []string{outDir, env.Config.AutogeneratedDir},
	}

	if opts.once {
		if err := s.compile(ctx); err != nil {
			return shared.NewCompileError("compilation failed", err)
		}
		return nil
	}

	// A failed first compile is reported; later edits may fix it.
	if err := s.compile(ctx); err != nil {
		env.Logger.Warn("initial compile failed", slog.Any("error", err))
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = env.Config.Watch.MetricsAddr
	}
	if addr != "" {
		stopMetrics := serveMetrics(ctx, env, addr)
		defer stopMetrics()
	}

	return filewatch.Run(ctx, filewatch.Config{
		Dirs:      env.WatchDirs(),
		Debounce:  env.Config.Watch.Debounce,
		RateLimit: env.Config.Watch.RateLimit,
		Burst:     env.Config.Watch.Burst,
		Logger:    env.Logger,
	}, s.onChange)
}

// session holds one watched step and recompiles it.
type session struct {
	env     *shared.Env
	id      ast.StepID
	node    *ast.Node
	outDir  string
	out     io.Writer
	styler  shared.Styler
	ignored []string
}

func (s *session) compile(ctx context.Context) error {
	res, err := s.env.Compiler.CompileDocument(ctx, s.id, s.node)
	if err != nil {
		fmt.Fprintln(s.out, s.styler.Error(fmt.Sprintf("%s: %v", s.id.Stem, err)))
		return err
	}
	data, err := ast.Marshal(res.Tree.Root)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.id.Stem, err)
	}
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.outDir, err)
	}
	path := filepath.Join(s.outDir, s.id.Stem+".wic")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(s.out, s.styler.OK(fmt.Sprintf("compiled %s to %s (%d trees, %d generated tools)",
		s.id.Stem, path, res.Forest.Len(), len(res.Synthesized))))
	return nil
}

// onChange re-runs discovery and recompiles, unless every changed path is
// compiler output.
func (s *session) onChange(ctx context.Context, changed []string) error {
	changed = s.relevant(changed)
	if len(changed) == 0 {
		return nil
	}
	s.env.Logger.Debug("change detected", slog.Any("paths", changed))
	if err := s.env.Compiler.Refresh(); err != nil {
		return err
	}
	return s.compile(ctx)
}

func (s *session) relevant(paths []string) []string {
	var out []string
	for _, p := range paths {
		if !s.isIgnored(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s *session) isIgnored(path string) bool {
	for _, dir := range s.ignored {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(abs, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func readArgs(path string) (ast.Map, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wicerrors.Wrap(err, "failed to read args file")
	}
	var args ast.Map
	if err := yaml.Unmarshal(data, &args); err != nil {
		return nil, &wicerrors.ValidationError{
			Field:   "--args",
			Message: fmt.Sprintf("cannot parse %s: %v", path, err),
			Hint:    "the args file must be a YAML mapping from input names to values",
		}
	}
	return args, nil
}

func serveMetrics(ctx context.Context, env *shared.Env, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", env.Tracing.MetricsHandler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		env.Logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.Logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
