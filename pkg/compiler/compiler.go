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

// Package compiler runs the front-end passes over a DSL document: sub-workflow
// loading, parameter merging, inline-script synthesis and forest building.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/wic/internal/log"
	"github.com/tombee/wic/pkg/ast"
	"github.com/tombee/wic/pkg/ast/schema"
	"github.com/tombee/wic/pkg/cwl"
	"github.com/tombee/wic/pkg/searchpath"
)

const tracerName = "github.com/tombee/wic/pkg/compiler"

// Pass names, used for spans, logs and metrics.
const (
	PassLoad       = "load"
	PassMerge      = "merge"
	PassSynthesize = "synthesize"
	PassForest     = "forest"
)

// Options configures a Compiler.
type Options struct {
	// SearchPathsWic maps a namespace to the directories holding DSL files.
	SearchPathsWic map[string][]string
	// SearchPathsCwl maps a namespace to the directories holding tools.
	SearchPathsCwl map[string][]string
	// AutogeneratedDir receives synthesized tool definitions.
	AutogeneratedDir string
	// ReportDir receives validation reports.
	ReportDir string
	// Python runs the port reader harness.
	Python string
	// MaxDepth bounds sub-workflow nesting. 0 is unlimited.
	MaxDepth int
	// IgnoreValidationErrors disables schema validation.
	IgnoreValidationErrors bool
	// ScriptRoot resolves relative script paths in documents compiled with
	// CompileDocument. CompileFile uses the file's directory.
	ScriptRoot string
}

// Metrics receives compiler measurements. *tracing.MetricsCollector
// implements it.
type Metrics interface {
	RecordCompile(ctx context.Context, document, result string, d time.Duration)
	RecordPass(ctx context.Context, pass string, d time.Duration)
	RecordSynthesized(ctx context.Context, n int)
	SetRegistrySize(n int)
}

// Option customizes a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// WithMetrics records compile metrics.
func WithMetrics(m Metrics) Option {
	return func(c *Compiler) { c.metrics = m }
}

// WithPortReader replaces the Python port reader.
func WithPortReader(r cwl.PortReader) Option {
	return func(c *Compiler) { c.ports = r }
}

// WithIDMinter replaces synthetic id minting.
func WithIDMinter(fn func() ast.StepID) Option {
	return func(c *Compiler) { c.newID = fn }
}

// Result is the output of one compilation.
type Result struct {
	// Tree is the merged tree with inline scripts replaced by tools.
	Tree ast.Tree
	// Forest is Tree re-expressed as a forest.
	Forest ast.Forest
	// Synthesized lists the tools generated from inline scripts, sorted.
	Synthesized []ast.StepID
}

// Compiler holds the discovered search-path table and tool registry and
// runs compilations against them. Compilations are serialized.
type Compiler struct {
	opts    Options
	logger  *slog.Logger
	metrics Metrics
	ports   cwl.PortReader
	newID   func() ast.StepID

	mu        sync.Mutex
	table     searchpath.Table
	registry  *ast.Registry
	schema    map[string]interface{}
	validator schema.Validator
	loader    *ast.Loader
}

// New discovers DSL documents and tools and returns a ready Compiler.
func New(opts Options, options ...Option) (*Compiler, error) {
	c := &Compiler{opts: opts}
	for _, o := range options {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.ports == nil {
		c.ports = cwl.NewPythonPortReader(opts.Python)
	}
	if c.opts.AutogeneratedDir == "" {
		c.opts.AutogeneratedDir = ast.DefaultToolDir
	}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh re-runs discovery, replacing the table, the registry and the
// generated schema. Tools synthesized by earlier compilations are dropped.
func (c *Compiler) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := searchpath.Discover(c.opts.SearchPathsWic, c.logger)
	if err != nil {
		return err
	}
	registry, err := cwl.DiscoverTools(c.opts.SearchPathsCwl, c.logger)
	if err != nil {
		return err
	}
	generated, err := schema.Generate(registry.Stems(), table.Stems())
	if err != nil {
		return fmt.Errorf("failed to generate document schema: %w", err)
	}

	c.table = table
	c.registry = registry
	c.schema = generated
	c.validator = schema.NewValidator(generated)
	c.loader = ast.NewLoader(ast.LoaderConfig{
		SearchPaths:            table,
		Registry:               registry,
		Validator:              c.validator,
		IgnoreValidationErrors: c.opts.IgnoreValidationErrors,
		ReportDir:              c.opts.ReportDir,
		MaxDepth:               c.opts.MaxDepth,
		Logger:                 c.logger,
	})
	if c.metrics != nil {
		c.metrics.SetRegistrySize(registry.Len())
	}

	c.logger.Debug("discovery complete",
		slog.Int("documents", len(table.Stems())),
		slog.Int("tools", registry.Len()))
	return nil
}

// Registry returns the current tool registry.
func (c *Compiler) Registry() *ast.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry
}

// Table returns the current search-path table.
func (c *Compiler) Table() searchpath.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table
}

// Schema returns the document schema generated by the last discovery.
func (c *Compiler) Schema() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schema
}

// Validator returns the validator built from the current discovery.
func (c *Compiler) Validator() schema.Validator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validator
}

// CompileFile compiles the DSL document at path. Relative script paths are
// resolved against the document's directory.
func (c *Compiler) CompileFile(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	id := ast.NewStepID(ast.FileStem(abs), ast.DefaultNamespace)

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.run(ctx, id, filepath.Dir(abs), func(ctx context.Context) (ast.Tree, error) {
		return c.loader.LoadFile(ctx, abs)
	})
}

// CompileDocument compiles an in-memory document under identity id.
func (c *Compiler) CompileDocument(ctx context.Context, id ast.StepID, node *ast.Node) (*Result, error) {
	root := c.opts.ScriptRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.run(ctx, id, root, func(ctx context.Context) (ast.Tree, error) {
		return c.loader.Load(ctx, ast.Tree{ID: id, Root: node})
	})
}

func (c *Compiler) run(ctx context.Context, id ast.StepID, scriptRoot string, load func(context.Context) (ast.Tree, error)) (res *Result, err error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "compile", trace.WithAttributes(
		attribute.String(log.DocumentKey, id.Stem),
		attribute.String(log.NamespaceKey, id.Namespace),
	))
	logger := log.WithDocument(c.logger, id.Stem)

	defer func() {
		elapsed := time.Since(start)
		result := "ok"
		if err != nil {
			result = Category(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if c.metrics != nil {
			c.metrics.RecordCompile(ctx, id.Stem, result, elapsed)
		}
		span.End()
	}()

	var loaded ast.Tree
	if err := c.pass(ctx, logger, PassLoad, func(ctx context.Context) (err error) {
		loaded, err = load(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	var merged ast.Tree
	if err := c.pass(ctx, logger, PassMerge, func(context.Context) (err error) {
		merged, err = ast.Merge(loaded, nil)
		return err
	}); err != nil {
		return nil, err
	}

	before := syntheticKeys(c.registry)
	synth := &ast.Synthesizer{
		ScriptRoot: scriptRoot,
		OutDir:     c.opts.AutogeneratedDir,
		Registry:   c.registry,
		Compiler:   cwl.NewScriptCompiler(c.ports),
		NewID:      c.newID,
		Logger:     logger,
	}
	var synthesized ast.Tree
	if err := c.pass(ctx, logger, PassSynthesize, func(ctx context.Context) (err error) {
		synthesized, err = synth.Synthesize(ctx, merged)
		return err
	}); err != nil {
		return nil, err
	}
	created := newSyntheticKeys(c.registry, before)
	if c.metrics != nil {
		c.metrics.RecordSynthesized(ctx, len(created))
		c.metrics.SetRegistrySize(c.registry.Len())
	}

	var forest ast.Forest
	_ = c.pass(ctx, logger, PassForest, func(context.Context) error {
		forest = ast.ToForest(synthesized)
		return nil
	})

	logger.Info("compiled document",
		slog.Int("trees", forest.Len()),
		slog.Int("synthesized", len(created)),
		log.Duration(time.Since(start).Milliseconds()))

	return &Result{Tree: synthesized, Forest: forest, Synthesized: created}, nil
}

// pass runs fn inside a pass.<name> span and records its duration.
func (c *Compiler) pass(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pass."+name)
	defer span.End()

	err := fn(ctx)
	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordPass(ctx, name, elapsed)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithPass(logger, name).Debug("pass failed", log.Error(err))
		return err
	}
	log.WithPass(logger, name).Debug("pass complete", log.Duration(elapsed.Milliseconds()))
	return nil
}

func syntheticKeys(reg *ast.Registry) map[ast.StepID]bool {
	keys := make(map[ast.StepID]bool)
	for _, id := range reg.Keys() {
		if id.Kind() == ast.KindSynthetic {
			keys[id] = true
		}
	}
	return keys
}

// newSyntheticKeys returns the synthetic registry keys absent from before.
// Registry keys are sorted, so the result is too.
func newSyntheticKeys(reg *ast.Registry, before map[ast.StepID]bool) []ast.StepID {
	var created []ast.StepID
	for _, id := range reg.Keys() {
		if id.Kind() == ast.KindSynthetic && !before[id] {
			created = append(created, id)
		}
	}
	return created
}
