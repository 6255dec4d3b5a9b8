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

package ast

import (
	"context"
	"errors"
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
	"github.com/tombee/wic/pkg/ast/schema"
	wicerrors "github.com/tombee/wic/pkg/errors"
	"github.com/tombee/wic/pkg/searchpath"
)

// tracerName is the instrumentation scope for compiler passes.
const tracerName = "github.com/tombee/wic/pkg/ast"

// tracer is looked up per call so a provider installed after package init
// is honoured.
func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// ScriptStep is the reserved step name of an inline script.
const ScriptStep = schema.ScriptStep

// LoaderConfig holds the dependencies of a Loader.
type LoaderConfig struct {
	// SearchPaths maps namespace -> stem -> DSL file.
	SearchPaths searchpath.Table

	// Registry holds the primitive tools. A step whose stem names a tool is
	// a leaf and is never resolved.
	Registry *Registry

	// Validator checks every document before it is expanded. Nil disables
	// validation.
	Validator schema.Validator

	// IgnoreValidationErrors skips validation entirely.
	IgnoreValidationErrors bool

	// ReportDir receives validation_<stem>.txt when a document fails
	// validation. Defaults to the working directory.
	ReportDir string

	// MaxDepth limits sub-workflow nesting. Zero means unlimited.
	MaxDepth int

	Logger *slog.Logger
}

// Loader reads sub-workflow documents from disk and inlines them into the
// tree that references them.
type Loader struct {
	cfg    LoaderConfig
	logger *slog.Logger

	// cache stores parsed documents keyed by absolute path
	cache map[string]*cacheEntry
	mu    sync.RWMutex
}

// cacheEntry stores a parsed document with the file state it was read at.
type cacheEntry struct {
	node    *Node
	modTime time.Time
	size    int64
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		cfg:    cfg,
		logger: logger,
		cache:  make(map[string]*cacheEntry),
	}
}

// LoadFile reads a root document and loads it. The root's identity is its
// file stem in the default namespace.
func (l *Loader) LoadFile(ctx context.Context, path string) (Tree, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Tree{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return Tree{}, &wicerrors.NotFoundError{Resource: "workflow", ID: path, Cause: err}
	}
	node, err := l.readDocument(abs)
	if err != nil {
		return Tree{}, err
	}
	tree := Tree{ID: NewStepID(FileStem(abs), DefaultNamespace), Root: node}
	return l.load(ctx, tree, []string{abs})
}

// Load validates tree and replaces every step that is not a primitive tool
// with the loaded sub-workflow it names. Backends are all loaded; none is
// chosen. The input tree is not modified.
func (l *Loader) Load(ctx context.Context, tree Tree) (Tree, error) {
	return l.load(ctx, tree, nil)
}

func (l *Loader) load(ctx context.Context, tree Tree, stack []string) (Tree, error) {
	ctx, span := tracer().Start(ctx, "ast.load", trace.WithAttributes(
		attribute.String(log.DocumentKey, tree.ID.Stem),
		attribute.String(log.NamespaceKey, tree.ID.Namespace),
	))
	defer span.End()

	root, err := l.loadNode(ctx, tree, stack)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Tree{}, err
	}
	return Tree{ID: tree.ID, Root: root}, nil
}

func (l *Loader) loadNode(ctx context.Context, tree Tree, stack []string) (*Node, error) {
	if tree.Root == nil {
		return nil, fmt.Errorf("%s: nil document", tree.ID)
	}
	if err := l.validate(tree); err != nil {
		return nil, err
	}

	out := tree.Root.shallow()
	switch body := tree.Root.Body.(type) {
	case *Dispatch:
		backends := make([]Backend, 0, len(body.Backends))
		for _, b := range body.Backends {
			child, err := l.load(ctx, Tree{ID: b.ID, Root: b.Tree}, stack)
			if err != nil {
				return nil, err
			}
			backends = append(backends, Backend{ID: b.ID, Tree: child.Root})
		}
		out.Body = &Dispatch{Backends: backends}
		return out, nil

	case *Sequence:
		steps := make([]Step, 0, len(body.Steps))
		for i, step := range body.Steps {
			if _, done := step.Value.(*SubWorkflow); done || l.isLeaf(step.Key) {
				steps = append(steps, Step{Key: step.Key, Value: cloneStepValue(step.Value)})
				continue
			}

			ns := tree.Root.StepNamespace(i+1, step.Key)
			childID := NewStepID(step.Key, ns)
			path, err := l.resolve(tree.ID, childID)
			if err != nil {
				return nil, err
			}
			if err := l.checkStack(stack, path); err != nil {
				return nil, err
			}

			node, err := l.readDocument(path)
			if err != nil {
				return nil, err
			}
			l.logger.Debug("resolved sub-workflow",
				slog.String(log.DocumentKey, tree.ID.Stem),
				slog.String(log.StepKey, step.Key),
				slog.String(log.NamespaceKey, ns),
				slog.String("path", path))

			sub, err := l.load(ctx, Tree{ID: childID, Root: node}, append(stack[:len(stack):len(stack)], path))
			if err != nil {
				return nil, err
			}

			parentArgs := Map{}
			if ta, ok := step.Value.(*ToolArgs); ok && ta.Args != nil {
				parentArgs = cloneMap(ta.Args)
			}
			steps = append(steps, Step{Key: step.Key, Value: &SubWorkflow{Subtree: sub.Root, ParentArgs: parentArgs}})
		}
		out.Body = &Sequence{Steps: steps}
		return out, nil

	default:
		return nil, fmt.Errorf("%s: document has no body", tree.ID)
	}
}

// isLeaf reports whether a step key names a primitive tool or an inline
// script.
func (l *Loader) isLeaf(key string) bool {
	stem := FileStem(key)
	if stem == ScriptStep {
		return true
	}
	return l.cfg.Registry != nil && l.cfg.Registry.HasStem(stem)
}

// resolve maps an identity to the absolute path of the DSL file it names.
// Synthetic identities are refused.
func (l *Loader) resolve(doc, id StepID) (string, error) {
	stem, ns := id.FileStem(), id.Namespace
	if id.Kind() == KindSynthetic {
		return "", &ResolutionError{Kind: SyntheticLookup, Namespace: ns, Stem: stem, Document: doc.FileStem()}
	}

	path, err := l.cfg.SearchPaths.Lookup(ns, stem)
	switch {
	case errors.Is(err, searchpath.ErrUnknownNamespace):
		return "", &ResolutionError{Kind: UnknownNamespace, Namespace: ns, Stem: stem, Document: doc.FileStem()}
	case errors.Is(err, searchpath.ErrUnknownStem):
		return "", &ResolutionError{Kind: UnknownStem, Namespace: ns, Stem: stem, Document: doc.FileStem()}
	case err != nil:
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", &ResolutionError{Kind: MissingFile, Namespace: ns, Stem: stem, Document: doc.FileStem(), Path: path}
	}
	if filepath.Ext(path) != searchpath.Extension {
		return "", &ResolutionError{Kind: BadExtension, Namespace: ns, Stem: stem, Document: doc.FileStem(), Path: path}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return abs, nil
}

// checkStack rejects re-entering a document already being loaded and
// nesting beyond the configured depth.
func (l *Loader) checkStack(stack []string, path string) error {
	chain := make([]string, 0, len(stack)+1)
	for _, p := range stack {
		chain = append(chain, filepath.Base(p))
	}
	chain = append(chain, filepath.Base(path))

	for _, p := range stack {
		if p == path {
			return &CycleError{Chain: chain}
		}
	}
	if l.cfg.MaxDepth > 0 && len(stack) >= l.cfg.MaxDepth {
		return &CycleError{Chain: chain, Limit: l.cfg.MaxDepth}
	}
	return nil
}

// validate checks the document against the schema. On failure the full
// violation list goes to a report file; only a short message is logged.
func (l *Loader) validate(tree Tree) error {
	if l.cfg.Validator == nil || l.cfg.IgnoreValidationErrors {
		return nil
	}
	err := l.cfg.Validator.Validate(tree.Root.ToMap())
	if err == nil {
		return nil
	}

	detail := err.Error() + "\n"
	var verrs schema.ValidationErrors
	if errors.As(err, &verrs) {
		detail = verrs.Detail()
	}

	report := filepath.Join(l.cfg.ReportDir, "validation_"+tree.ID.FileStem()+".txt")
	if werr := os.WriteFile(report, []byte(detail), 0o644); werr != nil {
		l.logger.Warn("failed to write validation report",
			slog.String("path", report),
			slog.Any("error", werr))
		report = ""
	}
	l.logger.Warn("failed to validate",
		slog.String(log.DocumentKey, tree.ID.Stem),
		slog.String("report", report))

	return &SchemaError{Document: tree.ID.Stem, ReportPath: report, Cause: err}
}

// readDocument parses a DSL file, serving unchanged files from the cache.
// Callers own the returned node.
func (l *Loader) readDocument(abs string) (*Node, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	l.mu.RLock()
	entry, ok := l.cache[abs]
	l.mu.RUnlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.node.Clone(), nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	node, err := Decode(data)
	if err != nil {
		return nil, &SchemaError{Document: abs, Cause: err}
	}

	l.mu.Lock()
	l.cache[abs] = &cacheEntry{node: node, modTime: info.ModTime(), size: info.Size()}
	l.mu.Unlock()

	return node.Clone(), nil
}
