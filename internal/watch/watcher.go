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

// Package watch recompiles when DSL documents or tool definitions change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// eventTypeMap maps fsnotify operations to event names.
var eventTypeMap = map[fsnotify.Op]string{
	fsnotify.Create: "created",
	fsnotify.Write:  "modified",
	fsnotify.Remove: "deleted",
	fsnotify.Rename: "renamed",
}

// Event is a change to a watched file.
type Event struct {
	Path string
	Op   string
	Time time.Time
}

// Config configures a Watcher and Run.
type Config struct {
	// Dirs are watched recursively. Missing directories are skipped.
	Dirs []string
	// Include and Exclude filter event paths. Defaults:
	// DefaultIncludePatterns and DefaultExcludePatterns.
	Include []string
	Exclude []string
	// Debounce is the quiet window before a batch of changes is delivered.
	Debounce time.Duration
	// RateLimit caps deliveries per second. 0 means unlimited.
	RateLimit float64
	// Burst is the number of deliveries allowed back to back.
	Burst  int
	Logger *slog.Logger
}

// Watcher turns fsnotify events under a set of directory trees into
// filtered Events. Directories created after start are watched too.
type Watcher struct {
	fsw     *fsnotify.Watcher
	matcher *PatternMatcher
	logger  *slog.Logger
	events  chan Event
	doneCh  chan struct{}
	started atomic.Bool
}

// NewWatcher creates a watcher over cfg.Dirs.
func NewWatcher(cfg Config) (*Watcher, error) {
	include, exclude := cfg.Include, cfg.Exclude
	if include == nil {
		include = DefaultIncludePatterns()
	}
	if exclude == nil {
		exclude = DefaultExcludePatterns()
	}
	matcher, err := NewPatternMatcher(include, exclude)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		fsw:     fsw,
		matcher: matcher,
		logger:  logger.With(slog.String("component", "watch")),
		events:  make(chan Event, 100),
		doneCh:  make(chan struct{}),
	}

	for _, dir := range cfg.Dirs {
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	if len(fsw.WatchList()) == 0 {
		fsw.Close()
		return nil, fmt.Errorf("none of the directories %v exist", cfg.Dirs)
	}
	return w, nil
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		w.logger.Debug("skipping missing directory", slog.String("path", abs))
		return nil
	}
	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Start begins delivering events until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.eventLoop(ctx)
}

// Events returns the channel of filtered events. It is closed when the
// watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	if w.started.Load() {
		<-w.doneCh
	}
	return err
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var op string
	for mask, name := range eventTypeMap {
		if event.Has(mask) {
			op = name
			break
		}
	}
	if op == "" {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", slog.String("path", event.Name), slog.Any("error", err))
			}
			return
		}
	}

	if !w.matcher.Match(event.Name) {
		return
	}

	select {
	case w.events <- Event{Path: event.Name, Op: op, Time: time.Now()}:
		w.logger.Debug("file event", slog.String("op", op), slog.String("path", event.Name))
	default:
		w.logger.Warn("event channel full, dropping event", slog.String("op", op), slog.String("path", event.Name))
	}
}

// newLimiter returns a limiter allowing perSecond deliveries, or an
// unlimited one when perSecond is not positive.
func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Run watches cfg.Dirs and calls onChange with each debounced batch of
// changed paths, no faster than cfg.RateLimit allows. Errors from onChange
// are logged and watching continues. Run returns nil when ctx is cancelled.
func Run(ctx context.Context, cfg Config, onChange func(ctx context.Context, changed []string) error) error {
	w, err := NewWatcher(cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.Start(ctx)

	batches := make(chan []string, 1)
	debouncer := NewDebouncer(cfg.Debounce, func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	})
	defer debouncer.Stop()

	limiter := newLimiter(cfg.RateLimit, cfg.Burst)
	w.logger.Info("watching for changes", slog.Any("dirs", w.fsw.WatchList()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			debouncer.Add(ev.Path)
		case paths := <-batches:
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			if err := onChange(ctx, paths); err != nil {
				w.logger.Warn("recompile failed", slog.Any("error", err), slog.Int("changed", len(paths)))
			}
		}
	}
}
