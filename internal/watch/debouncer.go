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
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces paths that change within a quiet window. Every Add
// restarts the window; when it expires the distinct paths seen since the
// last flush are delivered together, sorted.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]struct{}
	timer   *time.Timer
	onFlush func([]string)
	stopped bool
}

// NewDebouncer creates a debouncer that calls onFlush after window of quiet.
func NewDebouncer(window time.Duration, onFlush func([]string)) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]struct{}),
		onFlush: onFlush,
	}
}

// Add records a changed path and restarts the window.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	d.pending = make(map[string]struct{})
	d.timer = nil
	d.mu.Unlock()

	sort.Strings(paths)
	// Called outside the lock so onFlush may block.
	d.onFlush(paths)
}

// Pending returns the number of paths waiting for the window to expire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels the window and drops pending paths.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[string]struct{})
}
