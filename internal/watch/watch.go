// Package watch wraps a recursive fsnotify event source with debounced,
// filtered batching.
//
// The watcher is the only component in tsera with an always-running
// background goroutine. It never drops a qualifying event; it only
// coalesces bursts, invoking the caller's handler once per quiet period.
package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tsera-dev/tsera/internal/state"
)

// DefaultDebounce is the quiet window required before a batch flushes.
const DefaultDebounce = 250 * time.Millisecond

// Event is one filtered filesystem change.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Handler receives each flushed batch. It runs on the watcher's
// goroutine; a slow handler delays the next flush but loses nothing.
type Handler func(batch []Event)

// Options configure a Watcher.
type Options struct {
	// Debounce is the quiet window; zero means DefaultDebounce.
	Debounce time.Duration

	// Ignore lists literal substrings; any event path containing one is
	// dropped before buffering. The reserved state directory is always
	// ignored as a whole path segment, regardless of this list.
	Ignore []string

	// OnError receives failures of the underlying event source. They do
	// not terminate the watch loop. Nil means log and continue.
	OnError func(error)

	Logger *slog.Logger
}

// watcher states. Closed is terminal.
type watchState int

const (
	stateIdle watchState = iota
	stateBuffering
	stateFlushing
	stateClosed
)

// Watcher debounces recursive filesystem events under a root directory.
type Watcher struct {
	root     string
	debounce time.Duration
	ignore   []string
	handler  Handler
	onError  func(error)
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	mu    sync.Mutex
	state watchState
	batch []Event

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// New starts watching root recursively and returns the running watcher.
// Subdirectories created later are picked up automatically.
func New(root string, handler Handler, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		root:     root,
		debounce: opts.Debounce,
		ignore:   append([]string(nil), opts.Ignore...),
		handler:  handler,
		onError:  opts.OnError,
		logger:   logger,
		fsw:      fsw,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Close transitions the watcher to its terminal state from anywhere,
// stopping the event source and any pending debounce timer. A batch
// buffered at close time is discarded, not flushed. Safe to call more
// than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.state = stateClosed
		w.batch = nil
		w.mu.Unlock()

		close(w.done)
		err = w.fsw.Close()
		<-w.stopped
	})
	return err
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// ignored reports whether a path is filtered out. The reserved state
// directory matches only as a whole path segment, so a manifest named
// user.tsera.yaml is not mistaken for state output; caller-supplied
// patterns match by literal substring against the root-relative path.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if seg == state.DirName {
			return true
		}
	}
	for _, pattern := range w.ignore {
		if strings.Contains(rel, pattern) {
			return true
		}
	}
	return false
}

func (w *Watcher) run() {
	defer close(w.stopped)

	var timer *time.Timer
	var timerC <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	events := w.fsw.Events
	errs := w.fsw.Errors

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-events:
			if !ok {
				// Natural end of stream: flush what we have, once.
				stopTimer()
				w.flush()
				return
			}
			if w.ignored(ev.Name) {
				continue
			}

			// New directories must be watched for recursion to hold.
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.reportError(err)
					}
				}
			}

			if !w.buffer(ev) {
				return
			}
			// Reset, not accumulate: a steady stream keeps pushing the
			// flush out until activity pauses for the full window.
			stopTimer()
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case err, ok := <-errs:
			if !ok {
				// A closed channel would win every select; stop
				// polling it and wait for the event stream to end.
				errs = nil
				continue
			}
			w.reportError(err)

		case <-timerC:
			stopTimer()
			w.flush()
		}
	}
}

// buffer appends ev and moves Idle to Buffering. Returns false if the
// watcher is closed.
func (w *Watcher) buffer(ev fsnotify.Event) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == stateClosed {
		return false
	}
	w.state = stateBuffering
	w.batch = append(w.batch, Event{Path: ev.Name, Op: ev.Op})
	return true
}

// flush hands the buffered batch to the handler and returns to Idle.
// No callback fires after Close, and an empty buffer flushes nothing.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.state == stateClosed || len(w.batch) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.batch
	w.batch = nil
	w.state = stateFlushing
	w.mu.Unlock()

	w.logger.Debug("flushing watch batch", "events", len(batch))
	w.handler(batch)

	w.mu.Lock()
	if w.state == stateFlushing {
		w.state = stateIdle
	}
	w.mu.Unlock()
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
		return
	}
	w.logger.Warn("watch source error", "error", err)
}

// Paths returns the sorted union of unique paths in a batch.
func Paths(batch []Event) []string {
	seen := make(map[string]bool, len(batch))
	var paths []string
	for _, ev := range batch {
		if !seen[ev.Path] {
			seen[ev.Path] = true
			paths = append(paths, ev.Path)
		}
	}
	sort.Strings(paths)
	return paths
}
