// Package inbox watches a drop directory for trip import files.
//
// Any *.json file created or written in the inbox is validated and
// applied as an atomic append, then renamed to *.json.imported so it is
// never picked up twice. Files that fail validation are renamed to
// *.json.failed and left for inspection.
package inbox

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tripdeck/tripdeck/internal/importer"
	"github.com/tripdeck/tripdeck/internal/store"
)

// settleDelay is how long a file must be quiet before it is imported,
// so a file still being written is not read half-done.
const settleDelay = 250 * time.Millisecond

// Watcher monitors the inbox directory and applies dropped import files.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *store.Store
	tripID  string
	dir     string
	logger  *log.Logger

	// OnImport, when set, is called after each successful import.
	OnImport func(path string, result importer.Result)

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	pending map[string]*time.Timer
}

// NewWatcher creates an inbox watcher over the given store and trip.
func NewWatcher(st *store.Store, tripID, dir string, logger *log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[inbox] ", log.LstdFlags)
	}

	return &Watcher{
		watcher: fw,
		store:   st,
		tripID:  tripID,
		dir:     dir,
		logger:  logger,
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the inbox directory, creating it if needed.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox directory: %w", err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch inbox directory %s: %w", w.dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	w.logger.Printf("Watching inbox %s", w.dir)
	return nil
}

// Stop stops the watcher and waits for in-flight imports.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	for path, timer := range w.pending {
		// A timer that was stopped in time never runs its callback,
		// so its WaitGroup slot is released here.
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watch error: %v", err)
		}
	}
}

// schedule (re)arms the settle timer for one file. Repeated writes keep
// pushing the import back until the file goes quiet.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if timer, ok := w.pending[path]; ok {
		if timer.Stop() {
			w.wg.Done()
		}
	}

	// Each armed timer holds a WaitGroup slot until its callback
	// finishes, so Stop waits out an import already past the done
	// check.
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(settleDelay, func() {
		defer w.wg.Done()

		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.importFile(path)
	})
}

func (w *Watcher) importFile(path string) {
	f, err := importer.FromFile(path)
	if err != nil {
		w.logger.Printf("Rejected %s: %v", path, err)
		w.markFile(path, ".failed")
		return
	}

	result, err := importer.Apply(context.Background(), w.store, w.tripID, f)
	if err != nil {
		w.logger.Printf("Failed to apply %s: %v", path, err)
		w.markFile(path, ".failed")
		return
	}

	w.logger.Printf("Imported %s: %d documents", path, result.Total())
	w.markFile(path, ".imported")

	if w.OnImport != nil {
		w.OnImport(path, result)
	}
}

// markFile renames a processed file so it cannot match *.json again.
func (w *Watcher) markFile(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		w.logger.Printf("Failed to rename %s: %v", path, err)
	}
}
