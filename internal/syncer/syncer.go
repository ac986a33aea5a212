// Package syncer contains the entity synchronizers: each one owns a
// single collection's live subscription, mirrors remote snapshots into
// local view state, and issues mutations back to the store.
//
// Synchronizers are event-driven. Each Start() opens a subscription and
// consumes snapshots in one goroutine; local state is guarded by a
// mutex so CLI/TUI readers can cross goroutines. Every successful
// mutation posts a transient toast, and every state change invokes the
// configured change listener so the rendering layer can re-render.
//
// All mutations are no-ops returning ErrNotReady until the session has
// bootstrapped.
package syncer

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/tripdeck/tripdeck/internal/session"
	"github.com/tripdeck/tripdeck/internal/store"
)

// ToastDuration is how long the rendering layer should display a
// transient notice before auto-dismissing it.
const ToastDuration = 3 * time.Second

// ErrNotReady is returned by mutations issued before the session
// bootstrap has completed.
var ErrNotReady = errors.New("session not ready")

// ErrValidation wraps user-facing validation failures; no write is
// attempted when a mutation fails validation.
var ErrValidation = errors.New("validation failed")

// Toaster receives transient user-facing notices.
type Toaster interface {
	Toast(message string)
}

// ToasterFunc adapts a function to the Toaster interface.
type ToasterFunc func(string)

// Toast implements Toaster.
func (f ToasterFunc) Toast(message string) { f(message) }

// discard is the nil-safe default Toaster.
type discard struct{}

func (discard) Toast(string) {}

// Config holds the shared synchronizer configuration.
type Config struct {
	// Logger for synchronizer activity. Nil means a stderr default.
	Logger *log.Logger

	// Toaster receives mutation notices. Nil discards them.
	Toaster Toaster

	// OnChange fires after every local view-state change, outside the
	// synchronizer's lock. Nil is allowed.
	OnChange func()
}

// normalize fills in nil-safe defaults; the rest of the package
// assumes logger/toaster/onChange are non-nil.
func (c *Config) normalize(prefix string) (logger *log.Logger, toaster Toaster, onChange func()) {
	logger = c.Logger
	if logger == nil {
		logger = log.New(os.Stderr, prefix, log.LstdFlags)
	}
	toaster = c.Toaster
	if toaster == nil {
		toaster = discard{}
	}
	onChange = c.OnChange
	if onChange == nil {
		onChange = func() {}
	}
	return logger, toaster, onChange
}

// ready reports whether the session can serve store operations.
func ready(sess *session.Session) bool {
	return sess != nil && sess.State() == session.StateReady && sess.Store != nil
}

// decodeAll decodes a collection snapshot into typed entities, stamping
// each entity's ID from its document. Malformed documents are logged
// and skipped; a single bad write must not blank the whole view.
func decodeAll[T any](docs []store.Document, logger *log.Logger, setID func(*T, string)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			logger.Printf("WARNING: skipping malformed document %s: %v", doc.ID, err)
			continue
		}
		setID(&v, doc.ID)
		out = append(out, v)
	}
	return out
}
