package syncer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tripdeck/tripdeck/internal/session"
	"github.com/tripdeck/tripdeck/internal/store"
	"github.com/tripdeck/tripdeck/internal/trip"
)

// Details mirrors the singleton trip document.
//
// Local state is always either "not yet loaded" or an exact copy of the
// last-seen remote snapshot: each notification replaces it wholesale,
// and when the document is absent the hard-coded defaults are written
// and adopted. Updates are partial merges with no optimistic local
// apply; the view changes only when the subscription fires again.
type Details struct {
	sess     *session.Session
	logger   *log.Logger
	toast    Toaster
	onChange func()

	mu     sync.Mutex
	trip   trip.Trip
	loaded bool

	sub  *store.DocSubscription
	done chan struct{}
	wg   sync.WaitGroup
}

// NewDetails creates the trip-details synchronizer.
func NewDetails(sess *session.Session, cfg *Config) *Details {
	if cfg == nil {
		cfg = &Config{}
	}
	logger, toaster, onChange := cfg.normalize("[details] ")
	return &Details{
		sess:     sess,
		logger:   logger,
		toast:    toaster,
		onChange: onChange,
		done:     make(chan struct{}),
	}
}

// Start opens the single-document subscription and begins mirroring.
func (d *Details) Start(ctx context.Context) error {
	if !ready(d.sess) {
		return ErrNotReady
	}

	sub, err := d.sess.Store.SubscribeDoc(ctx, trip.TripPath(d.sess.TripID))
	if err != nil {
		return fmt.Errorf("failed to subscribe to trip document: %w", err)
	}
	d.sub = sub

	d.wg.Add(1)
	go d.consume(ctx)
	return nil
}

// Stop tears down the subscription and waits for the consumer to exit.
func (d *Details) Stop() {
	close(d.done)
	if d.sub != nil {
		d.sub.Cancel()
	}
	d.wg.Wait()
}

// consume applies document snapshots until the subscription ends.
func (d *Details) consume(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case snap, ok := <-d.sub.Snapshots():
			if !ok {
				return
			}
			d.apply(ctx, snap)
		}
	}
}

// apply mirrors one snapshot, seeding defaults when the document is
// absent.
func (d *Details) apply(ctx context.Context, snap store.DocSnapshot) {
	if !snap.Exists {
		defaults := trip.DefaultTrip()
		if err := d.sess.Store.Set(ctx, trip.TripPath(d.sess.TripID), defaults); err != nil {
			d.logger.Printf("Failed to write default trip document: %v", err)
			return
		}
		// Adopt the defaults immediately; the write above also fires a
		// second, identical notification.
		d.setTrip(defaults)
		return
	}

	var t trip.Trip
	if err := snap.Doc.Decode(&t); err != nil {
		d.logger.Printf("WARNING: malformed trip document: %v", err)
		return
	}
	d.setTrip(t)
}

func (d *Details) setTrip(t trip.Trip) {
	d.mu.Lock()
	d.trip = t
	d.loaded = true
	d.mu.Unlock()
	d.onChange()
}

// Snapshot returns the current trip details and whether they have been
// loaded yet.
func (d *Details) Snapshot() (trip.Trip, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trip, d.loaded
}

// Update sends a partial merge to the trip document. A bare startDate
// (YYYY-MM-DD) gets a midnight time component appended so the stored
// value is always a full timestamp.
func (d *Details) Update(ctx context.Context, fields map[string]any) error {
	if !ready(d.sess) {
		return ErrNotReady
	}
	if len(fields) == 0 {
		return nil
	}

	if start, ok := fields["startDate"].(string); ok {
		if len(start) == len("2006-01-02") && !strings.Contains(start, "T") {
			fields["startDate"] = start + "T00:00:00"
		}
	}

	if err := d.sess.Store.Update(ctx, trip.TripPath(d.sess.TripID), fields); err != nil {
		return fmt.Errorf("failed to update trip details: %w", err)
	}

	d.toast.Toast("Trip details updated!")
	return nil
}
