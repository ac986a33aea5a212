package syncer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tripdeck/tripdeck/internal/session"
	"github.com/tripdeck/tripdeck/internal/store"
	"github.com/tripdeck/tripdeck/internal/trip"
)

// Routes is the two-level, selection-driven subscription manager for
// routes and the locations nested under the active route.
//
// The routes collection has one long-lived subscription. The active
// selection determines which locations subscription is live: changing
// the selection cancels the previous locations subscription before the
// new one is adopted, and a generation counter discards any
// late-arriving snapshot from a stale subscription so a location
// belonging to the old route can never overwrite fresher state.
//
// On first subscription, an empty routes collection is seeded with the
// canonical starter dataset in a single atomic batch.
type Routes struct {
	sess     *session.Session
	logger   *log.Logger
	toast    Toaster
	onChange func()

	mu        sync.Mutex
	loaded    bool
	routes    []trip.Route
	activeID  string
	locations []trip.Location
	locSub    *store.Subscription
	locGen    uint64

	routeSub *store.Subscription
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewRoutes creates the route/location synchronizer.
func NewRoutes(sess *session.Session, cfg *Config) *Routes {
	if cfg == nil {
		cfg = &Config{}
	}
	logger, toaster, onChange := cfg.normalize("[routes] ")
	return &Routes{
		sess:     sess,
		logger:   logger,
		toast:    toaster,
		onChange: onChange,
		done:     make(chan struct{}),
	}
}

// Start seeds the routes collection if it is empty, then opens the
// routes subscription.
func (r *Routes) Start(ctx context.Context) error {
	if !ready(r.sess) {
		return ErrNotReady
	}

	seeded, err := seedIfEmpty(ctx, r.sess.Store, r.sess.TripID)
	if err != nil {
		return err
	}
	if seeded {
		r.logger.Printf("Seeded starter routes")
		r.toast.Toast("Creating starter routes...")
	}

	sub, err := r.sess.Store.Subscribe(ctx, trip.RoutesCollection(r.sess.TripID))
	if err != nil {
		return fmt.Errorf("failed to subscribe to routes: %w", err)
	}
	r.routeSub = sub

	r.wg.Add(1)
	go r.consumeRoutes(ctx)
	return nil
}

// Stop tears down both subscription levels and waits for consumers.
func (r *Routes) Stop() {
	close(r.done)
	if r.routeSub != nil {
		r.routeSub.Cancel()
	}
	r.mu.Lock()
	if r.locSub != nil {
		r.locSub.Cancel()
		r.locSub = nil
	}
	r.locGen++
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Routes) consumeRoutes(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-r.done:
			return
		case docs, ok := <-r.routeSub.Snapshots():
			if !ok {
				return
			}
			r.applyRoutes(ctx, docs)
		}
	}
}

// applyRoutes replaces the route list wholesale and enforces the
// selection policy: an active route that vanished clears the selection;
// with nothing selected the first route in snapshot order is adopted;
// an empty list clears the selection. An explicit user selection of an
// existing route is never overridden.
func (r *Routes) applyRoutes(ctx context.Context, docs []store.Document) {
	routes := decodeAll[trip.Route](docs, r.logger,
		func(rt *trip.Route, id string) { rt.ID = id })

	r.mu.Lock()
	r.loaded = true
	r.routes = routes

	if r.activeID != "" && !containsRoute(routes, r.activeID) {
		r.switchLocked(ctx, "")
	}
	if r.activeID == "" && len(routes) > 0 {
		r.switchLocked(ctx, routes[0].ID)
	} else if len(routes) == 0 {
		r.switchLocked(ctx, "")
	}
	r.mu.Unlock()

	r.onChange()
}

func containsRoute(routes []trip.Route, id string) bool {
	for _, rt := range routes {
		if rt.ID == id {
			return true
		}
	}
	return false
}

// switchLocked changes the active route and swaps the locations
// subscription. The old subscription is cancelled and the generation
// bumped before the new one opens, so any snapshot still in flight from
// the old route is rejected on arrival. Callers must hold r.mu.
func (r *Routes) switchLocked(ctx context.Context, routeID string) {
	if r.activeID == routeID {
		return
	}

	if r.locSub != nil {
		r.locSub.Cancel()
		r.locSub = nil
	}
	r.locGen++
	r.activeID = routeID
	r.locations = nil

	if routeID == "" {
		return
	}

	gen := r.locGen
	sub, err := r.sess.Store.Subscribe(ctx, trip.LocationsCollection(r.sess.TripID, routeID))
	if err != nil {
		r.logger.Printf("Failed to subscribe to locations of %s: %v", routeID, err)
		return
	}
	r.locSub = sub

	r.wg.Add(1)
	go r.consumeLocations(sub, gen)
}

// consumeLocations mirrors location snapshots for one subscription
// generation. Snapshots from a superseded generation are dropped.
func (r *Routes) consumeLocations(sub *store.Subscription, gen uint64) {
	defer r.wg.Done()

	for {
		select {
		case <-r.done:
			return
		case docs, ok := <-sub.Snapshots():
			if !ok {
				return
			}

			locations := decodeAll[trip.Location](docs, r.logger,
				func(l *trip.Location, id string) { l.ID = id })
			sortLocations(locations)

			r.mu.Lock()
			if gen != r.locGen {
				// Stale subscription; a newer selection owns the view.
				r.mu.Unlock()
				return
			}
			r.locations = locations
			r.mu.Unlock()

			r.onChange()
		}
	}
}

// sortLocations orders by ascending order value (missing order decodes
// as 0), keeping snapshot order for ties.
func sortLocations(locations []trip.Location) {
	sort.SliceStable(locations, func(i, j int) bool {
		return locations[i].Order < locations[j].Order
	})
}

// Loaded reports whether the first routes snapshot has been applied.
// True even when that snapshot was empty.
func (r *Routes) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// RoutesList returns the current route mirror in snapshot order.
func (r *Routes) RoutesList() []trip.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]trip.Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// ActiveRouteID returns the active selection, empty when none.
func (r *Routes) ActiveRouteID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// ActiveRoute returns the active route, if any.
func (r *Routes) ActiveRoute() (trip.Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.routes {
		if rt.ID == r.activeID {
			return rt, true
		}
	}
	return trip.Route{}, false
}

// Locations returns the active route's locations, sorted by order.
func (r *Routes) Locations() []trip.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]trip.Location, len(r.locations))
	copy(out, r.locations)
	return out
}

// Select makes routeID the active route. This is the explicit user
// selection; the snapshot policy will not override it while the route
// exists.
func (r *Routes) Select(ctx context.Context, routeID string) error {
	if !ready(r.sess) {
		return ErrNotReady
	}

	r.mu.Lock()
	if !containsRoute(r.routes, routeID) {
		r.mu.Unlock()
		return fmt.Errorf("no route with id %s", routeID)
	}
	r.switchLocked(ctx, routeID)
	r.mu.Unlock()

	r.onChange()
	return nil
}

// AddRoute creates a route and immediately selects it, pre-empting the
// first-in-list default.
func (r *Routes) AddRoute(ctx context.Context, name string) (string, error) {
	if !ready(r.sess) {
		return "", ErrNotReady
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: route name is required", ErrValidation)
	}

	id, err := r.sess.Store.Add(ctx, trip.RoutesCollection(r.sess.TripID), trip.Route{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to add route: %w", err)
	}

	r.mu.Lock()
	// The snapshot carrying the new route may not have landed yet; make
	// it visible locally so the selection is valid either way.
	if !containsRoute(r.routes, id) {
		r.routes = append(r.routes, trip.Route{ID: id, Name: name})
	}
	r.switchLocked(ctx, id)
	r.mu.Unlock()

	r.onChange()
	r.toast.Toast(fmt.Sprintf("Route %q created!", name))
	return id, nil
}

// RemoveRoute deletes a route. Confirmation is the caller's job (the
// CLI shows a blocking yes/no prompt first). Deleting the active route
// lets the next snapshot clear and re-assign the selection.
func (r *Routes) RemoveRoute(ctx context.Context, routeID string) error {
	if !ready(r.sess) {
		return ErrNotReady
	}

	path := store.JoinPath(trip.RoutesCollection(r.sess.TripID), routeID)
	if err := r.sess.Store.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}

	r.toast.Toast("Route deleted.")
	return nil
}

// AddLocation adds a stop to the active route. Requires an active
// route and non-empty name/lat/lng; coordinates are coerced from text
// and order is assigned as the current local count + 1.
func (r *Routes) AddLocation(ctx context.Context, name, latText, lngText, locType, note, address string) error {
	if !ready(r.sess) {
		return ErrNotReady
	}

	r.mu.Lock()
	activeID := r.activeID
	order := len(r.locations) + 1
	r.mu.Unlock()

	if activeID == "" {
		r.toast.Toast("Select a route before adding locations.")
		return fmt.Errorf("%w: no active route", ErrValidation)
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(latText) == "" || strings.TrimSpace(lngText) == "" {
		r.toast.Toast("A location needs a name and coordinates.")
		return fmt.Errorf("%w: name, lat, and lng are required", ErrValidation)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		r.toast.Toast("Latitude must be a number.")
		return fmt.Errorf("%w: invalid latitude %q", ErrValidation, latText)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngText), 64)
	if err != nil {
		r.toast.Toast("Longitude must be a number.")
		return fmt.Errorf("%w: invalid longitude %q", ErrValidation, lngText)
	}

	if locType == "" {
		locType = trip.LocationGeneral
	}
	loc := trip.Location{
		Name:    name,
		Lat:     lat,
		Lng:     lng,
		Type:    locType,
		Note:    note,
		Address: address,
		Order:   order,
	}
	if err := loc.Validate(); err != nil {
		r.toast.Toast("Invalid location: " + err.Error())
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	col := trip.LocationsCollection(r.sess.TripID, activeID)
	if _, err := r.sess.Store.Add(ctx, col, loc); err != nil {
		return fmt.Errorf("failed to add location: %w", err)
	}

	r.toast.Toast("New location added to the route!")
	return nil
}

// RemoveLocation deletes a location from the active route.
func (r *Routes) RemoveLocation(ctx context.Context, locationID string) error {
	if !ready(r.sess) {
		return ErrNotReady
	}

	r.mu.Lock()
	activeID := r.activeID
	r.mu.Unlock()
	if activeID == "" {
		return fmt.Errorf("%w: no active route", ErrValidation)
	}

	path := store.JoinPath(trip.LocationsCollection(r.sess.TripID, activeID), locationID)
	if err := r.sess.Store.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}

	r.toast.Toast("Location deleted.")
	return nil
}
