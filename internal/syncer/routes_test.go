package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tripdeck/tripdeck/internal/session"
	"github.com/tripdeck/tripdeck/internal/trip"
)

func startRoutes(t *testing.T, sess *session.Session, cfg *Config) (*Routes, context.Context) {
	t.Helper()
	ctx := context.Background()

	r := NewRoutes(sess, cfg)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(r.Stop)
	return r, ctx
}

// routeByName finds a mirrored route by name. Snapshot order between
// the two seeded routes is not significant.
func routeByName(t *testing.T, r *Routes, name string) trip.Route {
	t.Helper()
	for _, rt := range r.RoutesList() {
		if rt.Name == name {
			return rt
		}
	}
	t.Fatalf("no route named %q in %v", name, r.RoutesList())
	return trip.Route{}
}

// TestRoutes_SeedsStarterRoutes verifies an empty collection is seeded
// with the two example routes, one is auto-selected, and its four
// locations arrive sorted.
func TestRoutes_SeedsStarterRoutes(t *testing.T) {
	toaster := &recordingToaster{}
	r, _ := startRoutes(t, testSession(t), &Config{Toaster: toaster})

	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })
	routeByName(t, r, "Maine to Baltimore")
	routeByName(t, r, "New York in 4 Days")

	if r.ActiveRouteID() == "" {
		t.Error("no route auto-selected after seeding")
	}
	waitFor(t, "seeded locations", func() bool { return len(r.Locations()) == 4 })
	for i, loc := range r.Locations() {
		if loc.Order != i+1 {
			t.Errorf("Locations()[%d].Order = %d, want %d", i, loc.Order, i+1)
		}
	}

	if toaster.count() == 0 {
		t.Error("seeding should announce itself with a toast")
	}
}

// TestRoutes_SeedOnce verifies a non-empty collection is never
// re-seeded, including after routes have been deleted down to one.
func TestRoutes_SeedOnce(t *testing.T) {
	sess := testSession(t)
	ctx := context.Background()

	first := NewRoutes(sess, nil)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	waitFor(t, "seeded routes", func() bool { return len(first.RoutesList()) == 2 })

	victim := routeByName(t, first, "New York in 4 Days")
	if err := first.RemoveRoute(ctx, victim.ID); err != nil {
		t.Fatalf("RemoveRoute() failed: %v", err)
	}
	waitFor(t, "route to vanish", func() bool { return len(first.RoutesList()) == 1 })
	first.Stop()

	second := NewRoutes(sess, nil)
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}
	defer second.Stop()

	waitFor(t, "remaining route", func() bool { return len(second.RoutesList()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := len(second.RoutesList()); got != 1 {
		t.Errorf("restart re-seeded: %d routes, want 1", got)
	}
}

// TestRoutes_SelectSwitchesLocations verifies selecting another route
// swaps the location mirror to that route's stops.
func TestRoutes_SelectSwitchesLocations(t *testing.T) {
	r, ctx := startRoutes(t, testSession(t), nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	ny := routeByName(t, r, "New York in 4 Days")
	if err := r.Select(ctx, ny.ID); err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if got := r.ActiveRouteID(); got != ny.ID {
		t.Errorf("ActiveRouteID() = %s, want %s", got, ny.ID)
	}
	waitFor(t, "locations of selected route", func() bool {
		locs := r.Locations()
		return len(locs) == 4 && locs[0].Name == "Moxy Times Square"
	})
}

// TestRoutes_Select_Unknown verifies selecting a nonexistent route fails
// and leaves the selection alone.
func TestRoutes_Select_Unknown(t *testing.T) {
	r, ctx := startRoutes(t, testSession(t), nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	before := r.ActiveRouteID()
	if err := r.Select(ctx, "nope"); err == nil {
		t.Error("Select(nope) should fail")
	}
	if got := r.ActiveRouteID(); got != before {
		t.Errorf("failed Select changed selection from %s to %s", before, got)
	}
}

// TestRoutes_StaleSnapshotDiscarded verifies the core switching
// property: after moving the selection off a route, writes to the old
// route's locations never surface in the mirror.
func TestRoutes_StaleSnapshotDiscarded(t *testing.T) {
	sess := testSession(t)
	r, ctx := startRoutes(t, sess, nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	maine := routeByName(t, r, "Maine to Baltimore")
	ny := routeByName(t, r, "New York in 4 Days")

	if err := r.Select(ctx, maine.ID); err != nil {
		t.Fatalf("Select(maine) failed: %v", err)
	}
	waitFor(t, "maine locations", func() bool {
		locs := r.Locations()
		return len(locs) == 4 && locs[0].Name == "The Press Hotel"
	})

	if err := r.Select(ctx, ny.ID); err != nil {
		t.Fatalf("Select(ny) failed: %v", err)
	}

	// Write behind the selection's back: this notification belongs to a
	// cancelled subscription and must not reach the mirror.
	col := trip.LocationsCollection(sess.TripID, maine.ID)
	intruder := trip.Location{Name: "Intruder", Lat: 1, Lng: 1, Type: trip.LocationGeneral, Order: 99}
	if _, err := sess.Store.Add(ctx, col, intruder); err != nil {
		t.Fatalf("direct Add() failed: %v", err)
	}

	waitFor(t, "ny locations", func() bool {
		locs := r.Locations()
		return len(locs) == 4 && locs[0].Name == "Moxy Times Square"
	})
	time.Sleep(50 * time.Millisecond)
	for _, loc := range r.Locations() {
		if loc.Name == "Intruder" || loc.Name == "The Press Hotel" {
			t.Fatalf("mirror shows %q from the deselected route", loc.Name)
		}
	}
}

// TestRoutes_AddRouteSelects verifies a freshly created route becomes
// the active selection immediately.
func TestRoutes_AddRouteSelects(t *testing.T) {
	r, ctx := startRoutes(t, testSession(t), nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	id, err := r.AddRoute(ctx, "Pacific Coast Highway")
	if err != nil {
		t.Fatalf("AddRoute() failed: %v", err)
	}
	if got := r.ActiveRouteID(); got != id {
		t.Errorf("ActiveRouteID() = %s, want the new route %s", got, id)
	}
	waitFor(t, "empty locations for new route", func() bool { return len(r.Locations()) == 0 })
	waitFor(t, "three routes", func() bool { return len(r.RoutesList()) == 3 })
}

// TestRoutes_AddRoute_Validation verifies a blank name is rejected.
func TestRoutes_AddRoute_Validation(t *testing.T) {
	r, ctx := startRoutes(t, testSession(t), nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	if _, err := r.AddRoute(ctx, "  "); !errors.Is(err, ErrValidation) {
		t.Errorf("AddRoute(blank) = %v, want ErrValidation", err)
	}
}

// TestRoutes_RemoveActiveRouteReselects verifies deleting the active
// route moves the selection to a surviving route.
func TestRoutes_RemoveActiveRouteReselects(t *testing.T) {
	r, ctx := startRoutes(t, testSession(t), nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	active := r.ActiveRouteID()
	if err := r.RemoveRoute(ctx, active); err != nil {
		t.Fatalf("RemoveRoute() failed: %v", err)
	}

	waitFor(t, "selection to move", func() bool {
		id := r.ActiveRouteID()
		return id != "" && id != active && len(r.RoutesList()) == 1
	})
}

// TestRoutes_RemoveLastRouteClearsSelection verifies deleting every
// route leaves no selection and no locations.
func TestRoutes_RemoveLastRouteClearsSelection(t *testing.T) {
	r, ctx := startRoutes(t, testSession(t), nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	for _, rt := range r.RoutesList() {
		if err := r.RemoveRoute(ctx, rt.ID); err != nil {
			t.Fatalf("RemoveRoute(%s) failed: %v", rt.ID, err)
		}
	}

	waitFor(t, "empty selection", func() bool {
		return len(r.RoutesList()) == 0 && r.ActiveRouteID() == "" && len(r.Locations()) == 0
	})
}

// TestRoutes_LocationsSortedByOrder verifies locations written out of
// order are mirrored in ascending order.
func TestRoutes_LocationsSortedByOrder(t *testing.T) {
	sess := testSession(t)
	r, ctx := startRoutes(t, sess, nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	id, err := r.AddRoute(ctx, "Scrambled")
	if err != nil {
		t.Fatalf("AddRoute() failed: %v", err)
	}

	col := trip.LocationsCollection(sess.TripID, id)
	for _, order := range []int{3, 1, 2} {
		loc := trip.Location{Name: "Stop", Lat: 10, Lng: 10, Type: trip.LocationGeneral, Order: order}
		if _, err := sess.Store.Add(ctx, col, loc); err != nil {
			t.Fatalf("Add(order=%d) failed: %v", order, err)
		}
	}

	waitFor(t, "sorted locations", func() bool {
		locs := r.Locations()
		return len(locs) == 3 &&
			locs[0].Order == 1 && locs[1].Order == 2 && locs[2].Order == 3
	})
}

// TestRoutes_AddLocationAssignsOrder verifies new locations get
// sequential order values based on the current count.
func TestRoutes_AddLocationAssignsOrder(t *testing.T) {
	r, ctx := startRoutes(t, testSession(t), nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	if _, err := r.AddRoute(ctx, "Fresh"); err != nil {
		t.Fatalf("AddRoute() failed: %v", err)
	}
	waitFor(t, "empty locations", func() bool { return len(r.Locations()) == 0 })

	if err := r.AddLocation(ctx, "First stop", "41.0", "-72.0", trip.LocationHotel, "", ""); err != nil {
		t.Fatalf("AddLocation() failed: %v", err)
	}
	waitFor(t, "first location", func() bool {
		locs := r.Locations()
		return len(locs) == 1 && locs[0].Order == 1
	})

	if err := r.AddLocation(ctx, "Second stop", "42.0", "-73.0", "", "", ""); err != nil {
		t.Fatalf("AddLocation() failed: %v", err)
	}
	waitFor(t, "second location", func() bool {
		locs := r.Locations()
		return len(locs) == 2 && locs[1].Order == 2 && locs[1].Type == trip.LocationGeneral
	})
}

// TestRoutes_AddLocation_Validation verifies bad input is rejected with
// no write: blank fields, non-numeric and out-of-range coordinates.
func TestRoutes_AddLocation_Validation(t *testing.T) {
	r, ctx := startRoutes(t, testSession(t), nil)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })
	waitFor(t, "seeded locations", func() bool { return len(r.Locations()) == 4 })

	cases := []struct {
		name              string
		locName, lat, lng string
	}{
		{"blank name", "", "40", "-70"},
		{"blank lat", "Stop", "", "-70"},
		{"non-numeric lng", "Stop", "40", "east"},
		{"lat out of range", "Stop", "91", "-70"},
	}
	for _, tc := range cases {
		err := r.AddLocation(ctx, tc.locName, tc.lat, tc.lng, "", "", "")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: AddLocation() = %v, want ErrValidation", tc.name, err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if got := len(r.Locations()); got != 4 {
		t.Errorf("validation failure wrote a location: %d locations, want 4", got)
	}
}

// TestRoutes_NotReady verifies mutations refuse a session that has not
// reached the ready state.
func TestRoutes_NotReady(t *testing.T) {
	var sess *session.Session
	r := NewRoutes(sess, nil)

	if err := r.Start(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Start() = %v, want ErrNotReady", err)
	}
	if _, err := r.AddRoute(context.Background(), "x"); !errors.Is(err, ErrNotReady) {
		t.Errorf("AddRoute() = %v, want ErrNotReady", err)
	}
}

// TestRoutes_LoadedFirstSnapshot verifies Loaded flips on the first
// applied snapshot and stays true when every route is removed, so
// readiness checks can tell "empty" from "still syncing".
func TestRoutes_LoadedFirstSnapshot(t *testing.T) {
	r, ctx := startRoutes(t, testSession(t), nil)

	waitFor(t, "first snapshot", r.Loaded)
	waitFor(t, "seeded routes", func() bool { return len(r.RoutesList()) == 2 })

	for _, rt := range r.RoutesList() {
		if err := r.RemoveRoute(ctx, rt.ID); err != nil {
			t.Fatalf("RemoveRoute() failed: %v", err)
		}
	}
	waitFor(t, "emptied routes", func() bool { return len(r.RoutesList()) == 0 })
	if !r.Loaded() {
		t.Error("Loaded() = false after an empty snapshot")
	}
}
