package syncer

import (
	"context"
	"fmt"

	"github.com/tripdeck/tripdeck/internal/store"
	"github.com/tripdeck/tripdeck/internal/trip"
)

// seedRoute is one canonical starter route with its ordered locations.
type seedRoute struct {
	route     trip.Route
	locations []trip.Location
}

// seedRoutes returns the fixed example dataset written once when the
// routes collection is first observed empty.
func seedRoutes() []seedRoute {
	return []seedRoute{
		{
			route: trip.Route{Name: "Maine to Baltimore"},
			locations: []trip.Location{
				{Name: "The Press Hotel", Lat: 43.6579, Lng: -70.2593, Order: 1, Type: trip.LocationHotel,
					Note: "First night, Autograph Collection", Address: "119 Exchange St, Portland, ME"},
				{Name: "Boston Harbor Hotel", Lat: 42.3571, Lng: -71.0504, Order: 2, Type: trip.LocationHotel,
					Note: "Hotel on the waterfront", Address: "70 Rowes Wharf, Boston, MA"},
				{Name: "Museum of Science, Boston", Lat: 42.3678, Lng: -71.0709, Order: 3, Type: trip.LocationAttraction,
					Note: "Great for families", Address: "1 Science Park, Boston, MA"},
				{Name: "Four Seasons Hotel Baltimore", Lat: 39.2789, Lng: -76.598, Order: 4, Type: trip.LocationHotel,
					Note: "Luxury stay to finish", Address: "200 International Drive, Baltimore, MD"},
			},
		},
		{
			route: trip.Route{Name: "New York in 4 Days"},
			locations: []trip.Location{
				{Name: "Moxy Times Square", Lat: 40.7513, Lng: -73.9882, Order: 1, Type: trip.LocationHotel,
					Note: "Modern hotel, central location", Address: "485 7th Ave, New York, NY"},
				{Name: "Times Square", Lat: 40.7580, Lng: -73.9855, Order: 2, Type: trip.LocationAttraction,
					Note: "Lights and billboards", Address: "Manhattan, NY 10036"},
				{Name: "Statue of Liberty", Lat: 40.6892, Lng: -74.0445, Order: 3, Type: trip.LocationAttraction,
					Note: "Take the ferry from Battery Park", Address: "New York, NY 10004"},
				{Name: "Brooklyn Bridge", Lat: 40.7061, Lng: -73.9969, Order: 4, Type: trip.LocationAttraction,
					Note: "Walk at sunset, amazing views", Address: "Brooklyn Bridge, New York, NY"},
			},
		},
	}
}

// seedIfEmpty writes the canonical starter routes as one atomic batch
// when the routes collection is empty. Subscribers can never observe a
// partial seed; a non-empty collection is never re-seeded.
func seedIfEmpty(ctx context.Context, st *store.Store, tripID string) (bool, error) {
	existing, err := st.List(ctx, trip.RoutesCollection(tripID))
	if err != nil {
		return false, fmt.Errorf("failed to check routes collection: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	batch := st.Batch()
	for _, seed := range seedRoutes() {
		routeID := batch.Add(trip.RoutesCollection(tripID), seed.route)
		for _, loc := range seed.locations {
			batch.Add(trip.LocationsCollection(tripID, routeID), loc)
		}
	}
	if err := batch.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to seed starter routes: %w", err)
	}
	return true, nil
}
