// Package trip defines the trip-planning entities and their store paths.
//
// Every entity is a document in a hierarchical collection rooted at a
// trip: the trip document itself, plus checklist, budget, routes, and
// per-route locations child collections. Fields use flat JSON with
// last-write-wins semantics at the store.
package trip

import (
	"fmt"
	"strings"

	"github.com/tripdeck/tripdeck/internal/store"
)

// Expense categories. Fixed small set; unknown categories fall back to
// CategoryOther at render time but are stored verbatim.
const (
	CategoryFlights     = "flights"
	CategoryLodging     = "lodging"
	CategoryFood        = "food"
	CategoryTransport   = "transport"
	CategoryAttractions = "attractions"
	CategoryOther       = "other"
)

// Categories lists all expense categories in display order.
var Categories = []string{
	CategoryFlights,
	CategoryLodging,
	CategoryFood,
	CategoryTransport,
	CategoryAttractions,
	CategoryOther,
}

// Location types.
const (
	LocationGeneral    = "general"
	LocationHotel      = "hotel"
	LocationAttraction = "attraction"
)

// LocationTypes lists all location types in display order.
var LocationTypes = []string{LocationGeneral, LocationHotel, LocationAttraction}

// Trip is the singleton per-trip document: trips/{tripID}.
// Created lazily with defaults when first observed absent.
type Trip struct {
	Name         string  `json:"name"`
	StartDate    string  `json:"startDate"` // full timestamp, bare dates get T00:00:00 appended
	TotalBudget  float64 `json:"totalBudget"`
	Participants int     `json:"participants"`
}

// Validate checks the Trip field invariants.
func (t *Trip) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.TotalBudget < 0 {
		return fmt.Errorf("totalBudget must be >= 0 (got %v)", t.TotalBudget)
	}
	if t.Participants < 0 {
		return fmt.Errorf("participants must be >= 0 (got %d)", t.Participants)
	}
	return nil
}

// DefaultTrip returns the hard-coded trip document written when the
// trip is first accessed and no document exists yet.
func DefaultTrip() Trip {
	return Trip{
		Name:         "The Big America Trip",
		StartDate:    "2025-07-20T00:00:00",
		TotalBudget:  15000,
		Participants: 3,
	}
}

// ChecklistItem is one task: trips/{tripID}/checklist/{id}.
type ChecklistItem struct {
	ID        string `json:"-"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Validate checks the ChecklistItem field invariants.
func (c *ChecklistItem) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// Expense is one budget entry: trips/{tripID}/budget/{id}.
type Expense struct {
	ID          string  `json:"-"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// Validate checks the Expense field invariants.
func (e *Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if e.Category == "" {
		return fmt.Errorf("category is required")
	}
	return nil
}

// Route is a named route: trips/{tripID}/routes/{id}. Its locations
// live in a nested collection under the route document.
type Route struct {
	ID   string `json:"-"`
	Name string `json:"name"`
}

// Validate checks the Route field invariants.
func (r *Route) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Location is one stop on a route:
// trips/{tripID}/routes/{routeID}/locations/{id}.
// Order defines both list and path sequence; missing order sorts as 0.
type Location struct {
	ID      string  `json:"-"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Type    string  `json:"type"`
	Note    string  `json:"note,omitempty"`
	Address string  `json:"address,omitempty"`
	Order   int     `json:"order"`
}

// Validate checks the Location field invariants.
func (l *Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("lat must be between -90 and 90 (got %v)", l.Lat)
	}
	if l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("lng must be between -180 and 180 (got %v)", l.Lng)
	}
	return nil
}

// TripPath returns the trip document path.
func TripPath(tripID string) string {
	return store.JoinPath("trips", tripID)
}

// ChecklistCollection returns the checklist collection path.
func ChecklistCollection(tripID string) string {
	return store.JoinPath("trips", tripID, "checklist")
}

// BudgetCollection returns the budget collection path.
func BudgetCollection(tripID string) string {
	return store.JoinPath("trips", tripID, "budget")
}

// RoutesCollection returns the routes collection path.
func RoutesCollection(tripID string) string {
	return store.JoinPath("trips", tripID, "routes")
}

// LocationsCollection returns the locations collection path for a route.
func LocationsCollection(tripID, routeID string) string {
	return store.JoinPath("trips", tripID, "routes", routeID, "locations")
}
