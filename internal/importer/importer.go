// Package importer reads and writes trip data as portable JSON files.
//
// An import file may carry any subset of checklist items, expenses, and
// routes with embedded locations. Importing appends to the existing
// collections; nothing is replaced or deleted. The whole file is
// validated before anything is written, and the write is a single
// atomic batch: live subscribers observe either none of the import or
// all of it.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tripdeck/tripdeck/internal/store"
	"github.com/tripdeck/tripdeck/internal/trip"
)

// RouteFile is a route with its locations inlined, as it appears in an
// import or export file.
type RouteFile struct {
	Name      string          `json:"name"`
	Locations []trip.Location `json:"locations,omitempty"`
}

// File is the on-disk interchange format. Every section is optional.
type File struct {
	Checklist []trip.ChecklistItem `json:"checklist,omitempty"`
	Budget    []trip.Expense       `json:"budget,omitempty"`
	Routes    []RouteFile          `json:"routes,omitempty"`
}

// Empty reports whether the file carries no entities at all.
func (f *File) Empty() bool {
	return len(f.Checklist) == 0 && len(f.Budget) == 0 && len(f.Routes) == 0
}

// Result contains statistics about an applied import.
type Result struct {
	ChecklistAdded int
	ExpensesAdded  int
	RoutesAdded    int
	LocationsAdded int
}

// Total returns the number of documents written.
func (r Result) Total() int {
	return r.ChecklistAdded + r.ExpensesAdded + r.RoutesAdded + r.LocationsAdded
}

// FromFile reads and validates an import file. A validation failure
// names the offending entity; nothing is written here.
func FromFile(path string) (*File, error) {
	// #nosec G304 - controlled path from CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid import file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every entity in the file. Expense categories default
// to "other" and location types to "general" rather than failing.
func (f *File) Validate() error {
	for i := range f.Checklist {
		if err := f.Checklist[i].Validate(); err != nil {
			return fmt.Errorf("checklist item %d: %w", i+1, err)
		}
	}
	for i := range f.Budget {
		if f.Budget[i].Category == "" {
			f.Budget[i].Category = trip.CategoryOther
		}
		if err := f.Budget[i].Validate(); err != nil {
			return fmt.Errorf("expense %d: %w", i+1, err)
		}
	}
	for i := range f.Routes {
		r := trip.Route{Name: f.Routes[i].Name}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("route %d: %w", i+1, err)
		}
		for j := range f.Routes[i].Locations {
			loc := &f.Routes[i].Locations[j]
			if loc.Type == "" {
				loc.Type = trip.LocationGeneral
			}
			if loc.Order == 0 {
				loc.Order = j + 1
			}
			if err := loc.Validate(); err != nil {
				return fmt.Errorf("route %d location %d: %w", i+1, j+1, err)
			}
		}
	}
	return nil
}

// Apply appends the file's entities to the trip in one atomic batch.
func Apply(ctx context.Context, st *store.Store, tripID string, f *File) (Result, error) {
	var result Result
	if f.Empty() {
		return result, nil
	}

	batch := st.Batch()
	for _, item := range f.Checklist {
		batch.Add(trip.ChecklistCollection(tripID), item)
		result.ChecklistAdded++
	}
	for _, expense := range f.Budget {
		batch.Add(trip.BudgetCollection(tripID), expense)
		result.ExpensesAdded++
	}
	for _, rf := range f.Routes {
		routeID := batch.Add(trip.RoutesCollection(tripID), trip.Route{Name: rf.Name})
		result.RoutesAdded++
		for _, loc := range rf.Locations {
			batch.Add(trip.LocationsCollection(tripID, routeID), loc)
			result.LocationsAdded++
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to apply import: %w", err)
	}
	return result, nil
}

// Export collects the trip's checklist, budget, and routes into the
// interchange format.
func Export(ctx context.Context, st *store.Store, tripID string) (*File, error) {
	var f File

	checklistDocs, err := st.List(ctx, trip.ChecklistCollection(tripID))
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist: %w", err)
	}
	for _, doc := range checklistDocs {
		var item trip.ChecklistItem
		if err := doc.Decode(&item); err != nil {
			return nil, fmt.Errorf("checklist item %s: %w", doc.ID, err)
		}
		f.Checklist = append(f.Checklist, item)
	}

	budgetDocs, err := st.List(ctx, trip.BudgetCollection(tripID))
	if err != nil {
		return nil, fmt.Errorf("failed to list budget: %w", err)
	}
	for _, doc := range budgetDocs {
		var expense trip.Expense
		if err := doc.Decode(&expense); err != nil {
			return nil, fmt.Errorf("expense %s: %w", doc.ID, err)
		}
		f.Budget = append(f.Budget, expense)
	}

	routeDocs, err := st.List(ctx, trip.RoutesCollection(tripID))
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	for _, doc := range routeDocs {
		var route trip.Route
		if err := doc.Decode(&route); err != nil {
			return nil, fmt.Errorf("route %s: %w", doc.ID, err)
		}
		rf := RouteFile{Name: route.Name}

		locDocs, err := st.List(ctx, trip.LocationsCollection(tripID, doc.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to list locations of %s: %w", doc.ID, err)
		}
		for _, locDoc := range locDocs {
			var loc trip.Location
			if err := locDoc.Decode(&loc); err != nil {
				return nil, fmt.Errorf("location %s: %w", locDoc.ID, err)
			}
			rf.Locations = append(rf.Locations, loc)
		}
		f.Routes = append(f.Routes, rf)
	}

	return &f, nil
}

// WriteFile marshals the file with indentation and writes it to path.
func WriteFile(f *File, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
