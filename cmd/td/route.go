package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tripdeck/tripdeck/internal/trip"
	"github.com/tripdeck/tripdeck/internal/ui"
)

var routeCmd = &cobra.Command{
	Use:     "route",
	GroupID: "plan",
	Short:   "Manage map routes",
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(nil)
		defer closer()

		active := set.routes.ActiveRouteID()
		for i, rt := range set.routes.RoutesList() {
			marker := "  "
			name := rt.Name
			if rt.ID == active {
				marker = ui.Accent("▸ ")
				name = ui.Accent(name)
			}
			fmt.Printf("%2d. %s%s  %s\n", i+1, marker, name, ui.Dim(rt.ID))
		}
	},
}

var routeAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a route and select it",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(toastConfig())
		defer closer()

		if _, err := set.routes.AddRoute(context.Background(), strings.Join(args, " ")); err != nil {
			fail("%v", err)
		}
	},
}

var routeSelectCmd = &cobra.Command{
	Use:   "select <id|number>",
	Short: "Make a route the active one",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(nil)
		defer closer()

		route, err := resolveRoute(set, args[0])
		if err != nil {
			fail("%v", err)
		}
		if err := set.routes.Select(context.Background(), route.ID); err != nil {
			fail("%v", err)
		}
		fmt.Printf("Active route: %s\n", ui.Accent(route.Name))
	},
}

var routeRemoveCmd = &cobra.Command{
	Use:     "remove <id|number>",
	Aliases: []string{"rm"},
	Short:   "Delete a route and all its stops",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		set, closer := mustSyncers(toastConfig())
		defer closer()

		route, err := resolveRoute(set, args[0])
		if err != nil {
			fail("%v", err)
		}

		if !yes && !ui.Confirm(
			fmt.Sprintf("Delete route %q?", route.Name),
			"All of its stops are deleted with it. This cannot be undone.") {
			fmt.Println("Cancelled.")
			return
		}

		if err := set.routes.RemoveRoute(context.Background(), route.ID); err != nil {
			fail("%v", err)
		}
	},
}

var locationCmd = &cobra.Command{
	Use:     "location",
	Aliases: []string{"loc"},
	GroupID: "plan",
	Short:   "Manage the active route's stops",
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(nil)
		defer closer()

		active, ok := set.routes.ActiveRoute()
		if !ok {
			fail("no active route; select one with: td route select <id|number>")
		}
		fmt.Println(ui.Header(active.Name))

		locations := set.routes.Locations()
		if len(locations) == 0 {
			fmt.Println(ui.Dim("No stops yet. Add one with: td location add \"Times Square\" 40.758 -73.9855"))
			return
		}
		for _, loc := range locations {
			fmt.Printf("%2d. %s %s\n", loc.Order, loc.Name, ui.Dim("("+loc.Type+")"))
			if loc.Address != "" {
				fmt.Printf("      %s\n", ui.Dim(loc.Address))
			}
			if loc.Note != "" {
				fmt.Printf("      %s\n", loc.Note)
			}
			fmt.Printf("      %s\n", ui.Dim(fmt.Sprintf("%.4f, %.4f  %s", loc.Lat, loc.Lng, loc.ID)))
		}
	},
}

var locationAddCmd = &cobra.Command{
	Use:   "add <name> <lat> <lng>",
	Short: "Add a stop to the active route",
	Long: `Add a stop to the active route. The stop goes at the end of the
path.

Types: ` + strings.Join(trip.LocationTypes, ", "),
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		locType, _ := cmd.Flags().GetString("type")
		note, _ := cmd.Flags().GetString("note")
		address, _ := cmd.Flags().GetString("address")
		if locType != "" && !validLocationType(locType) {
			fail("unknown type %q; use one of %s", locType, strings.Join(trip.LocationTypes, ", "))
		}

		set, closer := mustSyncers(toastConfig())
		defer closer()

		if err := set.routes.AddLocation(context.Background(), args[0], args[1], args[2], locType, note, address); err != nil {
			fail("%v", err)
		}
	},
}

var locationRemoveCmd = &cobra.Command{
	Use:     "remove <id|number>",
	Aliases: []string{"rm"},
	Short:   "Delete a stop from the active route",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(toastConfig())
		defer closer()

		location, err := resolveLocation(set, args[0])
		if err != nil {
			fail("%v", err)
		}
		if err := set.routes.RemoveLocation(context.Background(), location.ID); err != nil {
			fail("%v", err)
		}
	},
}

// resolveRoute accepts a document ID or a 1-based list number.
func resolveRoute(set *syncerSet, arg string) (trip.Route, error) {
	routes := set.routes.RoutesList()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(routes) {
			return trip.Route{}, fmt.Errorf("no route number %d (have %d)", n, len(routes))
		}
		return routes[n-1], nil
	}
	for _, rt := range routes {
		if rt.ID == arg {
			return rt, nil
		}
	}
	return trip.Route{}, fmt.Errorf("no route with id %s", arg)
}

// resolveLocation accepts a document ID or a 1-based path number on the
// active route.
func resolveLocation(set *syncerSet, arg string) (trip.Location, error) {
	locations := set.routes.Locations()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(locations) {
			return trip.Location{}, fmt.Errorf("no stop number %d (have %d)", n, len(locations))
		}
		return locations[n-1], nil
	}
	for _, loc := range locations {
		if loc.ID == arg {
			return loc, nil
		}
	}
	return trip.Location{}, fmt.Errorf("no stop with id %s", arg)
}

func validLocationType(locType string) bool {
	for _, t := range trip.LocationTypes {
		if t == locType {
			return true
		}
	}
	return false
}

func init() {
	routeRemoveCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	locationAddCmd.Flags().StringP("type", "t", "", "Stop type (general, hotel, attraction)")
	locationAddCmd.Flags().StringP("note", "n", "", "Free-form note")
	locationAddCmd.Flags().StringP("address", "a", "", "Street address")

	routeCmd.AddCommand(routeAddCmd, routeSelectCmd, routeRemoveCmd)
	locationCmd.AddCommand(locationAddCmd, locationRemoveCmd)
	rootCmd.AddCommand(routeCmd, locationCmd)
}
