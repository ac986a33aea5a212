package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripdeck/tripdeck/internal/countdown"
	"github.com/tripdeck/tripdeck/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "plan",
	Short:   "One-shot trip summary",
	Long: `Print a snapshot of the whole trip: countdown, checklist progress,
budget totals, and the active route.`,
	Run: func(cmd *cobra.Command, args []string) {
		sess, err := openSession()
		if err != nil {
			fail("failed to open session: %v", err)
		}
		defer sess.Close()

		set, err := startSyncers(context.Background(), sess, nil)
		if err != nil {
			fail("%v", err)
		}
		defer set.stop()

		trip, _ := set.details.Snapshot()
		fmt.Println(ui.Header(trip.Name))

		if start, err := countdown.ParseStart(trip.StartDate); err != nil {
			fmt.Println(ui.Warn("Start date unreadable: " + trip.StartDate))
		} else if left, started := countdown.Until(start, time.Now()); started {
			fmt.Println(ui.Pass("The trip has started!"))
		} else {
			fmt.Printf("Starts in %s\n",
				ui.Accent(fmt.Sprintf("%dd %02dh %02dm %02ds", left.Days, left.Hours, left.Minutes, left.Seconds)))
		}

		items := set.checklist.Items()
		completed := 0
		for _, item := range items {
			if item.Completed {
				completed++
			}
		}
		fmt.Printf("\nChecklist: %d/%d done  %s\n", completed, len(items),
			ui.ProgressBar(int(math.Round(set.checklist.Progress())), 20))

		total := set.budget.TotalSpent()
		fmt.Printf("Budget:    $%.2f spent of $%.2f · $%.2f per person (%d travelers)\n",
			total, trip.TotalBudget, set.budget.SpentPerPerson(trip.Participants), trip.Participants)

		if active, ok := set.routes.ActiveRoute(); ok {
			fmt.Printf("Route:     %s (%d stops, %d routes total)\n",
				ui.Accent(active.Name), len(set.routes.Locations()), len(set.routes.RoutesList()))
		} else {
			fmt.Println("Route:     " + ui.Dim("none selected"))
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
