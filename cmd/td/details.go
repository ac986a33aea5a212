package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/tripdeck/tripdeck/internal/countdown"
	"github.com/tripdeck/tripdeck/internal/ui"
)

var detailsCmd = &cobra.Command{
	Use:     "details",
	GroupID: "plan",
	Short:   "Show or edit trip details",
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
		fmt.Printf("Start date:   %s\n", trip.StartDate)
		fmt.Printf("Total budget: $%.2f\n", trip.TotalBudget)
		fmt.Printf("Participants: %d\n", trip.Participants)
	},
}

var detailsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update trip details",
	Long: `Update one or more trip detail fields. Only the given flags are
written; everything else keeps its value.

The start date accepts a timestamp, a bare date, or natural language:
  td details set --start 2026-07-20
  td details set --start "next friday"
  td details set --name "Route 66" --budget 12000 --participants 4`,
	Run: func(cmd *cobra.Command, args []string) {
		fields := map[string]any{}

		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				fail("name cannot be empty")
			}
			fields["name"] = name
		}
		if cmd.Flags().Changed("start") {
			startText, _ := cmd.Flags().GetString("start")
			start, err := parseStartInput(startText)
			if err != nil {
				fail("%v", err)
			}
			fields["startDate"] = start
		}
		if cmd.Flags().Changed("budget") {
			budgetText, _ := cmd.Flags().GetString("budget")
			budget, err := strconv.ParseFloat(budgetText, 64)
			if err != nil || budget < 0 {
				fail("budget must be a non-negative number, got %q", budgetText)
			}
			fields["totalBudget"] = budget
		}
		if cmd.Flags().Changed("participants") {
			participants, _ := cmd.Flags().GetInt("participants")
			if participants < 0 {
				fail("participants must be >= 0, got %d", participants)
			}
			fields["participants"] = participants
		}

		if len(fields) == 0 {
			fail("nothing to update; pass at least one of --name, --start, --budget, --participants")
		}

		sess, err := openSession()
		if err != nil {
			fail("failed to open session: %v", err)
		}
		defer sess.Close()

		set, err := startSyncers(context.Background(), sess, toastConfig())
		if err != nil {
			fail("%v", err)
		}
		defer set.stop()

		if err := set.details.Update(context.Background(), fields); err != nil {
			fail("%v", err)
		}
	},
}

// parseStartInput turns user input into a startDate value. Exact
// formats pass through; anything else goes to the natural language
// parser.
func parseStartInput(text string) (string, error) {
	if _, err := countdown.ParseStart(text); err == nil {
		return text, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, time.Now())
	if err != nil || r == nil {
		return "", fmt.Errorf("could not understand start date %q", text)
	}
	return r.Time.Format("2006-01-02T15:04:05"), nil
}

func init() {
	detailsSetCmd.Flags().String("name", "", "Trip name")
	detailsSetCmd.Flags().String("start", "", "Start date (date, timestamp, or natural language)")
	detailsSetCmd.Flags().String("budget", "", "Total budget")
	detailsSetCmd.Flags().Int("participants", 0, "Number of travelers")

	detailsCmd.AddCommand(detailsSetCmd)
	rootCmd.AddCommand(detailsCmd)
}
