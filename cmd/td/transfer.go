package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tripdeck/tripdeck/internal/importer"
	"github.com/tripdeck/tripdeck/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Append trip data from a JSON file",
	Long: `Import checklist items, expenses, and routes from a JSON file.

Importing appends: existing data is never replaced or deleted. The file
is validated first and applied in a single atomic write, so live views
see either none of it or all of it.

File format:
  {
    "checklist": [{"text": "Book flights", "completed": false}],
    "budget": [{"description": "Deposit", "amount": 500, "category": "lodging"}],
    "routes": [{"name": "Coast", "locations": [
      {"name": "Pier", "lat": 36.6, "lng": -121.9, "type": "attraction"}
    ]}]
  }`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		f, err := importer.FromFile(args[0])
		if err != nil {
			fail("%v", err)
		}
		if f.Empty() {
			fmt.Println("Nothing to import.")
			return
		}

		summary := fmt.Sprintf("%d tasks, %d expenses, %d routes",
			len(f.Checklist), len(f.Budget), len(f.Routes))
		if !yes && !ui.Confirm(
			fmt.Sprintf("Append %s to the trip?", summary),
			"Existing data is kept; the file's entries are added alongside it.") {
			fmt.Println("Cancelled.")
			return
		}

		sess, err := openSession()
		if err != nil {
			fail("failed to open session: %v", err)
		}
		defer sess.Close()

		result, err := importer.Apply(context.Background(), sess.Store, sess.TripID, f)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("%s Imported %d documents (%d tasks, %d expenses, %d routes, %d stops)\n",
			ui.Pass("✓"), result.Total(),
			result.ChecklistAdded, result.ExpensesAdded, result.RoutesAdded, result.LocationsAdded)
	},
}

var exportCmd = &cobra.Command{
	Use:     "export <file>",
	GroupID: "data",
	Short:   "Write the trip's data to a JSON file",
	Long: `Export the checklist, budget, and all routes with their stops to a
JSON file that td import can read back.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sess, err := openSession()
		if err != nil {
			fail("failed to open session: %v", err)
		}
		defer sess.Close()

		f, err := importer.Export(context.Background(), sess.Store, sess.TripID)
		if err != nil {
			fail("%v", err)
		}
		if err := importer.WriteFile(f, args[0]); err != nil {
			fail("%v", err)
		}
		fmt.Printf("%s Exported %d tasks, %d expenses, %d routes to %s\n",
			ui.Pass("✓"), len(f.Checklist), len(f.Budget), len(f.Routes), args[0])
	},
}

func init() {
	importCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(importCmd, exportCmd)
}
