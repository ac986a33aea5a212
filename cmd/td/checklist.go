package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tripdeck/tripdeck/internal/trip"
	"github.com/tripdeck/tripdeck/internal/ui"
)

var checklistCmd = &cobra.Command{
	Use:     "checklist",
	Aliases: []string{"check", "cl"},
	GroupID: "plan",
	Short:   "Manage the preparation checklist",
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(nil)
		defer closer()

		items := set.checklist.Items()
		if len(items) == 0 {
			fmt.Println(ui.Dim("No tasks yet. Add one with: td checklist add \"Book flights\""))
			return
		}
		for i, item := range items {
			fmt.Printf("%2d. %s %s  %s\n", i+1, ui.Checkbox(item.Completed), item.Text, ui.Dim(item.ID))
		}
		fmt.Printf("\n%s\n", ui.ProgressBar(int(math.Round(set.checklist.Progress())), 20))
	},
}

var checklistAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(toastConfig())
		defer closer()

		if err := set.checklist.Add(context.Background(), strings.Join(args, " ")); err != nil {
			fail("%v", err)
		}
	},
}

var checklistToggleCmd = &cobra.Command{
	Use:   "toggle <id|number>",
	Short: "Toggle a task's completed state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(nil)
		defer closer()

		item, err := resolveChecklistItem(set, args[0])
		if err != nil {
			fail("%v", err)
		}
		if err := set.checklist.Toggle(context.Background(), item.ID); err != nil {
			fail("%v", err)
		}
		if item.Completed {
			fmt.Printf("Unchecked: %s\n", item.Text)
		} else {
			fmt.Printf("%s %s\n", ui.Pass("Done:"), item.Text)
		}
	},
}

var checklistRemoveCmd = &cobra.Command{
	Use:     "remove <id|number>",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(toastConfig())
		defer closer()

		item, err := resolveChecklistItem(set, args[0])
		if err != nil {
			fail("%v", err)
		}
		if err := set.checklist.Remove(context.Background(), item.ID); err != nil {
			fail("%v", err)
		}
	},
}

// resolveChecklistItem accepts a document ID or a 1-based list number.
func resolveChecklistItem(set *syncerSet, arg string) (trip.ChecklistItem, error) {
	items := set.checklist.Items()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(items) {
			return trip.ChecklistItem{}, fmt.Errorf("no task number %d (have %d)", n, len(items))
		}
		return items[n-1], nil
	}
	for _, item := range items {
		if item.ID == arg {
			return item, nil
		}
	}
	return trip.ChecklistItem{}, fmt.Errorf("no task with id %s", arg)
}

func init() {
	checklistCmd.AddCommand(checklistAddCmd, checklistToggleCmd, checklistRemoveCmd)
	rootCmd.AddCommand(checklistCmd)
}
