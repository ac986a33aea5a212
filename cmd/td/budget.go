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

var budgetCmd = &cobra.Command{
	Use:     "budget",
	GroupID: "plan",
	Short:   "Track trip expenses",
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(nil)
		defer closer()

		expenses := set.budget.Expenses()
		if len(expenses) == 0 {
			fmt.Println(ui.Dim("No expenses yet. Add one with: td budget add \"Flights\" 1200"))
			return
		}
		for i, e := range expenses {
			fmt.Printf("%2d. %-30s $%10.2f  %-12s %s\n",
				i+1, e.Description, e.Amount, e.Category, ui.Dim(e.ID))
		}

		t, _ := set.details.Snapshot()
		total := set.budget.TotalSpent()
		fmt.Printf("\nTotal: $%.2f of $%.2f", total, t.TotalBudget)
		if remaining := t.TotalBudget - total; remaining >= 0 {
			fmt.Printf("  (%s remaining)", ui.Pass(fmt.Sprintf("$%.2f", remaining)))
		} else {
			fmt.Printf("  (%s over)", ui.Fail(fmt.Sprintf("$%.2f", -remaining)))
		}
		fmt.Printf("\nPer person: $%.2f\n", set.budget.SpentPerPerson(t.Participants))
	},
}

var budgetAddCmd = &cobra.Command{
	Use:   "add <description> <amount>",
	Short: "Add an expense",
	Long: `Add an expense. Category defaults to "other".

Categories: ` + strings.Join(trip.Categories, ", "),
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		category, _ := cmd.Flags().GetString("category")
		if category != "" && !validCategory(category) {
			fail("unknown category %q; use one of %s", category, strings.Join(trip.Categories, ", "))
		}

		set, closer := mustSyncers(toastConfig())
		defer closer()

		if err := set.budget.Add(context.Background(), args[0], args[1], category); err != nil {
			fail("%v", err)
		}
	},
}

var budgetEditCmd = &cobra.Command{
	Use:   "edit <id|number>",
	Short: "Edit an expense",
	Long: `Edit an expense. Unset flags keep their current value; the full
record is written back in one update.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(toastConfig())
		defer closer()

		existing, err := resolveExpense(set, args[0])
		if err != nil {
			fail("%v", err)
		}
		staged, err := set.budget.StageEdit(existing.ID)
		if err != nil {
			fail("%v", err)
		}

		description := staged.Description
		amountText := strconv.FormatFloat(staged.Amount, 'f', -1, 64)
		category := staged.Category
		if cmd.Flags().Changed("description") {
			description, _ = cmd.Flags().GetString("description")
		}
		if cmd.Flags().Changed("amount") {
			amountText, _ = cmd.Flags().GetString("amount")
		}
		if cmd.Flags().Changed("category") {
			category, _ = cmd.Flags().GetString("category")
			if !validCategory(category) {
				fail("unknown category %q; use one of %s", category, strings.Join(trip.Categories, ", "))
			}
		}

		if err := set.budget.CommitEdit(context.Background(), staged.ID, description, amountText, category); err != nil {
			fail("%v", err)
		}
	},
}

var budgetRemoveCmd = &cobra.Command{
	Use:     "remove <id|number>",
	Aliases: []string{"rm"},
	Short:   "Delete an expense",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, closer := mustSyncers(toastConfig())
		defer closer()

		expense, err := resolveExpense(set, args[0])
		if err != nil {
			fail("%v", err)
		}
		if err := set.budget.Remove(context.Background(), expense.ID); err != nil {
			fail("%v", err)
		}
	},
}

// resolveExpense accepts a document ID or a 1-based list number.
func resolveExpense(set *syncerSet, arg string) (trip.Expense, error) {
	expenses := set.budget.Expenses()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(expenses) {
			return trip.Expense{}, fmt.Errorf("no expense number %d (have %d)", n, len(expenses))
		}
		return expenses[n-1], nil
	}
	for _, e := range expenses {
		if e.ID == arg {
			return e, nil
		}
	}
	return trip.Expense{}, fmt.Errorf("no expense with id %s", arg)
}

func validCategory(category string) bool {
	for _, c := range trip.Categories {
		if c == category {
			return true
		}
	}
	return false
}

func init() {
	budgetAddCmd.Flags().StringP("category", "c", "", "Expense category")
	budgetEditCmd.Flags().StringP("description", "d", "", "New description")
	budgetEditCmd.Flags().StringP("amount", "a", "", "New amount")
	budgetEditCmd.Flags().StringP("category", "c", "", "New category")

	budgetCmd.AddCommand(budgetAddCmd, budgetEditCmd, budgetRemoveCmd)
	rootCmd.AddCommand(budgetCmd)
}
