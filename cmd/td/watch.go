package main

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tripdeck/tripdeck/internal/syncer"
	"github.com/tripdeck/tripdeck/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "live",
	Short:   "Live terminal view of the trip",
	Long: `Open a full-screen terminal view that repaints as the trip changes.

The view shows the countdown, checklist progress, budget totals, and
the active route's stops. Left/right switches the active route; any
other change made elsewhere (another td command, a dashboard client,
an inbox import) appears immediately.`,
	Run: func(cmd *cobra.Command, args []string) {
		sess, err := openSession()
		if err != nil {
			fail("failed to open session: %v", err)
		}
		defer sess.Close()

		// Callbacks fire from the synchronizers' goroutines before the
		// program exists; send through an atomic pointer and drop
		// anything earlier.
		var program atomic.Pointer[tea.Program]
		sc := &syncer.Config{
			Logger: newLogger("[watch] "),
			Toaster: syncer.ToasterFunc(func(message string) {
				if p := program.Load(); p != nil {
					p.Send(tui.ToastMsg{Message: message})
				}
			}),
			OnChange: func() {
				if p := program.Load(); p != nil {
					p.Send(tui.RefreshMsg{})
				}
			},
		}

		set, err := startSyncers(context.Background(), sess, sc)
		if err != nil {
			fail("%v", err)
		}
		defer set.stop()

		model := tui.New(set.details, set.checklist, set.budget, set.routes)
		prog := tea.NewProgram(model, tea.WithAltScreen())
		program.Store(prog)
		if _, err := prog.Run(); err != nil {
			fail("watch failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
