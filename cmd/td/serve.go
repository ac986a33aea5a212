package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tripdeck/tripdeck/internal/dashboard"
	"github.com/tripdeck/tripdeck/internal/inbox"
	"github.com/tripdeck/tripdeck/internal/syncer"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "live",
	Short:   "Run the sync service with the WebSocket dashboard",
	Long: `Run the trip sync service in the foreground.

The service keeps all synchronizers live and broadcasts state to
WebSocket clients:
- trip_update: trip details changed
- checklist_update: checklist changed (items and progress)
- budget_update: expenses changed (items and totals)
- routes_update: route list or selection changed
- locations_update: active route's stops changed
- toast: transient notification
- countdown: once-per-second tick until the start date

Clients receive the complete current state on connect.

With an inbox directory configured, *.json files dropped there are
validated and appended to the trip automatically.

Example usage:
  td serve                  # Default port 8787
  td serve --port 9000      # Custom port

Connect with a WebSocket client:
  ws://localhost:8787/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.DashboardPort
		}
		logger := newLogger("[serve] ")

		sess, err := openSession()
		if err != nil {
			fail("failed to open session: %v", err)
		}
		defer sess.Close()
		logger.Printf("Session user %s, trip %s", sess.UserID, sess.TripID)

		ctx := context.Background()

		// The publisher needs the synchronizers and they need its
		// callbacks. The callbacks fire from the synchronizers' consume
		// goroutines while the publisher is still being wired up, so
		// the pointer is atomic; anything before it is bound is
		// dropped.
		var publisher atomic.Pointer[dashboard.Publisher]
		sc := &syncer.Config{
			Logger: logger,
			Toaster: syncer.ToasterFunc(func(message string) {
				if p := publisher.Load(); p != nil {
					p.Toast(message)
				}
			}),
			OnChange: func() {
				if p := publisher.Load(); p != nil {
					p.PublishAll()
				}
			},
		}

		set, err := startSyncers(ctx, sess, sc)
		if err != nil {
			fail("%v", err)
		}
		defer set.stop()

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: logger,
			InitialState: func() []dashboard.Message {
				p := publisher.Load()
				if p == nil {
					return nil
				}
				return p.Snapshot()
			},
		})
		if err := server.Start(); err != nil {
			fail("failed to start dashboard: %v", err)
		}
		defer server.Stop()

		pub := dashboard.NewPublisher(server, set.details, set.checklist, set.budget, set.routes)
		publisher.Store(pub)
		go pub.Run()
		defer pub.Stop()

		var inboxWatcher *inbox.Watcher
		if cfg.InboxDir != "" {
			inboxWatcher, err = inbox.NewWatcher(sess.Store, sess.TripID, cfg.InboxDir, logger)
			if err != nil {
				fail("failed to create inbox watcher: %v", err)
			}
			if err := inboxWatcher.Start(); err != nil {
				fail("failed to watch inbox: %v", err)
			}
			defer inboxWatcher.Stop()
			fmt.Printf("Watching inbox: %s\n", cfg.InboxDir)
		}

		fmt.Printf("Dashboard started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-sigCtx.Done()

		fmt.Println("\nShutting down...")
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Dashboard port (default from config, 8787)")
	rootCmd.AddCommand(serveCmd)
}
