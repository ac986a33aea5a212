package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tripdeck/tripdeck/internal/config"
	"github.com/tripdeck/tripdeck/internal/session"
	"github.com/tripdeck/tripdeck/internal/syncer"
)

var (
	cfgFile      string
	stateDirFlag string
	tripFlag     string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Plan a trip from the terminal",
	Long: `td is a local-first trip planner with live-syncing state.

All trip data lives in a single SQLite database under the state
directory (default ~/.tripdeck). Every change notifies running views
immediately: td serve feeds WebSocket dashboards, td watch shows a live
terminal view, and the one-shot commands edit the same data.

Commands are grouped by concern:
  td details           trip name, start date, budget, participants
  td checklist         preparation tasks
  td budget            expense tracking
  td route / location  map routes and their stops`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if stateDirFlag != "" {
			loaded.StateDir = stateDirFlag
		}
		if tripFlag != "" {
			loaded.TripID = tripFlag
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: tripdeck.yaml in the state dir)")
	rootCmd.PersistentFlags().StringVar(&stateDirFlag, "state-dir", "", "State directory (default: ~/.tripdeck)")
	rootCmd.PersistentFlags().StringVar(&tripFlag, "trip", "", "Trip ID (default: mainTrip)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "plan", Title: "Planning Commands:"},
		&cobra.Group{ID: "live", Title: "Live View Commands:"},
		&cobra.Group{ID: "data", Title: "Data Commands:"},
	)
}

// newLogger builds the process logger, rotating to a file when one is
// configured.
func newLogger(prefix string) *log.Logger {
	if cfg.LogFile == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}, prefix, log.LstdFlags)
}

// openSession bootstraps the store and identity from the loaded config.
func openSession() (*session.Session, error) {
	return session.Bootstrap(session.Config{
		StateDir:  cfg.StateDir,
		StorePath: cfg.StorePath,
		TripID:    cfg.TripID,
		Logger:    newLogger("[session] "),
	})
}

// syncerSet bundles the four synchronizers for commands that need live
// mirrors.
type syncerSet struct {
	details   *syncer.Details
	checklist *syncer.Checklist
	budget    *syncer.Budget
	routes    *syncer.Routes
}

// startSyncers starts all four synchronizers with the given shared
// config and waits until the trip document and the first routes
// snapshot have landed, so one-shot commands act on current state.
func startSyncers(ctx context.Context, sess *session.Session, sc *syncer.Config) (*syncerSet, error) {
	set := &syncerSet{
		details:   syncer.NewDetails(sess, sc),
		checklist: syncer.NewChecklist(sess, sc),
		budget:    syncer.NewBudget(sess, sc),
		routes:    syncer.NewRoutes(sess, sc),
	}

	starters := []struct {
		name  string
		start func(context.Context) error
	}{
		{"details", set.details.Start},
		{"checklist", set.checklist.Start},
		{"budget", set.budget.Start},
		{"routes", set.routes.Start},
	}
	for _, s := range starters {
		if err := s.start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start %s sync: %w", s.name, err)
		}
	}

	// Ready once the trip document and the first routes snapshot have
	// landed. An empty routes list counts; it must not stall the wait.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, loaded := set.details.Snapshot(); loaded && set.routes.Loaded() {
			return set, nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	set.stop()
	return nil, fmt.Errorf("timed out waiting for trip state")
}

func (s *syncerSet) stop() {
	s.routes.Stop()
	s.budget.Stop()
	s.checklist.Stop()
	s.details.Stop()
}

// mustSyncers opens the session and starts all synchronizers, exiting
// on failure. The returned closer stops everything in order.
func mustSyncers(sc *syncer.Config) (*syncerSet, func()) {
	sess, err := openSession()
	if err != nil {
		fail("failed to open session: %v", err)
	}
	set, err := startSyncers(context.Background(), sess, sc)
	if err != nil {
		sess.Close()
		fail("%v", err)
	}
	return set, func() {
		set.stop()
		sess.Close()
	}
}

// toastConfig echoes synchronizer notifications to stdout, for the
// one-shot editing commands.
func toastConfig() *syncer.Config {
	return &syncer.Config{
		Logger: newLogger("[td] "),
		Toaster: syncer.ToasterFunc(func(message string) {
			fmt.Println(message)
		}),
	}
}

// fail prints an error and exits, for Run functions without RunE.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
