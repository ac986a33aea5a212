package main

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tripdeck/tripdeck/internal/dashboard"
	"github.com/tripdeck/tripdeck/internal/session"
	"github.com/tripdeck/tripdeck/internal/syncer"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// TestServeWiring_PublisherBoundAfterStart mirrors the serve command's
// callback wiring: the synchronizers' consume goroutines invoke the
// toast and change callbacks from the moment they start, while the
// publisher pointer is bound on the main goroutine afterwards. Early
// callbacks must be dropped cleanly and later ones must broadcast.
func TestServeWiring_PublisherBoundAfterStart(t *testing.T) {
	sess, err := session.Bootstrap(session.Config{
		StateDir: t.TempDir(),
		TripID:   "trip1",
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("Bootstrap() failed: %v", err)
	}
	defer sess.Close()

	var publisher atomic.Pointer[dashboard.Publisher]
	sc := &syncer.Config{
		Logger: testLogger(),
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

	set, err := startSyncers(context.Background(), sess, sc)
	if err != nil {
		t.Fatalf("startSyncers() failed: %v", err)
	}
	defer set.stop()

	server := dashboard.NewServer(&dashboard.Config{
		Port:   0,
		Logger: testLogger(),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer server.Stop()

	pub := dashboard.NewPublisher(server, set.details, set.checklist, set.budget, set.routes)
	publisher.Store(pub)

	// Mutations from here on reach the bound publisher through the
	// callbacks wired above.
	if err := set.checklist.Add(context.Background(), "pack sunscreen"); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(set.checklist.Items()) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("checklist mutation never reached the mirror")
}
