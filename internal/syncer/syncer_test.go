package syncer

import (
	"sync"
	"testing"
	"time"

	"github.com/tripdeck/tripdeck/internal/session"
)

// testSession bootstraps a session against a temporary store.
func testSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.Bootstrap(session.Config{StateDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Bootstrap() failed: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recordingToaster captures toast messages for assertions.
type recordingToaster struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingToaster) Toast(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingToaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}
