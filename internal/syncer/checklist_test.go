package syncer

import (
	"context"
	"errors"
	"testing"
)

// startChecklist spins up a checklist synchronizer on a fresh session.
func startChecklist(t *testing.T, cfg *Config) (*Checklist, context.Context) {
	t.Helper()
	sess := testSession(t)
	ctx := context.Background()

	c := NewChecklist(sess, cfg)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(c.Stop)
	return c, ctx
}

// TestChecklist_AddToggleRemove walks an item through its lifecycle.
func TestChecklist_AddToggleRemove(t *testing.T) {
	c, ctx := startChecklist(t, nil)

	if err := c.Add(ctx, "Pack bags"); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	waitFor(t, "item to appear", func() bool { return len(c.Items()) == 1 })

	item := c.Items()[0]
	if item.Text != "Pack bags" || item.Completed {
		t.Errorf("item = %+v, want uncompleted Pack bags", item)
	}

	if err := c.Toggle(ctx, item.ID); err != nil {
		t.Fatalf("Toggle() failed: %v", err)
	}
	waitFor(t, "item to complete", func() bool {
		items := c.Items()
		return len(items) == 1 && items[0].Completed
	})

	if err := c.Toggle(ctx, item.ID); err != nil {
		t.Fatalf("second Toggle() failed: %v", err)
	}
	waitFor(t, "item to uncomplete", func() bool {
		items := c.Items()
		return len(items) == 1 && !items[0].Completed
	})

	if err := c.Remove(ctx, item.ID); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	waitFor(t, "item to vanish", func() bool { return len(c.Items()) == 0 })
}

// TestChecklist_Progress verifies the completion percentage: 0 for an
// empty list, 100*completed/total otherwise.
func TestChecklist_Progress(t *testing.T) {
	c, ctx := startChecklist(t, nil)

	if got := c.Progress(); got != 0 {
		t.Errorf("Progress() on empty list = %v, want 0", got)
	}

	for _, text := range []string{"a", "b", "c", "d"} {
		if err := c.Add(ctx, text); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}
	waitFor(t, "items to appear", func() bool { return len(c.Items()) == 4 })

	if err := c.Toggle(ctx, c.Items()[0].ID); err != nil {
		t.Fatalf("Toggle() failed: %v", err)
	}
	waitFor(t, "one completion", func() bool { return c.Progress() == 25 })
}

// TestChecklist_AddValidation verifies blank text is rejected with no
// write.
func TestChecklist_AddValidation(t *testing.T) {
	c, ctx := startChecklist(t, nil)

	err := c.Add(ctx, "   ")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Add(blank) = %v, want ErrValidation", err)
	}
	if len(c.Items()) != 0 {
		t.Error("blank add wrote an item")
	}
}

// TestChecklist_ToastOnMutation verifies successful mutations post
// transient notices.
func TestChecklist_ToastOnMutation(t *testing.T) {
	toaster := &recordingToaster{}
	c, ctx := startChecklist(t, &Config{Toaster: toaster})

	if err := c.Add(ctx, "Pack"); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	waitFor(t, "item to appear", func() bool { return len(c.Items()) == 1 })
	if err := c.Remove(ctx, c.Items()[0].ID); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	waitFor(t, "toasts", func() bool { return toaster.count() == 2 })
}

// TestChecklist_NotReady verifies all operations guard against a
// missing session.
func TestChecklist_NotReady(t *testing.T) {
	c := NewChecklist(nil, nil)
	ctx := context.Background()

	if err := c.Add(ctx, "x"); err != ErrNotReady {
		t.Errorf("Add() = %v, want ErrNotReady", err)
	}
	if err := c.Toggle(ctx, "id"); err != ErrNotReady {
		t.Errorf("Toggle() = %v, want ErrNotReady", err)
	}
	if err := c.Remove(ctx, "id"); err != ErrNotReady {
		t.Errorf("Remove() = %v, want ErrNotReady", err)
	}
}
