package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// testStore opens a store backed by a temporary database file.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recvSnapshot reads one collection snapshot with a timeout.
func recvSnapshot(t *testing.T, sub *Subscription) []Document {
	t.Helper()
	select {
	case docs := <-sub.Snapshots():
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

// TestNewID_Format verifies generated IDs are 20 alphanumeric characters.
func TestNewID_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 20 {
			t.Fatalf("NewID() length = %d, want 20", len(id))
		}
		for _, r := range id {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				t.Fatalf("NewID() contains non-alphanumeric %q", r)
			}
		}
		if seen[id] {
			t.Fatalf("NewID() produced duplicate %s", id)
		}
		seen[id] = true
	}
}

// TestSplitPath verifies path parsing for valid and invalid paths.
func TestSplitPath(t *testing.T) {
	col, id, err := SplitPath("trips/mainTrip/checklist/abc")
	if err != nil {
		t.Fatalf("SplitPath() failed: %v", err)
	}
	if col != "trips/mainTrip/checklist" || id != "abc" {
		t.Errorf("SplitPath() = (%q, %q), want (trips/mainTrip/checklist, abc)", col, id)
	}

	if _, _, err := SplitPath("trips"); err == nil {
		t.Error("SplitPath(single segment) should fail")
	}
	if _, _, err := SplitPath("trips/mainTrip/checklist"); err == nil {
		t.Error("SplitPath(odd segments) should fail")
	}
}

// TestSetGet verifies a round trip through Set and Get.
func TestSetGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "trips/mainTrip", map[string]any{"name": "Big Trip"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	doc, exists, err := s.Get(ctx, "trips/mainTrip")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !exists {
		t.Fatal("Get() reported document missing")
	}

	var got map[string]any
	if err := doc.Decode(&got); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got["name"] != "Big Trip" {
		t.Errorf("name = %v, want Big Trip", got["name"])
	}
}

// TestGet_Missing verifies Get on an absent document reports not-exists.
func TestGet_Missing(t *testing.T) {
	s := testStore(t)

	_, exists, err := s.Get(context.Background(), "trips/nothing")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if exists {
		t.Error("Get() reported a missing document as existing")
	}
}

// TestUpdate_MergesFields verifies partial merge preserves untouched fields.
func TestUpdate_MergesFields(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "trips/mainTrip", map[string]any{"name": "Big Trip", "participants": 3}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if err := s.Update(ctx, "trips/mainTrip", map[string]any{"participants": 4}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	doc, _, err := s.Get(ctx, "trips/mainTrip")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	var got map[string]any
	if err := doc.Decode(&got); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got["name"] != "Big Trip" {
		t.Errorf("name = %v, want Big Trip (merge must preserve it)", got["name"])
	}
	if got["participants"] != float64(4) {
		t.Errorf("participants = %v, want 4", got["participants"])
	}
}

// TestUpdate_MissingDocument verifies Update fails on an absent document.
func TestUpdate_MissingDocument(t *testing.T) {
	s := testStore(t)

	err := s.Update(context.Background(), "trips/nothing", map[string]any{"name": "x"})
	if err == nil {
		t.Error("Update() on missing document should fail")
	}
}

// TestDelete_CascadesChildren verifies deleting a document removes its
// nested collections.
func TestDelete_CascadesChildren(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "trips/t/routes/r", map[string]any{"name": "Route"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if _, err := s.Add(ctx, "trips/t/routes/r/locations", map[string]any{"name": "Stop"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err := s.Delete(ctx, "trips/t/routes/r"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	locs, err := s.List(ctx, "trips/t/routes/r/locations")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(locs) != 0 {
		t.Errorf("locations not cascaded: %d remain", len(locs))
	}
}

// TestDelete_Idempotent verifies deleting an absent document returns nil.
func TestDelete_Idempotent(t *testing.T) {
	s := testStore(t)
	if err := s.Delete(context.Background(), "trips/nothing"); err != nil {
		t.Errorf("Delete() on missing document = %v, want nil", err)
	}
}

// TestList_CreationOrder verifies List returns documents in the order
// they were created.
func TestList_CreationOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		id, err := s.Add(ctx, "trips/t/checklist", map[string]any{"text": name})
		if err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond) // distinct created_at
	}

	docs, err := s.List(ctx, "trips/t/checklist")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("List() returned %d documents, want 3", len(docs))
	}
	for i, doc := range docs {
		if doc.ID != ids[i] {
			t.Errorf("docs[%d].ID = %s, want %s", i, doc.ID, ids[i])
		}
	}
}

// TestSubscribe_InitialSnapshot verifies a new subscription immediately
// receives the current collection state.
func TestSubscribe_InitialSnapshot(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, "trips/t/checklist", map[string]any{"text": "Pack"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	sub, err := s.Subscribe(ctx, "trips/t/checklist")
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Cancel()

	docs := recvSnapshot(t, sub)
	if len(docs) != 1 {
		t.Fatalf("initial snapshot has %d documents, want 1", len(docs))
	}
}

// TestSubscribe_NotifiesOnWrite verifies a committed write produces a
// fresh snapshot.
func TestSubscribe_NotifiesOnWrite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "trips/t/checklist")
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Cancel()

	if got := recvSnapshot(t, sub); len(got) != 0 {
		t.Fatalf("initial snapshot has %d documents, want 0", len(got))
	}

	if _, err := s.Add(ctx, "trips/t/checklist", map[string]any{"text": "Pack"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if got := recvSnapshot(t, sub); len(got) != 1 {
		t.Fatalf("snapshot after Add has %d documents, want 1", len(got))
	}
}

// TestSubscribe_Coalesces verifies a slow consumer sees the latest
// snapshot rather than blocking writers.
func TestSubscribe_Coalesces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "trips/t/checklist")
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Cancel()

	// Don't read; pile up writes.
	for i := 0; i < 5; i++ {
		if _, err := s.Add(ctx, "trips/t/checklist", map[string]any{"text": "item"}); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	// The pending snapshot must be the final state.
	docs := recvSnapshot(t, sub)
	if len(docs) != 5 {
		t.Errorf("coalesced snapshot has %d documents, want 5", len(docs))
	}
}

// TestSubscribe_CancelClosesChannel verifies Cancel closes the channel
// and later writes are not delivered.
func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "trips/t/checklist")
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	recvSnapshot(t, sub)

	sub.Cancel()
	sub.Cancel() // must be safe to repeat

	if _, err := s.Add(ctx, "trips/t/checklist", map[string]any{"text": "late"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if _, open := <-sub.Snapshots(); open {
		t.Error("channel still open after Cancel")
	}
}

// TestSubscribeDoc_AbsentThenCreated verifies document subscriptions
// report absence, then the created document.
func TestSubscribeDoc_AbsentThenCreated(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sub, err := s.SubscribeDoc(ctx, "trips/mainTrip")
	if err != nil {
		t.Fatalf("SubscribeDoc() failed: %v", err)
	}
	defer sub.Cancel()

	snap := <-sub.Snapshots()
	if snap.Exists {
		t.Fatal("initial snapshot should report absence")
	}

	if err := s.Set(ctx, "trips/mainTrip", map[string]any{"name": "Big Trip"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	select {
	case snap = <-sub.Snapshots():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for doc snapshot")
	}
	if !snap.Exists {
		t.Fatal("snapshot after Set should report existence")
	}
	var got map[string]any
	if err := snap.Doc.Decode(&got); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got["name"] != "Big Trip" {
		t.Errorf("name = %v, want Big Trip", got["name"])
	}
}

// TestBatch_Atomic verifies batched writes land together and produce a
// single snapshot per affected collection.
func TestBatch_Atomic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "trips/t/routes")
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Cancel()
	recvSnapshot(t, sub) // initial empty

	batch := s.Batch()
	routeID := batch.Add("trips/t/routes", map[string]any{"name": "Coast"})
	batch.Add("trips/t/routes/"+routeID+"/locations", map[string]any{"name": "Start", "order": 1})
	batch.Add("trips/t/routes", map[string]any{"name": "City"})
	if err := batch.Commit(ctx); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	docs := recvSnapshot(t, sub)
	if len(docs) != 2 {
		t.Fatalf("snapshot after batch has %d routes, want 2", len(docs))
	}

	locs, err := s.List(ctx, "trips/t/routes/"+routeID+"/locations")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(locs) != 1 {
		t.Errorf("batch child write missing: %d locations, want 1", len(locs))
	}
}

// TestBatch_Empty verifies committing an empty batch is a no-op.
func TestBatch_Empty(t *testing.T) {
	s := testStore(t)
	if err := s.Batch().Commit(context.Background()); err != nil {
		t.Errorf("empty batch Commit() = %v, want nil", err)
	}
}

// TestDocumentDecode_Invalid verifies Decode surfaces malformed payloads.
func TestDocumentDecode_Invalid(t *testing.T) {
	doc := Document{ID: "x", Data: json.RawMessage(`{"name":`)}
	var v map[string]any
	if err := doc.Decode(&v); err == nil {
		t.Error("Decode() of malformed JSON should fail")
	}
}

// TestSubscribe_ConcurrentWriteConverges verifies a subscription opened
// while a write commits always converges on the post-commit state: the
// initial snapshot can never bury a concurrent commit's notification.
func TestSubscribe_ConcurrentWriteConverges(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		collection := fmt.Sprintf("trips/t/col%d", i)

		committed := make(chan struct{})
		go func() {
			if _, err := s.Add(ctx, collection, map[string]any{"n": i}); err != nil {
				t.Errorf("Add() failed: %v", err)
			}
			close(committed)
		}()

		sub, err := s.Subscribe(ctx, collection)
		if err != nil {
			t.Fatalf("Subscribe() failed: %v", err)
		}
		<-committed

		deadline := time.Now().Add(2 * time.Second)
		seen := false
		for !seen && time.Now().Before(deadline) {
			select {
			case docs := <-sub.Snapshots():
				seen = len(docs) == 1
			case <-time.After(50 * time.Millisecond):
			}
		}
		sub.Cancel()
		if !seen {
			t.Fatalf("iteration %d: subscription never delivered the committed write", i)
		}
	}
}
