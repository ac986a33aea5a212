package store

import (
	"context"
	"fmt"
)

// batchOp is a single queued batch operation.
type batchOp struct {
	collection string
	id         string
	data       []byte // nil means delete
}

// WriteBatch accumulates document writes and commits them atomically.
//
// Subscribers never observe a partially applied batch: all operations
// land in a single transaction and notifications for the affected
// collections are published only after commit. A batch is single-use.
type WriteBatch struct {
	store *Store
	ops   []batchOp
	errs  []error
}

// Batch returns a new empty write batch.
func (s *Store) Batch() *WriteBatch {
	return &WriteBatch{store: s}
}

// Set queues a create-or-replace of the document at path.
func (b *WriteBatch) Set(path string, v any) {
	collection, id, err := SplitPath(path)
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	data, err := Encode(v)
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	b.ops = append(b.ops, batchOp{collection: collection, id: id, data: data})
}

// Add queues a create with a generated ID and returns that ID, so
// callers can queue children of a document created in the same batch.
func (b *WriteBatch) Add(collection string, v any) string {
	id := NewID()
	data, err := Encode(v)
	if err != nil {
		b.errs = append(b.errs, err)
		return id
	}
	b.ops = append(b.ops, batchOp{collection: collection, id: id, data: data})
	return id
}

// Delete queues a document delete.
func (b *WriteBatch) Delete(path string) {
	collection, id, err := SplitPath(path)
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	b.ops = append(b.ops, batchOp{collection: collection, id: id})
}

// Len returns the number of queued operations.
func (b *WriteBatch) Len() int {
	return len(b.ops)
}

// Commit applies all queued operations in one transaction and then
// notifies subscribers of every affected collection. If any queued
// operation was malformed, nothing is written.
func (b *WriteBatch) Commit(ctx context.Context) error {
	if len(b.errs) > 0 {
		return fmt.Errorf("batch has invalid operations: %w", b.errs[0])
	}
	if len(b.ops) == 0 {
		return nil
	}

	s := b.store
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	affected := make([]string, 0, len(b.ops))
	for _, op := range b.ops {
		if op.data == nil {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE collection = ? AND id = ?`,
				op.collection, op.id); err != nil {
				return fmt.Errorf("failed to batch-delete %s/%s: %w", op.collection, op.id, err)
			}
		} else {
			if err := s.upsert(ctx, tx, op.collection, op.id, op.data); err != nil {
				return err
			}
		}
		affected = append(affected, op.collection)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.notify(ctx, affected)
	return nil
}
