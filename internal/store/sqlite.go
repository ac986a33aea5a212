package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store is the SQLite-backed document store.
//
// Writes are serialized through writeMu so that snapshot notifications
// are delivered to subscribers in commit order; reads run concurrently
// thanks to WAL mode.
type Store struct {
	conn   *sql.DB
	path   string
	broker *broker

	// writeMu serializes commit+notify so subscribers observe snapshots
	// in the order writes were committed.
	writeMu sync.Mutex
}

// Open creates a new document store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If it doesn't exist it is created along with the schema.
//
// The caller MUST call Close() when done to ensure proper cleanup.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn:   conn,
		path:   path,
		broker: newBroker(),
	}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the store. All subscriptions are cancelled and a WAL
// checkpoint is performed so changes are persisted. The write lock is
// held so a commit in flight finishes before the connection goes away.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return nil
	}

	s.broker.closeAll()

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.conn = nil
	return nil
}

// initSchema creates the documents table if it doesn't exist. Idempotent.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		data       TEXT NOT NULL,  -- JSON object
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Get returns the document at path. The second return value reports
// whether the document exists.
func (s *Store) Get(ctx context.Context, path string) (Document, bool, error) {
	collection, id, err := SplitPath(path)
	if err != nil {
		return Document{}, false, err
	}

	var data string
	query := `SELECT data FROM documents WHERE collection = ? AND id = ?`
	err = s.conn.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if err == sql.ErrNoRows {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("failed to get document %s: %w", path, err)
	}

	return Document{ID: id, Data: json.RawMessage(data)}, true, nil
}

// List returns all documents in a collection in creation order.
func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	query := `SELECT id, data FROM documents WHERE collection = ? ORDER BY created_at, id`
	rows, err := s.conn.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, Document{ID: id, Data: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection %s: %w", collection, err)
	}

	return docs, nil
}

// Set creates or fully replaces the document at path.
func (s *Store) Set(ctx context.Context, path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	collection, id, err := SplitPath(path)
	if err != nil {
		return err
	}
	if err := s.upsert(ctx, s.conn, collection, id, data); err != nil {
		return err
	}

	s.notify(ctx, []string{collection})
	return nil
}

// Add creates a new document in collection with a generated ID and
// returns that ID.
func (s *Store) Add(ctx context.Context, collection string, v any) (string, error) {
	data, err := Encode(v)
	if err != nil {
		return "", err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := NewID()
	if err := s.upsert(ctx, s.conn, collection, id, data); err != nil {
		return "", err
	}

	s.notify(ctx, []string{collection})
	return id, nil
}

// Update applies a partial field merge to the document at path.
// Fields present in fields replace the stored values; all other stored
// fields are preserved. Returns an error if the document doesn't exist.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, id, err := SplitPath(path)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback()

	var stored string
	query := `SELECT data FROM documents WHERE collection = ? AND id = ?`
	err = tx.QueryRowContext(ctx, query, collection, id).Scan(&stored)
	if err == sql.ErrNoRows {
		return fmt.Errorf("cannot update missing document %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", path, err)
	}

	merged := make(map[string]any)
	if err := json.Unmarshal([]byte(stored), &merged); err != nil {
		return fmt.Errorf("failed to decode stored document %s: %w", path, err)
	}
	for k, v := range fields {
		merged[k] = v
	}

	data, err := Encode(merged)
	if err != nil {
		return err
	}
	if err := s.upsert(ctx, tx, collection, id, data); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	s.notify(ctx, []string{collection})
	return nil
}

// Delete removes the document at path along with every document nested
// under it (child collections do not outlive their parent). Returns nil
// if the document doesn't exist (idempotent).
func (s *Store) Delete(ctx context.Context, path string) error {
	collection, id, err := SplitPath(path)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Collect child collections before deleting so their subscribers
	// get notified too.
	affected := []string{collection}
	children, err := s.childCollections(ctx, path)
	if err != nil {
		return err
	}
	affected = append(affected, children...)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE collection LIKE ?`, path+"/%"); err != nil {
		return fmt.Errorf("failed to delete children of %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.notify(ctx, affected)
	return nil
}

// childCollections returns the distinct collections nested under a
// document path.
func (s *Store) childCollections(ctx context.Context, path string) ([]string, error) {
	query := `SELECT DISTINCT collection FROM documents WHERE collection LIKE ?`
	rows, err := s.conn.QueryContext(ctx, query, path+"/%")
	if err != nil {
		return nil, fmt.Errorf("failed to query child collections of %s: %w", path, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// upsert inserts or replaces a document, preserving created_at on update.
func (s *Store) upsert(ctx context.Context, ex execer, collection, id string, data json.RawMessage) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `
	INSERT INTO documents (collection, id, data, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(collection, id) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at
	`
	if _, err := ex.ExecContext(ctx, query, collection, id, string(data), now, now); err != nil {
		return fmt.Errorf("failed to write document %s/%s: %w", collection, id, err)
	}
	return nil
}

// notify re-queries each affected collection and publishes the snapshot.
// Callers must hold writeMu.
func (s *Store) notify(ctx context.Context, collections []string) {
	seen := make(map[string]bool, len(collections))
	for _, c := range collections {
		if seen[c] {
			continue
		}
		seen[c] = true

		docs, err := s.List(ctx, c)
		if err != nil {
			// Subscribers keep their last snapshot; nothing else to do.
			continue
		}
		s.broker.publish(c, docs)
	}
}
