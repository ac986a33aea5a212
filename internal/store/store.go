// Package store provides the document store backing tripdeck.
//
// Documents live in hierarchical, string-keyed collections
// (trips/{id}, trips/{id}/checklist/{id}, ...) and are stored as JSON
// objects with store-assigned IDs. The store offers:
//   - CRUD: Get, Set (replace), Update (partial merge), Add, Delete
//   - atomic multi-document batches (WriteBatch)
//   - live subscriptions that re-emit a full collection or document
//     snapshot after every committed change
//
// The implementation is embedded SQLite (ncruces/go-sqlite3) with WAL
// mode for concurrent readers. Change notification is in-process: every
// commit re-queries the affected collections and fans the snapshots out
// to subscribers in commit order.
package store

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
)

// idAlphabet matches the alphanumeric alphabet used for document IDs.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// idLength is the length of generated document IDs.
const idLength = 20

// Document is a single stored document: an opaque store-assigned ID plus
// a JSON object payload. Snapshot order within a collection is creation
// order, which subscribers may rely on for stable tie-breaking.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the document payload into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

// NewID returns a new store-assigned document ID: 20 random alphanumeric
// characters, enough entropy that collisions are not a practical concern.
func NewID() string {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("store: rand.Read failed: %v", err))
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}

// SplitPath splits a document path into its collection and document ID.
// Returns an error if the path has fewer than two segments or an even
// segment count is violated (document paths always have an even number
// of segments: collection/id pairs).
func SplitPath(path string) (collection, id string, err error) {
	path = strings.Trim(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "", "", fmt.Errorf("invalid document path %q: need collection/id", path)
	}
	segs := strings.Split(path, "/")
	if len(segs)%2 != 0 {
		return "", "", fmt.Errorf("invalid document path %q: odd segment count", path)
	}
	return path[:idx], path[idx+1:], nil
}

// JoinPath joins path segments into a slash-separated path.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// Encode marshals v into a JSON payload suitable for Set/Add.
func Encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}
