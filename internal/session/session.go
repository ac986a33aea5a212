// Package session bootstraps the process-wide trip-planning session:
// the store handle and an anonymous identity, shared read-only by all
// synchronizers after initialization.
package session

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tripdeck/tripdeck/internal/store"
)

// identityFile is the name of the file holding the anonymous device
// identity under the state directory.
const identityFile = "identity"

// State reports how far bootstrap has progressed.
type State int

const (
	// StateConnecting means bootstrap has not completed; all
	// synchronizer operations are no-ops in this state.
	StateConnecting State = iota
	// StateReady means the store and identity are available.
	StateReady
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Config holds bootstrap configuration.
type Config struct {
	// StateDir holds the identity file and, by default, the store.
	StateDir string

	// StorePath is the store database file. Defaults to
	// StateDir/tripdeck.db when empty.
	StorePath string

	// TripID selects the trip document. Defaults to "mainTrip".
	TripID string

	// Logger for bootstrap activity. Nil means a stderr default.
	Logger *log.Logger
}

// Session is the shared application context: store handle, anonymous
// identity, and selected trip. Read-only after Bootstrap returns.
type Session struct {
	Store  *store.Store
	UserID string
	TripID string

	state  State
	logger *log.Logger
}

// Bootstrap opens the store and acquires an anonymous identity with no
// user interaction. If no identity exists, one is minted and persisted.
//
// On failure the error is returned and logged; the caller stays in the
// connecting state; there is no retry policy.
func Bootstrap(cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}

	if cfg.StateDir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		logger.Printf("Bootstrap failed: %v", err)
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	storePath := cfg.StorePath
	if storePath == "" {
		storePath = filepath.Join(cfg.StateDir, "tripdeck.db")
	}

	st, err := store.Open(storePath)
	if err != nil {
		logger.Printf("Bootstrap failed: %v", err)
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	userID, err := loadOrCreateIdentity(cfg.StateDir)
	if err != nil {
		_ = st.Close()
		logger.Printf("Bootstrap failed: %v", err)
		return nil, err
	}

	tripID := cfg.TripID
	if tripID == "" {
		tripID = "mainTrip"
	}

	logger.Printf("Session ready: user=%s trip=%s store=%s", userID, tripID, storePath)

	return &Session{
		Store:  st,
		UserID: userID,
		TripID: tripID,
		state:  StateReady,
		logger: logger,
	}, nil
}

// State returns the session state.
func (s *Session) State() State {
	if s == nil {
		return StateConnecting
	}
	return s.state
}

// Close releases the store handle.
func (s *Session) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

// loadOrCreateIdentity reads the persisted anonymous identity, minting
// and persisting a fresh one when none exists.
func loadOrCreateIdentity(stateDir string) (string, error) {
	path := filepath.Join(stateDir, identityFile)

	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read identity: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to persist identity: %w", err)
	}
	return id, nil
}
