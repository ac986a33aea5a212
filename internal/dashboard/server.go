// Package dashboard provides a real-time WebSocket feed of trip state.
//
// The server broadcasts full snapshots whenever trip details, the
// checklist, the budget, or the active route's map data change, plus
// toast notifications and a once-per-second countdown tick. A client
// receives the complete current state on connect, so it never has to
// ask for a baseline.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/tripdeck/tripdeck/internal/countdown"
	"github.com/tripdeck/tripdeck/internal/trip"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeTrip carries the full trip details document
	MessageTypeTrip MessageType = "trip_update"

	// MessageTypeChecklist carries the full checklist snapshot
	MessageTypeChecklist MessageType = "checklist_update"

	// MessageTypeBudget carries the full expense snapshot with totals
	MessageTypeBudget MessageType = "budget_update"

	// MessageTypeRoutes carries the route list and active selection
	MessageTypeRoutes MessageType = "routes_update"

	// MessageTypeLocations carries the active route's sorted locations
	MessageTypeLocations MessageType = "locations_update"

	// MessageTypeToast carries a transient user notification
	MessageTypeToast MessageType = "toast"

	// MessageTypeCountdown carries the per-second countdown tick
	MessageTypeCountdown MessageType = "countdown"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// TripData is the payload of a trip_update message.
type TripData struct {
	trip.Trip
	SpentPerPerson float64 `json:"spentPerPerson"`
}

// ChecklistData is the payload of a checklist_update message.
type ChecklistData struct {
	Items    []checklistItem `json:"items"`
	Progress float64         `json:"progress"`
}

type checklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// BudgetData is the payload of a budget_update message.
type BudgetData struct {
	Expenses   []expenseItem `json:"expenses"`
	TotalSpent float64       `json:"totalSpent"`
}

type expenseItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// RoutesData is the payload of a routes_update message.
type RoutesData struct {
	Routes        []routeItem `json:"routes"`
	ActiveRouteID string      `json:"activeRouteId,omitempty"`
}

type routeItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LocationsData is the payload of a locations_update message.
type LocationsData struct {
	RouteID   string          `json:"routeId"`
	Locations []trip.Location `json:"locations"`
}

// ToastData is the payload of a toast message.
type ToastData struct {
	Message string `json:"message"`
}

// CountdownData is the payload of a countdown message.
type CountdownData struct {
	countdown.TimeLeft
	Started bool `json:"started"`
}

// NewMessage marshals a payload into a typed message. A payload that
// cannot marshal yields a message with empty data.
func NewMessage(msgType MessageType, payload any) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	return Message{Type: msgType, Timestamp: time.Now(), Data: data}
}

// Server manages WebSocket connections and broadcasts trip state
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	// initialState supplies the snapshot messages sent to a client on
	// connect, before any broadcast reaches it.
	initialState func() []Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8787)
	Port int

	// InitialState supplies the snapshot sent to each new client.
	// Nil means no snapshot is sent.
	InitialState func() []Message

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8787,
		Logger: log.Default(),
	}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:         fmt.Sprintf(":%d", config.Port),
		clients:      make(map[*websocket.Conn]bool),
		broadcast:    make(chan Message, 100),
		initialState: config.InitialState,
		ctx:          ctx,
		cancel:       cancel,
		logger:       config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on %s", s.GetAddr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	s.logger.Println("Dashboard stopped")
	return nil
}

// Broadcast sends a message to all connected clients. Never blocks; a
// full queue drops the message.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Write outside the read lock so a slow client cannot
			// stall broadcasts.
			for _, conn := range clients {
				if err := s.writeMessage(conn, data); err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Allow all origins for development
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// Baseline snapshot before any broadcasts.
	if s.initialState != nil {
		for _, msg := range s.initialState() {
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := s.writeMessage(conn, data); err != nil {
				s.removeClient(conn)
				return
			}
		}
	}

	go s.readLoop(conn)
}

// readLoop keeps the connection alive and notices client disconnects.
// Client messages are not processed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Tripdeck Dashboard</title>
</head>
<body>
    <h1>Tripdeck Dashboard Server</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Connect a WebSocket client to receive live trip updates.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
