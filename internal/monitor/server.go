// Package monitor exposes a small HTTP/WebSocket surface for observing a
// running Diagnostic Client: conversation status on demand, and a live feed
// of diagnostic exchange events. Grounded on the teacher's main.go
// wsHandler/broadcastTelemetry pattern (gorilla/mux router, a
// gorilla/websocket upgrader, a client set guarded by a mutex).
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// ConversationStatus is the JSON shape returned for one conversation by the
// /status endpoint.
type ConversationStatus struct {
	Name       string `json:"name"`
	Activity   string `json:"activity"`
	Connection string `json:"connection"`
}

// StatusProvider is implemented by the client facade: it reports the live
// status of every conversation it owns, without the monitor package needing
// to import the client package.
type StatusProvider interface {
	ConversationStatuses() []ConversationStatus
}

// ExchangeEvent is broadcast to WebSocket subscribers each time a
// diagnostic exchange completes, letting a dashboard render live activity.
type ExchangeEvent struct {
	Conversation string  `json:"conversation"`
	Outcome      string  `json:"outcome"`
	LatencyMs    float64 `json:"latencyMs"`
}

// Server is the monitor's HTTP/WebSocket front end.
type Server struct {
	logger   *log.Logger
	provider StatusProvider
	upgrader websocket.Upgrader
	http     *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewServer builds a monitor server bound to bindAddress (e.g. ":8080"),
// reporting status via provider.
func NewServer(bindAddress string, provider StatusProvider, logger *log.Logger) *Server {
	s := &Server{
		logger:   logger,
		provider: provider,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", s.handleWebSocket)
	router.HandleFunc("/healthz", s.handleHealthz)
	router.HandleFunc("/status", s.handleStatus)

	s.http = &http.Server{
		Addr:    bindAddress,
		Handler: router,
	}
	return s
}

// Start begins serving in the background. It returns immediately; call
// Stop to shut the listener down.
func (s *Server) Start() {
	go func() {
		s.logf("monitor: listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logf("monitor: server error: %v", err)
		}
	}()
}

// Stop gracefully shuts the HTTP server down and closes all open WebSocket
// connections.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
	s.mu.Unlock()

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("monitor: shutdown: %w", err)
	}
	return nil
}

// BroadcastExchange pushes an ExchangeEvent to every connected WebSocket
// client, dropping and closing any client whose write fails.
func (s *Server) BroadcastExchange(event ExchangeEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logf("monitor: marshaling exchange event: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			client.Close()
			delete(s.clients, client)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("monitor: websocket upgrade error: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, ws)
		s.mu.Unlock()
		ws.Close()
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.provider.ConversationStatuses()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		s.logf("monitor: encoding status: %v", err)
	}
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
