package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/quillhq/quill/internal/metrics"
	"github.com/quillhq/quill/pkg/agent"
	"github.com/quillhq/quill/pkg/dispatch"
)

// Server serves the observer WebSocket feed and the operational endpoints.
type Server struct {
	addr        string
	server      *http.Server
	upgrader    websocket.Upgrader
	clients     *ClientRegistry
	broadcaster *EventBroadcaster
	executor    *agent.Executor
	dispatcher  *dispatch.Dispatcher
	logger      zerolog.Logger

	shutdownMu     sync.RWMutex
	isShuttingDown bool
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	Executor   *agent.Executor
	Dispatcher *dispatch.Dispatcher
	Logger     zerolog.Logger
}

// NewServer creates a gateway server. It does not listen until Start.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	clients := NewClientRegistry()
	logger := cfg.Logger.With().Str("component", "gateway").Logger()

	return &Server{
		addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		clients:     clients,
		broadcaster: NewEventBroadcaster(clients, logger),
		executor:    cfg.Executor,
		dispatcher:  cfg.Dispatcher,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Loopback-only by default; the bind address is the guard.
				return true
			},
		},
	}, nil
}

// Broadcaster returns the event fan-out used to publish UI events.
func (s *Server) Broadcaster() *EventBroadcaster {
	return s.broadcaster
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.server = &http.Server{Addr: s.addr, Handler: mux}

	s.logger.Info().Str("addr", s.addr).Msg("starting gateway")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("gateway server error")
		}
	}()
	return nil
}

// Stop disconnects all observers and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.clients.CloseAll()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	down := s.isShuttingDown
	s.shutdownMu.RUnlock()
	if down {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		conn.Close()
		return
	}

	client := newClient(id, conn, s.logger)
	s.clients.Add(client)
	s.logger.Info().
		Str("client_id", id).
		Str("remote", r.RemoteAddr).
		Int("clients", s.clients.Count()).
		Msg("observer connected")

	go client.writePump()
	go s.readPump(client)
}

// readPump discards inbound frames. The feed is read-only; the read loop
// exists to detect disconnects and honor close handshakes.
func (s *Server) readPump(client *Client) {
	defer func() {
		s.clients.Remove(client.ID)
		client.close()
		s.logger.Info().
			Str("client_id", client.ID).
			Int("clients", s.clients.Count()).
			Msg("observer disconnected")
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type statusBody struct {
		State      string           `json:"state"`
		QueueDepth int              `json:"queue_depth"`
		Observers  int              `json:"observers"`
		Current    *dispatch.Prompt `json:"current,omitempty"`
	}

	body := statusBody{
		State:      string(s.executor.State()),
		QueueDepth: s.dispatcher.QueueDepth(),
		Observers:  s.clients.Count(),
		Current:    s.dispatcher.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode status")
	}
}
