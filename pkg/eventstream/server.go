package eventstream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/loom/internal/observability"
	"github.com/rs/zerolog"
)

// Server accepts WebSocket subscribers and serves metrics and health
// endpoints alongside.
type Server struct {
	addr        string
	clients     *Registry
	broadcaster *Broadcaster
	logger      zerolog.Logger
	upgrader    websocket.Upgrader
	httpServer  *http.Server
}

// ServerConfig configures the event stream server.
type ServerConfig struct {
	Addr   string
	Logger zerolog.Logger
}

// NewServer creates the server and its broadcaster.
func NewServer(cfg ServerConfig) *Server {
	clients := NewRegistry()
	return &Server{
		addr:        cfg.Addr,
		clients:     clients,
		broadcaster: NewBroadcaster(clients, cfg.Logger),
		logger:      cfg.Logger.With().Str("component", "eventstream-server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Broadcaster returns the broadcaster to attach to run hooks.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Subscribers returns the number of connected clients.
func (s *Server) Subscribers() int {
	return s.clients.Len()
}

// Handler returns the HTTP mux serving /events, /metrics and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleWebSocket)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", s.addr).Msg("event stream listening")

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes existing ones.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, client := range s.clients.All() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn)
	s.clients.Add(client)
	s.logger.Info().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("subscriber connected")

	// The stream is one-way. Reading only detects disconnects.
	go func() {
		defer func() {
			s.clients.Remove(client.ID)
			conn.Close()
			s.logger.Info().Str("client_id", client.ID).Msg("subscriber disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("subscriber read error")
				}
				return
			}
		}
	}()
}
