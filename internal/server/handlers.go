package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/Tyrowin/chatrelay/internal/observability"
)

// Server bundles the hub with the HTTP handlers that feed it.
type Server struct {
	cfg      config.Config
	hub      *Hub
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// New creates a Server with a fresh hub. The hub loop is not started; call
// StartHub before serving traffic.
func New(cfg config.Config, logger zerolog.Logger) *Server {
	cfg = config.Sanitize(cfg)
	metrics := observability.NewMetrics()
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &Server{
		cfg:     cfg,
		hub:     NewHub(cfg, metrics, logger),
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// Hub returns the server's hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Metrics returns the server's metric collectors.
func (s *Server) Metrics() *observability.Metrics {
	return s.metrics
}

// WebSocketHandler upgrades GET requests to WebSocket connections and hands
// each new client to the hub, which starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}
	s.metrics.ConnectionAccepted()

	client := NewClient(conn, s.hub, r.RemoteAddr)
	if !s.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// RootHandler upgrades WebSocket requests on "/" and answers plain requests
// with a short status line.
func (s *Server) RootHandler(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.WebSocketHandler(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Chat relay is running!")
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// HealthHandler reports liveness and the current number of sessions.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok", Sessions: s.hub.SessionCount()}); err != nil {
		s.logger.Warn().Err(err).Msg("Error writing health response")
	}
}
