package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.RootHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}
