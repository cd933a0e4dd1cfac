package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Scheduler-triggered collection entry point
	mux.HandleFunc("POST /api/collect", s.app.CollectHandler.Collect)

	// Push-style transform trigger (mirrors the bus consumer)
	mux.HandleFunc("POST /api/transform", s.app.TransformHandler.Transform)

	// Status and health
	mux.HandleFunc("GET /api/status", s.app.StatusHandler.Status)
	mux.HandleFunc("GET /health", s.app.StatusHandler.Status)

	return mux
}
