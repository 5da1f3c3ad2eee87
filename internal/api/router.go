package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - client must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// System overview
			r.Get("/system", s.handleSystem)

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/types", s.handleDeviceTypes)
				r.Get("/stats", s.handleDeviceStats)
				r.Put("/state", s.handleSetDeviceState)
				r.Post("/disable-all", s.handleDisableAll)
			})

			// Snapshot refresh
			r.Post("/refresh", s.handleRefresh)

			// Mutation history and the in-flight elevated operation
			r.Get("/history", s.handleHistory)
			r.Get("/operations/current", s.handleCurrentOperation)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
