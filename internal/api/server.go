// Package api exposes the dashboards over HTTP for the browser frontend.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"granel_dashboard/internal/dashboard"
)

type Server struct {
	transfers *dashboard.TransferDashboard
	incidents *dashboard.IncidentDashboard
	whatsapp  *dashboard.WhatsAppDashboard
	router    chi.Router
	server    *http.Server
}

func NewServer(transfers *dashboard.TransferDashboard, incidents *dashboard.IncidentDashboard, whatsapp *dashboard.WhatsAppDashboard) *Server {
	s := &Server{
		transfers: transfers,
		incidents: incidents,
		whatsapp:  whatsapp,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.logMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/transfers", s.handleTransfers)
		r.Post("/transfers/viewed", s.handleTransferViewed)

		r.Get("/incidents", s.handleIncidents)
		r.Post("/incidents/viewed", s.handleIncidentViewed)
		r.Post("/incidents/{rowIndex}/status", s.handleIncidentStatus)

		r.Get("/conversations", s.handleConversations)
		r.Get("/conversations/{phone}", s.handleConversation)

		r.Post("/refresh", s.handleRefresh)
	})

	return r
}

// The sheet itself is public; the API stays permissive so any frontend
// origin can consume it.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe starts the server on addr and blocks.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the handler, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
