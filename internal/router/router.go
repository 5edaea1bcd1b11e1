// Package router sets up the HTTP routes and middleware chain for the
// document generation service.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"leasedocs/internal/handlers"
	"leasedocs/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and routes wired up.
func New(docs *handlers.Documents) chi.Router {
	r := chi.NewRouter()

	// Global middleware — applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)

	// Health check for the load balancer and the job queue dispatcher.
	r.Get("/healthz", healthHandler)

	r.Route("/api/leases/{id}/document", func(r chi.Router) {
		r.Post("/", docs.GenerateFromFields)
		r.Post("/html", docs.GenerateFromTemplate)
		r.Get("/", docs.GetDocument)
		r.Get("/history", docs.ListDocuments)
		r.Delete("/", docs.DeleteDocument)
	})

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
