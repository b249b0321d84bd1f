package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairlie/keel/internal/jobservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *jobservice.Service, runner *jobservice.Runner, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, runner)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Jobs.
	r.Post("/jobs", h.CreateJob)
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{id}", h.GetJob)
	r.Delete("/jobs/{id}", h.DeleteJob)

	// Artifacts.
	r.Get("/jobs/{id}/artifacts", h.ListArtifacts)
	r.Get("/jobs/{id}/artifacts/{name}", h.GetArtifact)

	// Ad-hoc analysis without job bookkeeping.
	r.Post("/scan", h.Scan)
	r.Post("/plan", h.Plan)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
