package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tmnance/insightarium/internal/ingest"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *ingest.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Reconciliation.
	r.Post("/classify", h.Classify)
	r.Post("/ingest", h.Ingest)
	r.Post("/ingest/batch", h.IngestBatch)

	// Items.
	r.Get("/items", h.ListItems)
	r.Get("/items/{id}", h.GetItem)

	// Tag scoring.
	r.Post("/tags/score", h.ScoreContent)
	r.Get("/tags", h.ListTags)
	r.Post("/items/{id}/tags/score", h.ScoreItem)
	r.Post("/items/{id}/tags/apply", h.ApplyItemTags)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
