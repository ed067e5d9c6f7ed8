package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tmnance/insightarium/internal/apperr"
	"github.com/tmnance/insightarium/internal/ingest"
	"github.com/tmnance/insightarium/internal/models"
	"github.com/tmnance/insightarium/internal/store"
	"github.com/tmnance/insightarium/internal/tagging"
)

// maxBatchSize caps how many candidates one request may carry.
const maxBatchSize = 500

// Handler holds API route handlers.
type Handler struct {
	svc *ingest.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *ingest.Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps domain sentinel errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUpstreamFetch):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	default:
		slog.Error(context, slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Classify handles POST /api/classify: dry-run batch classification with
// no writes.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, errorBody("items must contain between 1 and 500 candidates"))
		return
	}

	results := h.svc.Classifier().ClassifyBatch(req.Items)
	out := make([]ClassificationDTO, len(results))
	for i, res := range results {
		out[i] = classificationDTO(res)
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{Results: out})
}

// Ingest handles POST /api/ingest: classify-then-persist for one candidate.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	res, err := h.svc.Ingest(r.Context(), req.Item, ingest.Options{
		FetchContent: req.FetchContent,
		AutoTag:      req.AutoTag,
	})
	if err != nil {
		writeError(w, err, "ingest failed")
		return
	}

	status := http.StatusOK
	if res.Status == ingest.StatusNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, ingestResponse(res))
}

// IngestBatch handles POST /api/ingest/batch. Failures are per-item; the
// batch always runs to completion.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req BatchIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, errorBody("items must contain between 1 and 500 candidates"))
		return
	}

	results := h.svc.IngestBatch(r.Context(), req.Items, ingest.Options{AutoTag: req.AutoTag})
	out := make([]BatchIngestResultDTO, len(results))
	for i, res := range results {
		out[i].Index = res.Index
		if res.Err != nil {
			out[i].Error = res.Err.Error()
			continue
		}
		out[i].Result = ingestResponse(res.Result)
	}
	writeJSON(w, http.StatusOK, BatchIngestResponse{Results: out})
}

// ListItems handles GET /api/items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.Items(store.ItemFilter{
		Source: q.Get("source"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err, "list items failed")
		return
	}
	if items == nil {
		items = []models.StoredItem{}
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: total})
}

// GetItem handles GET /api/items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.svc.Item(id)
	if err != nil {
		writeError(w, err, "get item failed")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ScoreContent handles POST /api/tags/score: rank catalog tags against
// arbitrary content without touching storage.
func (h *Handler) ScoreContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ScoreContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	matches := h.svc.Scorer().Score(req.Content)
	if matches == nil {
		matches = []tagging.Match{}
	}
	writeJSON(w, http.StatusOK, ScoreResponse{Matches: matches})
}

// ScoreItem handles POST /api/items/{id}/tags/score.
func (h *Handler) ScoreItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, matches, err := h.svc.ScoreItem(id)
	if err != nil {
		writeError(w, err, "score item failed")
		return
	}
	writeJSON(w, http.StatusOK, ScoreResponse{ItemID: item.ID, Matches: matches})
}

// ApplyItemTags handles POST /api/items/{id}/tags/apply.
func (h *Handler) ApplyItemTags(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, matches, err := h.svc.ApplyTags(id)
	if err != nil {
		writeError(w, err, "apply tags failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item":    item,
		"matches": matches,
	})
}

// ListTags handles GET /api/tags.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TagListResponse{Tags: h.svc.Scorer().Catalog()})
}
