package api

import (
	"github.com/tmnance/insightarium/internal/ingest"
	"github.com/tmnance/insightarium/internal/models"
	"github.com/tmnance/insightarium/internal/tagging"
)

// ClassifyRequest is the request body for dry-run batch classification.
type ClassifyRequest struct {
	Items []models.CandidateItem `json:"items"`
}

// ClassificationDTO is one per-index classification outcome. ExistingID and
// Changes let the UI render "duplicate" vs. "changed" badges with
// field-level diffs.
type ClassificationDTO struct {
	Index      int                  `json:"index"`
	Status     ingest.Status        `json:"status,omitempty"`
	ExistingID string               `json:"existing_id,omitempty"`
	Changes    []ingest.FieldChange `json:"changes,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// ClassifyResponse wraps dry-run classification results.
type ClassifyResponse struct {
	Results []ClassificationDTO `json:"results"`
}

// IngestRequest is the request body for a single classify-then-persist.
type IngestRequest struct {
	Item         models.CandidateItem `json:"item"`
	FetchContent bool                 `json:"fetch_content,omitempty"`
	AutoTag      bool                 `json:"auto_tag,omitempty"`
}

// IngestResponse is the outcome of a single ingest.
type IngestResponse struct {
	Status  ingest.Status        `json:"status"`
	Item    *models.StoredItem   `json:"item"`
	Changes []ingest.FieldChange `json:"changes,omitempty"`
	Tags    []tagging.Match      `json:"tags,omitempty"`
}

// BatchIngestRequest is the request body for batch ingest.
type BatchIngestRequest struct {
	Items   []models.CandidateItem `json:"items"`
	AutoTag bool                   `json:"auto_tag,omitempty"`
}

// BatchIngestResultDTO is one per-index ingest outcome.
type BatchIngestResultDTO struct {
	Index  int             `json:"index"`
	Result *IngestResponse `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// BatchIngestResponse wraps batch ingest results.
type BatchIngestResponse struct {
	Results []BatchIngestResultDTO `json:"results"`
}

// ItemListResponse wraps paginated item listings.
type ItemListResponse struct {
	Items []models.StoredItem `json:"items"`
	Total int                 `json:"total"`
}

// ScoreContentRequest is the request body for scoring arbitrary content.
type ScoreContentRequest struct {
	Content string `json:"content"`
}

// ScoreResponse wraps ranked tag matches.
type ScoreResponse struct {
	ItemID  string          `json:"item_id,omitempty"`
	Matches []tagging.Match `json:"matches"`
}

// TagListResponse wraps the active tag catalog.
type TagListResponse struct {
	Tags []models.TagDefinition `json:"tags"`
}

func classificationDTO(r ingest.BatchResult) ClassificationDTO {
	dto := ClassificationDTO{Index: r.Index}
	if r.Err != nil {
		dto.Error = r.Err.Error()
		return dto
	}
	dto.Status = r.Decision.Status
	dto.Changes = r.Decision.Changes
	if r.Decision.Existing != nil {
		dto.ExistingID = r.Decision.Existing.ID
	}
	return dto
}

func ingestResponse(r *ingest.Result) *IngestResponse {
	return &IngestResponse{
		Status:  r.Status,
		Item:    r.Item,
		Changes: r.Changes,
		Tags:    r.Tags,
	}
}
