// Package models defines the domain types for Insightarium.
package models

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/tmnance/insightarium/internal/apperr"
)

// Known candidate sources. Scrapers and the submission UI tag every
// candidate with one of these; unknown sources are stored as-is.
const (
	SourceX        = "x"
	SourceLinkedIn = "linkedin"
	SourceReddit   = "reddit"
	SourceURL      = "url"
	SourceRaw      = "raw"
)

// CandidateItem is an unvalidated, not-yet-persisted record describing a
// potential bookmark. Candidates are produced by browser scrapers or manual
// submission and discarded after classification.
type CandidateItem struct {
	Source string `json:"source"`
	// ExternalID is the source-specific stable identifier. Scrapers may
	// supply it directly; when absent it is derived from the URL.
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url,omitempty"`
	Content    string `json:"content,omitempty"`
	Author     string `json:"author,omitempty"`
	// Timestamp is the origin-side creation time ("posted at"), distinct
	// from ingestion time.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Validate rejects malformed candidates before classification. A candidate
// must name its source and carry at least one of URL or content.
func (c CandidateItem) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Source, validation.Required),
	); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if strings.TrimSpace(c.URL) == "" && strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("%w: either url or content is required", apperr.ErrInvalid)
	}
	return nil
}

// StoredItem is a persisted bookmark. The pair (Source, ExternalID) is
// unique when ExternalID is non-empty; URL is a non-unique fallback
// identity key.
type StoredItem struct {
	ID              string           `json:"id"`
	Source          string           `json:"source"`
	ExternalID      string           `json:"external_id,omitempty"`
	URL             string           `json:"url,omitempty"`
	Content         string           `json:"content,omitempty"`
	Author          string           `json:"author,omitempty"`
	SourceCreatedAt *time.Time       `json:"source_created_at,omitempty"`
	FirstIngestedAt time.Time        `json:"first_ingested_at"`
	LastIngestedAt  time.Time        `json:"last_ingested_at"`
	Tags            []TagAssociation `json:"tags,omitempty"`
}

// TagAssociation links a stored item to a tag. Confidence is nil for
// manual tags that were never scored.
type TagAssociation struct {
	Slug       string   `json:"slug"`
	Name       string   `json:"name"`
	AutoTagged bool     `json:"auto_tagged"`
	Confidence *float64 `json:"confidence,omitempty"`
}
