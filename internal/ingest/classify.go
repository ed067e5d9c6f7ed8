// Package ingest implements the reconciliation engine: deciding, for every
// incoming candidate, whether it is new, an update to an existing item, or
// a true duplicate, and persisting the outcome.
package ingest

import (
	"errors"
	"strings"
	"time"

	"github.com/tmnance/insightarium/internal/apperr"
	"github.com/tmnance/insightarium/internal/models"
	"github.com/tmnance/insightarium/internal/platform"
	"github.com/tmnance/insightarium/internal/store"
)

// Status classifies a candidate against the store.
type Status string

const (
	StatusNew       Status = "new"
	StatusChanged   Status = "changed"
	StatusDuplicate Status = "duplicate"
)

// Tracked field names reported in change diffs.
const (
	FieldContent   = "content"
	FieldAuthor    = "author"
	FieldTimestamp = "timestamp"
)

// FieldChange records one differing tracked field, with both values for
// UI display.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Decision is the outcome of classifying one candidate. Existing is set
// for CHANGED and DUPLICATE; Changes is set for CHANGED only.
type Decision struct {
	Status   Status             `json:"status"`
	Existing *models.StoredItem `json:"existing,omitempty"`
	Changes  []FieldChange      `json:"changes,omitempty"`
}

// Classifier resolves candidate identity against the store.
type Classifier struct {
	store store.ItemStore
}

// NewClassifier creates a Classifier over the given store.
func NewClassifier(st store.ItemStore) *Classifier {
	return &Classifier{store: st}
}

// Classify validates a candidate and resolves it against the current store
// state: the (source, externalId) key first, then the URL fallback. A
// candidate matching neither is NEW. Raw candidates with no URL and no
// external ID always classify NEW, even for identical content; dedup is
// deliberately scoped to the two documented keys.
func (c *Classifier) Classify(cand models.CandidateItem) (*Decision, error) {
	cand = normalize(cand)
	if err := cand.Validate(); err != nil {
		return nil, err
	}

	existing, err := c.lookup(cand)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return &Decision{Status: StatusNew}, nil
	}
	return decide(cand, existing), nil
}

func (c *Classifier) lookup(cand models.CandidateItem) (*models.StoredItem, error) {
	if extID := externalID(cand); extID != "" {
		it, err := c.store.FindBySourceAndExternalID(cand.Source, extID)
		if err == nil {
			return it, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	if cand.URL != "" {
		it, err := c.store.FindByURL(cand.URL)
		if err == nil {
			return it, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// decide runs change detection for a matched candidate. A tracked field
// counts as changed when the candidate value is non-empty and differs from
// the stored value after trimming.
func decide(cand models.CandidateItem, existing *models.StoredItem) *Decision {
	var changes []FieldChange

	if cand.Content != "" && cand.Content != strings.TrimSpace(existing.Content) {
		changes = append(changes, FieldChange{Field: FieldContent, Old: existing.Content, New: cand.Content})
	}
	if cand.Author != "" && cand.Author != strings.TrimSpace(existing.Author) {
		changes = append(changes, FieldChange{Field: FieldAuthor, Old: existing.Author, New: cand.Author})
	}
	if cand.Timestamp != nil && !timesEqual(cand.Timestamp, existing.SourceCreatedAt) {
		changes = append(changes, FieldChange{
			Field: FieldTimestamp,
			Old:   formatTime(existing.SourceCreatedAt),
			New:   formatTime(cand.Timestamp),
		})
	}

	if len(changes) == 0 {
		return &Decision{Status: StatusDuplicate, Existing: existing}
	}
	return &Decision{Status: StatusChanged, Existing: existing, Changes: changes}
}

// normalize trims the string fields a candidate is compared and stored by.
func normalize(cand models.CandidateItem) models.CandidateItem {
	cand.Source = strings.TrimSpace(cand.Source)
	cand.ExternalID = strings.TrimSpace(cand.ExternalID)
	cand.URL = strings.TrimSpace(cand.URL)
	cand.Content = strings.TrimSpace(cand.Content)
	cand.Author = strings.TrimSpace(cand.Author)
	return cand
}

// externalID returns the candidate's stable identifier: the scraper-supplied
// value when present, otherwise one derived from the platform URL.
func externalID(cand models.CandidateItem) string {
	if cand.ExternalID != "" {
		return cand.ExternalID
	}
	return platform.ExternalID(cand.Source, cand.URL)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// itemFromCandidate builds the stored shape of a NEW candidate.
func itemFromCandidate(cand models.CandidateItem) models.StoredItem {
	return models.StoredItem{
		Source:          cand.Source,
		ExternalID:      externalID(cand),
		URL:             cand.URL,
		Content:         cand.Content,
		Author:          cand.Author,
		SourceCreatedAt: cand.Timestamp,
	}
}

// updateFromChanges maps a CHANGED decision onto a partial store update.
func updateFromChanges(cand models.CandidateItem, changes []FieldChange) store.ItemUpdate {
	var upd store.ItemUpdate
	for _, ch := range changes {
		switch ch.Field {
		case FieldContent:
			content := cand.Content
			upd.Content = &content
		case FieldAuthor:
			author := cand.Author
			upd.Author = &author
		case FieldTimestamp:
			upd.SourceCreatedAt = cand.Timestamp
		}
	}
	return upd
}
