package ingest

import (
	"github.com/tmnance/insightarium/internal/models"
)

// BatchResult is the per-index outcome of a batch classification. Exactly
// one of Decision or Err is set; a failed candidate never aborts the rest
// of the batch.
type BatchResult struct {
	Index    int       `json:"index"`
	Decision *Decision `json:"decision,omitempty"`
	Err      error     `json:"-"`
}

// projection tracks the would-be store state produced by earlier candidates
// in the same batch, so overlapping identities resolve against the first
// occurrence rather than stale store state.
type projection struct {
	byKey map[string]*models.StoredItem
	byURL map[string]*models.StoredItem
}

func newProjection() *projection {
	return &projection{
		byKey: make(map[string]*models.StoredItem),
		byURL: make(map[string]*models.StoredItem),
	}
}

func keyOf(source, extID string) string {
	return source + "\x00" + extID
}

func (p *projection) find(cand models.CandidateItem) *models.StoredItem {
	if extID := externalID(cand); extID != "" {
		if it, ok := p.byKey[keyOf(cand.Source, extID)]; ok {
			return it
		}
	}
	if cand.URL != "" {
		if it, ok := p.byURL[cand.URL]; ok {
			return it
		}
	}
	return nil
}

// record registers the projected post-decision state of a candidate. Raw
// candidates without either identity key project nothing: they can never be
// matched by a later candidate.
func (p *projection) record(cand models.CandidateItem, d *Decision) {
	var it models.StoredItem
	switch d.Status {
	case StatusNew:
		it = itemFromCandidate(cand)
	case StatusChanged:
		it = *d.Existing
		for _, ch := range d.Changes {
			switch ch.Field {
			case FieldContent:
				it.Content = cand.Content
			case FieldAuthor:
				it.Author = cand.Author
			case FieldTimestamp:
				it.SourceCreatedAt = cand.Timestamp
			}
		}
	case StatusDuplicate:
		it = *d.Existing
	}

	if it.ExternalID != "" {
		p.byKey[keyOf(it.Source, it.ExternalID)] = &it
	}
	if it.URL != "" {
		p.byURL[it.URL] = &it
	}
}

// ClassifyBatch classifies candidates independently against current store
// state, in order of appearance. Later occurrences of an identity already
// seen in the batch compare against the first occurrence's projected state,
// which prevents the same logical item from classifying NEW twice in one
// batch. No writes are performed.
func (c *Classifier) ClassifyBatch(cands []models.CandidateItem) []BatchResult {
	proj := newProjection()
	out := make([]BatchResult, len(cands))

	for i, raw := range cands {
		cand := normalize(raw)
		out[i].Index = i

		if err := cand.Validate(); err != nil {
			out[i].Err = err
			continue
		}

		var d *Decision
		if projected := proj.find(cand); projected != nil {
			d = decide(cand, projected)
		} else {
			existing, err := c.lookup(cand)
			if err != nil {
				out[i].Err = err
				continue
			}
			if existing == nil {
				d = &Decision{Status: StatusNew}
			} else {
				d = decide(cand, existing)
			}
		}

		proj.record(cand, d)
		out[i].Decision = d
	}
	return out
}
