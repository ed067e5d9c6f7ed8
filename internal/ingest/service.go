package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmnance/insightarium/internal/apperr"
	"github.com/tmnance/insightarium/internal/models"
	"github.com/tmnance/insightarium/internal/sse"
	"github.com/tmnance/insightarium/internal/store"
	"github.com/tmnance/insightarium/internal/tagging"
)

// maxCreateRetries bounds the constraint-violation retry loop: a create
// that keeps losing the (source, external_id) race is re-fetched and
// reclassified at most this many times.
const maxCreateRetries = 3

// ContentFetcher resolves a URL to readable text. Network fetching is an
// external collaborator; the service only invokes it when asked to.
type ContentFetcher func(ctx context.Context, url string) (string, error)

// Options controls optional steps of a single ingest.
type Options struct {
	// FetchContent resolves the candidate URL to text when the candidate
	// carries no content of its own.
	FetchContent bool
	// AutoTag runs the tag scoring engine on the persisted content and
	// applies the matches.
	AutoTag bool
}

// Result is the outcome of classify-then-persist for one candidate.
type Result struct {
	Status  Status             `json:"status"`
	Item    *models.StoredItem `json:"item"`
	Changes []FieldChange      `json:"changes,omitempty"`
	Tags    []tagging.Match    `json:"tags,omitempty"`
}

// ItemResult is the per-index outcome of a batch ingest.
type ItemResult struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// Service coordinates classification, persistence, tag scoring, and event
// publication for candidate items.
type Service struct {
	store  store.ItemStore
	clf    *Classifier
	scorer *tagging.Scorer
	broker *sse.Broker // optional
	fetch  ContentFetcher
	logger *slog.Logger
}

// NewService creates the ingest service. broker and fetch may be nil; the
// corresponding steps are then skipped.
func NewService(st store.ItemStore, scorer *tagging.Scorer, broker *sse.Broker, fetch ContentFetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		clf:    NewClassifier(st),
		scorer: scorer,
		broker: broker,
		fetch:  fetch,
		logger: logger,
	}
}

// Classifier exposes the underlying reconciliation engine for dry-run
// classification.
func (s *Service) Classifier() *Classifier {
	return s.clf
}

// Scorer exposes the tag scoring engine.
func (s *Service) Scorer() *tagging.Scorer {
	return s.scorer
}

// Ingest classifies one candidate and persists the outcome. NEW creates,
// CHANGED updates only the differing fields, DUPLICATE writes nothing.
// When a create loses the uniqueness race to a concurrent ingest, the
// candidate is reclassified against the winner, bounded by
// maxCreateRetries.
func (s *Service) Ingest(ctx context.Context, cand models.CandidateItem, opts Options) (*Result, error) {
	cand = normalize(cand)
	if err := cand.Validate(); err != nil {
		return nil, err
	}

	if opts.FetchContent && cand.Content == "" && cand.URL != "" && s.fetch != nil {
		content, err := s.fetch(ctx, cand.URL)
		if err != nil {
			return nil, err
		}
		cand.Content = strings.TrimSpace(content)
	}

	for attempt := 0; attempt < maxCreateRetries; attempt++ {
		d, err := s.clf.Classify(cand)
		if err != nil {
			return nil, err
		}

		res, err := s.persist(cand, d)
		if errors.Is(err, apperr.ErrAlreadyExists) {
			// Lost the create race; another ingest inserted the same
			// identity first. Re-fetch and reclassify.
			s.logger.Debug("ingest: create race, reclassifying",
				slog.String("source", cand.Source), slog.String("url", cand.URL))
			continue
		}
		if err != nil {
			return nil, err
		}

		if opts.AutoTag && s.scorer != nil {
			if err := s.autoTag(res); err != nil {
				return nil, err
			}
		}
		return res, nil
	}
	return nil, fmt.Errorf("ingest: retries exhausted resolving create race: %w", apperr.ErrConflict)
}

func (s *Service) persist(cand models.CandidateItem, d *Decision) (*Result, error) {
	switch d.Status {
	case StatusNew:
		item, err := s.store.Create(itemFromCandidate(cand))
		if err != nil {
			return nil, err
		}
		s.publish("created", item.ID)
		return &Result{Status: StatusNew, Item: item}, nil

	case StatusChanged:
		item, err := s.store.Update(d.Existing.ID, updateFromChanges(cand, d.Changes))
		if err != nil {
			return nil, err
		}
		s.publish("updated", item.ID)
		return &Result{Status: StatusChanged, Item: item, Changes: d.Changes}, nil

	default:
		return &Result{Status: StatusDuplicate, Item: d.Existing}, nil
	}
}

func (s *Service) autoTag(res *Result) error {
	matches := s.scorer.Score(res.Item.Content)
	res.Tags = matches
	if len(matches) == 0 {
		return nil
	}
	if err := tagging.Apply(s.store, res.Item.ID, matches); err != nil {
		return err
	}
	// Reload so the returned item carries its associations.
	item, err := s.store.Get(res.Item.ID)
	if err != nil {
		return err
	}
	res.Item = item
	s.publish("tagged", item.ID)
	return nil
}

// IngestBatch ingests candidates in order of appearance. Each item is
// classified against the then-current store state, so a batch containing
// the same identity twice creates once and updates after. Failures are
// per-item; the batch always runs to completion.
func (s *Service) IngestBatch(ctx context.Context, cands []models.CandidateItem, opts Options) []ItemResult {
	out := make([]ItemResult, len(cands))
	for i, cand := range cands {
		out[i].Index = i
		res, err := s.Ingest(ctx, cand, opts)
		if err != nil {
			s.logger.Warn("ingest: batch item failed",
				slog.Int("index", i), slog.String("error", err.Error()))
			out[i].Err = err
			continue
		}
		out[i].Result = res
	}
	return out
}

// Item returns a stored item with its associations.
func (s *Service) Item(id string) (*models.StoredItem, error) {
	return s.store.Get(id)
}

// Items lists stored items newest-first.
func (s *Service) Items(f store.ItemFilter) ([]models.StoredItem, int, error) {
	return s.store.List(f)
}

// ScoreItem runs the tag scoring engine over a stored item's content
// without persisting anything.
func (s *Service) ScoreItem(id string) (*models.StoredItem, []tagging.Match, error) {
	item, err := s.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	return item, s.scorer.Score(item.Content), nil
}

// ApplyTags scores a stored item and persists the matches as auto-tagged
// associations, returning the refreshed item.
func (s *Service) ApplyTags(id string) (*models.StoredItem, []tagging.Match, error) {
	item, matches, err := s.ScoreItem(id)
	if err != nil {
		return nil, nil, err
	}
	if len(matches) > 0 {
		if err := tagging.Apply(s.store, item.ID, matches); err != nil {
			return nil, nil, err
		}
		if item, err = s.store.Get(id); err != nil {
			return nil, nil, err
		}
		s.publish("tagged", item.ID)
	}
	return item, matches, nil
}

func (s *Service) publish(kind, id string) {
	if s.broker != nil {
		s.broker.PublishItemEvent(kind, id)
	}
}
