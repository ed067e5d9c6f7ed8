package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tmnance/insightarium/internal/apperr"
	"github.com/tmnance/insightarium/internal/models"
	"github.com/tmnance/insightarium/internal/store"
	"github.com/tmnance/insightarium/internal/tagging"
	"github.com/tmnance/insightarium/internal/testutil"
)

func testService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	svc := NewService(db, tagging.NewScorer(tagging.DefaultCatalog()), nil, nil, nil)
	return svc, db
}

func TestIngest_IdempotentByExternalID(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	cand := models.CandidateItem{
		Source:  models.SourceX,
		URL:     "https://x.com/a/status/101",
		Content: "a post",
		Author:  "alice",
	}

	first, err := svc.Ingest(ctx, cand, Options{})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.Status != StatusNew {
		t.Fatalf("first status = %s, want new", first.Status)
	}
	if first.Item.ExternalID != "101" {
		t.Errorf("external id = %q, want derived 101", first.Item.ExternalID)
	}

	second, err := svc.Ingest(ctx, cand, Options{})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.Status != StatusDuplicate {
		t.Errorf("second status = %s, want duplicate", second.Status)
	}
	if second.Item.ID != first.Item.ID {
		t.Errorf("duplicate resolved to %s, want %s", second.Item.ID, first.Item.ID)
	}

	_, total, err := db.List(store.ItemFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("stored items = %d, want exactly 1", total)
	}
}

func TestIngest_ChangedUpdatesFields(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, models.CandidateItem{
		Source: models.SourceX, ExternalID: "7", Content: "draft", Author: "alice",
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	second, err := svc.Ingest(ctx, models.CandidateItem{
		Source: models.SourceX, ExternalID: "7", Content: "final", Author: "alice",
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if second.Status != StatusChanged {
		t.Fatalf("status = %s, want changed", second.Status)
	}
	if second.Item.Content != "final" {
		t.Errorf("content = %q, want final", second.Item.Content)
	}
	if second.Item.Author != "alice" {
		t.Errorf("author = %q, should be untouched", second.Item.Author)
	}
	if !second.Item.FirstIngestedAt.Equal(first.Item.FirstIngestedAt) {
		t.Error("first_ingested_at changed")
	}
	if !second.Item.LastIngestedAt.After(first.Item.LastIngestedAt) {
		t.Error("last_ingested_at did not advance")
	}
	if len(second.Changes) != 1 || second.Changes[0].Field != FieldContent {
		t.Errorf("changes = %+v", second.Changes)
	}
}

func TestIngest_DuplicateIsNoOp(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	cand := models.CandidateItem{Source: models.SourceX, ExternalID: "5", Content: "c"}
	first, err := svc.Ingest(ctx, cand, Options{})
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	second, err := svc.Ingest(ctx, cand, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != StatusDuplicate {
		t.Fatalf("status = %s, want duplicate", second.Status)
	}
	if !second.Item.LastIngestedAt.Equal(first.Item.LastIngestedAt) {
		t.Error("duplicate must not touch last_ingested_at")
	}
}

func TestIngest_RawAlwaysCreates(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	cand := models.CandidateItem{Source: models.SourceRaw, Content: "same text"}
	for i := 0; i < 2; i++ {
		res, err := svc.Ingest(ctx, cand, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != StatusNew {
			t.Errorf("ingest %d status = %s, want new", i, res.Status)
		}
	}
	_, total, _ := db.List(store.ItemFilter{})
	if total != 2 {
		t.Errorf("stored items = %d, want 2 (raw has no dedup key)", total)
	}
}

func TestIngest_AutoTag(t *testing.T) {
	svc, _ := testService(t)

	content := strings.Repeat("machine learning and neural network research ", 12)
	res, err := svc.Ingest(context.Background(), models.CandidateItem{
		Source: models.SourceRaw, Content: content,
	}, Options{AutoTag: true})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Tags) == 0 {
		t.Fatal("expected tag matches")
	}
	if res.Tags[0].Slug != "ai-ml" {
		t.Errorf("top tag = %s, want ai-ml", res.Tags[0].Slug)
	}
	var found bool
	for _, tag := range res.Item.Tags {
		if tag.Slug == "ai-ml" && tag.AutoTagged {
			found = true
		}
	}
	if !found {
		t.Errorf("item tags = %+v, want persisted ai-ml association", res.Item.Tags)
	}
}

func TestIngest_FetchContent(t *testing.T) {
	db := testutil.TestDB(t)
	fetched := "Readable text pulled from the page"
	var fetchCalls int
	fetch := func(_ context.Context, url string) (string, error) {
		fetchCalls++
		if url != "https://example.com/article" {
			return "", fmt.Errorf("unexpected url %s", url)
		}
		return fetched, nil
	}
	svc := NewService(db, tagging.NewScorer(tagging.DefaultCatalog()), nil, fetch, nil)

	res, err := svc.Ingest(context.Background(), models.CandidateItem{
		Source: models.SourceURL, URL: "https://example.com/article",
	}, Options{FetchContent: true})
	if err != nil {
		t.Fatal(err)
	}
	if fetchCalls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetchCalls)
	}
	if res.Item.Content != fetched {
		t.Errorf("content = %q, want fetched text", res.Item.Content)
	}

	// Candidates that already carry content are not re-fetched.
	if _, err := svc.Ingest(context.Background(), models.CandidateItem{
		Source: models.SourceURL, URL: "https://example.com/other", Content: "already here",
	}, Options{FetchContent: true}); err != nil {
		t.Fatal(err)
	}
	if fetchCalls != 1 {
		t.Errorf("fetch calls = %d, content-bearing candidate must not fetch", fetchCalls)
	}
}

func TestIngest_FetchErrorSurfaced(t *testing.T) {
	db := testutil.TestDB(t)
	fetch := func(_ context.Context, _ string) (string, error) {
		return "", fmt.Errorf("%w: connection refused", apperr.ErrUpstreamFetch)
	}
	svc := NewService(db, tagging.NewScorer(tagging.DefaultCatalog()), nil, fetch, nil)

	_, err := svc.Ingest(context.Background(), models.CandidateItem{
		Source: models.SourceURL, URL: "https://down.example",
	}, Options{FetchContent: true})
	if !errors.Is(err, apperr.ErrUpstreamFetch) {
		t.Errorf("expected ErrUpstreamFetch, got %v", err)
	}
}

func TestIngestBatch_OverlappingIdentity(t *testing.T) {
	svc, db := testService(t)

	results := svc.IngestBatch(context.Background(), []models.CandidateItem{
		{Source: models.SourceX, ExternalID: "1", Content: "a"},
		{Source: models.SourceX, ExternalID: "1", Content: "b"},
	}, Options{})

	if results[0].Err != nil || results[0].Result.Status != StatusNew {
		t.Errorf("index 0 = %+v, want NEW", results[0])
	}
	if results[1].Err != nil || results[1].Result.Status != StatusChanged {
		t.Errorf("index 1 = %+v, want CHANGED", results[1])
	}
	_, total, _ := db.List(store.ItemFilter{})
	if total != 1 {
		t.Errorf("stored items = %d, want 1", total)
	}
	if total == 1 && results[1].Result.Item.Content != "b" {
		t.Errorf("content = %q, want b", results[1].Result.Item.Content)
	}
}

func TestIngestBatch_ContinuesPastErrors(t *testing.T) {
	svc, _ := testService(t)

	results := svc.IngestBatch(context.Background(), []models.CandidateItem{
		{Source: models.SourceRaw}, // malformed
		{Source: models.SourceRaw, Content: "ok"},
	}, Options{})

	if !errors.Is(results[0].Err, apperr.ErrInvalid) {
		t.Errorf("index 0 err = %v, want ErrInvalid", results[0].Err)
	}
	if results[1].Err != nil || results[1].Result.Status != StatusNew {
		t.Errorf("index 1 = %+v, want NEW", results[1])
	}
}

func TestScoreAndApplyTags(t *testing.T) {
	svc, db := testService(t)

	content := strings.Repeat("kubernetes docker terraform observability ", 15)
	created, err := db.Create(models.StoredItem{Source: models.SourceRaw, Content: content})
	if err != nil {
		t.Fatal(err)
	}

	item, matches, err := svc.ScoreItem(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 || matches[0].Slug != "devops" {
		t.Fatalf("matches = %+v, want devops first", matches)
	}
	if len(item.Tags) != 0 {
		t.Error("ScoreItem must not persist associations")
	}

	item, _, err = svc.ApplyTags(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(item.Tags) == 0 {
		t.Error("ApplyTags did not persist associations")
	}
}

func TestScoreItem_NotFound(t *testing.T) {
	svc, _ := testService(t)
	if _, _, err := svc.ScoreItem("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// raceStore simulates a concurrent ingest winning the (source, external_id)
// create race: Create always loses, and the winning row becomes visible to
// lookups afterwards (unless stuck, which models contention that never
// resolves).
type raceStore struct {
	winner  models.StoredItem
	visible bool
	stuck   bool
	creates int
	updates int
}

func (s *raceStore) found() (*models.StoredItem, error) {
	w := s.winner
	return &w, nil
}

func (s *raceStore) FindBySourceAndExternalID(source, externalID string) (*models.StoredItem, error) {
	if s.visible && s.winner.Source == source && s.winner.ExternalID == externalID {
		return s.found()
	}
	return nil, apperr.ErrNotFound
}

func (s *raceStore) FindByURL(url string) (*models.StoredItem, error) {
	if s.visible && s.winner.URL == url {
		return s.found()
	}
	return nil, apperr.ErrNotFound
}

func (s *raceStore) Get(id string) (*models.StoredItem, error) {
	if s.visible && s.winner.ID == id {
		return s.found()
	}
	return nil, apperr.ErrNotFound
}

func (s *raceStore) List(store.ItemFilter) ([]models.StoredItem, int, error) {
	return nil, 0, nil
}

func (s *raceStore) Create(models.StoredItem) (*models.StoredItem, error) {
	s.creates++
	if !s.stuck {
		s.visible = true
	}
	return nil, apperr.ErrAlreadyExists
}

func (s *raceStore) Update(id string, upd store.ItemUpdate) (*models.StoredItem, error) {
	s.updates++
	if upd.Content != nil {
		s.winner.Content = *upd.Content
	}
	if upd.Author != nil {
		s.winner.Author = *upd.Author
	}
	if upd.SourceCreatedAt != nil {
		s.winner.SourceCreatedAt = upd.SourceCreatedAt
	}
	return s.found()
}

func (s *raceStore) Associations(string) ([]models.TagAssociation, error) { return nil, nil }
func (s *raceStore) SetAssociation(string, models.TagAssociation) error   { return nil }
func (s *raceStore) MergeAutoAssociation(string, string, string, float64) error {
	return nil
}
func (s *raceStore) Close() error { return nil }

func TestIngest_CreateRaceResolvesToDuplicate(t *testing.T) {
	st := &raceStore{winner: models.StoredItem{
		ID: "winner", Source: models.SourceX, ExternalID: "55", Content: "posted",
	}}
	svc := NewService(st, tagging.NewScorer(tagging.DefaultCatalog()), nil, nil, nil)

	res, err := svc.Ingest(context.Background(), models.CandidateItem{
		Source: models.SourceX, ExternalID: "55", Content: "posted",
	}, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != StatusDuplicate {
		t.Errorf("status = %s, want duplicate of the race winner", res.Status)
	}
	if res.Item.ID != "winner" {
		t.Errorf("item = %s, want the winning row", res.Item.ID)
	}
	if st.creates != 1 {
		t.Errorf("creates = %d, want exactly 1 lost attempt", st.creates)
	}
}

func TestIngest_CreateRaceResolvesToChanged(t *testing.T) {
	st := &raceStore{winner: models.StoredItem{
		ID: "winner", Source: models.SourceX, ExternalID: "55", Content: "draft",
	}}
	svc := NewService(st, tagging.NewScorer(tagging.DefaultCatalog()), nil, nil, nil)

	res, err := svc.Ingest(context.Background(), models.CandidateItem{
		Source: models.SourceX, ExternalID: "55", Content: "final",
	}, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != StatusChanged {
		t.Fatalf("status = %s, want changed against the race winner", res.Status)
	}
	if res.Item.Content != "final" {
		t.Errorf("content = %q, want updated winner", res.Item.Content)
	}
	if st.creates != 1 || st.updates != 1 {
		t.Errorf("creates = %d updates = %d, want 1/1", st.creates, st.updates)
	}
}

func TestIngest_CreateRaceRetriesExhausted(t *testing.T) {
	st := &raceStore{stuck: true}
	svc := NewService(st, tagging.NewScorer(tagging.DefaultCatalog()), nil, nil, nil)

	_, err := svc.Ingest(context.Background(), models.CandidateItem{
		Source: models.SourceX, ExternalID: "55", Content: "c",
	}, Options{})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict after exhausted retries", err)
	}
	if st.creates != maxCreateRetries {
		t.Errorf("creates = %d, want %d bounded attempts", st.creates, maxCreateRetries)
	}
}
