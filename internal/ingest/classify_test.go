package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/tmnance/insightarium/internal/apperr"
	"github.com/tmnance/insightarium/internal/models"
	"github.com/tmnance/insightarium/internal/testutil"
)

func TestClassify_RejectsMalformed(t *testing.T) {
	clf := NewClassifier(testutil.TestDB(t))

	tests := []struct {
		name string
		cand models.CandidateItem
	}{
		{"no url no content", models.CandidateItem{Source: models.SourceRaw}},
		{"whitespace only", models.CandidateItem{Source: models.SourceRaw, Content: "   \n "}},
		{"missing source", models.CandidateItem{Content: "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := clf.Classify(tt.cand); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestClassify_New(t *testing.T) {
	clf := NewClassifier(testutil.TestDB(t))

	d, err := clf.Classify(models.CandidateItem{
		Source:  models.SourceX,
		URL:     "https://x.com/a/status/42",
		Content: "hello",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Status != StatusNew || d.Existing != nil {
		t.Errorf("decision = %+v, want NEW", d)
	}
}

func TestClassify_ExternalIDKey(t *testing.T) {
	db := testutil.TestDB(t)
	stored, err := db.Create(models.StoredItem{
		Source:     models.SourceX,
		ExternalID: "42",
		URL:        "https://x.com/a/status/42",
		Content:    "hello",
		Author:     "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	clf := NewClassifier(db)

	t.Run("identical content is duplicate", func(t *testing.T) {
		d, err := clf.Classify(models.CandidateItem{
			Source:  models.SourceX,
			URL:     "https://x.com/a/status/42",
			Content: "hello",
			Author:  "alice",
		})
		if err != nil {
			t.Fatal(err)
		}
		if d.Status != StatusDuplicate {
			t.Errorf("status = %s, want duplicate", d.Status)
		}
		if d.Existing == nil || d.Existing.ID != stored.ID {
			t.Errorf("existing = %+v, want stored item", d.Existing)
		}
	})

	t.Run("different content is changed", func(t *testing.T) {
		d, err := clf.Classify(models.CandidateItem{
			Source:  models.SourceX,
			URL:     "https://x.com/a/status/42",
			Content: "hello edited",
		})
		if err != nil {
			t.Fatal(err)
		}
		if d.Status != StatusChanged {
			t.Fatalf("status = %s, want changed", d.Status)
		}
		if len(d.Changes) != 1 || d.Changes[0].Field != FieldContent {
			t.Fatalf("changes = %+v, want single content change", d.Changes)
		}
		if d.Changes[0].Old != "hello" || d.Changes[0].New != "hello edited" {
			t.Errorf("change values = %+v", d.Changes[0])
		}
	})

	t.Run("explicit external id wins over url", func(t *testing.T) {
		// URL lookup would miss, but the supplied external ID matches.
		d, err := clf.Classify(models.CandidateItem{
			Source:     models.SourceX,
			ExternalID: "42",
			URL:        "https://mirror.example/alt-link",
			Content:    "hello",
			Author:     "alice",
		})
		if err != nil {
			t.Fatal(err)
		}
		if d.Status != StatusDuplicate {
			t.Errorf("status = %s, want duplicate via external id", d.Status)
		}
	})

	t.Run("empty candidate fields are not changes", func(t *testing.T) {
		d, err := clf.Classify(models.CandidateItem{
			Source: models.SourceX,
			URL:    "https://x.com/a/status/42",
		})
		if err != nil {
			t.Fatal(err)
		}
		if d.Status != StatusDuplicate {
			t.Errorf("status = %s, want duplicate (no tracked field supplied)", d.Status)
		}
	})
}

func TestClassify_URLFallback(t *testing.T) {
	db := testutil.TestDB(t)
	if _, err := db.Create(models.StoredItem{
		Source:  models.SourceURL,
		URL:     "https://example.com/post",
		Content: "an article",
	}); err != nil {
		t.Fatal(err)
	}
	clf := NewClassifier(db)

	d, err := clf.Classify(models.CandidateItem{
		Source:  models.SourceURL,
		URL:     "https://example.com/post",
		Content: "an article",
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != StatusDuplicate {
		t.Errorf("status = %s, want duplicate via url", d.Status)
	}
}

func TestClassify_TimestampChange(t *testing.T) {
	db := testutil.TestDB(t)
	orig := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := db.Create(models.StoredItem{
		Source:          models.SourceX,
		ExternalID:      "9",
		Content:         "c",
		SourceCreatedAt: &orig,
	}); err != nil {
		t.Fatal(err)
	}
	clf := NewClassifier(db)

	later := orig.Add(time.Hour)
	d, err := clf.Classify(models.CandidateItem{
		Source:     models.SourceX,
		ExternalID: "9",
		Content:    "c",
		Timestamp:  &later,
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != StatusChanged {
		t.Fatalf("status = %s, want changed", d.Status)
	}
	if len(d.Changes) != 1 || d.Changes[0].Field != FieldTimestamp {
		t.Errorf("changes = %+v, want timestamp change", d.Changes)
	}
}

func TestClassify_RawAlwaysNew(t *testing.T) {
	db := testutil.TestDB(t)
	if _, err := db.Create(models.StoredItem{Source: models.SourceRaw, Content: "identical text"}); err != nil {
		t.Fatal(err)
	}
	clf := NewClassifier(db)

	// Raw candidates have no dedup key: byte-identical content is still NEW.
	d, err := clf.Classify(models.CandidateItem{Source: models.SourceRaw, Content: "identical text"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != StatusNew {
		t.Errorf("status = %s, want new", d.Status)
	}
}

func TestClassifyBatch_ProjectedState(t *testing.T) {
	clf := NewClassifier(testutil.TestDB(t))

	results := clf.ClassifyBatch([]models.CandidateItem{
		{Source: models.SourceX, ExternalID: "1", Content: "a"},
		{Source: models.SourceX, ExternalID: "1", Content: "b"},
		{Source: models.SourceX, ExternalID: "1", Content: "b"},
	})

	if results[0].Err != nil || results[0].Decision.Status != StatusNew {
		t.Errorf("index 0 = %+v, want NEW", results[0])
	}
	if results[1].Err != nil || results[1].Decision.Status != StatusChanged {
		t.Errorf("index 1 = %+v, want CHANGED against projected state", results[1])
	}
	if results[2].Err != nil || results[2].Decision.Status != StatusDuplicate {
		t.Errorf("index 2 = %+v, want DUPLICATE of projected update", results[2])
	}
}

func TestClassifyBatch_URLProjection(t *testing.T) {
	clf := NewClassifier(testutil.TestDB(t))

	results := clf.ClassifyBatch([]models.CandidateItem{
		{Source: models.SourceURL, URL: "https://example.com/a", Content: "same"},
		{Source: models.SourceURL, URL: "https://example.com/a", Content: "same"},
	})
	if results[0].Decision.Status != StatusNew {
		t.Errorf("index 0 = %s, want NEW", results[0].Decision.Status)
	}
	if results[1].Decision.Status != StatusDuplicate {
		t.Errorf("index 1 = %s, want DUPLICATE", results[1].Decision.Status)
	}
}

func TestClassifyBatch_ContinuesPastErrors(t *testing.T) {
	clf := NewClassifier(testutil.TestDB(t))

	results := clf.ClassifyBatch([]models.CandidateItem{
		{Source: models.SourceRaw}, // malformed
		{Source: models.SourceRaw, Content: "fine"},
	})
	if !errors.Is(results[0].Err, apperr.ErrInvalid) {
		t.Errorf("index 0 err = %v, want ErrInvalid", results[0].Err)
	}
	if results[1].Err != nil || results[1].Decision.Status != StatusNew {
		t.Errorf("index 1 = %+v, want NEW", results[1])
	}
}
