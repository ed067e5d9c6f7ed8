package store

import (
	"time"

	"github.com/tmnance/insightarium/internal/models"
)

// ItemUpdate is a partial update applied to a stored item. Nil fields are
// left untouched; last_ingested_at is always advanced.
type ItemUpdate struct {
	Content         *string
	Author          *string
	SourceCreatedAt *time.Time
}

// Empty reports whether the update carries no field changes.
func (u ItemUpdate) Empty() bool {
	return u.Content == nil && u.Author == nil && u.SourceCreatedAt == nil
}

// ItemFilter narrows List results.
type ItemFilter struct {
	Source string
	Limit  int
	Offset int
}

// ItemStore defines the persistence surface consumed by the reconciliation
// and tagging engines.
type ItemStore interface {
	FindBySourceAndExternalID(source, externalID string) (*models.StoredItem, error)
	FindByURL(url string) (*models.StoredItem, error)
	Get(id string) (*models.StoredItem, error)
	List(f ItemFilter) ([]models.StoredItem, int, error)
	Create(item models.StoredItem) (*models.StoredItem, error)
	Update(id string, upd ItemUpdate) (*models.StoredItem, error)
	Associations(itemID string) ([]models.TagAssociation, error)
	SetAssociation(itemID string, assoc models.TagAssociation) error
	MergeAutoAssociation(itemID, slug, name string, confidence float64) error
	Close() error
}

// Verify *DB satisfies ItemStore at compile time.
var _ ItemStore = (*DB)(nil)
