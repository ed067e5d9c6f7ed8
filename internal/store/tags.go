package store

import (
	"database/sql"
	"fmt"

	"github.com/tmnance/insightarium/internal/models"
)

// Associations returns every tag association for an item, ordered by slug.
func (db *DB) Associations(itemID string) ([]models.TagAssociation, error) {
	rows, err := db.conn.Query(`
		SELECT slug, name, auto_tagged, confidence
		FROM item_tags WHERE item_id = ? ORDER BY slug`, itemID)
	if err != nil {
		return nil, fmt.Errorf("store: associations: %w", err)
	}
	defer rows.Close()

	var out []models.TagAssociation
	for rows.Next() {
		var (
			a    models.TagAssociation
			conf sql.NullFloat64
		)
		if err := rows.Scan(&a.Slug, &a.Name, &a.AutoTagged, &conf); err != nil {
			return nil, fmt.Errorf("store: scan association: %w", err)
		}
		if conf.Valid {
			c := conf.Float64
			a.Confidence = &c
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetAssociation inserts or replaces an association verbatim. This is the
// path for manual tagging, where the caller's intent overrides whatever is
// stored.
func (db *DB) SetAssociation(itemID string, assoc models.TagAssociation) error {
	var conf any
	if assoc.Confidence != nil {
		conf = *assoc.Confidence
	}
	_, err := db.conn.Exec(`
		INSERT INTO item_tags (item_id, slug, name, auto_tagged, confidence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id, slug) DO UPDATE SET
			name        = excluded.name,
			auto_tagged = excluded.auto_tagged,
			confidence  = excluded.confidence`,
		itemID, assoc.Slug, assoc.Name, assoc.AutoTagged, conf)
	if err != nil {
		return fmt.Errorf("store: set association: %w", err)
	}
	return nil
}

// MergeAutoAssociation upserts a scorer-produced association atomically per
// (item, slug). An existing manual association keeps auto_tagged = false and
// only has a null confidence backfilled; an existing auto association has
// its confidence raised when the new score is higher, never lowered.
func (db *DB) MergeAutoAssociation(itemID, slug, name string, confidence float64) error {
	_, err := db.conn.Exec(`
		INSERT INTO item_tags (item_id, slug, name, auto_tagged, confidence)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(item_id, slug) DO UPDATE SET
			confidence = CASE
				WHEN item_tags.confidence IS NULL THEN excluded.confidence
				WHEN item_tags.auto_tagged = 1 AND excluded.confidence > item_tags.confidence
					THEN excluded.confidence
				ELSE item_tags.confidence
			END`,
		itemID, slug, name, confidence)
	if err != nil {
		return fmt.Errorf("store: merge auto association: %w", err)
	}
	return nil
}
