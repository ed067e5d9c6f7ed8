package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/tmnance/insightarium/internal/apperr"
	"github.com/tmnance/insightarium/internal/models"
)

const itemColumns = `id, source, external_id, url, content, author,
	source_created_at, first_ingested_at, last_ingested_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (*models.StoredItem, error) {
	var (
		it         models.StoredItem
		externalID sql.NullString
		url        sql.NullString
		sourceAt   sql.NullTime
	)
	err := s.Scan(&it.ID, &it.Source, &externalID, &url, &it.Content, &it.Author,
		&sourceAt, &it.FirstIngestedAt, &it.LastIngestedAt)
	if err != nil {
		return nil, err
	}
	it.ExternalID = externalID.String
	it.URL = url.String
	if sourceAt.Valid {
		t := sourceAt.Time
		it.SourceCreatedAt = &t
	}
	return &it, nil
}

// nullable maps "" to NULL so the partial unique index on
// (source, external_id) only covers real identifiers.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// FindBySourceAndExternalID looks an item up by its unique deduplication key.
// Returns apperr.ErrNotFound when no item matches.
func (db *DB) FindBySourceAndExternalID(source, externalID string) (*models.StoredItem, error) {
	row := db.conn.QueryRow(
		`SELECT `+itemColumns+` FROM items WHERE source = ? AND external_id = ?`,
		source, externalID)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find by external id: %w", err)
	}
	return it, nil
}

// FindByURL looks an item up by URL. URLs are not unique; the earliest
// ingested item wins, with rowid as the final tie-break, so repeated
// lookups are deterministic. Returns apperr.ErrNotFound when no item
// matches.
func (db *DB) FindByURL(url string) (*models.StoredItem, error) {
	row := db.conn.QueryRow(
		`SELECT `+itemColumns+` FROM items WHERE url = ?
		 ORDER BY first_ingested_at ASC, rowid ASC LIMIT 1`, url)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find by url: %w", err)
	}
	return it, nil
}

// Get returns an item by ID with its tag associations attached.
func (db *DB) Get(id string) (*models.StoredItem, error) {
	row := db.conn.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get item: %w", err)
	}
	tags, err := db.Associations(id)
	if err != nil {
		return nil, err
	}
	it.Tags = tags
	return it, nil
}

// List returns items newest-first with optional source filtering, plus the
// total count before pagination.
func (db *DB) List(f ItemFilter) ([]models.StoredItem, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := ""
	args := []any{}
	if f.Source != "" {
		where = ` WHERE source = ?`
		args = append(args, f.Source)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM items`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count items: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := db.conn.Query(
		`SELECT `+itemColumns+` FROM items`+where+
			` ORDER BY first_ingested_at DESC, rowid DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list items: %w", err)
	}
	defer rows.Close()

	var out []models.StoredItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scan item: %w", err)
		}
		out = append(out, *it)
	}
	return out, total, rows.Err()
}

// Create inserts a new item, assigning its ID and ingestion timestamps.
// A uniqueness violation on (source, external_id) is reported as
// apperr.ErrAlreadyExists so callers can re-fetch and reclassify.
func (db *DB) Create(item models.StoredItem) (*models.StoredItem, error) {
	item.ID = uuid.New().String()
	now := time.Now().UTC()
	item.FirstIngestedAt = now
	item.LastIngestedAt = now

	var sourceAt any
	if item.SourceCreatedAt != nil {
		sourceAt = item.SourceCreatedAt.UTC()
	}

	_, err := db.conn.Exec(`
		INSERT INTO items (id, source, external_id, url, content, author,
			source_created_at, first_ingested_at, last_ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Source, nullable(item.ExternalID), nullable(item.URL),
		item.Content, item.Author, sourceAt, item.FirstIngestedAt, item.LastIngestedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, apperr.ErrAlreadyExists
		}
		return nil, fmt.Errorf("store: insert item: %w", err)
	}
	return db.Get(item.ID)
}

// Update applies a partial field update and advances last_ingested_at.
// first_ingested_at is never touched.
func (db *DB) Update(id string, upd ItemUpdate) (*models.StoredItem, error) {
	sets := []string{"last_ingested_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *upd.Content)
	}
	if upd.Author != nil {
		sets = append(sets, "author = ?")
		args = append(args, *upd.Author)
	}
	if upd.SourceCreatedAt != nil {
		sets = append(sets, "source_created_at = ?")
		args = append(args, upd.SourceCreatedAt.UTC())
	}
	args = append(args, id)

	res, err := db.conn.Exec(`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.ErrNotFound
	}
	return db.Get(id)
}
