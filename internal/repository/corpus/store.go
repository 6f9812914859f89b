// Package corpus persists the raw document corpus in SQLite. The corpus is
// the source of truth for rebuilds: the vector index and the docstore can
// always be regenerated from it without re-acquiring documents from their
// original sources.
package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/semdex-io/semdex/internal/domain/document"
)

const schema = `
	CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		text TEXT NOT NULL,
		authors_json TEXT,
		year INTEGER NOT NULL DEFAULT 0,
		venue TEXT,
		keywords_json TEXT,
		url TEXT,
		source TEXT,
		added_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_papers_source ON papers(source) WHERE source IS NOT NULL;
`

// MemoryPath opens an in-memory corpus that dies with the connection.
// Used by the embedded client when no data directory is configured.
const MemoryPath = ":memory:"

// Store wraps the SQLite corpus database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the corpus database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating corpus schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database file is still reachable and writable enough
// to answer a query.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Upsert inserts or replaces documents in one transaction. A replaced
// document moves to the end of insertion order, so its internal id shifts
// on the next rebuild.
func (s *Store) Upsert(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin corpus tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO papers (
			id, title, text, authors_json, year, venue, keywords_json, url, source, added_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing corpus insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i := range docs {
		d := &docs[i]
		authorsJSON, err := marshalStrings(d.Authors())
		if err != nil {
			return fmt.Errorf("marshaling authors for %s: %w", d.ID(), err)
		}
		keywordsJSON, err := marshalStrings(d.Keywords())
		if err != nil {
			return fmt.Errorf("marshaling keywords for %s: %w", d.ID(), err)
		}

		_, err = stmt.ExecContext(ctx,
			d.ID(), d.Title(), d.Text(), authorsJSON, d.Year(),
			nullableString(d.Venue()), keywordsJSON,
			nullableString(d.URL()), nullableString(d.Source()), now,
		)
		if err != nil {
			return fmt.Errorf("inserting paper %s: %w", d.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit corpus tx: %w", err)
	}
	return nil
}

// All returns every document in insertion order. Rebuilds iterate this, so
// an unchanged corpus produces the same internal id assignment every time.
func (s *Store) All(ctx context.Context) ([]document.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, text, authors_json, year, venue, keywords_json, url, source
		FROM papers ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	return docs, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM papers").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting papers: %w", err)
	}
	return count, nil
}

// Has reports whether a document id is already stored.
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM papers WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking paper %s: %w", id, err)
	}
	return true, nil
}

func scanDocument(rows *sql.Rows) (document.Document, error) {
	var (
		id, title, text           string
		year                      int
		authorsJSON, keywordsJSON sql.NullString
		venue, url, source        sql.NullString
	)

	err := rows.Scan(&id, &title, &text, &authorsJSON, &year, &venue, &keywordsJSON, &url, &source)
	if err != nil {
		return document.Document{}, fmt.Errorf("scanning paper: %w", err)
	}

	authors, err := unmarshalStrings(authorsJSON)
	if err != nil {
		return document.Document{}, fmt.Errorf("parsing authors JSON for %s: %w", id, err)
	}
	keywords, err := unmarshalStrings(keywordsJSON)
	if err != nil {
		return document.Document{}, fmt.Errorf("parsing keywords JSON for %s: %w", id, err)
	}

	return document.Reconstruct(
		id, title, text, authors, year,
		venue.String, keywords, url.String, source.String,
	), nil
}

func marshalStrings(values []string) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalStrings(v sql.NullString) ([]string, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(v.String), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
