package vecstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteIndex implements the Index interface using SQLite
type SQLiteIndex struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteIndex creates a new SQLite-backed vector index
func NewSQLiteIndex(dbPath string) (*SQLiteIndex, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteIndex{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// Insert stores documents in a collection. The collection row is created on
// first write with the dimensionality of the supplied vectors; subsequent
// writes must match it exactly. All documents go in one transaction so a
// failed batch leaves nothing behind.
func (s *SQLiteIndex) Insert(ctx context.Context, collection string, docs []Document) error {
	if collection == "" {
		return errors.New("collection name cannot be empty")
	}
	if len(docs) == 0 {
		return nil
	}

	dim := len(docs[0].Vector)
	if dim == 0 {
		return ErrEmptyVector
	}
	for i, doc := range docs {
		if doc.DocID == "" {
			return fmt.Errorf("document %d: doc id cannot be empty", i)
		}
		if len(doc.Vector) != dim {
			return fmt.Errorf("%w: document %q is %d-dimensional, batch is %d-dimensional",
				ErrDimensionMismatch, doc.DocID, len(doc.Vector), dim)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stored, ok, err := dimensionalityTx(ctx, tx, collection)
	if err != nil {
		return err
	}
	if ok && stored != dim {
		return fmt.Errorf("%w: collection %q holds %d-dimensional vectors, insert is %d-dimensional",
			ErrDimensionMismatch, collection, stored, dim)
	}
	if !ok {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO collections (name, dimension, created_at) VALUES (?, ?, ?)",
			collection, dim, time.Now()); err != nil {
			return fmt.Errorf("failed to create collection %q: %w", collection, err)
		}
	}

	query := `
		INSERT INTO documents (collection, doc_id, content, vector, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, doc_id) DO UPDATE SET
			content = excluded.content,
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, query,
			collection, doc.DocID, doc.Content, serializeVector(doc.Vector), dim, now, now); err != nil {
			return fmt.Errorf("failed to upsert document %q: %w", doc.DocID, err)
		}
	}

	return tx.Commit()
}

// Search returns the k most similar documents to the query vector, best
// first. Searching an absent collection returns no results.
func (s *SQLiteIndex) Search(ctx context.Context, collection string, query []float32, k int) ([]Result, error) {
	if len(query) == 0 {
		return nil, ErrEmptyVector
	}

	dim, ok, err := s.Dimensionality(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Result{}, nil
	}
	if dim != len(query) {
		return nil, fmt.Errorf("%w: collection %q holds %d-dimensional vectors, query is %d-dimensional",
			ErrDimensionMismatch, collection, dim, len(query))
	}

	if VectorExtensionAvailable {
		return searchOptimized(ctx, s.db, collection, query, k)
	}
	return searchFallback(ctx, s.db, collection, query, k)
}

// Drop removes a collection and all its documents. Idempotent.
func (s *SQLiteIndex) Drop(ctx context.Context, collection string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Explicit delete of documents rather than relying on the cascade, so a
	// database created with foreign_keys off still empties fully.
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("failed to delete documents of %q: %w", collection, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", collection); err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", collection, err)
	}

	return tx.Commit()
}

// Dimensionality returns a collection's vector dimensionality, ok=false
// when the collection does not exist.
func (s *SQLiteIndex) Dimensionality(ctx context.Context, collection string) (int, bool, error) {
	return dimensionalityTx(ctx, s.db, collection)
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func dimensionalityTx(ctx context.Context, q querier, collection string) (int, bool, error) {
	var dim int
	err := q.QueryRowContext(ctx,
		"SELECT dimension FROM collections WHERE name = ?", collection).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return dim, true, nil
}

// Count returns the number of documents in a collection. Absent collections
// count as zero.
func (s *SQLiteIndex) Count(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ?", collection).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Collections returns every collection name, sorted.
func (s *SQLiteIndex) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
