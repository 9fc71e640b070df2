package vecstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch is the store's own integrity assertion: an insert
	// or search whose vectors disagree with the collection's recorded
	// dimensionality. Callers going through the query guard never see this;
	// the guard blocks mismatches with a typed error before the call reaches
	// the store.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyVector is returned for zero-length vectors.
	ErrEmptyVector = errors.New("vector cannot be empty")
)

// Document is one embedded item to store in a collection.
type Document struct {
	// DocID identifies the document within its collection. Re-inserting an
	// existing DocID replaces the stored vector and content.
	DocID   string
	Content string
	Vector  []float32
}

// Result is one ranked hit from a similarity search.
type Result struct {
	DocID      string
	Content    string
	Similarity float64
}

// Index is the operation surface the query guard consumes.
type Index interface {
	// Insert stores documents in a collection, creating the collection on
	// first write with the dimensionality of the supplied vectors.
	Insert(ctx context.Context, collection string, docs []Document) error

	// Search returns the k most similar documents by cosine similarity,
	// best first.
	Search(ctx context.Context, collection string, query []float32, k int) ([]Result, error)

	// Drop removes a collection and all its documents. Idempotent: dropping
	// an absent collection is success.
	Drop(ctx context.Context, collection string) error

	// Dimensionality returns the collection's vector dimensionality, or
	// ok=false when the collection does not exist.
	Dimensionality(ctx context.Context, collection string) (dim int, ok bool, err error)

	// Count returns the number of documents stored in a collection. An
	// absent collection counts as zero.
	Count(ctx context.Context, collection string) (int64, error)

	// Collections returns every collection name, sorted.
	Collections(ctx context.Context) ([]string, error)

	Close() error
}
