// Package guard wraps every retrieval and insertion entry point of the
// vector index. Nothing else in the system calls the index directly: the
// guard runs the compatibility check first, so a dimension mismatch surfaces
// as a typed, diagnosable error at the boundary instead of an opaque
// assertion inside the index.
package guard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anhhai680/vecguard-mcp/internal/compat"
	"github.com/anhhai680/vecguard-mcp/internal/metastore"
	"github.com/anhhai680/vecguard-mcp/internal/vecstore"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// Guard fronts the vector index with compatibility validation.
type Guard struct {
	validator *compat.Validator
	meta      *metastore.Store
	index     vecstore.Index
	logger    *slog.Logger
}

// New creates a guard over the given index and metadata store.
func New(validator *compat.Validator, meta *metastore.Store, index vecstore.Index, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guard{
		validator: validator,
		meta:      meta,
		index:     index,
		logger:    logger,
	}
}

// Search runs a similarity query against a collection after validating the
// requested model.
//
// Compatible: the call is forwarded and last_validated_at bumped.
// NoMetadata: the call is forwarded; an unrecorded collection legitimately
// yields zero results. DimensionMismatch: the call never reaches the index;
// a typed RetrievalBlocked error carries the stored and requested
// dimensions, so callers can always tell "nothing relevant found" apart from
// "system misconfigured".
func (g *Guard) Search(ctx context.Context, collectionID string, queryVector []float32, k int, requested types.ModelDescriptor) ([]vecstore.Result, error) {
	if len(queryVector) != requested.Dimensions {
		return nil, fmt.Errorf("query vector is %d-dimensional, model %s produces %d",
			len(queryVector), requested.String(), requested.Dimensions)
	}

	verdict, meta, err := g.validator.Check(collectionID, requested)
	if err != nil {
		return nil, err
	}
	if verdict.Blocks() {
		g.logger.Warn("retrieval blocked",
			"collection", collectionID,
			"stored_dimensions", meta.ProducedBy.Dimensions,
			"requested_dimensions", requested.Dimensions)
		return nil, &types.RetrievalBlockedError{
			CollectionID:        collectionID,
			StoredDimensions:    meta.ProducedBy.Dimensions,
			RequestedDimensions: requested.Dimensions,
		}
	}

	results, err := g.index.Search(ctx, collectionID, queryVector, k)
	if err != nil {
		return nil, err
	}
	if verdict == types.VerdictCompatible {
		if err := g.meta.MarkValidated(collectionID); err != nil {
			g.logger.Warn("failed to mark collection validated",
				"collection", collectionID, "error", err)
		}
	}
	return results, nil
}

// Insert stores documents in a collection after validating the requested
// model. On NoMetadata (first write) the insertion proceeds and the
// descriptor is recorded afterward; on Compatible the vector count is
// brought in line with the physical index. Every vector is length-checked
// against the descriptor's declared dimensionality before anything is
// written, and an empty batch is refused outright.
func (g *Guard) Insert(ctx context.Context, collectionID string, docs []vecstore.Document, requested types.ModelDescriptor) (*types.IndexMetadata, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to insert into %q", collectionID)
	}
	for _, doc := range docs {
		if len(doc.Vector) != requested.Dimensions {
			return nil, fmt.Errorf("document %q vector is %d-dimensional, model %s produces %d",
				doc.DocID, len(doc.Vector), requested.String(), requested.Dimensions)
		}
	}

	verdict, meta, err := g.validator.Check(collectionID, requested)
	if err != nil {
		return nil, err
	}
	if verdict.Blocks() {
		g.logger.Warn("insertion blocked",
			"collection", collectionID,
			"stored_dimensions", meta.ProducedBy.Dimensions,
			"requested_dimensions", requested.Dimensions)
		return nil, &types.RetrievalBlockedError{
			CollectionID:        collectionID,
			StoredDimensions:    meta.ProducedBy.Dimensions,
			RequestedDimensions: requested.Dimensions,
		}
	}

	if err := g.index.Insert(ctx, collectionID, docs); err != nil {
		return nil, err
	}

	// Reconcile the recorded count with the physical index: an upsert of an
	// existing doc id replaces rather than adds, so the batch length alone
	// would drift. The store runs the count under the collection lock, so
	// concurrent insertions cannot compound counts or overwrite a fresh
	// observation with a stale one.
	updated, err := g.meta.Reconcile(collectionID, requested, func() (int64, error) {
		return g.index.Count(ctx, collectionID)
	})
	if err != nil {
		return nil, err
	}
	g.logger.Debug("documents inserted",
		"collection", collectionID,
		"batch", len(docs),
		"vectors", updated.VectorCount)
	return updated, nil
}
