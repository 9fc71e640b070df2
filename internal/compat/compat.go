// Package compat classifies a requested embedding model against a
// collection's recorded metadata.
package compat

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/anhhai680/vecguard-mcp/internal/metastore"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// Validator is the decision function between the metadata store and every
// caller that needs a verdict. It has no side effects beyond one WARN log
// line on corrupt metadata.
type Validator struct {
	meta   *metastore.Store
	logger *slog.Logger
}

// New creates a validator over the given metadata store.
func New(meta *metastore.Store, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{meta: meta, logger: logger}
}

// Check compares the requested model against the collection's recorded
// descriptor.
//
// Absent metadata yields VerdictNoMetadata (first-write case). Equal
// dimensionality yields VerdictCompatible: provider and model-name
// differences alone never produce a mismatch, because nearest-neighbor
// correctness only requires identical dimensionality. Unequal dimensionality
// yields VerdictDimensionMismatch.
//
// Corrupt metadata is treated as absent for the verdict but logged
// distinctly, so a damaged store is never silently mistaken for a fresh
// collection. The stored metadata is returned alongside the verdict when it
// exists.
func (v *Validator) Check(collectionID string, requested types.ModelDescriptor) (types.Verdict, *types.IndexMetadata, error) {
	if err := requested.Validate(); err != nil {
		return "", nil, fmt.Errorf("requested descriptor: %w", err)
	}

	meta, err := v.meta.Get(collectionID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.VerdictNoMetadata, nil, nil
		}
		var corrupt *types.MetadataCorruptError
		if errors.As(err, &corrupt) {
			v.logger.Warn("stored metadata is corrupt, treating as unrecorded",
				"collection", corrupt.CollectionID,
				"reason", corrupt.Reason)
			return types.VerdictNoMetadata, nil, nil
		}
		return "", nil, err
	}

	if meta.ProducedBy.Dimensions == requested.Dimensions {
		return types.VerdictCompatible, meta, nil
	}
	return types.VerdictDimensionMismatch, meta, nil
}
