package types

import (
	"errors"
	"fmt"
	"time"
)

// IndexMetadata records which embedding model produced the vectors of one
// stored collection. Invariant: ProducedBy.Dimensions equals the
// dimensionality of every vector physically stored in the collection.
//
// A record is created when a collection is first populated, mutated only by
// the migration orchestrator (on successful migration) or the insertion path
// (vector count increment), and destroyed when the collection is cleared.
type IndexMetadata struct {
	CollectionID    string          `json:"collection_id"`
	ProducedBy      ModelDescriptor `json:"produced_by"`
	VectorCount     int64           `json:"vector_count"`
	CreatedAt       time.Time       `json:"created_at"`
	LastValidatedAt time.Time       `json:"last_validated_at"`
}

// Validate checks the record for structural sanity. A stored record that
// fails validation is treated as corrupt, not merely absent.
func (m *IndexMetadata) Validate() error {
	if m.CollectionID == "" {
		return errors.New("collection id cannot be empty")
	}
	if err := m.ProducedBy.Validate(); err != nil {
		return fmt.Errorf("produced_by: %w", err)
	}
	if m.VectorCount < 0 {
		return fmt.Errorf("vector count cannot be negative, got %d", m.VectorCount)
	}
	return nil
}
