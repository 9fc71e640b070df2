package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by metadata lookups for collections that have no
// recorded descriptor.
var ErrNotFound = errors.New("not found")

// UnknownModelError is returned when a requested provider/model pair is not
// in the registry catalog.
type UnknownModelError struct {
	Provider Provider
	Name     string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown embedding model %s/%s", e.Provider, e.Name)
}

// RetrievalBlockedError is returned by the query guard when a retrieval or
// insertion would run against vectors of a different dimensionality. It is a
// distinct outcome from zero results, so callers can tell "nothing relevant
// found" apart from "system misconfigured".
type RetrievalBlockedError struct {
	CollectionID        string
	StoredDimensions    int
	RequestedDimensions int
}

func (e *RetrievalBlockedError) Error() string {
	return fmt.Sprintf("retrieval blocked for collection %q: stored vectors are %d-dimensional, requested model produces %d",
		e.CollectionID, e.StoredDimensions, e.RequestedDimensions)
}

// MigrationFailedError is returned when a clear operation exhausted its retry
// budget and left the named collection needing operator attention.
type MigrationFailedError struct {
	CollectionID string
	// LastKnownState describes the consistent state the collection was last
	// observed in: "metadata intact" or "index cleared, metadata stale".
	LastKnownState string
	Err            error
}

func (e *MigrationFailedError) Error() string {
	return fmt.Sprintf("migration failed for collection %q (%s): %v",
		e.CollectionID, e.LastKnownState, e.Err)
}

func (e *MigrationFailedError) Unwrap() error { return e.Err }

// MetadataCorruptError is returned when a stored metadata record exists but
// fails basic sanity. Validation treats it like a missing record; it carries
// its own type so logs and callers never mistake it for a fresh collection.
type MetadataCorruptError struct {
	CollectionID string
	Reason       string
	Err          error
}

func (e *MetadataCorruptError) Error() string {
	return fmt.Sprintf("metadata corrupt for collection %q: %s", e.CollectionID, e.Reason)
}

func (e *MetadataCorruptError) Unwrap() error { return e.Err }

// CollectionNotFoundError is returned by operations addressed at a collection
// with neither recorded metadata nor stored vectors.
type CollectionNotFoundError struct {
	CollectionID string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %q not found", e.CollectionID)
}
