package types

// Verdict classifies the outcome of comparing a requested embedding model
// against a collection's recorded metadata.
type Verdict string

const (
	// VerdictCompatible means the requested dimensionality matches the stored
	// one. Provider and model-name differences alone never block: retrieval
	// correctness only requires identical dimensionality.
	VerdictCompatible Verdict = "compatible"
	// VerdictDimensionMismatch means the dimensionalities differ. Forwarding
	// the call would corrupt nearest-neighbor math.
	VerdictDimensionMismatch Verdict = "dimension-mismatch"
	// VerdictNoMetadata means the collection has no recorded descriptor yet
	// (first-write case).
	VerdictNoMetadata Verdict = "no-metadata"
)

// Blocks reports whether the verdict must stop a retrieval or insertion.
func (v Verdict) Blocks() bool {
	return v == VerdictDimensionMismatch
}
