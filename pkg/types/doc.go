// Package types provides the shared domain types for the vecguard
// compatibility manager.
//
// The central value is ModelDescriptor, which identifies an embedding model
// by provider, name, and dimensionality:
//
//	requested := types.ModelDescriptor{
//	    Provider:   types.ProviderHostedAPI,
//	    Name:       "text-embedding-3-small",
//	    Dimensions: 768,
//	}
//
// Two descriptors are Equal when provider, name, and dimensions all match;
// cost and privacy classes are catalog metadata and never affect identity.
//
// IndexMetadata is the durable record pairing a collection with the
// descriptor that produced its vectors. The invariant the whole system
// protects: ProducedBy.Dimensions equals the dimensionality of every vector
// physically stored in that collection.
//
// Verdict classifies a requested model against that record:
//
//	compatible          same dimensionality (provider differences ignored)
//	dimension-mismatch  different dimensionality, call must be blocked
//	no-metadata         collection not recorded yet, first write permitted
//
// The error kinds the system surfaces are struct errors carrying their
// diagnostic fields:
//
//	var blocked *types.RetrievalBlockedError
//	if errors.As(err, &blocked) {
//	    log.Printf("stored %d, requested %d",
//	        blocked.StoredDimensions, blocked.RequestedDimensions)
//	}
package types
