// Package metastore persists one IndexMetadata record per vector collection.
//
// Records live as JSON documents under <home>/metadata/, one file per
// collection, written atomically (temp file, fsync, rename). Backups taken
// before destructive operations go to <home>/backups/ as .json.bak files.
//
// Mutations on the same collection are serialized: an in-process mutex plus a
// gofrs/flock lock file under <home>/locks/ guard every Record, Delete, and
// Backup call. Distinct collections never contend.
//
// A record that exists but fails sanity checks is surfaced as
// *types.MetadataCorruptError, never as a plain ErrNotFound, so a corrupt
// store is never mistaken for a fresh collection.
package metastore
