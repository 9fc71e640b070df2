// Package vecstore is the vector index collaborator: a SQLite-backed store
// of embedding vectors grouped into named collections.
//
// The store knows nothing about embedding models. It receives a
// dimensionality per collection and enforces it on every insert; the query
// guard keeps model descriptors on its side of the boundary and hands this
// package numbers only.
//
// Two build configurations are supported:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec"   # mattn/go-sqlite3, SQL-side cosine distance
//	CGO_ENABLED=0 go build -tags "purego"       # modernc.org/sqlite, Go-side cosine similarity
//
// Vectors are stored as little-endian float32 blobs. Schema changes are
// tracked by semver-versioned migrations applied at open time.
package vecstore
