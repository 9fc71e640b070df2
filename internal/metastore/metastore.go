package metastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

const (
	metadataDir = "metadata"
	backupDir   = "backups"
	lockDir     = "locks"
)

// Store is a durable map from collection id to IndexMetadata, one JSON
// document per collection.
type Store struct {
	home   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*collectionLock
}

// New creates a store rooted at home, creating the metadata, backup, and
// lock directories if needed.
func New(home string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, dir := range []string{metadataDir, backupDir, lockDir} {
		if err := os.MkdirAll(filepath.Join(home, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}
	return &Store{
		home:   home,
		logger: logger,
		locks:  make(map[string]*collectionLock),
	}, nil
}

// Get returns the recorded metadata for a collection. Absent records return
// types.ErrNotFound; records that exist but fail sanity checks return a
// *types.MetadataCorruptError.
func (s *Store) Get(collectionID string) (*types.IndexMetadata, error) {
	if err := validateCollectionID(collectionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.metadataPath(collectionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata for %q: %w", collectionID, err)
	}

	var meta types.IndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &types.MetadataCorruptError{
			CollectionID: collectionID,
			Reason:       "unparseable JSON",
			Err:          err,
		}
	}
	if err := meta.Validate(); err != nil {
		return nil, &types.MetadataCorruptError{
			CollectionID: collectionID,
			Reason:       err.Error(),
			Err:          err,
		}
	}
	if meta.CollectionID != collectionID {
		return nil, &types.MetadataCorruptError{
			CollectionID: collectionID,
			Reason:       fmt.Sprintf("record names collection %q", meta.CollectionID),
		}
	}
	return &meta, nil
}

// Record creates or overwrites the metadata entry for a collection. Called
// once per successful (re)population.
func (s *Store) Record(collectionID string, descriptor types.ModelDescriptor, vectorCount int64) (*types.IndexMetadata, error) {
	if err := validateCollectionID(collectionID); err != nil {
		return nil, err
	}
	if err := descriptor.Validate(); err != nil {
		return nil, fmt.Errorf("descriptor for %q: %w", collectionID, err)
	}
	if vectorCount < 0 {
		return nil, fmt.Errorf("vector count for %q cannot be negative, got %d", collectionID, vectorCount)
	}

	unlock, err := s.lockCollection(collectionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := time.Now().UTC()
	meta := &types.IndexMetadata{
		CollectionID:    collectionID,
		ProducedBy:      descriptor,
		VectorCount:     vectorCount,
		CreatedAt:       now,
		LastValidatedAt: now,
	}
	// Preserve the original creation time on overwrite.
	if existing, err := s.Get(collectionID); err == nil {
		meta.CreatedAt = existing.CreatedAt
	}

	if err := s.writeMetadata(meta); err != nil {
		return nil, err
	}
	s.logger.Debug("metadata recorded",
		"collection", collectionID,
		"model", descriptor.String(),
		"vectors", vectorCount)
	return meta, nil
}

// Reconcile records the descriptor and sets the vector count to whatever
// the count callback reports. The callback runs under the collection lock,
// so the observed physical count and the write form one atomic step:
// concurrent insertions converge on the index's truth instead of compounding
// deltas or racing a stale observation past a fresh one. First write records
// the descriptor; a corrupt record is overwritten, completing the
// first-write the compatibility check already demoted it to.
func (s *Store) Reconcile(collectionID string, descriptor types.ModelDescriptor, count func() (int64, error)) (*types.IndexMetadata, error) {
	if err := validateCollectionID(collectionID); err != nil {
		return nil, err
	}
	if err := descriptor.Validate(); err != nil {
		return nil, fmt.Errorf("descriptor for %q: %w", collectionID, err)
	}

	unlock, err := s.lockCollection(collectionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := time.Now().UTC()
	existing, err := s.Get(collectionID)
	var corrupt *types.MetadataCorruptError
	switch {
	case errors.Is(err, types.ErrNotFound):
		existing = &types.IndexMetadata{
			CollectionID: collectionID,
			ProducedBy:   descriptor,
			CreatedAt:    now,
		}
	case errors.As(err, &corrupt):
		s.logger.Warn("overwriting corrupt metadata record",
			"collection", collectionID, "reason", corrupt.Reason)
		existing = &types.IndexMetadata{
			CollectionID: collectionID,
			ProducedBy:   descriptor,
			CreatedAt:    now,
		}
	case err != nil:
		return nil, err
	default:
		if existing.ProducedBy.Dimensions != descriptor.Dimensions {
			return nil, &types.RetrievalBlockedError{
				CollectionID:        collectionID,
				StoredDimensions:    existing.ProducedBy.Dimensions,
				RequestedDimensions: descriptor.Dimensions,
			}
		}
	}

	vectorCount, err := count()
	if err != nil {
		return nil, fmt.Errorf("count vectors for %q: %w", collectionID, err)
	}
	if vectorCount < 0 {
		return nil, fmt.Errorf("vector count for %q cannot be negative, got %d", collectionID, vectorCount)
	}

	existing.VectorCount = vectorCount
	existing.LastValidatedAt = now
	if err := s.writeMetadata(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// MarkValidated bumps last_validated_at after a successful compatibility
// check. Missing records are ignored: the collection may have been cleared
// between the check and the mark.
func (s *Store) MarkValidated(collectionID string) error {
	if err := validateCollectionID(collectionID); err != nil {
		return err
	}
	unlock, err := s.lockCollection(collectionID)
	if err != nil {
		return err
	}
	defer unlock()

	meta, err := s.Get(collectionID)
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	meta.LastValidatedAt = time.Now().UTC()
	return s.writeMetadata(meta)
}

// Delete removes the metadata document. Idempotent: deleting an absent
// record is success.
func (s *Store) Delete(collectionID string) error {
	if err := validateCollectionID(collectionID); err != nil {
		return err
	}

	unlock, err := s.lockCollection(collectionID)
	if err != nil {
		return err
	}
	defer unlock()

	err = os.Remove(s.metadataPath(collectionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete metadata for %q: %w", collectionID, err)
	}
	return nil
}

// Backup copies the current metadata document to
// <home>/backups/<collection>.<batchRef>.json.bak and returns the written
// path. Backing up an absent record returns types.ErrNotFound.
func (s *Store) Backup(collectionID, batchRef string) (string, error) {
	if err := validateCollectionID(collectionID); err != nil {
		return "", err
	}
	if batchRef == "" {
		return "", errors.New("backup batch ref cannot be empty")
	}

	unlock, err := s.lockCollection(collectionID)
	if err != nil {
		return "", err
	}
	defer unlock()

	src, err := os.Open(s.metadataPath(collectionID))
	if errors.Is(err, os.ErrNotExist) {
		return "", types.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("open metadata for %q: %w", collectionID, err)
	}
	defer func() { _ = src.Close() }()

	dstPath := filepath.Join(s.home, backupDir,
		fmt.Sprintf("%s.%s.json.bak", collectionID, batchRef))
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create backup for %q: %w", collectionID, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("write backup for %q: %w", collectionID, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close backup for %q: %w", collectionID, err)
	}
	return dstPath, nil
}

// List returns every collection id with a metadata document, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.home, metadataDir))
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) metadataPath(collectionID string) string {
	return filepath.Join(s.home, metadataDir, collectionID+".json")
}

// writeMetadata writes the record atomically: temp file in the same
// directory, fsync, rename over the target, then directory sync. A crash
// mid-write leaves either the old document or the new one, never a torn mix.
func (s *Store) writeMetadata(meta *types.IndexMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata for %q: %w", meta.CollectionID, err)
	}
	data = append(data, '\n')

	dir := filepath.Join(s.home, metadataDir)
	tmp, err := os.CreateTemp(dir, "."+meta.CollectionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp metadata for %q: %w", meta.CollectionID, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write metadata for %q: %w", meta.CollectionID, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync metadata for %q: %w", meta.CollectionID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metadata for %q: %w", meta.CollectionID, err)
	}
	if err := os.Rename(tmpName, s.metadataPath(meta.CollectionID)); err != nil {
		return fmt.Errorf("rename metadata for %q: %w", meta.CollectionID, err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// validateCollectionID rejects ids that would escape the metadata directory
// or collide with the store's own file naming.
func validateCollectionID(id string) error {
	if id == "" {
		return errors.New("collection id cannot be empty")
	}
	if strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return fmt.Errorf("invalid collection id %q", id)
	}
	return nil
}
