package metastore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhhai680/vecguard-mcp/internal/logging"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), logging.Noop())
	require.NoError(t, err)
	return store
}

func nomicDescriptor() types.ModelDescriptor {
	return types.ModelDescriptor{
		Provider:   types.ProviderLocalServer,
		Name:       "nomic-embed-text",
		Dimensions: 768,
		Cost:       types.CostFree,
		Privacy:    types.PrivacyLocalOnly,
	}
}

func TestRecordGetRoundTrip(t *testing.T) {
	store := setupStore(t)
	desc := nomicDescriptor()

	recorded, err := store.Record("repo-a", desc, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), recorded.VectorCount)

	got, err := store.Get("repo-a")
	require.NoError(t, err)
	assert.True(t, got.ProducedBy.Equal(desc))
	assert.Equal(t, int64(42), got.VectorCount)
	assert.Equal(t, "repo-a", got.CollectionID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetAbsent(t *testing.T) {
	store := setupStore(t)

	_, err := store.Get("never-recorded")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRecordOverwritePreservesCreatedAt(t *testing.T) {
	store := setupStore(t)

	first, err := store.Record("repo-a", nomicDescriptor(), 10)
	require.NoError(t, err)

	second := nomicDescriptor()
	second.Name = "all-minilm"
	second.Dimensions = 384

	overwritten, err := store.Record("repo-a", second, 0)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, overwritten.CreatedAt)
	assert.Equal(t, second, overwritten.ProducedBy)
	assert.Equal(t, int64(0), overwritten.VectorCount)
}

func TestRecordRejectsInvalidDescriptor(t *testing.T) {
	store := setupStore(t)

	bad := nomicDescriptor()
	bad.Dimensions = -1
	_, err := store.Record("repo-a", bad, 0)
	assert.Error(t, err)

	bad = nomicDescriptor()
	bad.Provider = "faiss"
	_, err = store.Record("repo-a", bad, 0)
	assert.Error(t, err)
}

// fixedCount is a Reconcile callback observing a constant physical count.
func fixedCount(n int64) func() (int64, error) {
	return func() (int64, error) { return n, nil }
}

func TestReconcile(t *testing.T) {
	store := setupStore(t)
	desc := nomicDescriptor()

	// First write records the descriptor.
	meta, err := store.Reconcile("repo-a", desc, fixedCount(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.VectorCount)
	assert.True(t, meta.ProducedBy.Equal(desc))

	// The count is set to the observed value, not summed: a second reconcile
	// with a smaller count (upserts replaced rows) lands exactly there.
	meta, err = store.Reconcile("repo-a", desc, fixedCount(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.VectorCount)

	// A different model of equal dimensionality reconciles the same record.
	alt := types.ModelDescriptor{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-3-small",
		Dimensions: 768,
	}
	meta, err = store.Reconcile("repo-a", alt, fixedCount(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), meta.VectorCount)

	// Incompatible dimensions are refused before the count is ever taken.
	ada := types.ModelDescriptor{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-ada-002",
		Dimensions: 1536,
	}
	_, err = store.Reconcile("repo-a", ada, func() (int64, error) {
		t.Fatal("count callback must not run on a blocked reconcile")
		return 0, nil
	})
	var blocked *types.RetrievalBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, 768, blocked.StoredDimensions)
	assert.Equal(t, 1536, blocked.RequestedDimensions)

	got, err := store.Get("repo-a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.VectorCount)
}

func TestReconcileOverwritesCorruptRecord(t *testing.T) {
	store := setupStore(t)
	desc := nomicDescriptor()

	path := filepath.Join(store.home, metadataDir, "repo-a.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var corrupt *types.MetadataCorruptError
	_, err := store.Get("repo-a")
	require.ErrorAs(t, err, &corrupt)

	meta, err := store.Reconcile("repo-a", desc, fixedCount(4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), meta.VectorCount)
	assert.True(t, meta.ProducedBy.Equal(desc))

	got, err := store.Get("repo-a")
	require.NoError(t, err)
	assert.True(t, got.ProducedBy.Equal(desc))
}

func TestReconcileConcurrent(t *testing.T) {
	store := setupStore(t)
	desc := nomicDescriptor()

	// The count callback runs under the collection lock, so the physical
	// observation and the write are one atomic step per writer and the last
	// writer's observation wins intact.
	var physical atomic.Int64
	const workers = 8

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Reconcile("repo-a", desc, func() (int64, error) {
				return physical.Add(3), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get("repo-a")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*3), got.VectorCount)
}

func TestDeleteIdempotent(t *testing.T) {
	store := setupStore(t)

	_, err := store.Record("repo-a", nomicDescriptor(), 1)
	require.NoError(t, err)

	require.NoError(t, store.Delete("repo-a"))
	_, err = store.Get("repo-a")
	assert.ErrorIs(t, err, types.ErrNotFound)

	// Second delete is success.
	assert.NoError(t, store.Delete("repo-a"))
}

func TestMarkValidated(t *testing.T) {
	store := setupStore(t)

	recorded, err := store.Record("repo-a", nomicDescriptor(), 1)
	require.NoError(t, err)

	require.NoError(t, store.MarkValidated("repo-a"))
	got, err := store.Get("repo-a")
	require.NoError(t, err)
	assert.False(t, got.LastValidatedAt.Before(recorded.LastValidatedAt))

	// Marking an absent collection is a no-op, not an error.
	assert.NoError(t, store.MarkValidated("never-recorded"))
}

func TestBackup(t *testing.T) {
	store := setupStore(t)

	_, err := store.Record("repo-a", nomicDescriptor(), 7)
	require.NoError(t, err)

	path, err := store.Backup("repo-a", "batch-1")
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "repo-a.batch-1.json.bak")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snapshot types.IndexMetadata
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Equal(t, int64(7), snapshot.VectorCount)

	_, err = store.Backup("never-recorded", "batch-1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestList(t *testing.T) {
	store := setupStore(t)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.Record("repo-b", nomicDescriptor(), 1)
	require.NoError(t, err)
	_, err = store.Record("repo-a", nomicDescriptor(), 1)
	require.NoError(t, err)

	ids, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"repo-a", "repo-b"}, ids)
}

func TestGetCorruptMetadata(t *testing.T) {
	store := setupStore(t)

	// Unparseable JSON.
	path := store.metadataPath("broken")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := store.Get("broken")
	var corrupt *types.MetadataCorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "broken", corrupt.CollectionID)

	// Parseable but insane: negative dimensions.
	bad := types.IndexMetadata{
		CollectionID: "insane",
		ProducedBy: types.ModelDescriptor{
			Provider:   types.ProviderLocalServer,
			Name:       "nomic-embed-text",
			Dimensions: -768,
		},
	}
	data, err := json.Marshal(bad)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.metadataPath("insane"), data, 0o644))

	_, err = store.Get("insane")
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "insane", corrupt.CollectionID)

	// Corrupt is not ErrNotFound.
	assert.False(t, errors.Is(err, types.ErrNotFound))
}

func TestValidateCollectionID(t *testing.T) {
	store := setupStore(t)

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, err := store.Get(id)
		assert.Error(t, err, "id %q should be rejected", id)
	}
}
