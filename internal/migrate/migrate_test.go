package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhhai680/vecguard-mcp/internal/compat"
	"github.com/anhhai680/vecguard-mcp/internal/logging"
	"github.com/anhhai680/vecguard-mcp/internal/metastore"
	"github.com/anhhai680/vecguard-mcp/internal/registry"
	"github.com/anhhai680/vecguard-mcp/internal/vecstore"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

type fixture struct {
	home  string
	meta  *metastore.Store
	index *vecstore.SQLiteIndex
	orch  *Orchestrator
}

// recordedSelector captures SetActive calls for assertions.
type recordedSelector struct {
	active *types.ModelDescriptor
}

func (r *recordedSelector) SetActive(d types.ModelDescriptor) error {
	r.active = &d
	return nil
}

func setup(t *testing.T) (*fixture, *recordedSelector) {
	t.Helper()
	home := t.TempDir()
	meta, err := metastore.New(home, logging.Noop())
	require.NoError(t, err)
	index, err := vecstore.NewSQLiteIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	reg := registry.New()
	validator := compat.New(meta, logging.Noop())
	sel := &recordedSelector{}
	orch := New(meta, index, reg, validator, sel, logging.Noop())
	return &fixture{home: home, meta: meta, index: index, orch: orch}, sel
}

func nomic() types.ModelDescriptor {
	return types.ModelDescriptor{
		Provider:   types.ProviderLocalServer,
		Name:       "nomic-embed-text",
		Dimensions: 768,
	}
}

func ada() types.ModelDescriptor {
	return types.ModelDescriptor{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-ada-002",
		Dimensions: 1536,
	}
}

// populate records metadata and stores matching vectors for a collection.
func populate(t *testing.T, f *fixture, collectionID string, desc types.ModelDescriptor, n int) {
	t.Helper()
	docs := make([]vecstore.Document, n)
	for i := range docs {
		vec := make([]float32, desc.Dimensions)
		vec[i%desc.Dimensions] = 1
		docs[i] = vecstore.Document{DocID: string(rune('a' + i)), Vector: vec}
	}
	require.NoError(t, f.index.Insert(context.Background(), collectionID, docs))
	_, err := f.meta.Record(collectionID, desc, int64(n))
	require.NoError(t, err)
}

func TestProposeMismatchYieldsClearAndRegenerate(t *testing.T) {
	f, _ := setup(t)
	populate(t, f, "repo-a", nomic(), 3)

	plan, err := f.orch.Propose("repo-a", ada())
	require.NoError(t, err)
	assert.Equal(t, types.ActionClearAndRegenerate, plan.Action)
	assert.Equal(t, []string{"repo-a"}, plan.AffectedCollections)
	assert.Equal(t, ada(), plan.Requested)

	// Alternatives list every catalogued model at the stored dimensionality,
	// so the caller can avoid migrating by switching instead.
	require.NotEmpty(t, plan.Alternatives)
	for _, alt := range plan.Alternatives {
		assert.Equal(t, 768, alt.Dimensions)
	}
}

func TestProposeCompatibleYieldsAbort(t *testing.T) {
	f, _ := setup(t)
	populate(t, f, "repo-a", nomic(), 1)

	// Same dimensionality, different provider: nothing to migrate.
	plan, err := f.orch.Propose("repo-a", types.ModelDescriptor{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-3-small",
		Dimensions: 768,
	})
	require.NoError(t, err)
	assert.Equal(t, types.ActionAbort, plan.Action)
	assert.Empty(t, plan.AffectedCollections)
}

func TestProposeUnrecordedYieldsAbort(t *testing.T) {
	f, _ := setup(t)

	plan, err := f.orch.Propose("repo-b", ada())
	require.NoError(t, err)
	assert.Equal(t, types.ActionAbort, plan.Action)
}

func TestProposeSwitch(t *testing.T) {
	f, _ := setup(t)
	populate(t, f, "repo-a", nomic(), 1)

	// Equal dimensionality: switch is legal.
	plan, err := f.orch.ProposeSwitch("repo-a", types.ModelDescriptor{
		Provider:   types.ProviderSelfHostedTransformer,
		Name:       "all-mpnet-base-v2",
		Dimensions: 768,
	})
	require.NoError(t, err)
	assert.Equal(t, types.ActionSwitchToCompatibleModel, plan.Action)

	// Different dimensionality: refused.
	_, err = f.orch.ProposeSwitch("repo-a", ada())
	assert.Error(t, err)

	// Unknown collection: typed not-found.
	_, err = f.orch.ProposeSwitch("repo-x", nomic())
	var notFound *types.CollectionNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestExecuteClearAndRegenerate(t *testing.T) {
	f, _ := setup(t)
	ctx := context.Background()
	populate(t, f, "repo-a", nomic(), 3)

	plan, err := f.orch.Propose("repo-a", ada())
	require.NoError(t, err)
	require.NoError(t, f.orch.Execute(ctx, plan))

	// Execution stamps a backup batch ref on the plan.
	assert.NotEmpty(t, plan.BackupRef)

	// Metadata gone.
	_, err = f.meta.Get("repo-a")
	assert.ErrorIs(t, err, types.ErrNotFound)

	// Physical index gone.
	_, ok, err := f.index.Dimensionality(ctx, "repo-a")
	require.NoError(t, err)
	assert.False(t, ok)

	// A subsequent record under the new model validates compatible.
	_, err = f.meta.Record("repo-a", ada(), 0)
	require.NoError(t, err)
	validator := compat.New(f.meta, logging.Noop())
	verdict, _, err := validator.Check("repo-a", ada())
	require.NoError(t, err)
	assert.Equal(t, types.VerdictCompatible, verdict)
}

func TestExecuteClearIsIdempotent(t *testing.T) {
	f, _ := setup(t)
	ctx := context.Background()
	populate(t, f, "repo-a", nomic(), 1)

	plan := &types.MigrationPlan{
		Action:              types.ActionClearAndRegenerate,
		Requested:           ada(),
		AffectedCollections: []string{"repo-a"},
	}
	require.NoError(t, f.orch.Execute(ctx, plan))

	// Clearing again, including a collection that never existed, succeeds.
	again := &types.MigrationPlan{
		Action:              types.ActionClearAndRegenerate,
		Requested:           ada(),
		AffectedCollections: []string{"repo-a", "never-existed"},
	}
	assert.NoError(t, f.orch.Execute(ctx, again))
}

func TestExecuteSwitch(t *testing.T) {
	f, sel := setup(t)
	populate(t, f, "repo-a", nomic(), 1)

	alt := types.ModelDescriptor{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-3-small",
		Dimensions: 768,
	}
	plan, err := f.orch.ProposeSwitch("repo-a", alt)
	require.NoError(t, err)
	require.NoError(t, f.orch.Execute(context.Background(), plan))

	// Only the selection changed; data untouched.
	require.NotNil(t, sel.active)
	assert.Equal(t, alt, *sel.active)
	got, err := f.meta.Get("repo-a")
	require.NoError(t, err)
	assert.Equal(t, nomic(), got.ProducedBy)
}

func TestExecuteAbortHasNoSideEffects(t *testing.T) {
	f, sel := setup(t)
	populate(t, f, "repo-a", nomic(), 1)

	plan := &types.MigrationPlan{Action: types.ActionAbort, Requested: ada()}
	require.NoError(t, f.orch.Execute(context.Background(), plan))

	assert.Nil(t, sel.active)
	_, err := f.meta.Get("repo-a")
	assert.NoError(t, err)
}

func TestExecuteWritesBackup(t *testing.T) {
	f, _ := setup(t)
	populate(t, f, "repo-a", nomic(), 2)

	plan, err := f.orch.Propose("repo-a", ada())
	require.NoError(t, err)
	plan.BackupRef = "batch-test"
	require.NoError(t, f.orch.Execute(context.Background(), plan))

	// The snapshot survives the clear, for rollback by hand.
	backup := filepath.Join(f.home, "backups", "repo-a.batch-test.json.bak")
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nomic-embed-text")
}

// flakyMeta delegates to a real store but fails Delete a fixed number of
// times, to exercise the bounded retry budget.
type flakyMeta struct {
	*metastore.Store
	failures int
	calls    int
}

func (f *flakyMeta) Delete(collectionID string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("simulated metadata deletion failure")
	}
	return f.Store.Delete(collectionID)
}

func TestExecuteRetriesMetadataDeletion(t *testing.T) {
	meta, err := metastore.New(t.TempDir(), logging.Noop())
	require.NoError(t, err)
	index, err := vecstore.NewSQLiteIndex(":memory:")
	require.NoError(t, err)
	defer index.Close()

	_, err = meta.Record("repo-a", nomic(), 1)
	require.NoError(t, err)

	flaky := &flakyMeta{Store: meta, failures: 2}
	orch := New(flaky, index, registry.New(), compat.New(meta, logging.Noop()), nil, logging.Noop())

	plan := &types.MigrationPlan{
		Action:              types.ActionClearAndRegenerate,
		Requested:           ada(),
		AffectedCollections: []string{"repo-a"},
	}
	require.NoError(t, orch.Execute(context.Background(), plan))
	assert.Equal(t, 3, flaky.calls)

	_, err = meta.Get("repo-a")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestExecuteSurfacesMigrationFailed(t *testing.T) {
	meta, err := metastore.New(t.TempDir(), logging.Noop())
	require.NoError(t, err)
	index, err := vecstore.NewSQLiteIndex(":memory:")
	require.NoError(t, err)
	defer index.Close()

	_, err = meta.Record("repo-a", nomic(), 1)
	require.NoError(t, err)

	// More failures than the retry budget allows.
	flaky := &flakyMeta{Store: meta, failures: 100}
	orch := New(flaky, index, registry.New(), compat.New(meta, logging.Noop()), nil, logging.Noop())

	plan := &types.MigrationPlan{
		Action:              types.ActionClearAndRegenerate,
		Requested:           ada(),
		AffectedCollections: []string{"repo-a"},
	}
	err = orch.Execute(context.Background(), plan)
	var failed *types.MigrationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "repo-a", failed.CollectionID)
	assert.Equal(t, "index cleared, metadata stale", failed.LastKnownState)
}

func TestExecuteCancelledBeforeDropLeavesStateIntact(t *testing.T) {
	f, _ := setup(t)
	populate(t, f, "repo-a", nomic(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &types.MigrationPlan{
		Action:              types.ActionClearAndRegenerate,
		Requested:           ada(),
		AffectedCollections: []string{"repo-a"},
	}
	err := f.orch.Execute(ctx, plan)
	require.Error(t, err)

	// Old metadata and old index both intact.
	_, err = f.meta.Get("repo-a")
	assert.NoError(t, err)
	_, ok, err := f.index.Dimensionality(context.Background(), "repo-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClearAll(t *testing.T) {
	f, _ := setup(t)
	ctx := context.Background()

	// Empty store: nothing to clear is success.
	cleared, err := f.orch.ClearAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, cleared)

	populate(t, f, "repo-a", nomic(), 1)
	populate(t, f, "repo-b", nomic(), 2)

	// An orphaned physical collection without metadata is also swept.
	require.NoError(t, f.index.Insert(ctx, "orphan", []vecstore.Document{
		{DocID: "d", Vector: make([]float32, 4)},
	}))

	cleared, err = f.orch.ClearAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"repo-a", "repo-b", "orphan"}, cleared)

	names, err := f.index.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	ids, err := f.meta.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
