// Package migrate drives safe transitions for collections whose recorded
// embedding model diverges from the requested one.
//
// The destructive path orders its steps so every observable state is
// well-defined: snapshot the metadata, drop the physical index, then delete
// the metadata. A crash or cancellation before the drop leaves the old
// metadata over the old index; after the drop the metadata deletion runs
// detached from the caller's cancellation, so the one transient state the
// design accepts is an empty physical index behind stale metadata, never a
// new descriptor over stale vectors.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/anhhai680/vecguard-mcp/internal/compat"
	"github.com/anhhai680/vecguard-mcp/internal/metastore"
	"github.com/anhhai680/vecguard-mcp/internal/registry"
	"github.com/anhhai680/vecguard-mcp/internal/vecstore"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

const (
	// metadataDeleteRetries bounds the retry budget for the metadata
	// deletion after a successful physical drop. Exhaustion surfaces
	// MigrationFailed for operator intervention instead of retrying forever.
	metadataDeleteRetries = 3
	metadataDeleteBackoff = 100 * time.Millisecond

	// clearAllParallelism caps concurrent collection clears in ClearAll.
	clearAllParallelism = 4
)

// ModelSelector updates the active embedding model selection. Implemented by
// the configuration surface.
type ModelSelector interface {
	SetActive(types.ModelDescriptor) error
}

// MetadataStore is the slice of the metadata store the orchestrator mutates.
// Satisfied by *metastore.Store.
type MetadataStore interface {
	Backup(collectionID, batchRef string) (string, error)
	Delete(collectionID string) error
	List() ([]string, error)
}

var _ MetadataStore = (*metastore.Store)(nil)

// Orchestrator produces and executes migration plans.
type Orchestrator struct {
	meta      MetadataStore
	index     vecstore.Index
	reg       *registry.Registry
	validator *compat.Validator
	selector  ModelSelector
	logger    *slog.Logger
}

// New creates an orchestrator. selector may be nil when no configuration
// surface is wired; executing a SwitchToCompatibleModel plan then fails.
func New(meta MetadataStore, index vecstore.Index, reg *registry.Registry,
	validator *compat.Validator, selector ModelSelector, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		meta:      meta,
		index:     index,
		reg:       reg,
		validator: validator,
		selector:  selector,
		logger:    logger,
	}
}

// Propose builds a plan for moving a collection to the requested model. A
// dimension mismatch yields ClearAndRegenerate, with the registry's
// same-dimension alternatives attached so callers can sidestep migration by
// switching models instead. Compatible and unrecorded collections yield an
// Abort plan: there is nothing to migrate.
func (o *Orchestrator) Propose(collectionID string, requested types.ModelDescriptor) (*types.MigrationPlan, error) {
	verdict, meta, err := o.validator.Check(collectionID, requested)
	if err != nil {
		return nil, err
	}

	plan := &types.MigrationPlan{
		Action:    types.ActionAbort,
		Requested: requested,
		CreatedAt: time.Now().UTC(),
	}
	if verdict != types.VerdictDimensionMismatch {
		return plan, nil
	}

	plan.Action = types.ActionClearAndRegenerate
	plan.AffectedCollections = []string{collectionID}
	for alt := range o.reg.ListCompatible(meta.ProducedBy.Dimensions) {
		plan.Alternatives = append(plan.Alternatives, alt)
	}
	return plan, nil
}

// ProposeSwitch builds a SwitchToCompatibleModel plan: keep the data, change
// only the active selection. Legal only when the alternative's
// dimensionality equals the collection's stored one.
func (o *Orchestrator) ProposeSwitch(collectionID string, alternative types.ModelDescriptor) (*types.MigrationPlan, error) {
	verdict, meta, err := o.validator.Check(collectionID, alternative)
	if err != nil {
		return nil, err
	}
	if verdict == types.VerdictNoMetadata {
		return nil, &types.CollectionNotFoundError{CollectionID: collectionID}
	}
	if verdict != types.VerdictCompatible {
		return nil, fmt.Errorf("cannot switch collection %q to %s: stored vectors are %d-dimensional",
			collectionID, alternative.String(), meta.ProducedBy.Dimensions)
	}

	return &types.MigrationPlan{
		Action:              types.ActionSwitchToCompatibleModel,
		Requested:           alternative,
		AffectedCollections: []string{collectionID},
		CreatedAt:           time.Now().UTC(),
	}, nil
}

// Execute carries out a plan. ClearAndRegenerate clears every affected
// collection; SwitchToCompatibleModel updates the active selection only;
// Abort returns control unchanged.
func (o *Orchestrator) Execute(ctx context.Context, plan *types.MigrationPlan) error {
	switch plan.Action {
	case types.ActionAbort:
		return nil

	case types.ActionSwitchToCompatibleModel:
		if o.selector == nil {
			return errors.New("no model selector configured")
		}
		if err := o.selector.SetActive(plan.Requested); err != nil {
			return fmt.Errorf("switch active model: %w", err)
		}
		o.logger.Info("switched active model, stored vectors untouched",
			"model", plan.Requested.String())
		return nil

	case types.ActionClearAndRegenerate:
		if plan.BackupRef == "" {
			plan.BackupRef = uuid.NewString()
		}
		for _, collectionID := range plan.AffectedCollections {
			if err := o.clearCollection(ctx, collectionID, plan.BackupRef); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown migration action %q", plan.Action)
	}
}

// clearCollection performs one backup-drop-delete sequence. Idempotent:
// clearing an already-empty collection succeeds.
func (o *Orchestrator) clearCollection(ctx context.Context, collectionID, batchRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Snapshot first, while the metadata still exists.
	backupPath, err := o.meta.Backup(collectionID, batchRef)
	switch {
	case errors.Is(err, types.ErrNotFound):
		// Nothing recorded, nothing to snapshot.
	case err != nil:
		// Backup copies raw bytes, so a corrupt record snapshots fine and is
		// then cleared like any other; only I/O failures land here.
		return &types.MigrationFailedError{
			CollectionID:   collectionID,
			LastKnownState: "metadata intact",
			Err:            fmt.Errorf("backup: %w", err),
		}
	default:
		o.logger.Debug("metadata snapshot written", "collection", collectionID, "path", backupPath)
	}

	// Physical index first. Failure here leaves metadata and index intact.
	if err := o.index.Drop(ctx, collectionID); err != nil {
		return &types.MigrationFailedError{
			CollectionID:   collectionID,
			LastKnownState: "metadata intact",
			Err:            fmt.Errorf("drop physical index: %w", err),
		}
	}

	// The physical index is gone; finishing the metadata delete must not be
	// abandoned on caller cancellation, or live metadata would claim vectors
	// that no longer exist in the dangerous direction. A bounded retry
	// budget keeps a persistent failure from looping forever.
	detached := context.WithoutCancel(ctx)
	backoff := retry.WithMaxRetries(metadataDeleteRetries, retry.NewConstant(metadataDeleteBackoff))
	err = retry.Do(detached, backoff, func(ctx context.Context) error {
		if err := o.meta.Delete(collectionID); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return &types.MigrationFailedError{
			CollectionID:   collectionID,
			LastKnownState: "index cleared, metadata stale",
			Err:            fmt.Errorf("delete metadata: %w", err),
		}
	}

	o.logger.Info("collection cleared, marked for regeneration on next insertion",
		"collection", collectionID, "backup_ref", batchRef)
	return nil
}

// ClearAll clears every known collection in parallel and returns the set it
// acted on. An empty store is success: nothing to clear. Grounded on the
// original system's clear-all-embeddings maintenance command.
func (o *Orchestrator) ClearAll(ctx context.Context) ([]string, error) {
	recorded, err := o.meta.List()
	if err != nil {
		return nil, err
	}
	physical, err := o.index.Collections(ctx)
	if err != nil {
		return nil, err
	}

	// Union: orphaned physical collections without metadata still get
	// dropped, and stale metadata without vectors still gets deleted.
	seen := make(map[string]bool, len(recorded)+len(physical))
	all := make([]string, 0, len(recorded)+len(physical))
	for _, id := range append(recorded, physical...) {
		if !seen[id] {
			seen[id] = true
			all = append(all, id)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}

	batchRef := uuid.NewString()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clearAllParallelism)
	for _, collectionID := range all {
		g.Go(func() error {
			return o.clearCollection(gctx, collectionID, batchRef)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}
