package types

import "time"

// MigrationAction is the operation a migration plan prescribes.
type MigrationAction string

const (
	// ActionClearAndRegenerate drops the physical collection and its metadata
	// so the next insertion repopulates it under the new model.
	ActionClearAndRegenerate MigrationAction = "clear-and-regenerate"
	// ActionSwitchToCompatibleModel changes only the active model selection.
	// Stored vectors are untouched because the dimensionality already matches.
	ActionSwitchToCompatibleModel MigrationAction = "switch-to-compatible-model"
	// ActionAbort leaves everything unchanged.
	ActionAbort MigrationAction = "abort"
)

// MigrationPlan describes a safe transition for collections whose recorded
// model diverges from the requested one.
type MigrationPlan struct {
	Action    MigrationAction `json:"action"`
	Requested ModelDescriptor `json:"requested"`

	// AffectedCollections is the set of collection ids the plan acts on.
	AffectedCollections []string `json:"affected_collections"`

	// BackupRef names the snapshot batch written before a destructive action.
	// Empty until the plan has been executed.
	BackupRef string `json:"backup_ref,omitempty"`

	// Alternatives lists registered models whose dimensionality matches the
	// stored vectors, for callers preferring a model switch over a migration.
	Alternatives []ModelDescriptor `json:"alternatives,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
