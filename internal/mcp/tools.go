package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/anhhai680/vecguard-mcp/internal/embedder"
	"github.com/anhhai680/vecguard-mcp/internal/vecstore"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeUnknownModel       = -32001 // Requested model is not in the catalog
	ErrorCodeCollectionNotFound = -32002 // Collection has no metadata and no vectors
	ErrorCodeRetrievalBlocked   = -32003 // Dimensionality mismatch stopped the operation
	ErrorCodeMigrationFailed    = -32004 // Clear operation left the collection needing attention
)

// handleCheckCompatibility handles the check_compatibility tool invocation
func (s *Server) handleCheckCompatibility(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	collectionID, err := requiredString(args, "collection_id")
	if err != nil {
		return nil, err
	}
	requested, err := s.requestedModel(args)
	if err != nil {
		return nil, mapDomainError(err)
	}

	verdict, meta, err := s.validator.Check(collectionID, requested)
	if err != nil {
		return nil, mapDomainError(err)
	}

	response := map[string]interface{}{
		"collection_id": collectionID,
		"verdict":       string(verdict),
		"blocks":        verdict.Blocks(),
		"requested":     requested,
	}
	if meta != nil {
		response["stored"] = meta.ProducedBy
		response["vector_count"] = meta.VectorCount
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleInspectCollection handles the inspect_collection tool invocation
func (s *Server) handleInspectCollection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	collectionID, err := requiredString(args, "collection_id")
	if err != nil {
		return nil, err
	}

	meta, err := s.meta.Get(collectionID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, newMCPError(ErrorCodeCollectionNotFound, "collection has no recorded metadata", map[string]interface{}{
			"collection_id": collectionID,
		})
	}
	if err != nil {
		return nil, mapDomainError(err)
	}

	response := map[string]interface{}{
		"collection_id":     meta.CollectionID,
		"produced_by":       meta.ProducedBy,
		"vector_count":      meta.VectorCount,
		"created_at":        meta.CreatedAt.Format(time.RFC3339),
		"last_validated_at": meta.LastValidatedAt.Format(time.RFC3339),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListModels handles the list_models tool invocation
func (s *Server) handleListModels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	if getBoolDefault(args, "presets", false) {
		response := map[string]interface{}{
			"presets": s.registry.Presets(),
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	var models []types.ModelDescriptor
	if dims := getIntDefault(args, "dimensions", 0); dims > 0 {
		for d := range s.registry.ListCompatible(dims) {
			models = append(models, d)
		}
	} else {
		models = s.registry.All()
	}

	response := map[string]interface{}{
		"models": models,
		"count":  len(models),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleProposeMigration handles the propose_migration tool invocation
func (s *Server) handleProposeMigration(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	collectionID, err := requiredString(args, "collection_id")
	if err != nil {
		return nil, err
	}
	requested, err := s.requestedModel(args)
	if err != nil {
		return nil, mapDomainError(err)
	}

	plan, err := s.orch.Propose(collectionID, requested)
	if err != nil {
		return nil, mapDomainError(err)
	}

	return mcp.NewToolResultText(formatJSONValue(plan)), nil
}

// handleExecuteMigration handles the execute_migration tool invocation.
// It clears the named collection (vectors and metadata) so the next indexing
// run repopulates it under the active model.
func (s *Server) handleExecuteMigration(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	collectionID, err := requiredString(args, "collection_id")
	if err != nil {
		return nil, err
	}
	if !getBoolDefault(args, "confirm", false) {
		return nil, newMCPError(ErrorCodeInvalidParams, "execute_migration is destructive and requires confirm:true", map[string]interface{}{
			"param": "confirm",
		})
	}

	requested, err := s.activeModel()
	if err != nil {
		return nil, mapDomainError(err)
	}

	plan := &types.MigrationPlan{
		Action:              types.ActionClearAndRegenerate,
		Requested:           requested,
		AffectedCollections: []string{collectionID},
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.orch.Execute(ctx, plan); err != nil {
		return nil, mapDomainError(err)
	}

	response := map[string]interface{}{
		"cleared":    plan.AffectedCollections,
		"backup_ref": plan.BackupRef,
		"requested":  requested,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSwitchModel handles the switch_model tool invocation
func (s *Server) handleSwitchModel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	provider, err := requiredString(args, "provider")
	if err != nil {
		return nil, err
	}
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	force := getBoolDefault(args, "force", false)

	target, err := s.registry.Lookup(types.Provider(provider), model)
	if err != nil {
		return nil, mapDomainError(err)
	}

	blocked, err := s.blockedCollections(target)
	if err != nil {
		return nil, mapDomainError(err)
	}

	if len(blocked) > 0 && !force {
		return nil, newMCPError(ErrorCodeRetrievalBlocked,
			fmt.Sprintf("switching to %s would block %d collection(s); clear them or pass force:true", target.String(), len(blocked)),
			map[string]interface{}{
				"target":  target,
				"blocked": blocked,
			})
	}

	if err := s.config.SetActive(target); err != nil {
		return nil, mapDomainError(err)
	}
	s.dropEmbedder()

	response := map[string]interface{}{
		"switched": true,
		"active":   target,
		"forced":   force,
	}
	if len(blocked) > 0 {
		response["blocked"] = blocked
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// blockedCollections lists every recorded collection a candidate model could
// not query.
func (s *Server) blockedCollections(target types.ModelDescriptor) ([]map[string]interface{}, error) {
	ids, err := s.meta.List()
	if err != nil {
		return nil, err
	}

	var blocked []map[string]interface{}
	for _, id := range ids {
		verdict, meta, err := s.validator.Check(id, target)
		if err != nil {
			return nil, err
		}
		if !verdict.Blocks() {
			continue
		}
		blocked = append(blocked, map[string]interface{}{
			"collection_id":     id,
			"stored_dimensions": meta.ProducedBy.Dimensions,
			"stored_model":      meta.ProducedBy,
		})
	}
	return blocked, nil
}

// handleIndexDocuments handles the index_documents tool invocation
func (s *Server) handleIndexDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	collectionID, err := requiredString(args, "collection_id")
	if err != nil {
		return nil, err
	}
	docs, err := parseDocuments(args)
	if err != nil {
		return nil, err
	}

	emb, err := s.activeEmbedder()
	if err != nil {
		return nil, mapDomainError(err)
	}

	cfg, err := s.config.Load()
	if err != nil {
		return nil, mapDomainError(err)
	}

	// Embed in configured batches, then hand everything to the guard in one
	// insertion so metadata is recorded once.
	stored := make([]vecstore.Document, 0, len(docs))
	for start := 0; start < len(docs); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "embedding failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		for i, e := range resp.Embeddings {
			stored = append(stored, vecstore.Document{
				DocID:   batch[i].DocID,
				Content: batch[i].Content,
				Vector:  e.Vector,
			})
		}
	}

	recorded, err := s.guard.Insert(ctx, collectionID, stored, emb.Descriptor())
	if err != nil {
		return nil, mapDomainError(err)
	}

	response := map[string]interface{}{
		"collection_id": collectionID,
		"indexed":       len(stored),
		"vector_count":  recorded.VectorCount,
		"model":         recorded.ProducedBy,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	collectionID, err := requiredString(args, "collection_id")
	if err != nil {
		return nil, err
	}
	query, err := requiredString(args, "query")
	if err != nil {
		return nil, err
	}
	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	emb, err := s.activeEmbedder()
	if err != nil {
		return nil, mapDomainError(err)
	}

	queryEmb, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "embedding failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results, err := s.guard.Search(ctx, collectionID, queryEmb.Vector, limit, emb.Descriptor())
	if err != nil {
		return nil, mapDomainError(err)
	}

	formatted := make([]map[string]interface{}, len(results))
	for i, r := range results {
		formatted[i] = map[string]interface{}{
			"doc_id":     r.DocID,
			"content":    r.Content,
			"similarity": r.Similarity,
		}
	}

	response := map[string]interface{}{
		"collection_id": collectionID,
		"model":         emb.Descriptor(),
		"results":       formatted,
		"count":         len(formatted),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	active, err := s.activeModel()
	if err != nil {
		return nil, mapDomainError(err)
	}

	ids, err := s.meta.List()
	if err != nil {
		return nil, mapDomainError(err)
	}

	collections := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		verdict, meta, err := s.validator.Check(id, active)
		if err != nil {
			return nil, mapDomainError(err)
		}
		entry := map[string]interface{}{
			"collection_id": id,
			"verdict":       string(verdict),
			"blocks":        verdict.Blocks(),
		}
		if meta != nil {
			entry["produced_by"] = meta.ProducedBy
			entry["vector_count"] = meta.VectorCount
			entry["last_validated_at"] = meta.LastValidatedAt.Format(time.RFC3339)
		}
		collections = append(collections, entry)
	}

	response := map[string]interface{}{
		"active_model": active,
		"collections":  collections,
		"build": map[string]interface{}{
			"mode":                       vecstore.BuildMode,
			"sqlite_driver":              vecstore.DriverName,
			"vector_extension_available": vecstore.VectorExtensionAvailable,
		},
		"home": s.home,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// mapDomainError translates typed domain errors to their protocol codes.
// Errors that are already MCPErrors pass through unchanged.
func mapDomainError(err error) error {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var unknown *types.UnknownModelError
	var notFound *types.CollectionNotFoundError
	var blocked *types.RetrievalBlockedError
	var failed *types.MigrationFailedError

	switch {
	case errors.As(err, &unknown):
		return newMCPError(ErrorCodeUnknownModel, unknown.Error(), map[string]interface{}{
			"provider": string(unknown.Provider),
			"model":    unknown.Name,
		})
	case errors.As(err, &notFound):
		return newMCPError(ErrorCodeCollectionNotFound, notFound.Error(), map[string]interface{}{
			"collection_id": notFound.CollectionID,
		})
	case errors.As(err, &blocked):
		return newMCPError(ErrorCodeRetrievalBlocked, blocked.Error(), map[string]interface{}{
			"collection_id":        blocked.CollectionID,
			"stored_dimensions":    blocked.StoredDimensions,
			"requested_dimensions": blocked.RequestedDimensions,
		})
	case errors.As(err, &failed):
		return newMCPError(ErrorCodeMigrationFailed, failed.Error(), map[string]interface{}{
			"collection_id":    failed.CollectionID,
			"last_known_state": failed.LastKnownState,
		})
	default:
		return newMCPError(ErrorCodeInternalError, err.Error(), nil)
	}
}

// requestedModel resolves the optional provider/model argument pair, falling
// back to the active selection when neither is present.
func (s *Server) requestedModel(args map[string]interface{}) (types.ModelDescriptor, error) {
	provider := getStringDefault(args, "provider", "")
	model := getStringDefault(args, "model", "")

	if provider == "" && model == "" {
		return s.activeModel()
	}
	if provider == "" || model == "" {
		return types.ModelDescriptor{}, newMCPError(ErrorCodeInvalidParams,
			"provider and model must be supplied together", nil)
	}
	return s.registry.Lookup(types.Provider(provider), model)
}

// toolDocument is the wire form of one document in index_documents.
type toolDocument struct {
	DocID   string
	Content string
}

// parseDocuments extracts the documents array from tool arguments.
func parseDocuments(args map[string]interface{}) ([]toolDocument, error) {
	raw, ok := args["documents"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "documents parameter is required and cannot be empty", map[string]interface{}{
			"param": "documents",
		})
	}

	docs := make([]toolDocument, 0, len(raw))
	for i, entry := range raw {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("document %d is not an object", i), nil)
		}
		docID, _ := obj["doc_id"].(string)
		content, _ := obj["content"].(string)
		if docID == "" || content == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("document %d requires doc_id and content", i), nil)
		}
		docs = append(docs, toolDocument{DocID: docID, Content: content})
	}
	return docs, nil
}

// requiredString extracts a mandatory string parameter.
func requiredString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	return formatJSONValue(data)
}

// formatJSONValue formats any value as indented JSON
func formatJSONValue(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
