package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// collectionIDProperty is the shared schema fragment for collection ids.
func collectionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Identifier of the stored collection (e.g., a repository name)",
	}
}

func providerProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Provider class of the embedding model",
		"enum":        []string{"local-server", "hosted-api", "self-hosted-transformer"},
	}
}

func modelProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Catalogued model name (e.g., 'nomic-embed-text')",
	}
}

// checkCompatibilityTool returns the tool definition for check_compatibility
func checkCompatibilityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "check_compatibility",
		Description: "Check whether an embedding model can safely query a stored collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection_id": collectionIDProperty(),
				"provider":      providerProperty(),
				"model":         modelProperty(),
			},
			Required: []string{"collection_id"},
		},
	}
}

// inspectCollectionTool returns the tool definition for inspect_collection
func inspectCollectionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "inspect_collection",
		Description: "Show the recorded embedding model metadata for a collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection_id": collectionIDProperty(),
			},
			Required: []string{"collection_id"},
		},
	}
}

// listModelsTool returns the tool definition for list_models
func listModelsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_models",
		Description: "List the embedding model catalog or the deployment presets",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"dimensions": map[string]interface{}{
					"type":        "integer",
					"description": "Only list models producing exactly this many dimensions",
					"minimum":     1,
				},
				"presets": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, list deployment presets instead of the raw catalog",
					"default":     false,
				},
			},
		},
	}
}

// proposeMigrationTool returns the tool definition for propose_migration
func proposeMigrationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "propose_migration",
		Description: "Produce a migration plan for moving a collection to a different embedding model",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection_id": collectionIDProperty(),
				"provider":      providerProperty(),
				"model":         modelProperty(),
			},
			Required: []string{"collection_id"},
		},
	}
}

// executeMigrationTool returns the tool definition for execute_migration
func executeMigrationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "execute_migration",
		Description: "Clear a collection so it can be regenerated under the active embedding model. Destructive; requires confirm:true",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection_id": collectionIDProperty(),
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true; the operation deletes stored vectors",
				},
			},
			Required: []string{"collection_id", "confirm"},
		},
	}
}

// switchModelTool returns the tool definition for switch_model
func switchModelTool() mcp.Tool {
	return mcp.Tool{
		Name:        "switch_model",
		Description: "Change the active embedding model, refusing when any collection would become unreadable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"provider": providerProperty(),
				"model":    modelProperty(),
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, switch even when collections would be blocked until cleared",
					"default":     false,
				},
			},
			Required: []string{"provider", "model"},
		},
	}
}

// indexDocumentsTool returns the tool definition for index_documents
func indexDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_documents",
		Description: "Embed documents with the active model and store them in a collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection_id": collectionIDProperty(),
				"documents": map[string]interface{}{
					"type":        "array",
					"description": "Documents to embed and store",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"doc_id": map[string]interface{}{
								"type":        "string",
								"description": "Stable document identifier; re-indexing the same id replaces it",
							},
							"content": map[string]interface{}{
								"type":        "string",
								"description": "Document text to embed",
							},
						},
						"required": []string{"doc_id", "content"},
					},
				},
			},
			Required: []string{"collection_id", "documents"},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Embed a query with the active model and search a collection. Refused when the active model is incompatible with the stored vectors",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection_id": collectionIDProperty(),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"collection_id", "query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report the active embedding model and the compatibility of every stored collection",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
