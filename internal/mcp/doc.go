// Package mcp implements the Model Context Protocol (MCP) server for vecguard.
//
// The server exposes the compatibility manager to AI assistants over
// JSON-RPC 2.0 on stdio:
//   - check_compatibility: verdict for a model against a collection
//   - inspect_collection: recorded embedding metadata
//   - list_models: the model catalog or deployment presets
//   - propose_migration: a safe plan for a model change
//   - execute_migration: clear a collection for regeneration (confirm:true)
//   - switch_model: change the active selection, refusing unsafe switches
//   - index_documents: embed and store documents under the active model
//   - search_documents: embed a query and search, guarded
//   - get_status: active model plus per-collection verdicts
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only; all logging goes to stderr.
//
// # Guarded Retrieval
//
// search_documents and index_documents never touch the vector index directly.
// Every call runs through the query guard first, so a query embedded with a
// model of the wrong dimensionality is refused with error code -32003 instead
// of silently returning garbage neighbors:
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {
//	    "collection_id": "repo-a",
//	    "query": "handler registration",
//	    "limit": 10
//	  }
//	}
//
//	Error (active model produces 1536 dims, stored vectors are 768):
//	{
//	  "code": -32003,
//	  "message": "retrieval blocked for collection \"repo-a\": ...",
//	  "data": {"stored_dimensions": 768, "requested_dimensions": 1536}
//	}
//
// # Error Codes
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32001  unknown embedding model
//	-32002  collection not found
//	-32003  retrieval blocked (dimension mismatch)
//	-32004  migration failed
//
// # Basic Usage
//
// The server is typically started via the serve command:
//
//	vecguard serve
//
// It then listens on stdin for MCP protocol messages and writes responses
// to stdout.
package mcp
