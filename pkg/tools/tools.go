// Package tools registers the database tools with the MCP server and
// translates tool calls into connection manager operations. Operation
// failures are reported through the tool result's IsError flag rather than
// as protocol errors, so agents can read the failure kind and decide whether
// to retry, fix input, or stop.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarkdata/mcp-dbgate/pkg/config"
	"github.com/quarkdata/mcp-dbgate/pkg/manager"
)

// closeTimeout bounds the drain of open connections on Close.
const closeTimeout = 30 * time.Second

// Toolkit binds the connection manager and the saved-connection resolver to
// the MCP tool surface.
type Toolkit struct {
	manager  *manager.Manager
	resolver config.Resolver
	logger   *slog.Logger
}

// New creates a toolkit. resolver may be nil when no saved connections are
// configured.
func New(mgr *manager.Manager, resolver config.Resolver, logger *slog.Logger) *Toolkit {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolkit{manager: mgr, resolver: resolver, logger: logger}
}

// RegisterTools registers all database tools with the MCP server.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "connect_database",
		Description: "Open a named database connection (postgresql, mysql, dynamodb, or redis). Pass connection parameters inline, or 'saved' to use a saved configuration.",
	}, t.handleConnect)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "disconnect_database",
		Description: "Close a named database connection and free its name.",
	}, t.handleDisconnect)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "disconnect_all",
		Description: "Close every open database connection and report the per-connection outcome.",
	}, t.handleDisconnectAll)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "execute_query",
		Description: "Execute a statement on a named connection. SQL with positional parameters for relational backends, PartiQL for DynamoDB, native commands for Redis.",
	}, t.handleExecuteQuery)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "test_connection",
		Description: "Check whether a named connection can still reach its backend.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.handleTestConnection)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_schema",
		Description: "Introspect the structure behind a named connection: tables and columns, DynamoDB table descriptions, or a Redis keyspace summary.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.handleGetSchema)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "connection_info",
		Description: "Show metadata for a named connection: type, redacted locator, timestamps.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.handleConnectionInfo)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_connections",
		Description: "List every open database connection.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.handleListConnections)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "export_connections",
		Description: "Export the non-secret configuration of every open connection, keyed by name. Secrets are never included.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.handleExportConnections)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "import_connections",
		Description: "Validate a batch of connection configurations without connecting. Existing names are skipped unless overwrite is set.",
	}, t.handleImportConnections)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_saved_configs",
		Description: "List the names of saved connection configurations available to connect_database.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.handleListSavedConfigs)
}

// Tools returns the tool names this toolkit provides.
func (t *Toolkit) Tools() []string {
	return []string{
		"connect_database", "disconnect_database", "disconnect_all",
		"execute_query", "test_connection", "get_schema", "connection_info",
		"list_connections", "export_connections", "import_connections",
		"list_saved_configs",
	}
}

// Close releases all manager-owned connections. Called by the server during
// shutdown.
func (t *Toolkit) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	report := t.manager.DisconnectAll(ctx)
	if report.Total > 0 {
		t.logger.Info("connections drained", "total", report.Total, "failed", report.Failed)
	}
	return nil
}

// jsonResult marshals v into an MCP text result.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// errorResult wraps an operation failure into an IsError tool result. The
// error text keeps its kind-specific prefix so callers can distinguish
// validation, not-found, and backend failures.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}
