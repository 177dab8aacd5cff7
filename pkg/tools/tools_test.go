package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkdata/mcp-dbgate/pkg/config"
	"github.com/quarkdata/mcp-dbgate/pkg/driver"
	"github.com/quarkdata/mcp-dbgate/pkg/manager"
)

// stubDriver answers every operation in memory so the tool surface can be
// exercised over a real MCP session without any backend.
type stubDriver struct {
	cfg driver.Config
}

func (s *stubDriver) Type() string { return s.cfg.Type }

func (s *stubDriver) Connect(context.Context) error { return nil }

func (s *stubDriver) Disconnect(context.Context) error { return nil }

func (s *stubDriver) Query(context.Context, string, []any) (*driver.Result, error) {
	r := driver.NewResult()
	r.Rows = append(r.Rows, driver.Row{"greeting": "hello"})
	r.RowCount = 1
	return r, nil
}

func (s *stubDriver) TestConnection(context.Context) driver.Health {
	return driver.Health{Healthy: true, Message: "connection is healthy"}
}

func (s *stubDriver) Schema(context.Context) (*driver.Schema, error) {
	return &driver.Schema{
		Backend: s.cfg.Type,
		Relational: &driver.RelationalSchema{Tables: []driver.Table{
			{Schema: "public", Name: "users", Columns: []driver.Column{{Name: "id", DataType: "integer"}}},
		}},
	}, nil
}

func (s *stubDriver) ConnectionString() string { return s.cfg.Type + "://****@stub" }

func stubFactory(cfg driver.Config) (driver.Driver, error) {
	if cfg.Host == "" {
		return nil, &driver.ValidationError{Backend: cfg.Type, Missing: []string{"host"}}
	}
	return &stubDriver{cfg: cfg}, nil
}

// newSession stands up a server with the toolkit registered and returns a
// connected client session.
func newSession(t *testing.T, resolver config.Resolver) *mcp.ClientSession {
	t.Helper()

	reg := driver.NewRegistry()
	reg.Register("postgresql", stubFactory, "postgres")
	reg.Register("redis", stubFactory)
	mgr := manager.New(reg, slog.New(slog.DiscardHandler))

	server := mcp.NewServer(&mcp.Implementation{Name: "dbgate-test", Version: "0.0.1"}, nil)
	New(mgr, resolver, slog.New(slog.DiscardHandler)).RegisterTools(server)

	ctx := context.Background()
	st, ct := mcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	clientSession, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return result, text.Text
}

func connectArgs(name string) map[string]any {
	return map[string]any{
		"type": "postgresql", "name": name,
		"host": "db", "database": "app", "user": "u", "password": "p",
	}
}

func TestClose_DrainsConnections(t *testing.T) {
	reg := driver.NewRegistry()
	reg.Register("postgresql", stubFactory)
	mgr := manager.New(reg, slog.New(slog.DiscardHandler))
	toolkit := New(mgr, nil, slog.New(slog.DiscardHandler))

	_, err := mgr.Connect(context.Background(), "a", driver.Config{Type: "postgresql", Host: "db"})
	require.NoError(t, err)
	_, err = mgr.Connect(context.Background(), "b", driver.Config{Type: "postgresql", Host: "db"})
	require.NoError(t, err)

	require.NoError(t, toolkit.Close())
	assert.Zero(t, mgr.Count())
}

func TestListTools(t *testing.T) {
	session := newSession(t, nil)

	listed, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make(map[string]bool, len(listed.Tools))
	for _, tool := range listed.Tools {
		names[tool.Name] = true
	}
	for _, want := range (&Toolkit{}).Tools() {
		assert.True(t, names[want], "tool %s not registered", want)
	}
}

func TestConnectDatabase(t *testing.T) {
	session := newSession(t, nil)

	result, text := callTool(t, session, "connect_database", connectArgs("primary"))
	assert.False(t, result.IsError)
	assert.Contains(t, text, `"status": "connected"`)
	assert.Contains(t, text, `"primary"`)
	assert.NotContains(t, text, `"p"`, "password must not echo back")
}

func TestConnectDatabase_AutoName(t *testing.T) {
	session := newSession(t, nil)

	_, text := callTool(t, session, "connect_database", connectArgs(""))
	assert.Contains(t, text, "postgresql_1")
}

func TestConnectDatabase_DuplicateName(t *testing.T) {
	session := newSession(t, nil)

	callTool(t, session, "connect_database", connectArgs("primary"))
	result, text := callTool(t, session, "connect_database", connectArgs("primary"))
	assert.True(t, result.IsError)
	assert.Contains(t, text, "already exists")
}

func TestConnectDatabase_ValidationFailure(t *testing.T) {
	session := newSession(t, nil)

	result, text := callTool(t, session, "connect_database", map[string]any{"type": "postgresql"})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "host")
}

func TestConnectDatabase_UnknownType(t *testing.T) {
	session := newSession(t, nil)

	result, text := callTool(t, session, "connect_database", map[string]any{"type": "mongodb", "host": "db"})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "postgresql", "error should list known types")
}

func TestConnectDatabase_SavedConfig(t *testing.T) {
	resolver := &config.Config{Connections: map[string]driver.Config{
		"warehouse": {Type: "postgresql", Host: "wh.internal", Database: "dw", User: "etl"},
	}}
	session := newSession(t, resolver)

	result, text := callTool(t, session, "connect_database", map[string]any{
		"saved": "warehouse", "password": "supplied-at-call",
	})
	assert.False(t, result.IsError)
	assert.Contains(t, text, "postgresql_1")

	result, text = callTool(t, session, "connect_database", map[string]any{"saved": "nope"})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "no saved configuration")
}

func TestExecuteQuery(t *testing.T) {
	session := newSession(t, nil)
	callTool(t, session, "connect_database", connectArgs("db"))

	result, text := callTool(t, session, "execute_query", map[string]any{
		"name": "db", "statement": "SELECT greeting FROM t",
	})
	assert.False(t, result.IsError)

	var parsed struct {
		Rows     []map[string]any `json:"rows"`
		RowCount int              `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &parsed))
	assert.Equal(t, 1, parsed.RowCount)
	assert.Equal(t, "hello", parsed.Rows[0]["greeting"])
}

func TestExecuteQuery_UnknownConnection(t *testing.T) {
	session := newSession(t, nil)

	result, text := callTool(t, session, "execute_query", map[string]any{
		"name": "ghost", "statement": "SELECT 1",
	})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "no connection named")
}

func TestGetSchema(t *testing.T) {
	session := newSession(t, nil)
	callTool(t, session, "connect_database", connectArgs("db"))

	result, text := callTool(t, session, "get_schema", map[string]any{"name": "db"})
	assert.False(t, result.IsError)
	assert.Contains(t, text, `"users"`)
}

func TestTestConnection(t *testing.T) {
	session := newSession(t, nil)
	callTool(t, session, "connect_database", connectArgs("db"))

	result, text := callTool(t, session, "test_connection", map[string]any{"name": "db"})
	assert.False(t, result.IsError)
	assert.Contains(t, text, `"healthy": true`)
}

func TestDisconnectDatabase(t *testing.T) {
	session := newSession(t, nil)
	callTool(t, session, "connect_database", connectArgs("db"))

	result, text := callTool(t, session, "disconnect_database", map[string]any{"name": "db"})
	assert.False(t, result.IsError)
	assert.Contains(t, text, `"disconnected"`)

	result, _ = callTool(t, session, "connection_info", map[string]any{"name": "db"})
	assert.True(t, result.IsError)
}

func TestDisconnectAll(t *testing.T) {
	session := newSession(t, nil)
	callTool(t, session, "connect_database", connectArgs("a"))
	callTool(t, session, "connect_database", connectArgs("b"))

	result, text := callTool(t, session, "disconnect_all", nil)
	assert.False(t, result.IsError)

	var report manager.DisconnectReport
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Succeeded)
}

func TestListConnections(t *testing.T) {
	session := newSession(t, nil)

	_, text := callTool(t, session, "list_connections", nil)
	assert.Contains(t, text, `"count": 0`)

	callTool(t, session, "connect_database", connectArgs("db"))
	_, text = callTool(t, session, "list_connections", nil)
	assert.Contains(t, text, `"count": 1`)
	assert.Contains(t, text, `"db"`)
}

func TestExportConnections_NoSecrets(t *testing.T) {
	session := newSession(t, nil)
	args := connectArgs("prod")
	args["password"] = "hunter2"
	callTool(t, session, "connect_database", args)

	result, text := callTool(t, session, "export_connections", nil)
	assert.False(t, result.IsError)
	assert.Contains(t, text, `"prod"`)
	assert.NotContains(t, text, "hunter2")
}

func TestImportConnections(t *testing.T) {
	session := newSession(t, nil)

	result, text := callTool(t, session, "import_connections", map[string]any{
		"connections": []map[string]any{
			{"name": "a", "type": "postgresql", "host": "db", "database": "app", "user": "u"},
			{"name": "b", "type": "mongodb"},
		},
	})
	assert.False(t, result.IsError)

	var outcomes []manager.ImportOutcome
	require.NoError(t, json.Unmarshal([]byte(text), &outcomes))
	require.Len(t, outcomes, 2)
	assert.Equal(t, manager.ImportValidated, outcomes[0].Status)
	assert.Equal(t, manager.ImportFailed, outcomes[1].Status)
}

func TestListSavedConfigs(t *testing.T) {
	resolver := &config.Config{Connections: map[string]driver.Config{
		"warehouse": {Type: "postgresql"},
		"cache":     {Type: "redis"},
	}}
	session := newSession(t, resolver)

	_, text := callTool(t, session, "list_saved_configs", nil)
	assert.Contains(t, text, `"warehouse"`)
	assert.Contains(t, text, `"cache"`)
	assert.Contains(t, text, `"count": 2`)

	session = newSession(t, nil)
	_, text = callTool(t, session, "list_saved_configs", nil)
	assert.Contains(t, text, `"count": 0`)
}
