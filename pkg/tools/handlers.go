package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarkdata/mcp-dbgate/pkg/driver"
	"github.com/quarkdata/mcp-dbgate/pkg/manager"
)

// connectInput carries inline connection parameters or the name of a saved
// configuration. Saved parameters are overlaid with any inline secret so a
// password kept out of the config file can be supplied at connect time.
type connectInput struct {
	Type            string `json:"type,omitempty"`
	Saved           string `json:"saved,omitempty"`
	Name            string `json:"name,omitempty"`
	Host            string `json:"host,omitempty"`
	Port            int    `json:"port,omitempty"`
	Database        string `json:"database,omitempty"`
	User            string `json:"user,omitempty"`
	Password        string `json:"password,omitempty"`
	SSL             bool   `json:"ssl,omitempty"`
	Region          string `json:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	ReadOnly        bool   `json:"read_only,omitempty"`
	MaxRows         int    `json:"max_rows,omitempty"`
}

func (in connectInput) toConfig() driver.Config {
	return driver.Config{
		Type:            in.Type,
		Host:            in.Host,
		Port:            in.Port,
		Database:        in.Database,
		User:            in.User,
		Password:        in.Password,
		SSL:             in.SSL,
		Region:          in.Region,
		AccessKeyID:     in.AccessKeyID,
		SecretAccessKey: in.SecretAccessKey,
		SessionToken:    in.SessionToken,
		Endpoint:        in.Endpoint,
		ReadOnly:        in.ReadOnly,
		MaxRows:         in.MaxRows,
	}
}

func (t *Toolkit) handleConnect(ctx context.Context, _ *mcp.CallToolRequest, in connectInput) (*mcp.CallToolResult, any, error) {
	cfg := in.toConfig()

	if in.Saved != "" {
		if t.resolver == nil {
			return errorResult(fmt.Errorf("no saved configurations available")), nil, nil
		}
		saved, ok := t.resolver.Lookup(in.Saved)
		if !ok {
			return errorResult(fmt.Errorf("no saved configuration named %q", in.Saved)), nil, nil
		}
		cfg = overlaySecrets(saved, in)
	}

	info, err := t.manager.Connect(ctx, in.Name, cfg)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(map[string]any{
		"status":     "connected",
		"connection": info,
	})
}

// overlaySecrets fills the secret fields of a saved configuration from the
// inline input when the file left them empty.
func overlaySecrets(saved driver.Config, in connectInput) driver.Config {
	if saved.Password == "" {
		saved.Password = in.Password
	}
	if saved.SecretAccessKey == "" {
		saved.SecretAccessKey = in.SecretAccessKey
	}
	if saved.SessionToken == "" {
		saved.SessionToken = in.SessionToken
	}
	return saved
}

type nameInput struct {
	Name string `json:"name"`
}

func (t *Toolkit) handleDisconnect(ctx context.Context, _ *mcp.CallToolRequest, in nameInput) (*mcp.CallToolResult, any, error) {
	if err := t.manager.Disconnect(ctx, in.Name); err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(map[string]any{"status": "disconnected", "name": in.Name})
}

type emptyInput struct{}

func (t *Toolkit) handleDisconnectAll(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonResult(t.manager.DisconnectAll(ctx))
}

type queryInput struct {
	Name      string `json:"name"`
	Statement string `json:"statement"`
	Params    []any  `json:"params,omitempty"`
}

func (t *Toolkit) handleExecuteQuery(ctx context.Context, _ *mcp.CallToolRequest, in queryInput) (*mcp.CallToolResult, any, error) {
	started := time.Now()
	result, err := t.manager.ExecuteQuery(ctx, in.Name, in.Statement, in.Params)
	if err != nil {
		return errorResult(err), nil, nil
	}
	t.logger.Debug("query executed", "connection", in.Name, "rows", result.RowCount, "elapsed", time.Since(started))
	return jsonResult(result)
}

func (t *Toolkit) handleTestConnection(ctx context.Context, _ *mcp.CallToolRequest, in nameInput) (*mcp.CallToolResult, any, error) {
	health, err := t.manager.TestConnection(ctx, in.Name)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(health)
}

func (t *Toolkit) handleGetSchema(ctx context.Context, _ *mcp.CallToolRequest, in nameInput) (*mcp.CallToolResult, any, error) {
	schema, err := t.manager.GetSchema(ctx, in.Name)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(schema)
}

func (t *Toolkit) handleConnectionInfo(_ context.Context, _ *mcp.CallToolRequest, in nameInput) (*mcp.CallToolResult, any, error) {
	info, err := t.manager.GetConnectionInfo(in.Name)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(info)
}

// listConnectionsOutput is the JSON response for the list_connections tool.
type listConnectionsOutput struct {
	Connections []manager.Info `json:"connections"`
	Count       int            `json:"count"`
}

func (t *Toolkit) handleListConnections(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	infos := t.manager.ListConnections()
	return jsonResult(listConnectionsOutput{Connections: infos, Count: len(infos)})
}

func (t *Toolkit) handleExportConnections(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonResult(t.manager.ExportConnections())
}

type importInput struct {
	Connections []importEntryInput `json:"connections"`
	Overwrite   bool               `json:"overwrite,omitempty"`
}

type importEntryInput struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	Database    string `json:"database,omitempty"`
	User        string `json:"user,omitempty"`
	Region      string `json:"region,omitempty"`
	AccessKeyID string `json:"access_key_id,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
}

func (t *Toolkit) handleImportConnections(ctx context.Context, _ *mcp.CallToolRequest, in importInput) (*mcp.CallToolResult, any, error) {
	entries := make([]manager.ImportEntry, 0, len(in.Connections))
	for _, e := range in.Connections {
		entries = append(entries, manager.ImportEntry{
			Name: e.Name,
			Config: driver.Config{
				Type:        e.Type,
				Host:        e.Host,
				Port:        e.Port,
				Database:    e.Database,
				User:        e.User,
				Region:      e.Region,
				AccessKeyID: e.AccessKeyID,
				Endpoint:    e.Endpoint,
			},
		})
	}
	return jsonResult(t.manager.ImportConnections(ctx, entries, in.Overwrite))
}

func (t *Toolkit) handleListSavedConfigs(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	var names []string
	if t.resolver != nil {
		names = t.resolver.Names()
	}
	if names == nil {
		names = []string{}
	}
	return jsonResult(map[string]any{"names": names, "count": len(names)})
}
