package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"
)

// Resource template URI patterns.
const (
	schemaTemplateURI = "dbconn://{connection}/schema"
	infoTemplateURI   = "dbconn://{connection}/info"
)

// registerResources registers the MCP resource templates that mirror the
// get_schema and connection_info tools for resource-oriented clients.
func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: schemaTemplateURI,
		Name:        "Connection Schema",
		Description: "Structural description of the backend behind an open connection",
		MIMEType:    "application/json",
	}, s.handleSchemaResource)

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: infoTemplateURI,
		Name:        "Connection Info",
		Description: "Metadata for an open connection: type, redacted locator, timestamps",
		MIMEType:    "application/json",
	}, s.handleInfoResource)
}

// parseTemplateVars extracts named variables from a URI using a URI
// template.
func parseTemplateVars(templateStr, uri string) (map[string]string, error) {
	tmpl, err := uritemplate.New(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", templateStr, err)
	}

	match := tmpl.Match(uri)
	if match == nil {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, templateStr)
	}

	vars := make(map[string]string)
	for _, name := range tmpl.Varnames() {
		vars[name] = match.Get(name).String()
	}
	return vars, nil
}

func (s *Server) handleSchemaResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(schemaTemplateURI, uri)
	if err != nil || vars["connection"] == "" {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	schema, err := s.manager.GetSchema(ctx, vars["connection"])
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return marshalResourceResult(uri, schema)
}

func (s *Server) handleInfoResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(infoTemplateURI, uri)
	if err != nil || vars["connection"] == "" {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	info, err := s.manager.GetConnectionInfo(vars["connection"])
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return marshalResourceResult(uri, info)
}

// marshalResourceResult marshals a value to JSON and wraps it in a
// ReadResourceResult.
func marshalResourceResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
