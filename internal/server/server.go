// Package server assembles the MCP server: driver registry, connection
// manager, tool surface, resources, and transports.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarkdata/mcp-dbgate/pkg/config"
	"github.com/quarkdata/mcp-dbgate/pkg/driver"
	"github.com/quarkdata/mcp-dbgate/pkg/drivers"
	"github.com/quarkdata/mcp-dbgate/pkg/health"
	"github.com/quarkdata/mcp-dbgate/pkg/manager"
	"github.com/quarkdata/mcp-dbgate/pkg/tools"
)

// Version is set at build time.
var Version = "dev"

const shutdownTimeout = 15 * time.Second

// Server is the assembled MCP database server.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	mcpServer *mcp.Server
	manager   *manager.Manager
	toolkit   *tools.Toolkit
	checker   *health.Checker
}

// New builds a server from configuration. Nothing connects to any backend
// here; connections are established only by explicit tool calls.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	return newServer(cfg, logger, drivers.DefaultRegistry())
}

func newServer(cfg *config.Config, logger *slog.Logger, registry *driver.Registry) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mgr := manager.New(registry, logger)

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, nil)

	toolkit := tools.New(mgr, cfg, logger)
	toolkit.RegisterTools(mcpServer)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mcpServer: mcpServer,
		manager:   mgr,
		toolkit:   toolkit,
		checker:   health.NewChecker(mgr.Count),
	}
	s.registerResources()
	return s
}

// Manager exposes the connection manager, used by tests and the resource
// handlers.
func (s *Server) Manager() *manager.Manager { return s.manager }

// MCPServer exposes the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server { return s.mcpServer }

// Run serves MCP on the configured transport until ctx is canceled, then
// drains every open connection.
func (s *Server) Run(ctx context.Context) error {
	defer s.drain()

	switch s.cfg.Server.Transport {
	case "stdio":
		return s.runStdio(ctx)
	case "http":
		return s.runHTTP(ctx)
	default:
		return fmt.Errorf("unknown transport %q (expected stdio or http)", s.cfg.Server.Transport)
	}
}

func (s *Server) runStdio(ctx context.Context) error {
	s.checker.SetReady()
	s.logger.Info("serving MCP over stdio", "server", s.cfg.Server.Name)
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

func (s *Server) runHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcpServer }, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("/healthz", s.checker.LivenessHandler())
	mux.HandleFunc("/readyz", s.checker.ReadinessHandler())

	httpServer := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving MCP over HTTP", "address", s.cfg.Server.Address)
		errCh <- httpServer.ListenAndServe()
	}()
	s.checker.SetReady()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http transport: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.checker.SetDraining()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

// drain closes every open connection during shutdown.
func (s *Server) drain() {
	s.checker.SetDraining()
	if err := s.toolkit.Close(); err != nil {
		s.logger.Warn("drain reported error", "error", err)
	}
}
