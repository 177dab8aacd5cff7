package server

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkdata/mcp-dbgate/pkg/config"
	"github.com/quarkdata/mcp-dbgate/pkg/driver"
)

func TestNew_AssemblesWithoutConnecting(t *testing.T) {
	s := New(config.Default(), slog.New(slog.DiscardHandler))
	require.NotNil(t, s)
	assert.NotNil(t, s.MCPServer())
	assert.Zero(t, s.Manager().Count(), "construction must not open connections")
}

func TestRun_RejectsUnknownTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Transport = "carrier-pigeon"
	s := New(cfg, slog.New(slog.DiscardHandler))

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestRun_DrainsConnectionsOnExit(t *testing.T) {
	reg := driver.NewRegistry()
	reg.Register("postgresql", func(cfg driver.Config) (driver.Driver, error) {
		return &noopDriver{backend: cfg.Type}, nil
	})
	cfg := config.Default()
	cfg.Server.Transport = "bogus"
	s := newServer(cfg, slog.New(slog.DiscardHandler), reg)

	_, err := s.Manager().Connect(context.Background(), "held", driver.Config{Type: "postgresql"})
	require.NoError(t, err)
	require.Equal(t, 1, s.Manager().Count())

	_ = s.Run(context.Background())
	assert.Zero(t, s.Manager().Count(), "Run must drain connections on exit")
}

// noopDriver satisfies driver.Driver without touching any backend.
type noopDriver struct {
	backend string
}

func (n *noopDriver) Type() string { return n.backend }

func (n *noopDriver) Connect(context.Context) error { return nil }

func (n *noopDriver) Disconnect(context.Context) error { return nil }

func (n *noopDriver) Query(context.Context, string, []any) (*driver.Result, error) {
	return driver.NewResult(), nil
}

func (n *noopDriver) TestConnection(context.Context) driver.Health {
	return driver.Health{Healthy: true, Message: "ok"}
}

func (n *noopDriver) Schema(context.Context) (*driver.Schema, error) {
	return &driver.Schema{Backend: n.backend}, nil
}

func (n *noopDriver) ConnectionString() string { return n.backend + "://stub" }
