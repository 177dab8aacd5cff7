// Package manager owns the set of named, live database connections. It
// routes operations to the driver bound to each name, tracks bookkeeping
// metadata, and manages connection lifecycle. The name-to-descriptor table
// is the only mutable state the core owns; drivers never see it.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quarkdata/mcp-dbgate/pkg/driver"
)

// DuplicateNameError reports a connect attempt with a name that is already
// registered. The existing connection is left untouched.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("connection %q already exists; disconnect it first or choose another name", e.Name)
}

// NotFoundError reports an operation referencing a name that is not
// registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no connection named %q", e.Name)
}

// descriptor is the manager's record of one live named connection.
type descriptor struct {
	name       string
	id         string
	backend    string
	cfg        driver.Config
	drv        driver.Driver
	createdAt  time.Time
	lastUsedAt time.Time
}

// Manager maintains the registry of live connections. Safe for concurrent
// use; the descriptor map is guarded by one RWMutex and operations against
// the same name are not serialized beyond that (ordering on one connection
// is the caller's concern).
type Manager struct {
	mu       sync.RWMutex
	registry *driver.Registry
	conns    map[string]*descriptor
	counter  int
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a manager backed by the given driver registry. No connection
// is established at construction; descriptors exist only after explicit
// Connect calls.
func New(registry *driver.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		conns:    make(map[string]*descriptor),
		logger:   logger,
		now:      time.Now,
	}
}

// Info is the non-secret view of one descriptor.
type Info struct {
	Name             string    `json:"name"`
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	Host             string    `json:"host,omitempty"`
	Database         string    `json:"database,omitempty"`
	Region           string    `json:"region,omitempty"`
	ConnectionString string    `json:"connection_string"`
	CreatedAt        time.Time `json:"created_at"`
	LastUsedAt       time.Time `json:"last_used_at"`
}

// info snapshots the descriptor. Callers must hold the manager lock;
// lastUsedAt is mutated by concurrent query operations.
func (d *descriptor) info() Info {
	return Info{
		Name:             d.name,
		ID:               d.id,
		Type:             d.backend,
		Host:             d.cfg.Host,
		Database:         d.cfg.Database,
		Region:           d.cfg.Region,
		ConnectionString: d.drv.ConnectionString(),
		CreatedAt:        d.createdAt,
		LastUsedAt:       d.lastUsedAt,
	}
}

// Connect resolves a driver for cfg.Type, opens it, and registers the
// descriptor under name (or an auto-generated "{type}_{n}" name when name is
// empty). The operation is atomic from the caller's view: either the
// descriptor is registered connected, or nothing is registered. Fails with
// *DuplicateNameError when the name is taken, *driver.NotSupportedError for
// unknown types, and *driver.ValidationError for missing parameters, all
// before any network activity.
func (m *Manager) Connect(ctx context.Context, name string, cfg driver.Config) (Info, error) {
	canonical, factory, err := m.registry.Resolve(cfg.Type)
	if err != nil {
		return Info{}, err
	}
	cfg.Type = canonical

	m.mu.Lock()
	if name == "" {
		m.counter++
		name = fmt.Sprintf("%s_%d", canonical, m.counter)
	} else if _, exists := m.conns[name]; exists {
		m.mu.Unlock()
		return Info{}, &DuplicateNameError{Name: name}
	}
	m.mu.Unlock()

	drv, err := factory(cfg)
	if err != nil {
		return Info{}, err
	}

	if err := drv.Connect(ctx); err != nil {
		return Info{}, fmt.Errorf("connecting %q (%s): %w", name, canonical, err)
	}

	d := &descriptor{
		name:       name,
		id:         uuid.NewString(),
		backend:    canonical,
		cfg:        cfg,
		drv:        drv,
		createdAt:  m.now(),
		lastUsedAt: m.now(),
	}

	m.mu.Lock()
	if _, exists := m.conns[name]; exists {
		m.mu.Unlock()
		_ = drv.Disconnect(ctx)
		return Info{}, &DuplicateNameError{Name: name}
	}
	m.conns[name] = d
	info := d.info()
	m.mu.Unlock()

	m.logger.Info("connection established", "name", name, "type", canonical)
	return info, nil
}

// Disconnect closes the named connection. The name is freed unconditionally,
// even when the driver's disconnect reports an error: a lingering
// unreachable handle must not block reuse of the name.
func (m *Manager) Disconnect(ctx context.Context, name string) error {
	m.mu.Lock()
	d, ok := m.conns[name]
	if !ok {
		m.mu.Unlock()
		return &NotFoundError{Name: name}
	}
	delete(m.conns, name)
	m.mu.Unlock()

	if err := d.drv.Disconnect(ctx); err != nil {
		m.logger.Warn("disconnect reported error", "name", name, "error", err)
		return fmt.Errorf("disconnecting %q: %w", name, err)
	}
	m.logger.Info("connection closed", "name", name)
	return nil
}

// DisconnectOutcome is the per-name result of DisconnectAll.
type DisconnectOutcome struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "disconnected" or "error"
	Error  string `json:"error,omitempty"`
}

// DisconnectReport aggregates a DisconnectAll run.
type DisconnectReport struct {
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Outcomes  []DisconnectOutcome `json:"outcomes"`
}

// DisconnectAll closes every registered connection. It never short-circuits:
// one outcome entry is produced per name regardless of failures.
func (m *Manager) DisconnectAll(ctx context.Context) DisconnectReport {
	m.mu.RLock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	report := DisconnectReport{Total: len(names), Outcomes: make([]DisconnectOutcome, 0, len(names))}
	for _, name := range names {
		if err := m.Disconnect(ctx, name); err != nil {
			report.Failed++
			report.Outcomes = append(report.Outcomes, DisconnectOutcome{Name: name, Status: "error", Error: err.Error()})
			continue
		}
		report.Succeeded++
		report.Outcomes = append(report.Outcomes, DisconnectOutcome{Name: name, Status: "disconnected"})
	}
	return report
}

// get returns the descriptor for name, updating lastUsedAt when touch is set.
func (m *Manager) get(name string, touch bool) (*descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.conns[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	if touch {
		d.lastUsedAt = m.now()
	}
	return d, nil
}

// ExecuteQuery runs a statement on the named connection. Driver errors are
// wrapped with the connection name for context.
func (m *Manager) ExecuteQuery(ctx context.Context, name, statement string, params []any) (*driver.Result, error) {
	d, err := m.get(name, true)
	if err != nil {
		return nil, err
	}
	result, err := d.drv.Query(ctx, statement, params)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", name, err)
	}
	return result, nil
}

// TestConnection reports the health of the named connection. It fails only
// when the name is unknown; driver-level failures become an unhealthy
// result.
func (m *Manager) TestConnection(ctx context.Context, name string) (driver.Health, error) {
	d, err := m.get(name, false)
	if err != nil {
		return driver.Health{}, err
	}
	return d.drv.TestConnection(ctx), nil
}

// GetSchema introspects the named connection's structure. Driver errors are
// wrapped with the connection name for context.
func (m *Manager) GetSchema(ctx context.Context, name string) (*driver.Schema, error) {
	d, err := m.get(name, true)
	if err != nil {
		return nil, err
	}
	schema, err := d.drv.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", name, err)
	}
	return schema, nil
}

// GetConnectionInfo returns descriptor metadata. The raw secret never
// appears in the result. The snapshot is taken under the lock since queries
// touch lastUsedAt concurrently.
func (m *Manager) GetConnectionInfo(name string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.conns[name]
	if !ok {
		return Info{}, &NotFoundError{Name: name}
	}
	return d.info(), nil
}

// ListConnections returns a snapshot of every registered descriptor, sorted
// by name. An empty manager yields an empty slice.
func (m *Manager) ListConnections() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.conns))
	for _, d := range m.conns {
		infos = append(infos, d.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// HasConnection reports whether name is registered.
func (m *Manager) HasConnection(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[name]
	return ok
}

// Count returns the number of registered connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// ExportConnections returns every descriptor's non-secret configuration
// keyed by name. Password and secret key fields are stripped; the output is
// intended for backup and cannot reopen a connection without re-supplied
// credentials.
func (m *Manager) ExportConnections() map[string]driver.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]driver.Config, len(m.conns))
	for name, d := range m.conns {
		out[name] = d.cfg.Redacted()
	}
	return out
}
