// Package driver defines the capability interface implemented by every
// backend driver, the configuration and result types shared across backend
// families, and the registry that maps backend type identifiers to driver
// factories.
package driver

import (
	"context"
	"time"
)

// Driver is the interface that all backend drivers must implement.
// A driver owns exactly one underlying client handle (pool, SDK client, or
// socket) for its lifetime: the handle is created by Connect and released by
// Disconnect. Drivers never translate statement syntax between backends; the
// statement and parameter-binding convention is backend-specific.
type Driver interface {
	// Type returns the canonical backend type identifier (e.g., "postgresql").
	Type() string

	// Connect establishes the underlying client handle and performs one
	// lightweight round-trip to confirm reachability. A failed round-trip
	// leaves the driver in the unconnected state with no retained handle.
	Connect(ctx context.Context) error

	// Disconnect releases the underlying client handle. Idempotent: calling
	// it on an already-disconnected driver is not an error.
	Disconnect(ctx context.Context) error

	// Query executes a statement and normalizes the backend response.
	Query(ctx context.Context, statement string, params []any) (*Result, error)

	// TestConnection reports backend reachability. It never returns an
	// error; failures are captured in the Health result.
	TestConnection(ctx context.Context) Health

	// Schema introspects the backend's structure. The shape of the result
	// varies by backend family.
	Schema(ctx context.Context) (*Schema, error)

	// ConnectionString returns a redacted, human-readable locator for
	// diagnostic display. Never sufficient to re-establish a connection.
	ConnectionString() string
}

// Factory creates an unconnected driver from a configuration. The factory
// validates backend-required parameters and returns a *ValidationError
// listing every missing field before any network activity.
type Factory func(cfg Config) (Driver, error)

// Config holds the connection parameters for one backend. Fields are a
// superset across backend families; each driver validates the subset it
// requires. Password and SecretAccessKey are held only in memory and are
// excluded from every exported or listed view.
type Config struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
	User     string `yaml:"user,omitempty" json:"user,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
	SSL      bool   `yaml:"ssl,omitempty" json:"ssl,omitempty"`

	// Managed NoSQL (DynamoDB) parameters.
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"-"`
	SessionToken    string `yaml:"session_token,omitempty" json:"-"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// ReadOnly rejects mutating statements on relational backends.
	ReadOnly bool `yaml:"read_only,omitempty" json:"read_only,omitempty"`

	// MaxRows caps result sets; zero means the driver default.
	MaxRows int `yaml:"max_rows,omitempty" json:"max_rows,omitempty"`

	// ConnectTimeout bounds the initial reachability round-trip; zero means
	// the driver default.
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`
}

// Redacted returns a copy of the config with every secret field cleared.
// Used by export and listing paths; the result is never sufficient to
// re-establish a connection.
func (c Config) Redacted() Config {
	c.Password = ""
	c.SecretAccessKey = ""
	c.SessionToken = ""
	return c
}

// Health is the result of a connection test. TestConnection converts
// failures into an unhealthy Health rather than propagating them.
type Health struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

// DefaultMaxRows caps query result sets when the config does not set one.
const DefaultMaxRows = 1000

// DefaultConnectTimeout bounds the initial reachability round-trip when the
// config does not set one.
const DefaultConnectTimeout = 10 * time.Second
