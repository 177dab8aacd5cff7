package driver

import (
	"fmt"
	"strings"
)

// ValidationError reports missing or malformed required connection
// parameters. It is produced before any network activity and names every
// missing field, not just the first.
type ValidationError struct {
	Backend string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing required parameters: %s", e.Backend, strings.Join(e.Missing, ", "))
}

// NotSupportedError reports an unknown backend type identifier at
// driver-resolution time. Known lists every identifier the registry
// recognizes, aliases included.
type NotSupportedError struct {
	Type  string
	Known []string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("unsupported database type %q (supported: %s)", e.Type, strings.Join(e.Known, ", "))
}

// ConnectionError reports that the backend rejected a connection attempt.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports that the backend rejected an operation after a
// connection was established.
type QueryError struct {
	Backend string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Backend, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// SchemaError reports a failed schema introspection.
type SchemaError struct {
	Backend string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s schema introspection failed: %v", e.Backend, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ErrNotConnected is wrapped into QueryError/SchemaError when an operation
// is issued against a driver whose handle has been released.
var ErrNotConnected = fmt.Errorf("not connected")
