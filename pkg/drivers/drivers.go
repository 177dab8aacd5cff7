// Package drivers wires the built-in backend drivers into a registry.
package drivers

import (
	"github.com/quarkdata/mcp-dbgate/pkg/driver"
	"github.com/quarkdata/mcp-dbgate/pkg/driver/dynamo"
	"github.com/quarkdata/mcp-dbgate/pkg/driver/mysql"
	"github.com/quarkdata/mcp-dbgate/pkg/driver/postgres"
	"github.com/quarkdata/mcp-dbgate/pkg/driver/redisdrv"
)

// RegisterBuiltins registers every built-in driver factory with its aliases.
func RegisterBuiltins(r *driver.Registry) {
	r.Register(postgres.Type, postgres.New, "postgres", "pg")
	r.Register(mysql.Type, mysql.New, "mysql2")
	r.Register(dynamo.Type, dynamo.New, "dynamo")
	r.Register(redisdrv.Type, redisdrv.New)
}

// DefaultRegistry creates a registry with all built-in drivers registered.
func DefaultRegistry() *driver.Registry {
	r := driver.NewRegistry()
	RegisterBuiltins(r)
	return r
}
