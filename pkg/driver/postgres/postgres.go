// Package postgres implements the PostgreSQL driver on database/sql with
// the lib/pq driver. Connection pooling is delegated to database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver

	"github.com/quarkdata/mcp-dbgate/pkg/driver"
	"github.com/quarkdata/mcp-dbgate/pkg/driver/sqlutil"
)

// Type is the canonical backend identifier for this driver.
const Type = "postgresql"

const defaultPort = 5432

// Driver is a PostgreSQL connection. It owns one *sql.DB for its lifetime,
// created on Connect and nulled on Disconnect.
type Driver struct {
	cfg driver.Config
	db  *sql.DB
}

// New validates the configuration and returns an unconnected driver. Host,
// database, user, and password are required; every missing field is reported.
func New(cfg driver.Config) (driver.Driver, error) {
	var missing []string
	if cfg.Host == "" {
		missing = append(missing, "host")
	}
	if cfg.Database == "" {
		missing = append(missing, "database")
	}
	if cfg.User == "" {
		missing = append(missing, "user")
	}
	if cfg.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, &driver.ValidationError{Backend: Type, Missing: missing}
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = driver.DefaultMaxRows
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = driver.DefaultConnectTimeout
	}
	return &Driver{cfg: cfg}, nil
}

// Type returns the canonical backend identifier.
func (d *Driver) Type() string { return Type }

// Connect opens the pool and confirms reachability with a ping. A failed
// ping closes the pool and leaves the driver unconnected.
func (d *Driver) Connect(ctx context.Context) error {
	if d.db != nil {
		return nil
	}

	db, err := sql.Open("postgres", d.dsn())
	if err != nil {
		return &driver.ConnectionError{Backend: Type, Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return &driver.ConnectionError{Backend: Type, Err: err}
	}

	d.db = db
	return nil
}

// Disconnect closes the pool. Safe to call when already disconnected.
func (d *Driver) Disconnect(context.Context) error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if err != nil {
		return &driver.ConnectionError{Backend: Type, Err: err}
	}
	return nil
}

// Query executes a statement with positional $n parameters. Row-returning
// statements produce normalized rows; everything else reports rows_affected.
func (d *Driver) Query(ctx context.Context, statement string, params []any) (*driver.Result, error) {
	if d.db == nil {
		return nil, &driver.QueryError{Backend: Type, Err: driver.ErrNotConnected}
	}
	if d.cfg.ReadOnly {
		if err := driver.CheckReadOnly(statement); err != nil {
			return nil, &driver.QueryError{Backend: Type, Err: err}
		}
	}

	if sqlutil.IsRowReturning(statement) {
		rows, err := d.db.QueryContext(ctx, statement, params...)
		if err != nil {
			return nil, &driver.QueryError{Backend: Type, Err: err}
		}
		defer rows.Close()

		result, err := sqlutil.CollectRows(rows, d.cfg.MaxRows)
		if err != nil {
			return nil, &driver.QueryError{Backend: Type, Err: err}
		}
		return result, nil
	}

	res, err := d.db.ExecContext(ctx, statement, params...)
	if err != nil {
		return nil, &driver.QueryError{Backend: Type, Err: err}
	}

	result := driver.NewResult()
	if affected, err := res.RowsAffected(); err == nil {
		result.AddExtra("rows_affected", affected)
	}
	return result, nil
}

// TestConnection pings the backend and reports the outcome without raising.
func (d *Driver) TestConnection(ctx context.Context) driver.Health {
	if d.db == nil {
		return driver.Health{Healthy: false, Message: "not connected"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	if err := d.db.PingContext(pingCtx); err != nil {
		return driver.Health{Healthy: false, Message: err.Error()}
	}
	return driver.Health{Healthy: true, Message: "connection is healthy"}
}

// Schema lists user tables and columns from information_schema, excluding
// the system schemas.
func (d *Driver) Schema(ctx context.Context) (*driver.Schema, error) {
	if d.db == nil {
		return nil, &driver.SchemaError{Backend: Type, Err: driver.ErrNotConnected}
	}

	query, args, err := sq.
		Select("table_schema", "table_name", "column_name", "data_type", "is_nullable", "column_default").
		From("information_schema.columns").
		Where(sq.NotEq{"table_schema": []string{"pg_catalog", "information_schema"}}).
		OrderBy("table_schema", "table_name", "ordinal_position").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, &driver.SchemaError{Backend: Type, Err: err}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &driver.SchemaError{Backend: Type, Err: err}
	}
	defer rows.Close()

	relational, err := collectRelationalSchema(rows)
	if err != nil {
		return nil, &driver.SchemaError{Backend: Type, Err: err}
	}
	return &driver.Schema{Backend: Type, Relational: relational}, nil
}

// collectRelationalSchema folds ordered (schema, table, column) rows into
// table groupings.
func collectRelationalSchema(rows *sql.Rows) (*driver.RelationalSchema, error) {
	relational := &driver.RelationalSchema{Tables: []driver.Table{}}
	var current *driver.Table

	for rows.Next() {
		var schemaName, tableName, colName, dataType, nullable string
		var colDefault sql.NullString
		if err := rows.Scan(&schemaName, &tableName, &colName, &dataType, &nullable, &colDefault); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}

		if current == nil || current.Schema != schemaName || current.Name != tableName {
			relational.Tables = append(relational.Tables, driver.Table{Schema: schemaName, Name: tableName})
			current = &relational.Tables[len(relational.Tables)-1]
		}
		current.Columns = append(current.Columns, driver.Column{
			Name:     colName,
			DataType: dataType,
			Nullable: nullable == "YES",
			Default:  colDefault.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema rows: %w", err)
	}
	return relational, nil
}

// ConnectionString returns a redacted locator for diagnostic display.
func (d *Driver) ConnectionString() string {
	return fmt.Sprintf("postgresql://%s:****@%s:%d/%s", d.cfg.User, d.cfg.Host, d.cfg.Port, d.cfg.Database)
}

// dsn builds the lib/pq connection URL. Credentials are URL-escaped.
func (d *Driver) dsn() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.cfg.User, d.cfg.Password),
		Host:   fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port),
		Path:   "/" + d.cfg.Database,
	}
	q := u.Query()
	if d.cfg.SSL {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	if d.cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(d.cfg.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
