// Package mysql implements the MySQL driver on database/sql with the
// go-sql-driver client. Connection pooling is delegated to database/sql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	gomysql "github.com/go-sql-driver/mysql"

	"github.com/quarkdata/mcp-dbgate/pkg/driver"
	"github.com/quarkdata/mcp-dbgate/pkg/driver/sqlutil"
)

// Type is the canonical backend identifier for this driver.
const Type = "mysql"

const defaultPort = 3306

// Driver is a MySQL connection. It owns one *sql.DB for its lifetime,
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

	db, err := sql.Open("mysql", d.dsn())
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

// Query executes a statement with positional ? parameters. Row-returning
// statements produce normalized rows; writes report rows_affected and
// last_insert_id.
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
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		result.AddExtra("last_insert_id", id)
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

// Schema lists tables and columns of the connected database from
// information_schema.
func (d *Driver) Schema(ctx context.Context) (*driver.Schema, error) {
	if d.db == nil {
		return nil, &driver.SchemaError{Backend: Type, Err: driver.ErrNotConnected}
	}

	query, args, err := sq.
		Select("table_name", "column_name", "data_type", "is_nullable", "column_default", "column_key").
		From("information_schema.columns").
		Where(sq.Eq{"table_schema": d.cfg.Database}).
		OrderBy("table_name", "ordinal_position").
		ToSql()
	if err != nil {
		return nil, &driver.SchemaError{Backend: Type, Err: err}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &driver.SchemaError{Backend: Type, Err: err}
	}
	defer rows.Close()

	relational := &driver.RelationalSchema{Tables: []driver.Table{}}
	var current *driver.Table

	for rows.Next() {
		var tableName, colName, dataType, nullable string
		var colDefault sql.NullString
		var colKey sql.NullString
		if err := rows.Scan(&tableName, &colName, &dataType, &nullable, &colDefault, &colKey); err != nil {
			return nil, &driver.SchemaError{Backend: Type, Err: fmt.Errorf("scanning column row: %w", err)}
		}

		if current == nil || current.Name != tableName {
			relational.Tables = append(relational.Tables, driver.Table{Schema: d.cfg.Database, Name: tableName})
			current = &relational.Tables[len(relational.Tables)-1]
		}
		current.Columns = append(current.Columns, driver.Column{
			Name:     colName,
			DataType: dataType,
			Nullable: nullable == "YES",
			Default:  colDefault.String,
			Primary:  colKey.String == "PRI",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &driver.SchemaError{Backend: Type, Err: err}
	}

	return &driver.Schema{Backend: Type, Relational: relational}, nil
}

// ConnectionString returns a redacted locator for diagnostic display.
func (d *Driver) ConnectionString() string {
	return fmt.Sprintf("mysql://%s:****@%s:%d/%s", d.cfg.User, d.cfg.Host, d.cfg.Port, d.cfg.Database)
}

// dsn builds the go-sql-driver DSN via its own config type so credentials
// with reserved characters survive.
func (d *Driver) dsn() string {
	mc := gomysql.NewConfig()
	mc.User = d.cfg.User
	mc.Passwd = d.cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	mc.DBName = d.cfg.Database
	mc.ParseTime = true
	mc.Timeout = d.cfg.ConnectTimeout
	if d.cfg.SSL {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN()
}
