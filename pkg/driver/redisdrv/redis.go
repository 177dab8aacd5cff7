// Package redisdrv implements the Redis driver on go-redis. Queries are
// native commands: the verb plus inline arguments, with bound parameters
// appended to the argument list.
package redisdrv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/quarkdata/mcp-dbgate/pkg/driver"
)

// Type is the canonical backend identifier for this driver.
const Type = "redis"

const (
	defaultPort = 6379

	// maxSchemaKeys caps how many keys Schema will sample.
	maxSchemaKeys = 1000
)

// Driver is a Redis connection. It owns one go-redis client for its
// lifetime, created on Connect and nulled on Disconnect.
type Driver struct {
	cfg     driver.Config
	dbIndex int
	client  *redis.Client
}

// New validates the configuration and returns an unconnected driver. Host is
// the only required field; the database field, when set, is the numeric
// database index.
func New(cfg driver.Config) (driver.Driver, error) {
	if cfg.Host == "" {
		return nil, &driver.ValidationError{Backend: Type, Missing: []string{"host"}}
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

	d := &Driver{cfg: cfg}
	if cfg.Database != "" {
		idx, err := strconv.Atoi(cfg.Database)
		if err != nil || idx < 0 {
			return nil, &driver.ValidationError{Backend: Type, Missing: []string{"database (must be a non-negative index)"}}
		}
		d.dbIndex = idx
	}
	return d, nil
}

// Type returns the canonical backend identifier.
func (d *Driver) Type() string { return Type }

// Connect creates the client and confirms reachability with PING. A failed
// ping closes the client and leaves the driver unconnected.
func (d *Driver) Connect(ctx context.Context) error {
	if d.client != nil {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port),
		Username: d.cfg.User,
		Password: d.cfg.Password,
		DB:       d.dbIndex,
	})

	pingCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return &driver.ConnectionError{Backend: Type, Err: err}
	}

	d.client = client
	return nil
}

// Disconnect closes the client. Safe to call when already disconnected.
func (d *Driver) Disconnect(context.Context) error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	if err != nil {
		return &driver.ConnectionError{Backend: Type, Err: err}
	}
	return nil
}

// Query executes one command. The statement carries the verb and any inline
// arguments; params are appended after them. The command echo is recorded in
// extras.
func (d *Driver) Query(ctx context.Context, statement string, params []any) (*driver.Result, error) {
	if d.client == nil {
		return nil, &driver.QueryError{Backend: Type, Err: driver.ErrNotConnected}
	}

	args := splitCommand(statement)
	if len(args) == 0 {
		return nil, &driver.QueryError{Backend: Type, Err: fmt.Errorf("empty command")}
	}
	args = append(args, params...)

	reply, err := d.client.Do(ctx, args...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, &driver.QueryError{Backend: Type, Err: err}
	}

	result := normalizeReply(reply, d.cfg.MaxRows)
	result.AddExtra("command", strings.ToUpper(fmt.Sprint(args[0])))
	return result, nil
}

// splitCommand breaks a statement into whitespace-separated command
// arguments. Single and double quoted segments stay together.
func splitCommand(statement string) []any {
	var args []any
	var cur strings.Builder
	var quote byte
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(statement); i++ {
		c := statement[i]
		switch {
		case inQuote:
			if c == quote {
				inQuote = false
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			inQuote = true
			quote = c
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return args
}

// normalizeReply converts a Redis reply into the rows/rowCount contract.
// Scalars become a single row keyed "value"; arrays become one row per
// element; maps become one row per field.
func normalizeReply(reply any, maxRows int) *driver.Result {
	result := driver.NewResult()

	switch v := reply.(type) {
	case nil:
		// no value (e.g., GET on a missing key)
	case []any:
		truncated := false
		for _, elem := range v {
			if maxRows > 0 && len(result.Rows) >= maxRows {
				truncated = true
				break
			}
			result.Rows = append(result.Rows, driver.Row{"value": elem})
		}
		if truncated {
			result.AddExtra("truncated", true)
		}
	case map[any]any:
		row := make(driver.Row, len(v))
		for k, val := range v {
			row[fmt.Sprint(k)] = val
		}
		result.Rows = append(result.Rows, row)
	case map[string]any:
		row := make(driver.Row, len(v))
		for k, val := range v {
			row[k] = val
		}
		result.Rows = append(result.Rows, row)
	default:
		result.Rows = append(result.Rows, driver.Row{"value": v})
	}

	result.RowCount = len(result.Rows)
	return result
}

// TestConnection pings the backend and reports the outcome without raising.
func (d *Driver) TestConnection(ctx context.Context) driver.Health {
	if d.client == nil {
		return driver.Health{Healthy: false, Message: "not connected"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	if err := d.client.Ping(pingCtx).Err(); err != nil {
		return driver.Health{Healthy: false, Message: err.Error()}
	}
	return driver.Health{Healthy: true, Message: "connection is healthy"}
}

// Schema summarizes the keyspace: total key count from DBSIZE, a sampled
// type distribution, and the most common key prefixes. SCAN bounds the
// sample so large keyspaces stay cheap.
func (d *Driver) Schema(ctx context.Context) (*driver.Schema, error) {
	if d.client == nil {
		return nil, &driver.SchemaError{Backend: Type, Err: driver.ErrNotConnected}
	}

	total, err := d.client.DBSize(ctx).Result()
	if err != nil {
		return nil, &driver.SchemaError{Backend: Type, Err: err}
	}

	keys, err := d.sampleKeys(ctx)
	if err != nil {
		return nil, &driver.SchemaError{Backend: Type, Err: err}
	}

	typeCounts := make(map[string]int)
	prefixCounts := make(map[string]int)
	for _, key := range keys {
		keyType, err := d.client.Type(ctx, key).Result()
		if err != nil {
			continue
		}
		typeCounts[keyType]++
		prefixCounts[keyPrefix(key)]++
	}

	kv := &driver.KeyValueSchema{
		KeyCount:   total,
		TypeCounts: typeCounts,
		Patterns:   topPatterns(prefixCounts),
		Sampled:    int64(len(keys)) < total,
	}
	return &driver.Schema{Backend: Type, KeyValue: kv}, nil
}

// sampleKeys scans up to maxSchemaKeys keys.
func (d *Driver) sampleKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := d.client.Scan(ctx, cursor, "*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 || len(keys) >= maxSchemaKeys {
			break
		}
	}
	if len(keys) > maxSchemaKeys {
		keys = keys[:maxSchemaKeys]
	}
	return keys, nil
}

// keyPrefix derives the grouping pattern for a key: the segment before the
// first ":" delimiter, or the whole key when it has none.
func keyPrefix(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i] + ":*"
	}
	return key
}

// topPatterns orders prefix groups by descending count.
func topPatterns(counts map[string]int) []driver.KeyPattern {
	patterns := make([]driver.KeyPattern, 0, len(counts))
	for p, n := range counts {
		patterns = append(patterns, driver.KeyPattern{Pattern: p, Count: n})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Pattern < patterns[j].Pattern
	})
	return patterns
}

// ConnectionString returns a redacted locator for diagnostic display.
func (d *Driver) ConnectionString() string {
	return fmt.Sprintf("redis://%s:%d/%d", d.cfg.Host, d.cfg.Port, d.dbIndex)
}
