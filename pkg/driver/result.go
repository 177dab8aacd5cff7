package driver

// Row is one record of a normalized result, keyed by column or field name.
type Row = map[string]any

// Result is the normalized shape every driver produces for a query-like
// operation. Rows is never nil; an operation with no result rows returns an
// empty slice. Extras carries backend-specific additions such as
// last_insert_id for MySQL, rows_affected for relational writes, the command
// echo for Redis, or consumed capacity for DynamoDB.
type Result struct {
	Rows     []Row          `json:"rows"`
	RowCount int            `json:"row_count"`
	Extras   map[string]any `json:"extras,omitempty"`
}

// NewResult returns a Result with a non-nil, empty row slice.
func NewResult() *Result {
	return &Result{Rows: []Row{}}
}

// AddExtra records a backend-specific extra, allocating the map on first use.
func (r *Result) AddExtra(key string, value any) {
	if r.Extras == nil {
		r.Extras = make(map[string]any)
	}
	r.Extras[key] = value
}

// Schema is the structural description returned by introspection. Exactly
// one of the family sections is populated, selected by Backend. The shapes
// diverge by backend family since they describe fundamentally different data
// models; each is a finite structure free of live handles.
type Schema struct {
	Backend    string            `json:"backend"`
	Relational *RelationalSchema `json:"relational,omitempty"`
	Dynamo     *DynamoSchema     `json:"dynamo,omitempty"`
	KeyValue   *KeyValueSchema   `json:"keyvalue,omitempty"`
}

// RelationalSchema describes tables and columns of a SQL backend.
type RelationalSchema struct {
	Tables []Table `json:"tables"`
}

// Table is one relational table with its columns.
type Table struct {
	Schema  string   `json:"schema,omitempty"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column is one relational column description. Primary is reported only by
// backends whose introspection query exposes key membership.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
}

// DynamoSchema describes the tables visible to a DynamoDB connection.
type DynamoSchema struct {
	Tables []DynamoTable `json:"tables"`
}

// DynamoTable is one DynamoDB table description.
type DynamoTable struct {
	Name       string             `json:"name"`
	Status     string             `json:"status,omitempty"`
	Attributes []DynamoAttribute  `json:"attributes,omitempty"`
	KeySchema  []DynamoKeyElement `json:"key_schema,omitempty"`
	Indexes    []DynamoIndex      `json:"indexes,omitempty"`
	ItemCount  int64              `json:"item_count"`
	SizeBytes  int64              `json:"size_bytes"`
}

// DynamoAttribute is one declared attribute definition.
type DynamoAttribute struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DynamoKeyElement is one element of a table or index key schema.
type DynamoKeyElement struct {
	Name string `json:"name"`
	Role string `json:"role"` // HASH or RANGE
}

// DynamoIndex is one global or local secondary index.
type DynamoIndex struct {
	Name      string             `json:"name"`
	Kind      string             `json:"kind"` // gsi or lsi
	KeySchema []DynamoKeyElement `json:"key_schema,omitempty"`
}

// KeyValueSchema summarizes a Redis keyspace: total key count, the
// distribution of value types, and the most common key prefixes. Sampled is
// true when the summary covers only a scan-bounded subset of the keyspace.
type KeyValueSchema struct {
	KeyCount   int64          `json:"key_count"`
	TypeCounts map[string]int `json:"type_counts"`
	Patterns   []KeyPattern   `json:"patterns,omitempty"`
	Sampled    bool           `json:"sampled,omitempty"`
}

// KeyPattern is one key prefix and the number of sampled keys sharing it.
type KeyPattern struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}
