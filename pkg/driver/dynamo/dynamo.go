// Package dynamo implements the DynamoDB driver on the AWS SDK v2 client.
// Queries are PartiQL statements passed through ExecuteStatement.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/quarkdata/mcp-dbgate/pkg/driver"
)

// Type is the canonical backend identifier for this driver.
const Type = "dynamodb"

// maxSchemaTables caps how many tables Schema will describe.
const maxSchemaTables = 100

// Driver is a DynamoDB connection. It owns one SDK client for its lifetime,
// created on Connect and nulled on Disconnect.
type Driver struct {
	cfg    driver.Config
	client *dynamodb.Client
}

// New validates the configuration and returns an unconnected driver.
// Region, access key ID, and secret access key are required; every missing
// field is reported.
func New(cfg driver.Config) (driver.Driver, error) {
	var missing []string
	if cfg.Region == "" {
		missing = append(missing, "region")
	}
	if cfg.AccessKeyID == "" {
		missing = append(missing, "access_key_id")
	}
	if cfg.SecretAccessKey == "" {
		missing = append(missing, "secret_access_key")
	}
	if len(missing) > 0 {
		return nil, &driver.ValidationError{Backend: Type, Missing: missing}
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

// Connect builds the SDK client with static credentials and confirms
// reachability by listing one table. A failed round-trip leaves the driver
// unconnected.
func (d *Driver) Connect(ctx context.Context) error {
	if d.client != nil {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(d.cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			d.cfg.AccessKeyID,
			d.cfg.SecretAccessKey,
			d.cfg.SessionToken,
		)),
	)
	if err != nil {
		return &driver.ConnectionError{Backend: Type, Err: err}
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if d.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(d.cfg.Endpoint)
		}
	})

	probeCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	if _, err := client.ListTables(probeCtx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)}); err != nil {
		return &driver.ConnectionError{Backend: Type, Err: err}
	}

	d.client = client
	return nil
}

// Disconnect releases the client. The SDK client holds no persistent socket
// of its own, so this only drops the reference. Safe to call twice.
func (d *Driver) Disconnect(context.Context) error {
	d.client = nil
	return nil
}

// Query executes a PartiQL statement. Positional params bind to ? markers.
func (d *Driver) Query(ctx context.Context, statement string, params []any) (*driver.Result, error) {
	if d.client == nil {
		return nil, &driver.QueryError{Backend: Type, Err: driver.ErrNotConnected}
	}

	attrParams, err := marshalParams(params)
	if err != nil {
		return nil, &driver.QueryError{Backend: Type, Err: err}
	}

	input := &dynamodb.ExecuteStatementInput{
		Statement: aws.String(statement),
		Limit:     aws.Int32(int32(d.cfg.MaxRows)),
	}
	if len(attrParams) > 0 {
		input.Parameters = attrParams
	}

	out, err := d.client.ExecuteStatement(ctx, input)
	if err != nil {
		return nil, &driver.QueryError{Backend: Type, Err: err}
	}

	result := driver.NewResult()
	if len(out.Items) > 0 {
		rows := make([]map[string]any, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &rows); err != nil {
			return nil, &driver.QueryError{Backend: Type, Err: fmt.Errorf("unmarshaling items: %w", err)}
		}
		for _, r := range rows {
			result.Rows = append(result.Rows, driver.Row(r))
		}
	}
	result.RowCount = len(result.Rows)
	if out.NextToken != nil {
		result.AddExtra("next_token", *out.NextToken)
		result.AddExtra("truncated", true)
	}
	return result, nil
}

// marshalParams converts positional parameters into DynamoDB attribute
// values.
func marshalParams(params []any) ([]types.AttributeValue, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make([]types.AttributeValue, 0, len(params))
	for i, p := range params {
		av, err := attributevalue.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshaling parameter %d: %w", i, err)
		}
		out = append(out, av)
	}
	return out, nil
}

// TestConnection lists one table and reports the outcome without raising.
func (d *Driver) TestConnection(ctx context.Context) driver.Health {
	if d.client == nil {
		return driver.Health{Healthy: false, Message: "not connected"}
	}
	probeCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	if _, err := d.client.ListTables(probeCtx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)}); err != nil {
		return driver.Health{Healthy: false, Message: err.Error()}
	}
	return driver.Health{Healthy: true, Message: "connection is healthy"}
}

// Schema lists the visible tables and describes each one: attribute
// definitions, key schema, secondary indexes, and size statistics.
func (d *Driver) Schema(ctx context.Context) (*driver.Schema, error) {
	if d.client == nil {
		return nil, &driver.SchemaError{Backend: Type, Err: driver.ErrNotConnected}
	}

	names, err := d.listTableNames(ctx)
	if err != nil {
		return nil, &driver.SchemaError{Backend: Type, Err: err}
	}

	dyn := &driver.DynamoSchema{Tables: []driver.DynamoTable{}}
	for _, name := range names {
		table, err := d.describeTable(ctx, name)
		if err != nil {
			return nil, &driver.SchemaError{Backend: Type, Err: err}
		}
		dyn.Tables = append(dyn.Tables, table)
	}
	return &driver.Schema{Backend: Type, Dynamo: dyn}, nil
}

func (d *Driver) listTableNames(ctx context.Context) ([]string, error) {
	var names []string
	var start *string
	for {
		out, err := d.client.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: start})
		if err != nil {
			return nil, fmt.Errorf("listing tables: %w", err)
		}
		names = append(names, out.TableNames...)
		if out.LastEvaluatedTableName == nil || len(names) >= maxSchemaTables {
			break
		}
		start = out.LastEvaluatedTableName
	}
	if len(names) > maxSchemaTables {
		names = names[:maxSchemaTables]
	}
	return names, nil
}

func (d *Driver) describeTable(ctx context.Context, name string) (driver.DynamoTable, error) {
	out, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return driver.DynamoTable{}, fmt.Errorf("describing table %s: %w", name, err)
	}

	t := out.Table
	table := driver.DynamoTable{
		Name:      aws.ToString(t.TableName),
		Status:    string(t.TableStatus),
		ItemCount: aws.ToInt64(t.ItemCount),
		SizeBytes: aws.ToInt64(t.TableSizeBytes),
		KeySchema: keyElements(t.KeySchema),
	}
	for _, attr := range t.AttributeDefinitions {
		table.Attributes = append(table.Attributes, driver.DynamoAttribute{
			Name: aws.ToString(attr.AttributeName),
			Type: string(attr.AttributeType),
		})
	}
	for _, gsi := range t.GlobalSecondaryIndexes {
		table.Indexes = append(table.Indexes, driver.DynamoIndex{
			Name:      aws.ToString(gsi.IndexName),
			Kind:      "gsi",
			KeySchema: keyElements(gsi.KeySchema),
		})
	}
	for _, lsi := range t.LocalSecondaryIndexes {
		table.Indexes = append(table.Indexes, driver.DynamoIndex{
			Name:      aws.ToString(lsi.IndexName),
			Kind:      "lsi",
			KeySchema: keyElements(lsi.KeySchema),
		})
	}
	return table, nil
}

func keyElements(schema []types.KeySchemaElement) []driver.DynamoKeyElement {
	out := make([]driver.DynamoKeyElement, 0, len(schema))
	for _, k := range schema {
		out = append(out, driver.DynamoKeyElement{
			Name: aws.ToString(k.AttributeName),
			Role: string(k.KeyType),
		})
	}
	return out
}

// ConnectionString returns a redacted locator for diagnostic display.
func (d *Driver) ConnectionString() string {
	if d.cfg.Endpoint != "" {
		return fmt.Sprintf("dynamodb://%s@%s", d.cfg.Region, d.cfg.Endpoint)
	}
	return fmt.Sprintf("dynamodb://%s", d.cfg.Region)
}
