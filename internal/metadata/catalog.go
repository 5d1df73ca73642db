package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	hll "github.com/axiomhq/hyperloglog"
	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/partition"
	"github.com/arkilian/ringsplit/pkg/types"
)

// DefaultPartitionKeyLimit bounds how many keys a partial-prefix lookup returns
// before the catalog gives up and answers with the unpartitioned sentinel.
const DefaultPartitionKeyLimit = 200

// SQLiteCatalog implements Provider on a SQLite database of table definitions
// and known partition keys.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool
	dbPath string
	mu     sync.Mutex // Write-only lock

	connectorID string
	keyLimit    int

	// Distinct key sketches per schema.table, guarded by mu
	sketches map[string]*hll.Sketch
}

// NewCatalog opens (or creates) the catalog at dbPath. Handles returned by Table
// carry connectorID. keyLimit <= 0 selects DefaultPartitionKeyLimit.
func NewCatalog(dbPath, connectorID string, keyLimit int) (*SQLiteCatalog, error) {
	if keyLimit <= 0 {
		keyLimit = DefaultPartitionKeyLimit
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	c := &SQLiteCatalog{
		db:          db,
		readDB:      readDB,
		dbPath:      dbPath,
		connectorID: connectorID,
		keyLimit:    keyLimit,
		sketches:    make(map[string]*hll.Sketch),
	}
	if err := c.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("metadata: failed to initialize schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// RegisterTable stores (or replaces) a table definition.
func (c *SQLiteCatalog) RegisterTable(ctx context.Context, schema, table string, columns []types.Column) error {
	if err := partition.ValidateColumns(columns); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("metadata: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO tables (schema_name, table_name, created_at) VALUES (?, ?, ?)`,
		schema, table, time.Now().Unix()); err != nil {
		return fmt.Errorf("metadata: failed to insert table: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM columns WHERE schema_name = ? AND table_name = ?`, schema, table); err != nil {
		return fmt.Errorf("metadata: failed to clear columns: %w", err)
	}
	for i, col := range columns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO columns (schema_name, table_name, position, name, type, partition_key, ordinal, indexed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			schema, table, i, col.Name, string(col.Type), col.PartitionKey, col.Ordinal, col.Indexed); err != nil {
			return fmt.Errorf("metadata: failed to insert column %q: %w", col.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("metadata: failed to commit table: %w", err)
	}

	log.Printf("metadata: registered %s.%s with %d columns", schema, table, len(columns))
	return nil
}

// RegisterPartition records a partition key of an existing table and folds it
// into the table's distinct-key sketch. Registering a key twice is a no-op.
func (c *SQLiteCatalog) RegisterPartition(ctx context.Context, schema, table string, values []any) (*partition.Partition, error) {
	t, err := c.Table(ctx, types.NewTableHandle(c.connectorID, schema, table))
	if err != nil {
		return nil, err
	}
	p, err := partition.New(t.PartitionKeyColumns(), values)
	if err != nil {
		return nil, err
	}
	encoded, err := encodeValues(values)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sk, err := c.sketchLocked(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO partition_keys (schema_name, table_name, partition_id, key_values, token, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		schema, table, p.PartitionID(), encoded, p.Token(), now); err != nil {
		return nil, fmt.Errorf("metadata: failed to insert partition key: %w", err)
	}

	next := sk.Clone()
	next.Insert(p.Key())
	blob, err := next.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to marshal sketch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO table_stats (schema_name, table_name, key_sketch, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(schema_name, table_name) DO UPDATE SET key_sketch = excluded.key_sketch, updated_at = excluded.updated_at`,
		schema, table, snappy.Encode(nil, blob), now); err != nil {
		return nil, fmt.Errorf("metadata: failed to store sketch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("metadata: failed to commit partition key: %w", err)
	}

	c.sketches[schema+"."+table] = next
	return p, nil
}

// sketchLocked returns the cached sketch of a table, loading it on first use
// (must be called with mu held).
func (c *SQLiteCatalog) sketchLocked(ctx context.Context, schema, table string) (*hll.Sketch, error) {
	name := schema + "." + table
	if sk, ok := c.sketches[name]; ok {
		return sk, nil
	}

	var compressed []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT key_sketch FROM table_stats WHERE schema_name = ? AND table_name = ?`,
		schema, table).Scan(&compressed)
	switch {
	case err == sql.ErrNoRows:
		sk := hll.New()
		c.sketches[name] = sk
		return sk, nil
	case err != nil:
		return nil, rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "failed to read key sketch", err)
	}

	blob, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("metadata: corrupt key sketch for %s: %w", name, err)
	}
	sk := hll.New()
	if err := sk.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("metadata: corrupt key sketch for %s: %w", name, err)
	}
	c.sketches[name] = sk
	return sk, nil
}

// EstimatePartitions returns the estimated number of distinct partition keys.
func (c *SQLiteCatalog) EstimatePartitions(ctx context.Context, schema, table string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sk, err := c.sketchLocked(ctx, schema, table)
	if err != nil {
		return 0, err
	}
	return sk.Estimate(), nil
}

// Table implements Provider.
func (c *SQLiteCatalog) Table(ctx context.Context, handle *types.TableHandle) (*Table, error) {
	if handle == nil {
		return nil, rserrors.NewValidationError(rserrors.CodeNilArgument, "table handle is nil")
	}

	rows, err := c.readDB.QueryContext(ctx, `
		SELECT name, type, partition_key, ordinal, indexed
		FROM columns
		WHERE schema_name = ? AND table_name = ?
		ORDER BY position`,
		handle.Schema, handle.Table)
	if err != nil {
		return nil, rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "failed to query columns", err)
	}
	defer rows.Close()

	var columns []types.Column
	for rows.Next() {
		var col types.Column
		var typ string
		if err := rows.Scan(&col.Name, &typ, &col.PartitionKey, &col.Ordinal, &col.Indexed); err != nil {
			return nil, rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "failed to scan column", err)
		}
		col.Type = types.ValueType(typ)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "failed to iterate columns", err)
	}
	if len(columns) == 0 {
		return nil, rserrors.New(rserrors.ErrCategoryMetadata, rserrors.CodeTableNotFound,
			fmt.Sprintf("table %s not found", handle.SchemaTableName()))
	}

	h := *handle
	return &Table{Handle: &h, Columns: columns}, nil
}

// Partitions implements Provider. An empty prefix yields the sentinel. A full
// key prefix yields the matching known key, if any. A partial prefix yields the
// known keys under it, or the sentinel once more than the key limit match.
func (c *SQLiteCatalog) Partitions(ctx context.Context, table *Table, prefix []any) ([]*partition.Partition, error) {
	if table == nil || table.Handle == nil {
		return nil, rserrors.NewValidationError(rserrors.CodeNilArgument, "table is nil")
	}
	if len(prefix) == 0 {
		return []*partition.Partition{partition.Unpartitioned()}, nil
	}

	keys := table.PartitionKeyColumns()
	idPrefix, err := partition.IDPrefix(keys, prefix)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if len(prefix) == len(keys) {
		rows, err = c.readDB.QueryContext(ctx, `
			SELECT key_values FROM partition_keys
			WHERE schema_name = ? AND table_name = ? AND partition_id = ?`,
			table.Handle.Schema, table.Handle.Table, idPrefix)
	} else {
		rows, err = c.readDB.QueryContext(ctx, `
			SELECT key_values FROM partition_keys
			WHERE schema_name = ? AND table_name = ? AND substr(partition_id, 1, length(?)) = ?
			ORDER BY token
			LIMIT ?`,
			table.Handle.Schema, table.Handle.Table, idPrefix, idPrefix, c.keyLimit+1)
	}
	if err != nil {
		return nil, rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "failed to query partition keys", err)
	}
	defer rows.Close()

	var out []*partition.Partition
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "failed to scan partition key", err)
		}
		values, err := decodeValues(keys, encoded)
		if err != nil {
			return nil, rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "corrupt partition key", err)
		}
		p, err := partition.New(keys, values)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "failed to iterate partition keys", err)
	}

	if len(out) > c.keyLimit {
		return []*partition.Partition{partition.Unpartitioned()}, nil
	}
	return out, nil
}

// Close closes both database connections.
func (c *SQLiteCatalog) Close() error {
	readErr := c.readDB.Close()
	writeErr := c.db.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// encodeValues stores key values as a JSON array of their text forms so that
// doubles such as NaN survive the round trip.
func encodeValues(values []any) (string, error) {
	texts := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case int64:
			texts[i] = strconv.FormatInt(x, 10)
		case float64:
			texts[i] = strconv.FormatFloat(x, 'g', -1, 64)
		case bool:
			texts[i] = strconv.FormatBool(x)
		case string:
			texts[i] = x
		default:
			return "", rserrors.NewValidationError(rserrors.CodeUnsupportedKeyType, fmt.Sprintf("cannot store %T key value", v))
		}
	}
	b, err := json.Marshal(texts)
	return string(b), err
}

func decodeValues(keys []types.Column, encoded string) ([]any, error) {
	var texts []string
	if err := json.Unmarshal([]byte(encoded), &texts); err != nil {
		return nil, err
	}
	if len(texts) != len(keys) {
		return nil, fmt.Errorf("stored key has %d values, table key has %d columns", len(texts), len(keys))
	}
	values := make([]any, len(texts))
	for i, text := range texts {
		v, err := parseTyped(keys[i].Type, text)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func parseTyped(typ types.ValueType, text string) (any, error) {
	switch typ {
	case types.TypeLong:
		return strconv.ParseInt(text, 10, 64)
	case types.TypeDouble:
		return strconv.ParseFloat(text, 64)
	case types.TypeBoolean:
		return strconv.ParseBool(text)
	case types.TypeString:
		return text, nil
	default:
		return nil, fmt.Errorf("unsupported key type %s", typ)
	}
}
