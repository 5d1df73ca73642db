package metadata

// Catalog schema (catalog.db). The catalog is the planner's source of truth for
// table definitions and the partition keys known to exist.

// CreateTablesTableSQL creates the table registry.
const CreateTablesTableSQL = `
CREATE TABLE IF NOT EXISTS tables (
    schema_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (schema_name, table_name)
)`

// CreateColumnsTableSQL creates the column definitions, ordered by position.
const CreateColumnsTableSQL = `
CREATE TABLE IF NOT EXISTS columns (
    schema_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    partition_key INTEGER NOT NULL DEFAULT 0,
    ordinal INTEGER NOT NULL DEFAULT 0,
    indexed INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (schema_name, table_name, name),
    FOREIGN KEY (schema_name, table_name) REFERENCES tables(schema_name, table_name)
)`

// CreatePartitionKeysTableSQL creates the known partition keys. partition_id is
// the rendered key condition, so a key prefix is a string prefix of the id.
const CreatePartitionKeysTableSQL = `
CREATE TABLE IF NOT EXISTS partition_keys (
    schema_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    partition_id TEXT NOT NULL,
    key_values TEXT NOT NULL,
    token INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (schema_name, table_name, partition_id)
)`

// CreateTableStatsTableSQL stores per-table distinct key sketches (snappy-compressed HLL).
const CreateTableStatsTableSQL = `
CREATE TABLE IF NOT EXISTS table_stats (
    schema_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    key_sketch BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (schema_name, table_name)
)`

// CreateIndexesSQL creates secondary indexes.
var CreateIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_columns_position ON columns(schema_name, table_name, position)`,
	`CREATE INDEX IF NOT EXISTS idx_partition_keys_token ON partition_keys(schema_name, table_name, token)`,
}

// AllSchemaSQL returns all schema statements in execution order.
func AllSchemaSQL() []string {
	stmts := []string{
		CreateTablesTableSQL,
		CreateColumnsTableSQL,
		CreatePartitionKeysTableSQL,
		CreateTableStatsTableSQL,
	}
	return append(stmts, CreateIndexesSQL...)
}
