// Package metadata provides table metadata and partition lookup for the split
// planner, backed by a SQLite catalog of known partition keys.
package metadata

import (
	"context"
	"sort"

	"github.com/arkilian/ringsplit/internal/cql"
	"github.com/arkilian/ringsplit/internal/partition"
	"github.com/arkilian/ringsplit/pkg/types"
)

// Provider supplies table metadata and candidate partitions.
type Provider interface {
	// Table returns the metadata of a table or a TABLE_NOT_FOUND error.
	Table(ctx context.Context, handle *types.TableHandle) (*Table, error)

	// Partitions returns the partitions whose leading key values equal prefix.
	// An empty prefix, or one the catalog cannot prune by, yields the
	// unpartitioned sentinel alone.
	Partitions(ctx context.Context, table *Table, prefix []any) ([]*partition.Partition, error)
}

// Table is the metadata of one table.
type Table struct {
	Handle  *types.TableHandle `json:"handle" yaml:"-"`
	Columns []types.Column     `json:"columns" yaml:"columns"`
}

// PartitionKeyColumns returns the partition-key columns in ordinal order.
func (t *Table) PartitionKeyColumns() []types.Column {
	var keys []types.Column
	for _, c := range t.Columns {
		if c.PartitionKey {
			keys = append(keys, c)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].Ordinal < keys[j].Ordinal })
	return keys
}

// IndexedColumns returns the columns carrying a secondary index.
func (t *Table) IndexedColumns() []types.Column {
	var out []types.Column
	for _, c := range t.Columns {
		if c.Indexed {
			out = append(out, c)
		}
	}
	return out
}

// Column looks a column up by name.
func (t *Table) Column(name string) (types.Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return types.Column{}, false
}

// TokenExpression returns token(k1, k2, ...) over the partition key.
func (t *Table) TokenExpression() string {
	keys := t.PartitionKeyColumns()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = cql.ColumnName(k.Name)
	}
	return cql.TokenExpression(names)
}
