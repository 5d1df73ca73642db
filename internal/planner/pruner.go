package planner

import (
	"context"

	"github.com/arkilian/ringsplit/internal/cql"
	"github.com/arkilian/ringsplit/internal/metadata"
	"github.com/arkilian/ringsplit/internal/partition"
	"github.com/arkilian/ringsplit/internal/predicate"
	"github.com/arkilian/ringsplit/pkg/types"
)

// Pruner narrows a table to the partitions a predicate can match and splits the
// predicate into what the partitions capture and what the scan must still check.
type Pruner struct {
	metadata metadata.Provider
}

// NewPruner creates a pruner over a metadata provider.
func NewPruner(provider metadata.Provider) *Pruner {
	return &Pruner{metadata: provider}
}

// Prune resolves the partitions of table matching m.
//
// Phase 1: build the longest gap-free prefix of single-value key domains and
// let the provider look the candidates up.
// Phase 2: drop candidates whose key domains do not overlap m.
// When only the unpartitioned sentinel survives, a single-value domain on an
// indexed column is pushed down instead.
// Provider errors are returned unchanged.
func (p *Pruner) Prune(ctx context.Context, table *metadata.Table, m predicate.Map) (*PartitionResult, error) {
	if m.IsNone() {
		return &PartitionResult{Kind: KindPruned, Residual: predicate.Unsatisfiable()}, nil
	}

	keys := table.PartitionKeyColumns()
	prefix, err := BuildPrefix(keys, m)
	if err != nil {
		return nil, err
	}

	candidates, err := p.metadata.Partitions(ctx, table, prefix)
	if err != nil {
		return nil, err
	}

	filtered := make([]*partition.Partition, 0, len(candidates))
	for _, c := range candidates {
		if m.Overlaps(c.Domains()) {
			filtered = append(filtered, c)
		}
	}

	if len(filtered) == 1 && filtered[0].IsUnpartitioned() {
		if pushed, residual, ok := indexPushdown(table, m); ok {
			return &PartitionResult{
				Kind:       KindIndexPushedDown,
				Partitions: []*partition.Partition{pushed},
				Residual:   residual,
			}, nil
		}
		return &PartitionResult{Kind: KindUnpartitioned, Partitions: filtered, Residual: m}, nil
	}

	return &PartitionResult{
		Kind:       KindPruned,
		Partitions: filtered,
		Residual:   m.WithoutColumns(keys...),
	}, nil
}

// BuildPrefix returns the values of the leading key columns (ordinal order)
// whose domain in m is a single value. It stops at the first column that is
// unconstrained or holds more than one value. Every collected value must be a
// valid key literal for its column.
func BuildPrefix(keys []types.Column, m predicate.Map) ([]any, error) {
	var prefix []any
	for _, col := range keys {
		v, ok := m.Domain(col.Name).SingleValue()
		if !ok {
			break
		}
		if err := partition.ValidateKeyLiteral(col, v); err != nil {
			return nil, err
		}
		prefix = append(prefix, v)
	}
	return prefix, nil
}

// indexPushdown picks the first indexed column of m (insertion order) bound to
// a single value and builds the synthetic partition scanning through it.
// Values of any column type are rendered; only text columns are quoted.
func indexPushdown(table *metadata.Table, m predicate.Map) (*partition.Partition, predicate.Map, bool) {
	for _, e := range m.Entries() {
		col := e.Column
		if tc, ok := table.Column(col.Name); ok {
			col = tc
		}
		if !col.Indexed {
			continue
		}
		v, ok := e.Domain.SingleValue()
		if !ok {
			continue
		}
		lit, err := cql.IndexLiteral(v, col.Type)
		if err != nil {
			continue
		}

		residual := m.WithoutColumns(col)
		cond := cql.EqualCondition(cql.ColumnName(col.Name), lit)
		return partition.NewIndexPushdown(cond, residual), residual, true
	}
	return nil, predicate.Map{}, false
}
