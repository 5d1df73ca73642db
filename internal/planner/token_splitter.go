package planner

import (
	"context"

	"github.com/arkilian/ringsplit/internal/cql"
	"github.com/arkilian/ringsplit/internal/metadata"
	"github.com/arkilian/ringsplit/internal/partition"
	"github.com/arkilian/ringsplit/internal/topology"
	"github.com/arkilian/ringsplit/pkg/types"
)

// TokenSplitter emits one split per token sub-range of the ring.
type TokenSplitter struct {
	connectorID string
	topology    topology.Provider
	resolver    topology.AddressResolver
}

// NewTokenSplitter creates a token splitter.
func NewTokenSplitter(connectorID string, provider topology.Provider, resolver topology.AddressResolver) *TokenSplitter {
	return &TokenSplitter{connectorID: connectorID, topology: provider, resolver: resolver}
}

// Split covers the whole ring of table. p labels the splits: the sentinel for a
// full scan or the index-pushdown partition; nil means the sentinel. The split
// condition is the token range alone. Topology errors are returned unchanged and
// no partial list is produced.
func (s *TokenSplitter) Split(ctx context.Context, table *metadata.Table, p *partition.Partition) ([]types.Split, error) {
	partitionID := partition.UnpartitionedID
	if p != nil {
		partitionID = p.PartitionID()
	}

	ranges, err := s.topology.TokenSubRanges(ctx, table.Handle.Schema, table.Handle.Table)
	if err != nil {
		return nil, err
	}

	expr := table.TokenExpression()
	splits := make([]types.Split, 0, len(ranges))
	for _, r := range ranges {
		splits = append(splits, types.Split{
			ConnectorID: s.connectorID,
			Schema:      table.Handle.Schema,
			Table:       table.Handle.Table,
			PartitionID: partitionID,
			Condition:   cql.TokenCondition(expr, r.Start, r.End),
			Addresses:   topology.ResolveAll(s.resolver, r.Replicas),
		})
	}
	return splits, nil
}
