package planner

import (
	"github.com/arkilian/ringsplit/internal/partition"
	"github.com/arkilian/ringsplit/internal/predicate"
	"github.com/arkilian/ringsplit/pkg/types"
)

// ResultKind tells split generation which strategy a pruning result needs.
type ResultKind int

const (
	// KindPruned means the partitions are concrete keys (possibly none).
	KindPruned ResultKind = iota

	// KindUnpartitioned means no key was bound; the whole ring is scanned.
	KindUnpartitioned

	// KindIndexPushedDown means the ring is scanned through a secondary index.
	KindIndexPushedDown
)

func (k ResultKind) String() string {
	switch k {
	case KindPruned:
		return "PRUNED"
	case KindUnpartitioned:
		return "UNPARTITIONED"
	case KindIndexPushedDown:
		return "INDEX_PUSHED_DOWN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ResultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// PartitionResult is the outcome of pruning one table.
type PartitionResult struct {
	// Kind selects the split strategy
	Kind ResultKind

	// Partitions are the surviving partitions. For KindUnpartitioned and
	// KindIndexPushedDown it holds exactly one partition.
	Partitions []*partition.Partition

	// Residual is the predicate the scan still evaluates row by row
	Residual predicate.Map
}

// IsEmpty reports whether no partition can match.
func (r *PartitionResult) IsEmpty() bool {
	return len(r.Partitions) == 0
}

// ScansRing reports whether splits come from the token ring rather than from
// concrete partition keys.
func (r *PartitionResult) ScansRing() bool {
	return r.Kind == KindUnpartitioned || r.Kind == KindIndexPushedDown
}

// ConnectorPartitions returns the partitions as the engine-facing interface,
// ready to be handed back to GetSplits.
func (r *PartitionResult) ConnectorPartitions() []types.ConnectorPartition {
	out := make([]types.ConnectorPartition, len(r.Partitions))
	for i, p := range r.Partitions {
		out[i] = p
	}
	return out
}

// PartitionIDs returns the ids of the partitions in order.
func (r *PartitionResult) PartitionIDs() []string {
	out := make([]string, len(r.Partitions))
	for i, p := range r.Partitions {
		out[i] = p.PartitionID()
	}
	return out
}

// ResidualColumns returns the names of the residual columns in map order.
func (r *PartitionResult) ResidualColumns() []string {
	cols := r.Residual.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func resultKind(parts []*partition.Partition) ResultKind {
	if len(parts) == 1 {
		switch {
		case parts[0].IsUnpartitioned():
			return KindUnpartitioned
		case parts[0].IsIndexPushedDown():
			return KindIndexPushedDown
		}
	}
	return KindPruned
}
