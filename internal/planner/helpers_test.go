package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/arkilian/ringsplit/internal/metadata"
	"github.com/arkilian/ringsplit/internal/partition"
	"github.com/arkilian/ringsplit/internal/topology"
	"github.com/arkilian/ringsplit/pkg/types"
)

const testConnector = "cassandra"

var (
	colA      = types.Column{Name: "a", Type: types.TypeLong, PartitionKey: true}
	colRegion = types.Column{Name: "region", Type: types.TypeString, PartitionKey: true}
	colBucket = types.Column{Name: "bucket", Type: types.TypeLong, PartitionKey: true, Ordinal: 1}
	colStatus = types.Column{Name: "status", Type: types.TypeString, Indexed: true}
	colOwner  = types.Column{Name: "owner", Type: types.TypeString, Indexed: true}
	colTotal  = types.Column{Name: "total", Type: types.TypeDouble}
)

func singleKeyTable() *metadata.Table {
	return &metadata.Table{Columns: []types.Column{colA, colStatus, colOwner, colTotal}}
}

func compositeKeyTable() *metadata.Table {
	return &metadata.Table{Columns: []types.Column{colRegion, colBucket, colStatus, colTotal}}
}

// fakeMetadata serves one table and records the prefixes it was asked for.
type fakeMetadata struct {
	mu       sync.Mutex
	table    *metadata.Table
	tableErr error
	partsErr error
	lookup   func(prefix []any) []*partition.Partition
	prefixes [][]any
}

func (f *fakeMetadata) Table(_ context.Context, h *types.TableHandle) (*metadata.Table, error) {
	if f.tableErr != nil {
		return nil, f.tableErr
	}
	t := *f.table
	t.Handle = h
	return &t, nil
}

func (f *fakeMetadata) Partitions(_ context.Context, _ *metadata.Table, prefix []any) ([]*partition.Partition, error) {
	f.mu.Lock()
	f.prefixes = append(f.prefixes, append([]any(nil), prefix...))
	f.mu.Unlock()

	if f.partsErr != nil {
		return nil, f.partsErr
	}
	if f.lookup != nil {
		return f.lookup(prefix), nil
	}
	return []*partition.Partition{partition.Unpartitioned()}, nil
}

func (f *fakeMetadata) lastPrefix() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prefixes) == 0 {
		return nil
	}
	return f.prefixes[len(f.prefixes)-1]
}

// fakeTopology places keys on hosts by token modulo the host count.
type fakeTopology struct {
	hosts      []topology.Host
	ranges     []topology.TokenRange
	replicaErr error
	rangeErr   error
	block      bool
}

func newFakeTopology(n int) *fakeTopology {
	hosts := make([]topology.Host, n)
	for i := range hosts {
		hosts[i] = topology.Host{Address: fmt.Sprintf("10.0.0.%d", i+1), Port: 9042}
	}
	return &fakeTopology{hosts: hosts}
}

func (f *fakeTopology) Replicas(ctx context.Context, _ string, key []byte) ([]topology.Host, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.replicaErr != nil {
		return nil, f.replicaErr
	}
	i := int(uint64(partition.Token(key)) % uint64(len(f.hosts)))
	return []topology.Host{f.hosts[i]}, nil
}

func (f *fakeTopology) TokenSubRanges(context.Context, string, string) ([]topology.TokenRange, error) {
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	return f.ranges, nil
}

func mustPartition(columns []types.Column, values ...any) *partition.Partition {
	p, err := partition.New(columns, values)
	if err != nil {
		panic(err)
	}
	return p
}

// inListValues extracts the literals of "col IN (v1, v2)".
func inListValues(condition string) []string {
	open := strings.Index(condition, "(")
	if open < 0 || !strings.HasSuffix(condition, ")") {
		return nil
	}
	return strings.Split(condition[open+1:len(condition)-1], ", ")
}
