package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/semaphore"

	"github.com/arkilian/ringsplit/internal/cql"
	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/metadata"
	"github.com/arkilian/ringsplit/internal/partition"
	"github.com/arkilian/ringsplit/internal/topology"
	"github.com/arkilian/ringsplit/pkg/types"
)

// Batcher turns concrete partitions into splits. Single-column keys owned by
// the same replicas are merged into bounded IN lists; composite keys get one
// split each.
type Batcher struct {
	connectorID  string
	topology     topology.Provider
	resolver     topology.AddressResolver
	maxBatchSize int
	concurrency  int
}

// NewBatcher creates a batcher. Replica lookups run with at most concurrency
// requests in flight.
func NewBatcher(connectorID string, provider topology.Provider, resolver topology.AddressResolver, maxBatchSize, concurrency int) *Batcher {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Batcher{
		connectorID:  connectorID,
		topology:     provider,
		resolver:     resolver,
		maxBatchSize: maxBatchSize,
		concurrency:  concurrency,
	}
}

// hostGroup accumulates the key literals of partitions sharing a replica set.
type hostGroup struct {
	addresses []types.HostAddress
	literals  []string
	seen      map[string]struct{}
}

// Split builds the splits of parts. Every partition must carry a concrete key.
// A failed replica lookup fails the whole call.
func (b *Batcher) Split(ctx context.Context, table *metadata.Table, parts []*partition.Partition) ([]types.Split, error) {
	if len(parts) == 0 {
		return []types.Split{}, nil
	}
	for _, p := range parts {
		if len(p.KeyColumns()) == 0 {
			return nil, rserrors.NewValidationError(rserrors.CodeWrongPartitionType,
				fmt.Sprintf("partition %q has no partition key", p.PartitionID()))
		}
	}

	replicas, err := b.resolveReplicas(ctx, table.Handle.Schema, parts)
	if err != nil {
		return nil, err
	}

	if parts[0].Domains().Len() != 1 {
		splits := make([]types.Split, len(parts))
		for i, p := range parts {
			splits[i] = b.split(table, p.PartitionID(), "", replicas[i])
		}
		return splits, nil
	}

	column := cql.ColumnName(parts[0].KeyColumns()[0].Name)

	groups := make(map[string]*hostGroup)
	var order []string
	for i, p := range parts {
		key := hostSetKey(replicas[i])
		g, ok := groups[key]
		if !ok {
			g = &hostGroup{addresses: replicas[i], seen: make(map[string]struct{})}
			groups[key] = g
			order = append(order, key)
		}
		lit := p.KeyLiterals()[0]
		if _, dup := g.seen[lit]; dup {
			continue
		}
		g.seen[lit] = struct{}{}
		g.literals = append(g.literals, lit)
	}

	var splits []types.Split
	for _, key := range order {
		g := groups[key]
		for start := 0; start < len(g.literals); start += b.maxBatchSize {
			end := start + b.maxBatchSize
			if end > len(g.literals) {
				end = len(g.literals)
			}
			cond := cql.InCondition(column, g.literals[start:end])
			splits = append(splits, b.split(table, cond, cond, g.addresses))
		}
	}
	return splits, nil
}

func (b *Batcher) split(table *metadata.Table, partitionID, condition string, addresses []types.HostAddress) types.Split {
	return types.Split{
		ConnectorID: b.connectorID,
		Schema:      table.Handle.Schema,
		Table:       table.Handle.Table,
		PartitionID: partitionID,
		Condition:   condition,
		Addresses:   addresses,
	}
}

// resolveReplicas looks the replicas of every partition up in parallel. The
// first failure cancels the outstanding lookups and is returned.
func (b *Batcher) resolveReplicas(ctx context.Context, schema string, parts []*partition.Partition) ([][]types.HostAddress, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(b.concurrency))
	out := make([][]types.HostAddress, len(parts))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i, p := range parts {
		if err := sem.Acquire(ctx, 1); err != nil {
			fail(err)
			break
		}
		wg.Add(1)
		go func(i int, p *partition.Partition) {
			defer wg.Done()
			defer sem.Release(1)

			hosts, err := b.topology.Replicas(ctx, schema, p.Key())
			if err != nil {
				fail(err)
				return
			}
			out[i] = topology.ResolveAll(b.resolver, hosts)
		}(i, p)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// hostSetKey identifies a replica set regardless of order.
func hostSetKey(addrs []types.HostAddress) string {
	names := make([]string, len(addrs))
	for i, a := range addrs {
		names[i] = a.String()
	}
	slices.Sort(names)
	names = slices.Compact(names)
	return strings.Join(names, ",")
}
