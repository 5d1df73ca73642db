// Package planner turns a table and a predicate into partitions, a residual
// predicate and host-aware splits for the column store.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/metadata"
	"github.com/arkilian/ringsplit/internal/observability"
	"github.com/arkilian/ringsplit/internal/partition"
	"github.com/arkilian/ringsplit/internal/predicate"
	"github.com/arkilian/ringsplit/internal/topology"
	"github.com/arkilian/ringsplit/pkg/types"
)

const (
	// DefaultMaxBatchSize is the maximum number of keys in one IN list.
	DefaultMaxBatchSize = 100

	// DefaultConcurrency bounds parallel replica lookups.
	DefaultConcurrency = 16
)

// Options configures a SplitManager.
type Options struct {
	// ConnectorID is the connector whose table handles are accepted
	ConnectorID string

	// MaxBatchSize bounds the IN lists of merged single-column keys
	MaxBatchSize int

	// Concurrency bounds parallel replica lookups
	Concurrency int

	// Timeout bounds each planning call; zero means no limit
	Timeout time.Duration

	// Resolver converts ring hosts to split addresses
	Resolver topology.AddressResolver

	// Logger is optional
	Logger *log.Logger

	// Stats is optional
	Stats *observability.PlanStats
}

// SplitManager is the planning surface handed to the engine's scheduler.
// It holds no per-call state and is safe for concurrent use.
type SplitManager struct {
	opts     Options
	metadata metadata.Provider
	pruner   *Pruner
	tokens   *TokenSplitter
	batcher  *Batcher
}

// NewSplitManager creates a split manager over the metadata and topology providers.
func NewSplitManager(md metadata.Provider, topo topology.Provider, opts Options) (*SplitManager, error) {
	if md == nil || topo == nil {
		return nil, rserrors.NewValidationError(rserrors.CodeNilArgument, "metadata and topology providers are required")
	}
	if opts.MaxBatchSize < 0 || opts.Concurrency < 0 || opts.Timeout < 0 {
		return nil, rserrors.NewValidationError(rserrors.CodeInvalidConfig, "batch size, concurrency and timeout must not be negative")
	}
	if opts.MaxBatchSize == 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Resolver == nil {
		opts.Resolver = topology.DefaultResolver{}
	}

	return &SplitManager{
		opts:     opts,
		metadata: md,
		pruner:   NewPruner(md),
		tokens:   NewTokenSplitter(opts.ConnectorID, topo, opts.Resolver),
		batcher:  NewBatcher(opts.ConnectorID, topo, opts.Resolver, opts.MaxBatchSize, opts.Concurrency),
	}, nil
}

// CanHandle reports whether h is a table handle of this connector.
func (m *SplitManager) CanHandle(h types.ConnectorTableHandle) bool {
	th, ok := h.(*types.TableHandle)
	return ok && th != nil && th.ConnectorID() == m.opts.ConnectorID
}

// GetPartitions prunes the table of h to the partitions matching pm.
func (m *SplitManager) GetPartitions(ctx context.Context, h types.ConnectorTableHandle, pm predicate.Map) (*PartitionResult, error) {
	handle, err := m.tableHandle(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	table, err := m.metadata.Table(ctx, handle)
	if err != nil {
		return nil, m.collaboratorError(ctx, handle, err, metadataError)
	}

	result, err := m.pruner.Prune(ctx, table, pm)
	if err != nil {
		return nil, m.collaboratorError(ctx, handle, err, metadataError)
	}

	m.logf("%s.%s #partitions: %d", handle.Schema, handle.Table, len(result.Partitions))
	if m.opts.Stats != nil {
		m.opts.Stats.RecordPlan(handle.SchemaTableName(), result.Kind.String(), result.ResidualColumns())
	}
	return result, nil
}

// GetSplits builds the splits of previously pruned partitions. A single
// unpartitioned or index-pushdown partition scans the token ring; concrete
// partitions are batched by replica set. No input yields an empty source.
func (m *SplitManager) GetSplits(ctx context.Context, h types.ConnectorTableHandle, parts []types.ConnectorPartition) (*SplitSource, error) {
	handle, err := m.tableHandle(h)
	if err != nil {
		return nil, err
	}
	concrete, err := partitions(parts)
	if err != nil {
		return nil, err
	}
	if len(concrete) == 0 {
		return NewSplitSource(m.opts.ConnectorID, nil), nil
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	table, err := m.metadata.Table(ctx, handle)
	if err != nil {
		return nil, m.collaboratorError(ctx, handle, err, metadataError)
	}

	var splits []types.Split
	if resultKind(concrete) == KindPruned {
		splits, err = m.batcher.Split(ctx, table, concrete)
		if err != nil {
			return nil, m.collaboratorError(ctx, handle, err, replicaError)
		}
	} else {
		splits, err = m.tokens.Split(ctx, table, concrete[0])
		if err != nil {
			return nil, m.collaboratorError(ctx, handle, err, tokenRangeError)
		}
	}

	m.logf("%s.%s #splits: %d", handle.Schema, handle.Table, len(splits))
	if m.opts.Stats != nil {
		m.opts.Stats.RecordSplits(len(splits))
	}
	return NewSplitSource(m.opts.ConnectorID, splits), nil
}

// Plan prunes and splits in one call.
func (m *SplitManager) Plan(ctx context.Context, h types.ConnectorTableHandle, pm predicate.Map) (*PartitionResult, *SplitSource, error) {
	result, err := m.GetPartitions(ctx, h, pm)
	if err != nil {
		return nil, nil, err
	}
	source, err := m.GetSplits(ctx, h, result.ConnectorPartitions())
	if err != nil {
		return nil, nil, err
	}
	return result, source, nil
}

// ParsePredicate parses a conjunction over the columns of the table of h.
// Empty text is the unconstrained predicate.
func (m *SplitManager) ParsePredicate(ctx context.Context, h types.ConnectorTableHandle, text string) (predicate.Map, error) {
	handle, err := m.tableHandle(h)
	if err != nil {
		return predicate.Map{}, err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	table, err := m.metadata.Table(ctx, handle)
	if err != nil {
		return predicate.Map{}, m.collaboratorError(ctx, handle, err, metadataError)
	}
	return predicate.ParseConjunction(table.Columns, text)
}

func (m *SplitManager) tableHandle(h types.ConnectorTableHandle) (*types.TableHandle, error) {
	if h == nil {
		return nil, rserrors.NewValidationError(rserrors.CodeNilArgument, "table handle is nil")
	}
	th, ok := h.(*types.TableHandle)
	if !ok {
		return nil, rserrors.NewValidationError(rserrors.CodeWrongHandleType,
			fmt.Sprintf("expected *types.TableHandle, got %T", h))
	}
	if th == nil {
		return nil, rserrors.NewValidationError(rserrors.CodeNilArgument, "table handle is nil")
	}
	if th.ConnectorID() != m.opts.ConnectorID {
		return nil, rserrors.NewValidationError(rserrors.CodeWrongHandleType,
			fmt.Sprintf("table handle belongs to connector %q, not %q", th.ConnectorID(), m.opts.ConnectorID))
	}
	return th, nil
}

// partitions checks that every partition is one this planner produced.
func partitions(parts []types.ConnectorPartition) ([]*partition.Partition, error) {
	out := make([]*partition.Partition, len(parts))
	for i, cp := range parts {
		p, ok := cp.(*partition.Partition)
		if !ok || p == nil {
			return nil, rserrors.NewValidationError(rserrors.CodeWrongPartitionType,
				fmt.Sprintf("expected *partition.Partition at index %d, got %T", i, cp))
		}
		out[i] = p
	}
	return out, nil
}

func (m *SplitManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.Timeout > 0 {
		return context.WithTimeout(ctx, m.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (m *SplitManager) logf(format string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Printf(format, args...)
	}
}

type wrapFunc func(message string, cause error) error

func metadataError(message string, cause error) error {
	return rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, message, cause)
}

func replicaError(message string, cause error) error {
	return rserrors.NewTopologyError(rserrors.CodeReplicaLookupFailed, message, cause)
}

func tokenRangeError(message string, cause error) error {
	return rserrors.NewTopologyError(rserrors.CodeTokenRangeFailed, message, cause)
}

// collaboratorError classifies a failure of a planning call. Expired or
// cancelled calls become PLANNING errors, errors that are already classified
// pass through, and anything else is wrapped with wrap.
func (m *SplitManager) collaboratorError(ctx context.Context, handle *types.TableHandle, err error, wrap wrapFunc) error {
	message := fmt.Sprintf("planning %s failed", handle.SchemaTableName())
	if ctxErr := ctx.Err(); ctxErr != nil {
		if ce := rserrors.FromContext(message, ctxErr); ce != nil {
			return ce
		}
	}
	if ce := rserrors.FromContext(message, err); ce != nil {
		return ce
	}
	var re *rserrors.RingsplitError
	if errors.As(err, &re) {
		return err
	}
	return wrap(message, err)
}
