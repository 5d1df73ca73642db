package topology

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"sync"

	"github.com/tidwall/btree"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/partition"
)

// Estimator reports the estimated number of partitions of a table.
type Estimator interface {
	EstimatePartitions(ctx context.Context, schema, table string) (uint64, error)
}

// RingOptions configures a Ring.
type RingOptions struct {
	// ReplicationFactor is the number of distinct replicas per key (SimpleStrategy)
	ReplicationFactor int

	// VNodes is the number of tokens each host owns
	VNodes int

	// SplitSize is the target number of partitions per sub-range; used only
	// with an Estimator
	SplitSize int

	// Estimator sizes sub-ranges; nil yields one sub-range per ring range
	Estimator Estimator
}

type vnode struct {
	token int64
	host  int
}

// ringSnapshot is immutable once built.
type ringSnapshot struct {
	tokens *btree.BTreeG[vnode]
	hosts  []Host
}

// Ring is an in-memory Murmur3 token ring with SimpleStrategy placement.
// Update swaps the whole ring, so every call sees one consistent snapshot.
type Ring struct {
	opts RingOptions

	mu   sync.RWMutex
	snap *ringSnapshot
}

// NewRing builds a ring over hosts.
func NewRing(hosts []Host, opts RingOptions) (*Ring, error) {
	if opts.ReplicationFactor <= 0 {
		opts.ReplicationFactor = 1
	}
	if opts.VNodes <= 0 {
		opts.VNodes = 1
	}
	r := &Ring{opts: opts}
	if err := r.Update(hosts); err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces the ring membership.
func (r *Ring) Update(hosts []Host) error {
	if len(hosts) == 0 {
		return rserrors.NewTopologyError(rserrors.CodeTokenRangeFailed, "ring has no hosts", nil)
	}
	snap := &ringSnapshot{
		tokens: btree.NewBTreeG(func(a, b vnode) bool { return a.token < b.token }),
		hosts:  append([]Host(nil), hosts...),
	}
	for hi, h := range hosts {
		placed := 0
		for attempt := 0; placed < r.opts.VNodes; attempt++ {
			t := partition.Token([]byte(h.String() + "#" + strconv.Itoa(attempt)))
			if _, exists := snap.tokens.Get(vnode{token: t}); exists {
				continue
			}
			snap.tokens.Set(vnode{token: t, host: hi})
			placed++
		}
	}

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	return nil
}

func (r *Ring) snapshot() *ringSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Hosts returns the current ring members.
func (r *Ring) Hosts() []Host {
	return append([]Host(nil), r.snapshot().hosts...)
}

// Replicas implements Provider: the owner of a key is the first vnode whose
// token is >= the key token, followed by the next distinct hosts clockwise.
func (r *Ring) Replicas(ctx context.Context, schema string, key []byte) ([]Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := r.snapshot()
	return snap.replicasFrom(partition.Token(key), r.opts.ReplicationFactor), nil
}

// replicasFrom walks clockwise from the first vnode at or after token.
func (s *ringSnapshot) replicasFrom(token int64, rf int) []Host {
	if rf > len(s.hosts) {
		rf = len(s.hosts)
	}
	seen := make(map[int]bool, rf)
	out := make([]Host, 0, rf)
	collect := func(v vnode) bool {
		if !seen[v.host] {
			seen[v.host] = true
			out = append(out, s.hosts[v.host])
		}
		return len(out) < rf
	}
	s.tokens.Ascend(vnode{token: token}, collect)
	if len(out) < rf {
		s.tokens.Scan(collect)
	}
	return out
}

// TokenSubRanges implements Provider. Ring ranges are unwrapped at the wrap
// point into (last, MaxInt64] and (MinInt64, first]; with an Estimator each
// range is cut into pieces holding about SplitSize partitions.
func (r *Ring) TokenSubRanges(ctx context.Context, schema, table string) ([]TokenRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := r.snapshot()

	var estimate uint64
	if r.opts.Estimator != nil && r.opts.SplitSize > 0 {
		var err error
		estimate, err = r.opts.Estimator.EstimatePartitions(ctx, schema, table)
		if err != nil {
			return nil, rserrors.NewTopologyError(rserrors.CodeTokenRangeFailed,
				fmt.Sprintf("failed to estimate partitions of %s.%s", schema, table), err)
		}
	}

	var vnodes []vnode
	snap.tokens.Scan(func(v vnode) bool {
		vnodes = append(vnodes, v)
		return true
	})

	var out []TokenRange
	emit := func(start, end int64, owner vnode) {
		replicas := snap.replicasFrom(owner.token, r.opts.ReplicationFactor)
		for _, piece := range r.divide(start, end, estimate) {
			out = append(out, TokenRange{Start: piece[0], End: piece[1], Replicas: replicas})
		}
	}

	first, last := vnodes[0], vnodes[len(vnodes)-1]
	if first.token > math.MinInt64 {
		emit(math.MinInt64, first.token, first)
	}
	for i := 1; i < len(vnodes); i++ {
		emit(vnodes[i-1].token, vnodes[i].token, vnodes[i])
	}
	if last.token < math.MaxInt64 {
		emit(last.token, math.MaxInt64, first)
	}
	return out, nil
}

// divide cuts (start, end] into pieces sized to the partition estimate.
func (r *Ring) divide(start, end int64, estimate uint64) [][2]int64 {
	width := uint64(end) - uint64(start)
	pieces := uint64(1)
	if estimate > 0 && r.opts.SplitSize > 0 {
		share := float64(estimate) * (float64(width) / math.Exp2(64))
		pieces = uint64(math.Ceil(share / float64(r.opts.SplitSize)))
		if pieces < 1 {
			pieces = 1
		}
		if pieces > width {
			pieces = width
		}
	}

	out := make([][2]int64, 0, pieces)
	lo := start
	for k := uint64(1); k <= pieces; k++ {
		hi := end
		if k < pieces {
			h, l := bits.Mul64(width, k)
			q, _ := bits.Div64(h, l, pieces)
			hi = int64(uint64(start) + q)
		}
		out = append(out, [2]int64{lo, hi})
		lo = hi
	}
	return out
}
