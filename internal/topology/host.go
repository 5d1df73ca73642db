// Package topology describes the token ring of the column store: which hosts
// replicate a partition key and how the ring divides into schedulable ranges.
package topology

import (
	"context"
	"strconv"

	"github.com/arkilian/ringsplit/pkg/types"
)

// Host is a ring member as the topology provider sees it.
type Host struct {
	Address    string `json:"address" yaml:"address"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	DataCenter string `json:"data_center,omitempty" yaml:"data_center,omitempty"`
}

func (h Host) String() string {
	if h.Port > 0 {
		return h.Address + ":" + strconv.Itoa(h.Port)
	}
	return h.Address
}

// TokenRange is the ring interval (Start, End] and its replicas in ring order.
type TokenRange struct {
	Start    int64
	End      int64
	Replicas []Host
}

// Provider is the topology/session collaborator of the planner.
type Provider interface {
	// Replicas returns the hosts owning an encoded partition key.
	Replicas(ctx context.Context, schema string, key []byte) ([]Host, error)

	// TokenSubRanges returns sub-ranges covering the whole ring exactly once.
	TokenSubRanges(ctx context.Context, schema, table string) ([]TokenRange, error)
}

// AddressResolver converts provider hosts into split locality hints.
type AddressResolver interface {
	Resolve(h Host) types.HostAddress
}

// DefaultResolver maps a host to its address, keeping the port when
// IncludePort is set and the port is known.
type DefaultResolver struct {
	IncludePort bool
}

// Resolve implements AddressResolver.
func (r DefaultResolver) Resolve(h Host) types.HostAddress {
	addr := types.HostAddress{Host: h.Address}
	if r.IncludePort {
		addr.Port = h.Port
	}
	return addr
}

// ResolveAll resolves hosts in order.
func ResolveAll(r AddressResolver, hosts []Host) []types.HostAddress {
	out := make([]types.HostAddress, len(hosts))
	for i, h := range hosts {
		out[i] = r.Resolve(h)
	}
	return out
}
