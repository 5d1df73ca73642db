package types

import (
	"net"
	"strconv"
	"strings"
)

// HostAddress is a stable host representation used as a locality hint.
type HostAddress struct {
	// Host is a hostname or IP literal
	Host string `json:"host"`

	// Port is optional; zero means unspecified
	Port int `json:"port,omitempty"`
}

// HasPort reports whether the address carries a port.
func (a HostAddress) HasPort() bool {
	return a.Port > 0
}

// String renders host or host:port (IPv6 literals are bracketed when a port is present).
func (a HostAddress) String() string {
	if !a.HasPort() {
		return a.Host
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParseHostAddress parses "host", "host:port" or "[v6]:port".
func ParseHostAddress(s string) (HostAddress, error) {
	s = strings.TrimSpace(s)
	host, portText, err := net.SplitHostPort(s)
	if err != nil {
		// No port present
		return HostAddress{Host: strings.Trim(s, "[]")}, nil
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return HostAddress{}, err
	}
	return HostAddress{Host: host, Port: port}, nil
}

// Split is a schedulable unit of scan work. Splits are never mutated once built.
type Split struct {
	// ConnectorID is the id of the connector that produced the split
	ConnectorID string `json:"connector_id"`

	// Schema is the keyspace name
	Schema string `json:"schema"`

	// Table is the table name
	Table string `json:"table"`

	// PartitionID labels the partition (or partition batch) the split covers
	PartitionID string `json:"partition_id"`

	// Condition is the extra predicate text for the scan; empty means none
	Condition string `json:"condition,omitempty"`

	// Addresses are the candidate hosts (locality hints, not hard affinity)
	Addresses []HostAddress `json:"addresses"`
}

// HasCondition reports whether the split carries a predicate text.
func (s Split) HasCondition() bool {
	return s.Condition != ""
}

// WhereClause returns the condition the scan appends to its query.
// Splits without a condition fall back to the partition id, which for concrete
// partitions is the exact key filter.
func (s Split) WhereClause() string {
	if s.HasCondition() {
		return s.Condition
	}
	return s.PartitionID
}
