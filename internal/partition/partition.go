// Package partition models concrete partition-key assignments, the unpartitioned
// sentinel and index-pushdown partitions, plus the key encoding used to place a
// partition on the token ring.
package partition

import (
	"strings"

	"github.com/arkilian/ringsplit/internal/cql"
	"github.com/arkilian/ringsplit/internal/predicate"
	"github.com/arkilian/ringsplit/pkg/types"
)

// UnpartitionedID is the id of the sentinel partition.
const UnpartitionedID = "<UNPARTITIONED>"

// Partition is an immutable partition-key assignment.
type Partition struct {
	id       string
	columns  []types.Column
	literals []string
	key      []byte
	domains  predicate.Map

	unpartitioned   bool
	indexPushedDown bool
}

var unpartitioned = &Partition{id: UnpartitionedID, domains: predicate.Unconstrained(), unpartitioned: true}

// Unpartitioned returns the sentinel meaning no partition key was bound and the
// whole ring must be scanned.
func Unpartitioned() *Partition {
	return unpartitioned
}

// New builds the partition for the given key columns (ordinal order) and values.
// Its id is `c1 = v1 AND c2 = v2` with rendered literals.
func New(columns []types.Column, values []any) (*Partition, error) {
	if len(columns) == 0 || len(columns) != len(values) {
		return nil, validationf("partition needs one value per key column, got %d columns and %d values", len(columns), len(values))
	}

	conds, lits, err := render(columns, values)
	if err != nil {
		return nil, err
	}
	p := &Partition{
		id:       strings.Join(conds, " AND "),
		columns:  append([]types.Column(nil), columns...),
		literals: lits,
		domains:  predicate.Unconstrained(),
	}
	for i, col := range columns {
		p.domains = p.domains.With(col, predicate.SingleValue(values[i]))
	}

	key, err := EncodeKey(columns, values)
	if err != nil {
		return nil, err
	}
	p.key = key
	return p, nil
}

// IDPrefix renders the id prefix shared by every partition whose leading key
// values equal values. A prefix covering the whole key is a complete id.
func IDPrefix(keyColumns []types.Column, values []any) (string, error) {
	if len(values) > len(keyColumns) {
		return "", validationf("prefix has %d values but the key has %d columns", len(values), len(keyColumns))
	}
	conds, _, err := render(keyColumns[:len(values)], values)
	if err != nil {
		return "", err
	}
	id := strings.Join(conds, " AND ")
	if len(values) < len(keyColumns) && len(values) > 0 {
		id += " AND "
	}
	return id, nil
}

func render(columns []types.Column, values []any) (conds, literals []string, err error) {
	conds = make([]string, len(values))
	literals = make([]string, len(values))
	for i, col := range columns {
		if err := ValidateKeyLiteral(col, values[i]); err != nil {
			return nil, nil, err
		}
		lit, err := cql.Literal(values[i], col.Type)
		if err != nil {
			return nil, nil, err
		}
		literals[i] = lit
		conds[i] = cql.EqualCondition(cql.ColumnName(col.Name), lit)
	}
	return conds, literals, nil
}

// NewIndexPushdown builds the synthetic partition for a secondary-index
// equality. The condition text is the id; remaining is the predicate still to be
// evaluated by the scan.
func NewIndexPushdown(condition string, remaining predicate.Map) *Partition {
	return &Partition{id: condition, domains: remaining, indexPushedDown: true}
}

// PartitionID returns the partition's id.
func (p *Partition) PartitionID() string {
	return p.id
}

// IsUnpartitioned reports whether p is the full-scan sentinel.
func (p *Partition) IsUnpartitioned() bool {
	return p.unpartitioned
}

// IsIndexPushedDown reports whether p was synthesized for index pushdown.
func (p *Partition) IsIndexPushedDown() bool {
	return p.indexPushedDown
}

// Domains returns the predicate map restricted to the key columns (or, for
// index pushdown, the remaining predicate).
func (p *Partition) Domains() predicate.Map {
	return p.domains
}

// KeyColumns returns the key columns in ordinal order.
func (p *Partition) KeyColumns() []types.Column {
	return append([]types.Column(nil), p.columns...)
}

// KeyLiterals returns the rendered key literals in ordinal order.
func (p *Partition) KeyLiterals() []string {
	return append([]string(nil), p.literals...)
}

// Key returns the encoded key bytes (nil for sentinel and pushdown partitions).
func (p *Partition) Key() []byte {
	return append([]byte(nil), p.key...)
}

// Token returns the ring token of the key.
func (p *Partition) Token() int64 {
	return Token(p.key)
}

func (p *Partition) String() string {
	return p.id
}
