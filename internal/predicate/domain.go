package predicate

import (
	"sort"
	"strings"
)

// BoundKind describes one end of a Range.
type BoundKind uint8

const (
	Unbounded BoundKind = iota
	Inclusive
	Exclusive
)

// Bound is one end of a range. Value is ignored when Kind is Unbounded.
type Bound struct {
	Kind  BoundKind
	Value Value
}

// Range is a contiguous interval of values.
type Range struct {
	Low  Bound
	High Bound
}

// Equal returns the range holding exactly v.
func Equal(v Value) Range {
	return Range{Low: Bound{Inclusive, v}, High: Bound{Inclusive, v}}
}

// GreaterThan returns (v, +inf).
func GreaterThan(v Value) Range {
	return Range{Low: Bound{Exclusive, v}}
}

// GreaterThanOrEqual returns [v, +inf).
func GreaterThanOrEqual(v Value) Range {
	return Range{Low: Bound{Inclusive, v}}
}

// LessThan returns (-inf, v).
func LessThan(v Value) Range {
	return Range{High: Bound{Exclusive, v}}
}

// LessThanOrEqual returns (-inf, v].
func LessThanOrEqual(v Value) Range {
	return Range{High: Bound{Inclusive, v}}
}

// Between returns [low, high].
func Between(low, high Value) Range {
	return Range{Low: Bound{Inclusive, low}, High: Bound{Inclusive, high}}
}

// IsSingleValue reports whether the range holds exactly one value.
func (r Range) IsSingleValue() bool {
	return r.Low.Kind == Inclusive && r.High.Kind == Inclusive && equalValues(r.Low.Value, r.High.Value)
}

// IsAll reports whether the range is unbounded on both ends.
func (r Range) IsAll() bool {
	return r.Low.Kind == Unbounded && r.High.Kind == Unbounded
}

// IsEmpty reports whether no value can satisfy the range.
// Ranges over incomparable values are never considered empty.
func (r Range) IsEmpty() bool {
	if r.Low.Kind == Unbounded || r.High.Kind == Unbounded {
		return false
	}
	c, ok := Compare(r.Low.Value, r.High.Value)
	if !ok {
		return false
	}
	if c != 0 {
		return c > 0
	}
	return r.Low.Kind == Exclusive || r.High.Kind == Exclusive
}

// Intersect returns the common part of two ranges and whether it is non-empty.
func (r Range) Intersect(o Range) (Range, bool) {
	out := Range{Low: maxLow(r.Low, o.Low), High: minHigh(r.High, o.High)}
	return out, !out.IsEmpty()
}

// Overlaps reports whether the ranges share at least one value.
func (r Range) Overlaps(o Range) bool {
	_, ok := r.Intersect(o)
	return ok
}

func (r Range) equal(o Range) bool {
	return boundEqual(r.Low, o.Low) && boundEqual(r.High, o.High)
}

func (r Range) String() string {
	var sb strings.Builder
	if r.IsSingleValue() {
		sb.WriteString("[")
		sb.WriteString(formatValue(r.Low.Value))
		sb.WriteString("]")
		return sb.String()
	}
	switch r.Low.Kind {
	case Unbounded:
		sb.WriteString("(-inf")
	case Inclusive:
		sb.WriteString("[" + formatValue(r.Low.Value))
	case Exclusive:
		sb.WriteString("(" + formatValue(r.Low.Value))
	}
	sb.WriteString(", ")
	switch r.High.Kind {
	case Unbounded:
		sb.WriteString("+inf)")
	case Inclusive:
		sb.WriteString(formatValue(r.High.Value) + "]")
	case Exclusive:
		sb.WriteString(formatValue(r.High.Value) + ")")
	}
	return sb.String()
}

func boundEqual(a, b Bound) bool {
	if a.Kind != b.Kind {
		return false
	}
	return a.Kind == Unbounded || equalValues(a.Value, b.Value)
}

// compareLow orders lower bounds; an inclusive bound starts before an exclusive one
// on the same value. ok is false for incomparable values.
func compareLow(a, b Bound) (int, bool) {
	switch {
	case a.Kind == Unbounded && b.Kind == Unbounded:
		return 0, true
	case a.Kind == Unbounded:
		return -1, true
	case b.Kind == Unbounded:
		return 1, true
	}
	c, ok := Compare(a.Value, b.Value)
	if !ok || c != 0 {
		return c, ok
	}
	return kindOrder(a.Kind, b.Kind, Inclusive), true
}

// compareHigh orders upper bounds; an exclusive bound ends before an inclusive one.
func compareHigh(a, b Bound) (int, bool) {
	switch {
	case a.Kind == Unbounded && b.Kind == Unbounded:
		return 0, true
	case a.Kind == Unbounded:
		return 1, true
	case b.Kind == Unbounded:
		return -1, true
	}
	c, ok := Compare(a.Value, b.Value)
	if !ok || c != 0 {
		return c, ok
	}
	return kindOrder(a.Kind, b.Kind, Exclusive), true
}

func kindOrder(a, b, first BoundKind) int {
	switch {
	case a == b:
		return 0
	case a == first:
		return -1
	default:
		return 1
	}
}

func maxLow(a, b Bound) Bound {
	if c, ok := compareLow(a, b); ok && c < 0 {
		return b
	}
	return a
}

func minHigh(a, b Bound) Bound {
	if c, ok := compareHigh(a, b); ok && c > 0 {
		return b
	}
	return a
}

type domainKind uint8

const (
	kindAll domainKind = iota
	kindNone
	kindRanges
)

// Domain is the constraint on one column's value: all values, no value, or a
// non-empty set of disjoint, non-adjacent ranges. The zero Domain is All.
type Domain struct {
	kind   domainKind
	ranges []Range
}

// All returns the unconstrained domain.
func All() Domain {
	return Domain{kind: kindAll}
}

// None returns the unsatisfiable domain.
func None() Domain {
	return Domain{kind: kindNone}
}

// SingleValue returns the domain holding exactly v.
func SingleValue(v Value) Domain {
	return OfRanges(Equal(v))
}

// MultipleValues returns the domain holding exactly the given values.
func MultipleValues(vs ...Value) Domain {
	rs := make([]Range, len(vs))
	for i, v := range vs {
		rs[i] = Equal(v)
	}
	return OfRanges(rs...)
}

// OfRanges builds a normalized domain: empty ranges are dropped, the rest sorted
// and overlapping or adjacent ranges merged. No ranges yields None.
func OfRanges(rs ...Range) Domain {
	kept := make([]Range, 0, len(rs))
	for _, r := range rs {
		if r.IsEmpty() {
			continue
		}
		if r.IsAll() {
			return All()
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return None()
	}
	return Domain{kind: kindRanges, ranges: normalize(kept)}
}

// normalize sorts by lower bound and merges. Sets containing incomparable values
// are kept in input order with exact duplicates removed.
func normalize(rs []Range) []Range {
	ordered := true
	for i := 1; i < len(rs) && ordered; i++ {
		_, ordered = compareLow(rs[0].Low, rs[i].Low)
	}
	if !ordered {
		out := rs[:0:0]
		for _, r := range rs {
			dup := false
			for _, o := range out {
				if o.equal(r) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, r)
			}
		}
		return out
	}

	sort.SliceStable(rs, func(i, j int) bool {
		c, _ := compareLow(rs[i].Low, rs[j].Low)
		return c < 0
	})
	out := []Range{rs[0]}
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if mergeable(*last, r) {
			if c, _ := compareHigh(r.High, last.High); c > 0 {
				last.High = r.High
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// mergeable reports whether b (whose lower bound is >= a's) overlaps or touches a.
func mergeable(a, b Range) bool {
	if a.Overlaps(b) {
		return true
	}
	if a.High.Kind == Unbounded || b.Low.Kind == Unbounded {
		return false
	}
	if !equalValues(a.High.Value, b.Low.Value) {
		return false
	}
	return a.High.Kind == Inclusive || b.Low.Kind == Inclusive
}

// IsAll reports whether the domain is unconstrained.
func (d Domain) IsAll() bool {
	return d.kind == kindAll
}

// IsNone reports whether the domain is unsatisfiable.
func (d Domain) IsNone() bool {
	return d.kind == kindNone
}

// Ranges returns a copy of the normalized ranges (nil for All and None).
func (d Domain) Ranges() []Range {
	if d.kind != kindRanges {
		return nil
	}
	out := make([]Range, len(d.ranges))
	copy(out, d.ranges)
	return out
}

// RangeCount returns the number of disjoint ranges.
func (d Domain) RangeCount() int {
	return len(d.ranges)
}

// IsSingleValue reports whether the domain is exactly one range holding one value.
func (d Domain) IsSingleValue() bool {
	return d.kind == kindRanges && len(d.ranges) == 1 && d.ranges[0].IsSingleValue()
}

// SingleValue returns the held value when IsSingleValue.
func (d Domain) SingleValue() (Value, bool) {
	if !d.IsSingleValue() {
		return nil, false
	}
	return d.ranges[0].Low.Value, true
}

// Overlaps reports whether the two domains share at least one value.
func (d Domain) Overlaps(o Domain) bool {
	if d.IsNone() || o.IsNone() {
		return false
	}
	if d.IsAll() || o.IsAll() {
		return true
	}
	for _, a := range d.ranges {
		for _, b := range o.ranges {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

// Intersect returns the values allowed by both domains.
func (d Domain) Intersect(o Domain) Domain {
	switch {
	case d.IsNone() || o.IsNone():
		return None()
	case d.IsAll():
		return o
	case o.IsAll():
		return d
	}
	var out []Range
	for _, a := range d.ranges {
		for _, b := range o.ranges {
			if r, ok := a.Intersect(b); ok {
				out = append(out, r)
			}
		}
	}
	return OfRanges(out...)
}

// Equal reports structural equality of two normalized domains.
func (d Domain) Equal(o Domain) bool {
	if d.kind != o.kind || len(d.ranges) != len(o.ranges) {
		return false
	}
	for i := range d.ranges {
		if !d.ranges[i].equal(o.ranges[i]) {
			return false
		}
	}
	return true
}

func (d Domain) String() string {
	switch d.kind {
	case kindAll:
		return "ALL"
	case kindNone:
		return "NONE"
	}
	parts := make([]string, len(d.ranges))
	for i, r := range d.ranges {
		parts[i] = r.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
