package predicate

import (
	"strings"

	"github.com/arkilian/ringsplit/pkg/types"
)

// Entry pairs a column with its domain.
type Entry struct {
	Column types.Column
	Domain Domain
}

// Map is a conjunction of column domains. Columns keep their insertion order.
// Unconstrained columns are never stored, and a none domain on any column
// collapses the whole map to the unsatisfiable state.
type Map struct {
	none    bool
	entries []Entry
}

// Unconstrained returns the map that admits every row.
func Unconstrained() Map {
	return Map{}
}

// Unsatisfiable returns the map that admits no row.
func Unsatisfiable() Map {
	return Map{none: true}
}

// NewMap builds a map from entries. A column listed twice is intersected.
func NewMap(entries ...Entry) Map {
	m := Map{}
	for _, e := range entries {
		m = m.With(e.Column, e.Domain)
	}
	return m
}

// With returns a copy of m with d conjoined onto column c.
func (m Map) With(c types.Column, d Domain) Map {
	if m.none {
		return m
	}
	if d.IsNone() {
		return Unsatisfiable()
	}
	idx := m.index(c.Name)
	if idx >= 0 {
		d = m.entries[idx].Domain.Intersect(d)
		if d.IsNone() {
			return Unsatisfiable()
		}
	}

	out := make([]Entry, 0, len(m.entries)+1)
	for i, e := range m.entries {
		if i == idx {
			if !d.IsAll() {
				out = append(out, Entry{Column: e.Column, Domain: d})
			}
			continue
		}
		out = append(out, e)
	}
	if idx < 0 && !d.IsAll() {
		out = append(out, Entry{Column: c, Domain: d})
	}
	return Map{entries: out}
}

func (m Map) index(name string) int {
	for i, e := range m.entries {
		if e.Column.Name == name {
			return i
		}
	}
	return -1
}

// IsNone reports whether the map is unsatisfiable.
func (m Map) IsNone() bool {
	return m.none
}

// IsAll reports whether the map constrains nothing.
func (m Map) IsAll() bool {
	return !m.none && len(m.entries) == 0
}

// Len returns the number of constrained columns.
func (m Map) Len() int {
	return len(m.entries)
}

// Entries returns the constrained columns in insertion order.
func (m Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Columns returns the constrained columns in insertion order.
func (m Map) Columns() []types.Column {
	out := make([]types.Column, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Column
	}
	return out
}

// Domain returns the domain of the named column. Absent columns are All, and
// every column of an unsatisfiable map is None.
func (m Map) Domain(name string) Domain {
	if m.none {
		return None()
	}
	if i := m.index(name); i >= 0 {
		return m.entries[i].Domain
	}
	return All()
}

// Has reports whether the named column is constrained.
func (m Map) Has(name string) bool {
	return m.index(name) >= 0
}

// Overlaps reports whether some row could satisfy both maps: every column present
// in both must have intersecting domains.
func (m Map) Overlaps(o Map) bool {
	if m.none || o.none {
		return false
	}
	for _, e := range m.entries {
		if j := o.index(e.Column.Name); j >= 0 && !e.Domain.Overlaps(o.entries[j].Domain) {
			return false
		}
	}
	return true
}

// Intersect conjoins two maps.
func (m Map) Intersect(o Map) Map {
	if m.none || o.none {
		return Unsatisfiable()
	}
	out := m
	for _, e := range o.entries {
		out = out.With(e.Column, e.Domain)
	}
	return out
}

// WithoutColumns projects the named columns out of m.
func (m Map) WithoutColumns(cols ...types.Column) Map {
	if m.none {
		return m
	}
	drop := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		drop[c.Name] = struct{}{}
	}
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if _, ok := drop[e.Column.Name]; !ok {
			out = append(out, e)
		}
	}
	return Map{entries: out}
}

// Equal reports whether both maps hold the same domains, ignoring column order.
func (m Map) Equal(o Map) bool {
	if m.none != o.none || len(m.entries) != len(o.entries) {
		return false
	}
	for _, e := range m.entries {
		j := o.index(e.Column.Name)
		if j < 0 || !e.Domain.Equal(o.entries[j].Domain) {
			return false
		}
	}
	return true
}

func (m Map) String() string {
	if m.none {
		return "NONE"
	}
	if len(m.entries) == 0 {
		return "ALL"
	}
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		parts[i] = e.Column.Name + " " + e.Domain.String()
	}
	return strings.Join(parts, " AND ")
}
