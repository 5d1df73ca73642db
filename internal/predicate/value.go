// Package predicate provides the column-domain algebra used for partition pruning.
//
// A Domain constrains one column to all values, no value, or a normalized set of
// disjoint ranges. A Map conjoins domains across columns. Only bool, string,
// float64 and int64 values have a known order; other values are accepted as
// opaque constants and every ordering question about them is answered
// conservatively.
package predicate

import (
	"fmt"
	"reflect"
	"strconv"
)

// Value is a predicate constant.
type Value = any

// Compare orders two values of the same supported type.
// ok is false when the values are not mutually comparable.
func Compare(a, b Value) (c int, ok bool) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		if !ok {
			return 0, false
		}
		return compareOrdered(x, y), true
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return compareOrdered(x, y), true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return compareOrdered(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func compareOrdered[T int64 | float64 | string](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// IsSupported reports whether v is one of the ordered literal types.
func IsSupported(v Value) bool {
	switch v.(type) {
	case bool, string, float64, int64:
		return true
	default:
		return false
	}
}

// equalValues is Compare()==0 for supported values and deep equality otherwise.
func equalValues(a, b Value) bool {
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func formatValue(v Value) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", x)
	}
}
