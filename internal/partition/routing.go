package partition

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/arkilian/ringsplit/pkg/types"
)

// EncodeKey serializes partition-key values into the byte layout the store hashes
// onto the ring. A single column is the raw serialized value; a composite key is,
// per component, a 2-byte big-endian length, the value bytes and a 0x00 byte.
func EncodeKey(columns []types.Column, values []any) ([]byte, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("routing: %d key columns but %d values", len(columns), len(values))
	}
	if len(values) == 1 {
		return serialize(values[0])
	}

	var out []byte
	for i, v := range values {
		b, err := serialize(v)
		if err != nil {
			return nil, err
		}
		if len(b) > math.MaxUint16 {
			return nil, fmt.Errorf("routing: component %q is %d bytes, exceeds composite limit", columns[i].Name, len(b))
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(b)))
		out = append(out, b...)
		out = append(out, 0)
	}
	return out, nil
}

// serialize writes one value in the store's native encoding.
func serialize(v any) ([]byte, error) {
	switch x := v.(type) {
	case int64:
		return binary.BigEndian.AppendUint64(nil, uint64(x)), nil
	case float64:
		return binary.BigEndian.AppendUint64(nil, math.Float64bits(x)), nil
	case bool:
		if x {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("routing: cannot serialize %T", v)
	}
}

// Token returns the Murmur3Partitioner token of an encoded key: the first half
// of the 128-bit murmur3 hash as a signed integer. MinInt64 is reserved as the
// ring minimum and maps to MaxInt64.
func Token(key []byte) int64 {
	h1, _ := murmur3.Sum128(key)
	t := int64(h1)
	if t == math.MinInt64 {
		return math.MaxInt64
	}
	return t
}
