package partition

import (
	"bytes"
	"math"
	"testing"

	"github.com/spaolacci/murmur3"

	"github.com/arkilian/ringsplit/pkg/types"
)

var (
	keyA = types.Column{Name: "a", Type: types.TypeLong, PartitionKey: true}
	keyB = types.Column{Name: "b", Type: types.TypeString, PartitionKey: true, Ordinal: 1}
)

func TestEncodeKey_SingleColumn(t *testing.T) {
	tests := []struct {
		name  string
		col   types.Column
		value any
		want  []byte
	}{
		{"long", keyA, int64(5), []byte{0, 0, 0, 0, 0, 0, 0, 5}},
		{"negative long", keyA, int64(-1), []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{"double", types.Column{Name: "d", Type: types.TypeDouble}, 1.0, []byte{0x3f, 0xf0, 0, 0, 0, 0, 0, 0}},
		{"boolean", types.Column{Name: "f", Type: types.TypeBoolean}, true, []byte{1}},
		{"string", keyB, "hé", []byte("hé")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeKey([]types.Column{tt.col}, []any{tt.value})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeKey = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestEncodeKey_Composite(t *testing.T) {
	got, err := EncodeKey([]types.Column{keyA, keyB}, []any{int64(7), "xy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{
		0, 8, 0, 0, 0, 0, 0, 0, 0, 7, 0,
		0, 2, 'x', 'y', 0,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeKey = %x, want %x", got, want)
	}
}

func TestEncodeKey_Errors(t *testing.T) {
	if _, err := EncodeKey([]types.Column{keyA}, nil); err == nil {
		t.Error("expected error for missing value")
	}
	if _, err := EncodeKey([]types.Column{keyA}, []any{int32(1)}); err == nil {
		t.Error("expected error for unsupported value")
	}
}

func TestToken(t *testing.T) {
	key := []byte("partition-key")
	h1, _ := murmur3.Sum128(key)
	if Token(key) != int64(h1) {
		t.Errorf("Token = %d, want first murmur3 half %d", Token(key), int64(h1))
	}
	if Token(key) != Token([]byte("partition-key")) {
		t.Error("Token must be deterministic")
	}
	if Token(nil) == math.MinInt64 {
		t.Error("MinInt64 is reserved")
	}
}

func TestToken_Spread(t *testing.T) {
	var neg, pos int
	for i := int64(0); i < 1000; i++ {
		k, _ := EncodeKey([]types.Column{keyA}, []any{i})
		if Token(k) < 0 {
			neg++
		} else {
			pos++
		}
	}
	if neg < 400 || pos < 400 {
		t.Errorf("tokens poorly spread: %d negative, %d positive", neg, pos)
	}
}
