package partition

import (
	"testing"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/predicate"
	"github.com/arkilian/ringsplit/pkg/types"
)

func TestValidateColumns(t *testing.T) {
	tests := []struct {
		name      string
		columns   []types.Column
		wantError bool
	}{
		{
			name:    "valid composite key",
			columns: []types.Column{keyA, keyB, {Name: "v", Type: types.TypeOther}},
		},
		{
			name:      "no partition key",
			columns:   []types.Column{{Name: "v", Type: types.TypeString}},
			wantError: true,
		},
		{
			name:      "duplicate name",
			columns:   []types.Column{keyA, {Name: "a", Type: types.TypeString}},
			wantError: true,
		},
		{
			name:      "empty name",
			columns:   []types.Column{keyA, {Type: types.TypeString}},
			wantError: true,
		},
		{
			name:      "ordinal gap",
			columns:   []types.Column{keyA, {Name: "b", Type: types.TypeString, PartitionKey: true, Ordinal: 2}},
			wantError: true,
		},
		{
			name:      "unknown type",
			columns:   []types.Column{{Name: "a", Type: "uuid", PartitionKey: true}},
			wantError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateColumns(tt.columns)
			if (err != nil) != tt.wantError {
				t.Fatalf("ValidateColumns() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && rserrors.GetCode(err) != rserrors.CodeInvalidTable {
				t.Errorf("code = %q, want INVALID_TABLE", rserrors.GetCode(err))
			}
		})
	}
}

func TestValidateKeyLiteral(t *testing.T) {
	tests := []struct {
		col   types.Column
		value any
		ok    bool
	}{
		{keyA, int64(1), true},
		{keyB, "x", true},
		{types.Column{Name: "d", Type: types.TypeDouble}, 2.5, true},
		{types.Column{Name: "f", Type: types.TypeBoolean}, false, true},
		{keyA, "1", false},
		{keyA, int(1), false},
		{types.Column{Name: "u", Type: types.TypeOther}, predicate.Opaque("x"), false},
	}
	for _, tt := range tests {
		err := ValidateKeyLiteral(tt.col, tt.value)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateKeyLiteral(%s, %#v) = %v, want ok=%v", tt.col, tt.value, err, tt.ok)
		}
		if err != nil && rserrors.GetCode(err) != rserrors.CodeUnsupportedKeyType {
			t.Errorf("code = %q, want UNSUPPORTED_KEY_TYPE", rserrors.GetCode(err))
		}
	}
}
