package partition

import (
	"fmt"
	"sort"
	"strings"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/predicate"
	"github.com/arkilian/ringsplit/pkg/types"
)

// ValidationErrors is a collection of table definition problems.
type ValidationErrors []string

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0]
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, msg := range e {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("  - ")
		sb.WriteString(msg)
	}
	return sb.String()
}

// ValidateColumns checks a table definition: names are non-empty and unique,
// at least one partition-key column exists, and key ordinals run 0..n-1.
func ValidateColumns(columns []types.Column) error {
	var errs ValidationErrors
	seen := make(map[string]bool, len(columns))
	var ordinals []int

	for _, col := range columns {
		if col.Name == "" {
			errs = append(errs, "column name cannot be empty")
			continue
		}
		if seen[col.Name] {
			errs = append(errs, fmt.Sprintf("duplicate column name: %s", col.Name))
		}
		seen[col.Name] = true

		switch col.Type {
		case types.TypeBoolean, types.TypeString, types.TypeDouble, types.TypeLong, types.TypeOther:
		default:
			errs = append(errs, fmt.Sprintf("invalid type %q for column %q", col.Type, col.Name))
		}
		if col.PartitionKey {
			ordinals = append(ordinals, col.Ordinal)
		}
	}

	if len(ordinals) == 0 {
		errs = append(errs, "table must have at least one partition key column")
	}
	sort.Ints(ordinals)
	for i, o := range ordinals {
		if o != i {
			errs = append(errs, fmt.Sprintf("partition key ordinals must be 0..%d, got %v", len(ordinals)-1, ordinals))
			break
		}
	}

	if len(errs) > 0 {
		return rserrors.NewValidationError(rserrors.CodeInvalidTable, errs.Error())
	}
	return nil
}

// ValidateKeyLiteral checks that v may be used as a partition-key literal for col:
// only boolean, string, double and long values are accepted.
func ValidateKeyLiteral(col types.Column, v any) error {
	if !predicate.IsSupported(v) {
		return rserrors.NewValidationError(rserrors.CodeUnsupportedKeyType,
			"only boolean, string, double and long partition keys are supported").
			WithDetails(map[string]interface{}{"column": col.Name, "value_type": fmt.Sprintf("%T", v)})
	}
	if !matchesType(col.Type, v) {
		return rserrors.NewValidationError(rserrors.CodeUnsupportedKeyType,
			fmt.Sprintf("value %v (%T) does not match type %s of column %q", v, v, col.Type, col.Name))
	}
	return nil
}

func matchesType(typ types.ValueType, v any) bool {
	switch v.(type) {
	case bool:
		return typ == types.TypeBoolean
	case string:
		return typ == types.TypeString
	case float64:
		return typ == types.TypeDouble
	case int64:
		return typ == types.TypeLong
	}
	return false
}

func validationf(format string, args ...any) error {
	return rserrors.NewValidationError(rserrors.CodeNilArgument, fmt.Sprintf(format, args...))
}
