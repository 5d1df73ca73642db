// Package cql renders identifiers, literals and condition text in the column
// store's query language.
package cql

import (
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/pkg/types"
)

var unquotedName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reserved words that cannot appear as bare identifiers.
var reserved = map[string]struct{}{
	"add": {}, "allow": {}, "alter": {}, "and": {}, "apply": {}, "asc": {},
	"authorize": {}, "batch": {}, "begin": {}, "by": {}, "columnfamily": {},
	"create": {}, "delete": {}, "desc": {}, "describe": {}, "drop": {},
	"entries": {}, "execute": {}, "from": {}, "full": {}, "grant": {}, "if": {},
	"in": {}, "index": {}, "infinity": {}, "insert": {}, "into": {},
	"keyspace": {}, "limit": {}, "modify": {}, "nan": {}, "norecursive": {},
	"not": {}, "null": {}, "of": {}, "on": {}, "or": {}, "order": {},
	"primary": {}, "rename": {}, "revoke": {}, "schema": {}, "select": {},
	"set": {}, "table": {}, "to": {}, "token": {}, "truncate": {},
	"unlogged": {}, "update": {}, "use": {}, "using": {}, "where": {}, "with": {},
}

// ColumnName renders a column identifier, double-quoting it unless it is a
// lower-case non-reserved name.
func ColumnName(name string) string {
	if unquotedName.MatchString(name) {
		if _, ok := reserved[name]; !ok {
			return name
		}
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Literal renders a partition-key literal for embedding into condition text.
// Only boolean, string, double and long values are accepted, and the Go type
// must match the column type tag.
func Literal(value any, typ types.ValueType) (string, error) {
	switch typ {
	case types.TypeString:
		if s, ok := value.(string); ok {
			return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
		}
	case types.TypeLong:
		if n, ok := value.(int64); ok {
			return strconv.FormatInt(n, 10), nil
		}
	case types.TypeDouble:
		if f, ok := value.(float64); ok {
			switch {
			case math.IsNaN(f):
				return "NaN", nil
			case math.IsInf(f, 1):
				return "Infinity", nil
			case math.IsInf(f, -1):
				return "-Infinity", nil
			}
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		}
	case types.TypeBoolean:
		if b, ok := value.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	}
	return "", rserrors.NewValidationError(rserrors.CodeUnsupportedKeyType,
		fmt.Sprintf("cannot render %T as a %s literal; only boolean, string, double and long keys are supported", value, typ))
}

// IndexLiteral renders the value of a secondary-index condition. String
// columns are quoted; values of the supported key types render as Literal
// does; anything else (uuid, timestamp, int, inet ...) is emitted as written,
// with blobs as 0x-prefixed hex.
func IndexLiteral(value any, typ types.ValueType) (string, error) {
	if value == nil {
		return "", rserrors.NewValidationError(rserrors.CodeInvalidPredicate, "cannot render a null index value")
	}
	if typ == types.TypeString {
		return "'" + strings.ReplaceAll(fmt.Sprint(value), "'", "''") + "'", nil
	}
	if lit, err := Literal(value, typ); err == nil {
		return lit, nil
	}
	switch v := value.(type) {
	case []byte:
		return "0x" + hex.EncodeToString(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return fmt.Sprint(value), nil
}
