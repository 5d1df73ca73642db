package cql

import (
	"strconv"
	"strings"
)

// TokenExpression renders token(c1, c2, ...) over already-quoted column names.
func TokenExpression(columns []string) string {
	return "token(" + strings.Join(columns, ", ") + ")"
}

// TokenCondition restricts a scan to the ring range (start, end].
func TokenCondition(tokenExpr string, start, end int64) string {
	return tokenExpr + " > " + strconv.FormatInt(start, 10) +
		" AND " + tokenExpr + " <= " + strconv.FormatInt(end, 10)
}

// InCondition renders `column IN (v1, v2, ...)` from rendered literals.
func InCondition(column string, literals []string) string {
	return column + " IN (" + strings.Join(literals, ", ") + ")"
}

// EqualCondition renders `column = literal`.
func EqualCondition(column, literal string) string {
	return column + " = " + literal
}
