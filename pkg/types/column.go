// Package types provides the core data types shared by the split planner and its callers.
package types

import "fmt"

// ValueType tags the literal type a column holds.
type ValueType string

const (
	// TypeBoolean holds true/false values
	TypeBoolean ValueType = "boolean"

	// TypeString holds text values (text, varchar, ascii)
	TypeString ValueType = "string"

	// TypeDouble holds 64-bit floating point values
	TypeDouble ValueType = "double"

	// TypeLong holds 64-bit signed integers (bigint, counter)
	TypeLong ValueType = "long"

	// TypeOther covers every type that cannot be used as a partition key literal
	TypeOther ValueType = "other"
)

// ParseValueType converts a type tag into a ValueType.
// Unknown tags map to TypeOther.
func ParseValueType(s string) ValueType {
	switch ValueType(s) {
	case TypeBoolean, TypeString, TypeDouble, TypeLong:
		return ValueType(s)
	default:
		return TypeOther
	}
}

// Column identifies a queryable attribute of a table.
type Column struct {
	// Name is the column name as stored in the data store
	Name string `json:"name" yaml:"name"`

	// Type is the value-type tag of the column
	Type ValueType `json:"type" yaml:"type"`

	// PartitionKey indicates whether this column is part of the partition key
	PartitionKey bool `json:"partition_key" yaml:"partition_key"`

	// Ordinal is the position within the partition key (only meaningful if PartitionKey)
	Ordinal int `json:"ordinal" yaml:"ordinal"`

	// Indexed indicates whether a secondary index exists on the column
	Indexed bool `json:"indexed" yaml:"indexed"`
}

func (c Column) String() string {
	if c.PartitionKey {
		return fmt.Sprintf("%s:%s(pk %d)", c.Name, c.Type, c.Ordinal)
	}
	return fmt.Sprintf("%s:%s", c.Name, c.Type)
}
