package metadata

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/arkilian/ringsplit/pkg/types"
)

// Fixture is a YAML description of tables and their known partition keys.
//
//	tables:
//	  - schema: shop
//	    table: orders
//	    columns:
//	      - {name: customer_id, type: long, partition_key: true}
//	      - {name: status, type: string, indexed: true}
//	    partitions:
//	      - [17]
//	      - [42]
type Fixture struct {
	Tables []FixtureTable `yaml:"tables"`
}

// FixtureTable is one table of a Fixture.
type FixtureTable struct {
	Schema     string         `yaml:"schema"`
	Table      string         `yaml:"table"`
	Columns    []types.Column `yaml:"columns"`
	Partitions [][]any        `yaml:"partitions"`
}

// LoadFixture registers every table and partition key of a YAML fixture.
func LoadFixture(ctx context.Context, catalog *SQLiteCatalog, r io.Reader) error {
	var f Fixture
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return fmt.Errorf("metadata: failed to parse fixture: %w", err)
	}

	for _, ft := range f.Tables {
		if err := catalog.RegisterTable(ctx, ft.Schema, ft.Table, ft.Columns); err != nil {
			return fmt.Errorf("metadata: fixture table %s.%s: %w", ft.Schema, ft.Table, err)
		}
		t := &Table{Columns: ft.Columns}
		keys := t.PartitionKeyColumns()
		for i, raw := range ft.Partitions {
			values, err := coerceValues(keys, raw)
			if err != nil {
				return fmt.Errorf("metadata: fixture %s.%s partition %d: %w", ft.Schema, ft.Table, i, err)
			}
			if _, err := catalog.RegisterPartition(ctx, ft.Schema, ft.Table, values); err != nil {
				return fmt.Errorf("metadata: fixture %s.%s partition %d: %w", ft.Schema, ft.Table, i, err)
			}
		}
	}
	return nil
}

// coerceValues converts YAML scalars to the key columns' literal types.
func coerceValues(keys []types.Column, raw []any) ([]any, error) {
	if len(raw) != len(keys) {
		return nil, fmt.Errorf("%d values for %d key columns", len(raw), len(keys))
	}
	out := make([]any, len(raw))
	for i, v := range raw {
		switch keys[i].Type {
		case types.TypeLong:
			n, ok := v.(int)
			if !ok {
				return nil, fmt.Errorf("column %q wants a long, got %T", keys[i].Name, v)
			}
			out[i] = int64(n)
		case types.TypeDouble:
			switch x := v.(type) {
			case float64:
				out[i] = x
			case int:
				out[i] = float64(x)
			default:
				return nil, fmt.Errorf("column %q wants a double, got %T", keys[i].Name, v)
			}
		case types.TypeBoolean:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("column %q wants a boolean, got %T", keys[i].Name, v)
			}
			out[i] = b
		case types.TypeString:
			out[i] = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("column %q has unsupported key type %s", keys[i].Name, keys[i].Type)
		}
	}
	return out, nil
}
