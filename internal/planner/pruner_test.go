package planner

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/metadata"
	"github.com/arkilian/ringsplit/internal/partition"
	"github.com/arkilian/ringsplit/internal/predicate"
	"github.com/arkilian/ringsplit/pkg/types"
)

func keyColumns(n int) []types.Column {
	cols := make([]types.Column, n)
	for i := range cols {
		cols[i] = types.Column{Name: string(rune('a' + i)), Type: types.TypeLong, PartitionKey: true, Ordinal: i}
	}
	return cols
}

func TestBuildPrefix(t *testing.T) {
	keys := []types.Column{colRegion, colBucket}

	tests := []struct {
		name string
		m    predicate.Map
		want int
	}{
		{"unconstrained", predicate.Unconstrained(), 0},
		{"first column", predicate.NewMap(predicate.Entry{Column: colRegion, Domain: predicate.SingleValue("eu")}), 1},
		{"full key", predicate.NewMap(
			predicate.Entry{Column: colBucket, Domain: predicate.SingleValue(int64(3))},
			predicate.Entry{Column: colRegion, Domain: predicate.SingleValue("eu")},
		), 2},
		{"gap stops the prefix", predicate.NewMap(predicate.Entry{Column: colBucket, Domain: predicate.SingleValue(int64(3))}), 0},
		{"multi-valued stops the prefix", predicate.NewMap(
			predicate.Entry{Column: colRegion, Domain: predicate.MultipleValues("eu", "us")},
			predicate.Entry{Column: colBucket, Domain: predicate.SingleValue(int64(3))},
		), 0},
		{"range stops the prefix", predicate.NewMap(
			predicate.Entry{Column: colRegion, Domain: predicate.SingleValue("eu")},
			predicate.Entry{Column: colBucket, Domain: predicate.OfRanges(predicate.GreaterThan(int64(3)))},
		), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, err := BuildPrefix(keys, tt.m)
			if err != nil {
				t.Fatalf("BuildPrefix: %v", err)
			}
			if len(prefix) != tt.want {
				t.Errorf("prefix %v, want length %d", prefix, tt.want)
			}
		})
	}
}

func TestBuildPrefix_UnsupportedLiteral(t *testing.T) {
	for _, v := range []any{predicate.Opaque("blob"), []byte("x"), int64(7)} {
		m := predicate.NewMap(predicate.Entry{Column: colRegion, Domain: predicate.SingleValue(v)})
		_, err := BuildPrefix([]types.Column{colRegion, colBucket}, m)
		if rserrors.GetCode(err) != rserrors.CodeUnsupportedKeyType {
			t.Errorf("value %#v: expected UNSUPPORTED_KEY_TYPE, got %v", v, err)
		}
	}
}

func TestPruner_UnsupportedLiteralAbortsPruning(t *testing.T) {
	md := &fakeMetadata{table: singleKeyTable()}
	m := predicate.NewMap(predicate.Entry{Column: colA, Domain: predicate.SingleValue("five")})

	_, err := NewPruner(md).Prune(context.Background(), singleKeyTable(), m)
	if !rserrors.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if len(md.prefixes) != 0 {
		t.Error("the provider must not be consulted after a validation failure")
	}
}

func TestPruner_Unsatisfiable(t *testing.T) {
	md := &fakeMetadata{table: singleKeyTable()}
	result, err := NewPruner(md).Prune(context.Background(), singleKeyTable(), predicate.Unsatisfiable())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if !result.IsEmpty() || !result.Residual.IsNone() {
		t.Errorf("expected no partitions and an unsatisfiable residual, got %v / %v", result.Partitions, result.Residual)
	}
	if len(md.prefixes) != 0 {
		t.Error("an unsatisfiable predicate must not reach the provider")
	}
}

func TestPruner_ResidualExcludesKeyColumns(t *testing.T) {
	table := compositeKeyTable()
	keys := table.PartitionKeyColumns()
	md := &fakeMetadata{
		table: table,
		lookup: func(prefix []any) []*partition.Partition {
			return []*partition.Partition{
				mustPartition(keys, "eu", int64(1)),
				mustPartition(keys, "eu", int64(2)),
				mustPartition(keys, "eu", int64(9)),
			}
		},
	}
	m := predicate.NewMap(
		predicate.Entry{Column: colRegion, Domain: predicate.SingleValue("eu")},
		predicate.Entry{Column: colBucket, Domain: predicate.OfRanges(predicate.LessThan(int64(5)))},
		predicate.Entry{Column: colTotal, Domain: predicate.OfRanges(predicate.GreaterThan(10.0))},
	)

	result, err := NewPruner(md).Prune(context.Background(), table, m)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.Kind != KindPruned {
		t.Errorf("kind = %s", result.Kind)
	}
	// bucket < 5 filters out bucket 9
	if len(result.Partitions) != 2 {
		t.Fatalf("expected 2 partitions, got %v", result.PartitionIDs())
	}
	for _, k := range keys {
		if result.Residual.Has(k.Name) {
			t.Errorf("residual %v still holds key column %s", result.Residual, k.Name)
		}
	}
	if !result.Residual.Has("total") {
		t.Errorf("residual lost non-key column: %v", result.Residual)
	}
	if got := md.lastPrefix(); len(got) != 1 || got[0] != "eu" {
		t.Errorf("prefix = %v", got)
	}
}

func TestPruner_NoMatchingPartition(t *testing.T) {
	table := singleKeyTable()
	md := &fakeMetadata{
		table:  table,
		lookup: func([]any) []*partition.Partition { return nil },
	}
	m := predicate.NewMap(predicate.Entry{Column: colA, Domain: predicate.SingleValue(int64(5))})

	result, err := NewPruner(md).Prune(context.Background(), table, m)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if !result.IsEmpty() || result.Kind != KindPruned {
		t.Errorf("expected an empty pruned result, got %v", result.PartitionIDs())
	}
}

func TestPruner_UnpartitionedPassthrough(t *testing.T) {
	table := singleKeyTable()
	md := &fakeMetadata{table: table}
	m := predicate.NewMap(
		predicate.Entry{Column: colA, Domain: predicate.MultipleValues(int64(1), int64(2))},
		predicate.Entry{Column: colTotal, Domain: predicate.SingleValue(3.5)},
		predicate.Entry{Column: colStatus, Domain: predicate.MultipleValues("open", "closed")},
	)

	result, err := NewPruner(md).Prune(context.Background(), table, m)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.Kind != KindUnpartitioned {
		t.Fatalf("kind = %s", result.Kind)
	}
	if len(result.Partitions) != 1 || !result.Partitions[0].IsUnpartitioned() {
		t.Errorf("expected the sentinel, got %v", result.PartitionIDs())
	}
	if !result.Residual.Equal(m) {
		t.Errorf("residual %v, want %v", result.Residual, m)
	}
}

func TestPruner_IndexPushdown(t *testing.T) {
	table := singleKeyTable()
	md := &fakeMetadata{table: table}
	m := predicate.NewMap(
		predicate.Entry{Column: colTotal, Domain: predicate.OfRanges(predicate.GreaterThan(10.0))},
		predicate.Entry{Column: colOwner, Domain: predicate.SingleValue("o'neil")},
		predicate.Entry{Column: colStatus, Domain: predicate.SingleValue("open")},
	)

	result, err := NewPruner(md).Prune(context.Background(), table, m)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.Kind != KindIndexPushedDown {
		t.Fatalf("kind = %s", result.Kind)
	}
	if len(result.Partitions) != 1 {
		t.Fatalf("expected one partition, got %v", result.PartitionIDs())
	}
	p := result.Partitions[0]
	if !p.IsIndexPushedDown() || p.IsUnpartitioned() {
		t.Error("expected an index-pushdown partition")
	}
	// owner comes first in the predicate
	if p.PartitionID() != "owner = 'o''neil'" {
		t.Errorf("partition id = %s", p.PartitionID())
	}
	if result.Residual.Has("owner") {
		t.Error("residual must not hold the pushed column")
	}
	if !result.Residual.Has("status") || !result.Residual.Has("total") {
		t.Errorf("residual %v lost other columns", result.Residual)
	}
	if !p.Domains().Equal(result.Residual) {
		t.Errorf("partition domains %v, residual %v", p.Domains(), result.Residual)
	}
}

func TestPruner_IndexFlagFromTableMetadata(t *testing.T) {
	table := singleKeyTable()
	md := &fakeMetadata{table: table}
	// The predicate's copy of the column lacks the index flag
	plain := types.Column{Name: "status", Type: types.TypeString}
	m := predicate.NewMap(predicate.Entry{Column: plain, Domain: predicate.SingleValue("open")})

	result, err := NewPruner(md).Prune(context.Background(), table, m)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.Kind != KindIndexPushedDown || result.Partitions[0].PartitionID() != "status = 'open'" {
		t.Errorf("got %s %v", result.Kind, result.PartitionIDs())
	}
}

func TestPruner_IndexPushdownUnorderedType(t *testing.T) {
	table := singleKeyTable()
	md := &fakeMetadata{table: table}
	userID := types.Column{Name: "user_id", Type: types.TypeOther, Indexed: true}
	m := predicate.NewMap(
		predicate.Entry{Column: userID, Domain: predicate.SingleValue(predicate.Opaque("123e4567-e89b-12d3-a456-426614174000"))},
	)

	result, err := NewPruner(md).Prune(context.Background(), table, m)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.Kind != KindIndexPushedDown {
		t.Fatalf("kind = %s, partitions %v", result.Kind, result.PartitionIDs())
	}
	if got := result.Partitions[0].PartitionID(); got != "user_id = 123e4567-e89b-12d3-a456-426614174000" {
		t.Errorf("partition id = %s", got)
	}
	if result.Residual.Len() != 0 {
		t.Errorf("residual should be empty, got %v", result.Residual)
	}
}

func TestPruner_ProviderErrorUnchanged(t *testing.T) {
	boom := rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "down", nil)
	md := &fakeMetadata{table: singleKeyTable(), partsErr: boom}
	_, err := NewPruner(md).Prune(context.Background(), singleKeyTable(), predicate.Unconstrained())
	if err != boom {
		t.Errorf("expected the provider error unchanged, got %v", err)
	}
}

func TestProperty_PrefixLength(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("prefix covers exactly the leading single-value key columns", prop.ForAll(
		func(n, k int, multi bool) bool {
			if k > n {
				k = n
			}
			keys := keyColumns(n)
			m := predicate.Unconstrained()
			for i := 0; i < k; i++ {
				m = m.With(keys[i], predicate.SingleValue(int64(i)))
			}
			if k < n && multi {
				m = m.With(keys[k], predicate.MultipleValues(int64(1), int64(2)))
			}
			// Constraints after the break point never extend the prefix
			if k+1 < n {
				m = m.With(keys[k+1], predicate.SingleValue(int64(9)))
			}

			md := &fakeMetadata{table: &metadata.Table{Columns: keys}}
			if _, err := NewPruner(md).Prune(context.Background(), md.table, m); err != nil {
				return false
			}
			return len(md.lastPrefix()) == k
		},
		gen.IntRange(1, 4),
		gen.IntRange(0, 4),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProperty_ResidualExclusion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	table := compositeKeyTable()
	keys := table.PartitionKeyColumns()
	all := []*partition.Partition{
		mustPartition(keys, "eu", int64(1)),
		mustPartition(keys, "eu", int64(2)),
		mustPartition(keys, "us", int64(1)),
	}

	properties.Property("no key column of a pruned result stays in the residual", prop.ForAll(
		func(bucketLow int64, withRegion bool, total float64) bool {
			m := predicate.NewMap(
				predicate.Entry{Column: colBucket, Domain: predicate.OfRanges(predicate.GreaterThanOrEqual(bucketLow))},
				predicate.Entry{Column: colTotal, Domain: predicate.OfRanges(predicate.LessThan(total))},
			)
			if withRegion {
				m = m.With(colRegion, predicate.SingleValue("eu"))
			}
			md := &fakeMetadata{table: table, lookup: func([]any) []*partition.Partition { return all }}
			result, err := NewPruner(md).Prune(context.Background(), table, m)
			if err != nil || result.Kind != KindPruned {
				return false
			}
			for _, k := range keys {
				if result.Residual.Has(k.Name) {
					return false
				}
			}
			return result.Residual.Has("total")
		},
		gen.Int64Range(0, 3),
		gen.Bool(),
		gen.Float64Range(-100, 100),
	))

	properties.TestingRun(t)
}
