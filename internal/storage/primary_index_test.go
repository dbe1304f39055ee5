package storage

import (
	"path/filepath"
	"testing"

	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

func testPrimaryIndex() *PrimaryIndex {
	return &PrimaryIndex{
		KeyColumns: []string{"id", "name"},
		KeyTypes:   []types.DataType{types.TypeUInt64, types.TypeString},
		Values: [][]types.Value{
			{uint64(0), "a"},
			{uint64(4), "e"},
			{uint64(8), "i"},
		},
	}
}

func TestSelectMarkRanges(t *testing.T) {
	idx := testPrimaryIndex()
	tests := []struct {
		name   string
		key    string
		lo, hi types.Value
		want   string
	}{
		{"unbounded", "id", nil, nil, "[(0, 3)]"},
		{"middle", "id", uint64(5), uint64(9), "[(1, 3)]"},
		{"upper bound at boundary", "id", nil, uint64(4), "[(0, 1)]"},
		{"lower bound at boundary", "id", uint64(4), nil, "[(0, 3)]"},
		{"above all", "id", uint64(100), nil, "[(2, 3)]"},
		{"below all", "id", nil, uint64(0), "[]"},
		{"non leading key", "name", "x", "z", "[(0, 3)]"},
		{"unknown column", "other", uint64(1), uint64(2), "[(0, 3)]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.SelectMarkRanges(tt.key, tt.lo, tt.hi)
			if got.String() != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPrimaryIndexRoundTrip(t *testing.T) {
	idx := testPrimaryIndex()
	path := filepath.Join(t.TempDir(), "primary.idx")
	if err := WritePrimaryIndex(path, idx); err != nil {
		t.Fatal(err)
	}
	got, err := ReadPrimaryIndex(path, idx.KeyColumns, idx.KeyTypes, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.NumMarks() != 3 || got.Values[2][1] != "i" || got.Values[1][0] != uint64(4) {
		t.Fatalf("unexpected index %+v", got.Values)
	}
	if _, err := ReadPrimaryIndex(path, idx.KeyColumns, idx.KeyTypes, 2); err == nil {
		t.Fatal("expected error for trailing entries")
	}
	if _, err := ReadPrimaryIndex(path, idx.KeyColumns, idx.KeyTypes, 4); err == nil {
		t.Fatal("expected error for missing entries")
	}
}

func TestPrimaryIndexFollowsGranularity(t *testing.T) {
	settings := testSettings()
	settings.IndexGranularity = 10
	schema := testSchema(settings)
	part := writeTestPart(t, schema, WriterOptions{Adaptive: true}, idBlock(0, 4), idBlock(4, 3), idBlock(7, 15))

	idx, err := NewPartReader(part, schema).LoadPrimaryIndex()
	if err != nil {
		t.Fatal(err)
	}
	// Marks start at rows 0 and 10.
	if idx.NumMarks() != 2 || idx.Values[0][0] != uint64(0) || idx.Values[1][0] != uint64(10) {
		t.Fatalf("unexpected index %+v", idx.Values)
	}
	ranges := idx.SelectMarkRanges("id", uint64(15), nil)
	if ranges.String() != "[(1, 2)]" {
		t.Fatalf("ranges %s", ranges)
	}
	if rows := granularity.RowsCountInRanges(part.IndexGranularity(), ranges); rows != 12 {
		t.Fatalf("estimated %d rows, want 12", rows)
	}
}
