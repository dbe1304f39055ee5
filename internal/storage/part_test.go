package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/harshithgowdakt/granulestore/internal/column"
	"github.com/harshithgowdakt/granulestore/internal/compression"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

func testSettings() granularity.Settings {
	s := granularity.DefaultSettings()
	s.IndexGranularity = 4
	s.IndexGranularityBytes = 1 << 20
	s.MinBytesForWidePart = 0
	return s
}

func testSchema(settings granularity.Settings) *TableSchema {
	return &TableSchema{
		Columns: []ColumnDef{
			{Name: "id", DataType: types.TypeUInt64},
			{Name: "name", DataType: types.TypeString},
		},
		OrderBy:  []string{"id"},
		Settings: settings,
	}
}

// idBlock returns rows with ids [from, from+n).
func idBlock(from, n int) *column.Block {
	ids := make([]uint64, n)
	names := make([]string, n)
	for i := range n {
		ids[i] = uint64(from + i)
		names[i] = fmt.Sprintf("name-%d", from+i)
	}
	return column.NewBlock(
		[]string{"id", "name"},
		[]column.Column{column.NewUInt64Column(ids...), column.NewStringColumn(names...)},
	)
}

func writeTestPart(t *testing.T, schema *TableSchema, opts WriterOptions, blocks ...*column.Block) *Part {
	t.Helper()
	writer := NewPartWriter(schema, t.TempDir(), opts)
	part, err := writer.WritePart(PartInfo{PartitionID: "all", MinBlock: 1, MaxBlock: 1}, blocks...)
	if err != nil {
		t.Fatal(err)
	}
	return part
}

func readIDs(t *testing.T, blk *column.Block) []uint64 {
	t.Helper()
	col, ok := blk.GetColumn("id")
	if !ok {
		t.Fatal("id column missing")
	}
	return col.(*column.FixedColumn[uint64]).Data
}

func idRange(from, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(from + i)
	}
	return out
}

func assertFilesExist(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			t.Errorf("expected %s in part: %v", n, err)
		}
	}
}

// reload reads the part back from disk the way the database does on startup.
func reload(t *testing.T, part *Part, schema *TableSchema) *Part {
	t.Helper()
	loaded, err := LoadPart(part.BasePath, part.Info, schema)
	if err != nil {
		t.Fatal(err)
	}
	return loaded
}

func TestWritePartWideAdaptive(t *testing.T) {
	schema := testSchema(testSettings())
	part := writeTestPart(t, schema, WriterOptions{Adaptive: true}, idBlock(0, 10))

	if part.Type != granularity.PartWide {
		t.Fatalf("expected Wide part, got %s", part.Type)
	}
	assertFilesExist(t, part.BasePath,
		"id.bin", "id.mrk2", "name.bin", "name.mrk2",
		"primary.idx", "count.txt", "columns.txt", "uuid.txt", "granularity.txt")

	// Marks [4, 4, 2] plus the final mark collapse into a constant table.
	index := part.IndexGranularity()
	c, ok := index.(*granularity.Constant)
	if !ok {
		t.Fatalf("expected optimized constant granularity, got %s", index.Describe())
	}
	if c.Granularity() != 4 || c.LastMarkGranularity() != 2 || c.MarksCount() != 4 || !c.HasFinalMark() {
		t.Fatalf("unexpected granularity %s", c.Describe())
	}

	blk, err := NewPartReader(part, schema).ReadAll([]string{"id", "name"})
	if err != nil {
		t.Fatal(err)
	}
	if got := readIDs(t, blk); !reflect.DeepEqual(got, idRange(0, 10)) {
		t.Fatalf("read ids %v", got)
	}

	loaded := reload(t, part, schema)
	if loaded.UUID != part.UUID {
		t.Fatalf("uuid changed on reload: %s vs %s", loaded.UUID, part.UUID)
	}
	if got, want := loaded.IndexGranularity().Describe(), index.Describe(); got != want {
		t.Fatalf("reloaded granularity %s, want %s", got, want)
	}
}

func TestWritePartCompact(t *testing.T) {
	settings := testSettings()
	settings.MinRowsForWidePart = 100
	schema := testSchema(settings)
	part := writeTestPart(t, schema, WriterOptions{Adaptive: true}, idBlock(0, 9))

	if part.Type != granularity.PartCompact {
		t.Fatalf("expected Compact part, got %s", part.Type)
	}
	assertFilesExist(t, part.BasePath, "data.bin", "data.mrk3")

	loaded := reload(t, part, schema)
	if loaded.Type != granularity.PartCompact {
		t.Fatalf("reloaded as %s", loaded.Type)
	}
	blk, err := NewPartReader(loaded, schema).ReadAll([]string{"name", "id"})
	if err != nil {
		t.Fatal(err)
	}
	if got := readIDs(t, blk); !reflect.DeepEqual(got, idRange(0, 9)) {
		t.Fatalf("read ids %v", got)
	}
	names, _ := blk.GetColumn("name")
	if names.Value(8) != "name-8" {
		t.Fatalf("unexpected name %v", names.Value(8))
	}
}

func TestWritePartNonAdaptive(t *testing.T) {
	settings := testSettings()
	settings.IndexGranularityBytes = 0
	schema := testSchema(settings)
	part := writeTestPart(t, schema, WriterOptions{Adaptive: false}, idBlock(0, 10))

	assertFilesExist(t, part.BasePath, "id.mrk", "name.mrk")
	if part.GranularityInfo.MarkType.Adaptive {
		t.Fatal("expected non-adaptive marks")
	}

	loaded := reload(t, part, schema)
	c, ok := loaded.IndexGranularity().(*granularity.Constant)
	if !ok {
		t.Fatalf("expected constant granularity, got %s", loaded.IndexGranularity().Describe())
	}
	if c.TotalRows() != 10 || c.MarksCount() != 4 || c.LastMarkGranularity() != 2 {
		t.Fatalf("unexpected restored granularity %s", c.Describe())
	}

	blk, err := NewPartReader(loaded, schema).ReadAll([]string{"id"})
	if err != nil {
		t.Fatal(err)
	}
	if got := readIDs(t, blk); !reflect.DeepEqual(got, idRange(0, 10)) {
		t.Fatalf("read ids %v", got)
	}
}

func TestWritePartCompactNeedsAdaptiveMarks(t *testing.T) {
	schema := testSchema(testSettings())
	writer := NewPartWriter(schema, t.TempDir(), WriterOptions{ForcePartType: true, PartType: granularity.PartCompact})
	if _, err := writer.WritePart(PartInfo{PartitionID: "all"}, idBlock(0, 3)); err == nil {
		t.Fatal("expected error writing compact part with non-adaptive marks")
	}
}

func TestWritePartGranulesSpanBlocks(t *testing.T) {
	settings := testSettings()
	settings.IndexGranularity = 10
	schema := testSchema(settings)
	part := writeTestPart(t, schema, WriterOptions{Adaptive: true},
		idBlock(0, 4), idBlock(4, 3), idBlock(7, 15))

	a, ok := part.IndexGranularity().(*granularity.Adaptive)
	if !ok {
		t.Fatalf("expected adaptive granularity, got %s", part.IndexGranularity().Describe())
	}
	if got := a.MarksRows(); !reflect.DeepEqual(got, []int{10, 12, 0}) {
		t.Fatalf("marks rows %v", got)
	}

	reader := NewPartReader(part, schema)
	blk, err := reader.ReadRows([]string{"id"}, 1, 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := readIDs(t, blk); !reflect.DeepEqual(got, idRange(12, 5)) {
		t.Fatalf("ReadRows ids %v", got)
	}

	// Requests past the end are capped.
	blk, err = reader.ReadRows([]string{"id"}, 1, 8, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got := readIDs(t, blk); !reflect.DeepEqual(got, idRange(18, 4)) {
		t.Fatalf("capped ReadRows ids %v", got)
	}

	blk, err = reader.ReadRows([]string{"id"}, 1, 20, 5)
	if err != nil {
		t.Fatal(err)
	}
	if blk.NumRows() != 0 {
		t.Fatalf("expected no rows past the end, got %d", blk.NumRows())
	}

	if _, err := reader.ReadRows([]string{"id"}, 7, 0, 1); err == nil {
		t.Fatal("expected error for mark past the end")
	}
}

func TestWritePartBlocksAreGranules(t *testing.T) {
	schema := testSchema(testSettings())
	part := writeTestPart(t, schema, WriterOptions{Adaptive: true, BlocksAreGranules: true},
		idBlock(0, 3), idBlock(3, 5), idBlock(8, 2))

	a, ok := part.IndexGranularity().(*granularity.Adaptive)
	if !ok {
		t.Fatalf("expected adaptive granularity, got %s", part.IndexGranularity().Describe())
	}
	// Block boundaries survive even above index_granularity.
	if got := a.MarksRows(); !reflect.DeepEqual(got, []int{3, 5, 2, 0}) {
		t.Fatalf("marks rows %v", got)
	}

	blk, err := NewPartReader(part, schema).ReadRanges([]string{"id"}, granularity.MarkRanges{{Begin: 1, End: 2}, {Begin: 3, End: 4}})
	if err != nil {
		t.Fatal(err)
	}
	if got := readIDs(t, blk); !reflect.DeepEqual(got, idRange(3, 5)) {
		t.Fatalf("ReadRanges ids %v", got)
	}
}

func TestReadRangesRejectsInvalid(t *testing.T) {
	schema := testSchema(testSettings())
	part := writeTestPart(t, schema, WriterOptions{Adaptive: true}, idBlock(0, 10))
	reader := NewPartReader(part, schema)

	for _, ranges := range []granularity.MarkRanges{
		{{Begin: 0, End: 9}},
		{{Begin: 2, End: 3}, {Begin: 1, End: 2}},
		{{Begin: 2, End: 1}},
	} {
		if _, err := reader.ReadRanges([]string{"id"}, ranges); err == nil {
			t.Errorf("expected error for ranges %s", ranges)
		}
	}
	if _, err := reader.ReadRanges([]string{"missing"}, granularity.MarkRanges{{Begin: 0, End: 1}}); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestWritePartCompressedMarks(t *testing.T) {
	settings := testSettings()
	settings.CompressMarks = true
	schema := testSchema(settings)
	part := writeTestPart(t, schema, WriterOptions{Adaptive: true, Codec: &compression.ZSTDCodec{}}, idBlock(0, 50))

	assertFilesExist(t, part.BasePath, "id.cmrk2", "name.cmrk2")
	loaded := reload(t, part, schema)
	if !loaded.GranularityInfo.MarkType.Compressed {
		t.Fatal("expected compressed mark type after reload")
	}
	blk, err := NewPartReader(loaded, schema).ReadAll([]string{"id"})
	if err != nil {
		t.Fatal(err)
	}
	if blk.NumRows() != 50 {
		t.Fatalf("expected 50 rows, got %d", blk.NumRows())
	}
}

func TestWritePartWithoutFinalMark(t *testing.T) {
	settings := testSettings()
	settings.WriteFinalMark = false
	schema := testSchema(settings)
	part := writeTestPart(t, schema, WriterOptions{Adaptive: true}, idBlock(0, 6))

	if part.IndexGranularity().HasFinalMark() {
		t.Fatal("unexpected final mark")
	}
	loaded := reload(t, part, schema)
	if loaded.MarksCount() != 2 || loaded.IndexGranularity().HasFinalMark() {
		t.Fatalf("unexpected reloaded granularity %s", loaded.IndexGranularity().Describe())
	}
}

func TestWritePartRejectsBadInput(t *testing.T) {
	schema := testSchema(testSettings())
	writer := NewPartWriter(schema, t.TempDir(), WriterOptions{Adaptive: true})
	info := PartInfo{PartitionID: "all", MinBlock: 1, MaxBlock: 1}

	if _, err := writer.WritePart(info); err == nil {
		t.Error("expected error for no blocks")
	}
	if _, err := writer.WritePart(info, idBlock(0, 0)); err == nil {
		t.Error("expected error for empty block")
	}
	wrongType := column.NewBlock(
		[]string{"id", "name"},
		[]column.Column{column.NewInt64Column(1), column.NewStringColumn("x")},
	)
	if _, err := writer.WritePart(info, wrongType); err == nil {
		t.Error("expected error for mismatched column type")
	}
	missing := column.NewBlock([]string{"id"}, []column.Column{column.NewUInt64Column(1)})
	if _, err := writer.WritePart(info, missing); err == nil {
		t.Error("expected error for missing column")
	}
}

func TestRestoreConstant(t *testing.T) {
	tests := []struct {
		rows, marks, g int
		wantErr        bool
		wantFinal      bool
		wantLast       int
	}{
		{rows: 10, marks: 3, g: 4, wantLast: 2},
		{rows: 10, marks: 4, g: 4, wantFinal: true, wantLast: 2},
		{rows: 8, marks: 2, g: 4, wantLast: 4},
		{rows: 0, marks: 0, g: 4, wantLast: 4},
		{rows: 10, marks: 5, g: 4, wantErr: true},
		{rows: 10, marks: 2, g: 4, wantErr: true},
		{rows: 0, marks: 1, g: 4, wantErr: true},
		{rows: 10, marks: 3, g: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d rows %d marks", tt.rows, tt.marks), func(t *testing.T) {
			c, err := restoreConstant(tt.rows, tt.marks, tt.g)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", c.Describe())
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c.TotalRows() != tt.rows || c.MarksCount() != tt.marks || c.HasFinalMark() != tt.wantFinal {
				t.Fatalf("unexpected table %s", c.Describe())
			}
			if c.LastMarkGranularity() != tt.wantLast {
				t.Fatalf("last mark %d, want %d", c.LastMarkGranularity(), tt.wantLast)
			}
		})
	}
}

func TestPartOptimizeIndexGranularity(t *testing.T) {
	a, err := granularity.RestoreAdaptive([]int{4, 4, 2, 0})
	if err != nil {
		t.Fatal(err)
	}
	part := &Part{}
	if part.OptimizeIndexGranularity() {
		t.Fatal("optimized a part without granularity")
	}
	part.SetIndexGranularity(a)
	if !part.OptimizeIndexGranularity() {
		t.Fatal("expected optimization")
	}
	if _, ok := part.IndexGranularity().(*granularity.Constant); !ok {
		t.Fatalf("expected constant after optimize, got %s", part.IndexGranularity().Describe())
	}
	if part.OptimizeIndexGranularity() {
		t.Fatal("constant tables do not optimize further")
	}
	if part.MarksCount() != 4 {
		t.Fatalf("marks count %d", part.MarksCount())
	}
}
