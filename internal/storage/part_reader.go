package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/harshithgowdakt/granulestore/internal/column"
	"github.com/harshithgowdakt/granulestore/internal/compression"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
)

// LoadPart reconstructs an active part from its directory, including its
// granularity table.
func LoadPart(dir string, info PartInfo, schema *TableSchema) (*Part, error) {
	numRows, err := readRowCount(dir)
	if err != nil {
		return nil, err
	}
	id, err := readUUID(dir)
	if err != nil {
		return nil, err
	}
	markType, err := detectMarkType(dir, schema)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}

	ginfo := granularity.Info{
		MarkType:              markType,
		FixedIndexGranularity: schema.Settings.IndexGranularity,
	}
	if markType.Adaptive {
		ginfo.IndexGranularityBytes = schema.Settings.IndexGranularityBytes
	}
	part := &Part{
		Info:            info,
		UUID:            id,
		Type:            markType.PartType,
		GranularityInfo: ginfo,
		State:           PartActive,
		NumRows:         uint64(numRows),
		SizeBytes:       dirSize(dir),
		CreatedAt:       stat.ModTime(),
		BasePath:        dir,
	}

	index, err := LoadIndexGranularity(part, schema)
	if err != nil {
		return nil, fmt.Errorf("loading granularity of %s: %w", info.DirName(), err)
	}
	part.SetIndexGranularity(index)
	part.OptimizeIndexGranularity()
	return part, nil
}

// LoadIndexGranularity rebuilds the granularity table of a part from its
// marks. Adaptive marks carry their row counts; non-adaptive marks are
// reconstructed from the row count and the fixed granularity.
func LoadIndexGranularity(part *Part, schema *TableSchema) (granularity.Table, error) {
	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}
	path, positions := MarksFile(part, schema, schema.Columns[0].Name)
	marks, err := ReadMarksFile(path, part.GranularityInfo, positions)
	if err != nil {
		return nil, fmt.Errorf("reading marks: %w", err)
	}

	if part.GranularityInfo.MarkType.Adaptive {
		rows := make([]int, len(marks))
		for i, m := range marks {
			rows[i] = int(m.Rows)
		}
		index, err := granularity.RestoreAdaptive(rows)
		if err != nil {
			return nil, err
		}
		if index.TotalRows() != int(part.NumRows) {
			return nil, fmt.Errorf("marks cover %d rows, %s says %d", index.TotalRows(), countFileName, part.NumRows)
		}
		return index, nil
	}
	index, err := restoreConstant(int(part.NumRows), len(marks), part.GranularityInfo.FixedIndexGranularity)
	if err != nil {
		return nil, err
	}
	return index, nil
}

// restoreConstant derives a constant table from the part row count, the
// number of marks on disk and the fixed granularity.
func restoreConstant(numRows, numMarks, g int) (*granularity.Constant, error) {
	if g <= 0 {
		return nil, fmt.Errorf("index_granularity must be positive, got %d", g)
	}
	dataMarks := (numRows + g - 1) / g
	var hasFinal bool
	switch numMarks {
	case dataMarks:
	case dataMarks + 1:
		hasFinal = dataMarks > 0
		if !hasFinal {
			return nil, fmt.Errorf("final mark without data marks")
		}
	default:
		return nil, fmt.Errorf("%d marks do not match %d rows with granularity %d", numMarks, numRows, g)
	}
	last := 0
	if dataMarks > 0 {
		last = numRows - (dataMarks-1)*g
	}
	return granularity.RestoreConstant(g, last, dataMarks, hasFinal)
}

// detectMarkType finds the marks file of the part and derives the mark type
// from its extension.
func detectMarkType(dir string, schema *TableSchema) (granularity.MarkType, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return granularity.MarkType{}, err
	}
	firstCol := ""
	if len(schema.Columns) > 0 {
		firstCol = schema.Columns[0].Name
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || ext == binExt {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ext)
		if stem != compactDataName && stem != firstCol {
			continue
		}
		mt, err := granularity.ParseMarkType(ext)
		if err != nil {
			continue
		}
		if (stem == compactDataName) == (mt.PartType == granularity.PartCompact) {
			return mt, nil
		}
	}
	return granularity.MarkType{}, fmt.Errorf("no marks file found in %s", dir)
}

// MarksFile returns the marks path holding colName and the number of
// positions per mark in it.
func MarksFile(part *Part, schema *TableSchema, colName string) (string, int) {
	ext := part.GranularityInfo.MarksFileExtension()
	if part.Type == granularity.PartCompact {
		return filepath.Join(part.BasePath, compactDataName+ext), len(schema.Columns)
	}
	return filepath.Join(part.BasePath, colName+ext), 1
}

// DataFile returns the .bin path holding colName.
func DataFile(part *Part, colName string) string {
	if part.Type == granularity.PartCompact {
		return filepath.Join(part.BasePath, compactDataName+binExt)
	}
	return filepath.Join(part.BasePath, colName+binExt)
}

// PartReader reads data from a part on disk. It caches marks and data files
// and is not safe for concurrent use.
type PartReader struct {
	part   *Part
	schema *TableSchema

	marks map[string][]MarkWithRows
	data  map[string][]byte
}

// NewPartReader creates a new PartReader.
func NewPartReader(part *Part, schema *TableSchema) *PartReader {
	return &PartReader{
		part:   part,
		schema: schema,
		marks:  make(map[string][]MarkWithRows),
		data:   make(map[string][]byte),
	}
}

// ReadAll reads all columns for all granules.
func (pr *PartReader) ReadAll(columnNames []string) (*column.Block, error) {
	dataMarks := granularity.MarksCountWithoutFinal(pr.part.IndexGranularity())
	return pr.ReadRanges(columnNames, granularity.MarkRanges{{Begin: 0, End: dataMarks}})
}

// ReadRanges reads the rows of the given mark ranges, in order.
func (pr *PartReader) ReadRanges(columnNames []string, ranges granularity.MarkRanges) (*column.Block, error) {
	index := pr.part.IndexGranularity()
	if index == nil {
		return nil, fmt.Errorf("part %s has no granularity loaded", pr.part.Info.DirName())
	}
	if err := ranges.Validate(index.MarksCount()); err != nil {
		return nil, err
	}
	totalRows := granularity.RowsCountInRanges(index, ranges)

	cols := make([]column.Column, len(columnNames))
	for i, name := range columnNames {
		colIdx, ok := pr.schema.ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("column %s not in schema", name)
		}
		dt := pr.schema.Columns[colIdx].DataType
		col := column.NewColumnWithCapacity(dt, totalRows)
		for _, r := range ranges {
			for m := r.Begin; m < r.End; m++ {
				rows := index.MarkRows(m)
				if rows == 0 {
					continue
				}
				granule, err := pr.readGranule(name, colIdx, m, rows)
				if err != nil {
					return nil, fmt.Errorf("reading column %s: %w", name, err)
				}
				column.AppendColumn(col, granule)
			}
		}
		cols[i] = col
	}
	return column.NewBlock(append([]string(nil), columnNames...), cols), nil
}

// ReadRows reads up to rows rows starting offsetInRows rows into fromMark.
func (pr *PartReader) ReadRows(columnNames []string, fromMark, offsetInRows, rows int) (*column.Block, error) {
	index := pr.part.IndexGranularity()
	if index == nil {
		return nil, fmt.Errorf("part %s has no granularity loaded", pr.part.Info.DirName())
	}
	if fromMark < 0 || fromMark > index.MarksCount() || offsetInRows < 0 {
		return nil, fmt.Errorf("invalid read position: mark %d offset %d of %d marks", fromMark, offsetInRows, index.MarksCount())
	}
	n := index.CountRowsForRows(fromMark, rows, offsetInRows)
	if n == 0 {
		return pr.ReadRanges(columnNames, nil)
	}
	numMarks := index.CountMarksForRows(fromMark, offsetInRows+n)
	blk, err := pr.ReadRanges(columnNames, granularity.MarkRanges{{Begin: fromMark, End: fromMark + numMarks}})
	if err != nil {
		return nil, err
	}
	return blk.SliceRows(offsetInRows, offsetInRows+n), nil
}

func (pr *PartReader) readGranule(colName string, colIdx, mark, rows int) (column.Column, error) {
	path, positions := MarksFile(pr.part, pr.schema, colName)
	marks, err := pr.loadMarks(path, positions)
	if err != nil {
		return nil, err
	}
	binData, err := pr.loadData(DataFile(pr.part, colName))
	if err != nil {
		return nil, err
	}

	pos := marks[mark].Columns[0]
	if pr.part.Type == granularity.PartCompact {
		pos = marks[mark].Columns[colIdx]
	}
	offset := pos.OffsetInCompressedFile
	if offset >= uint64(len(binData)) {
		return nil, fmt.Errorf("mark %d points past end of data (%d >= %d)", mark, offset, len(binData))
	}

	decompressed, err := compression.DecompressBlock(binData[offset:])
	if err != nil {
		return nil, fmt.Errorf("decompressing granule %d: %w", mark, err)
	}
	col, err := column.DecodeColumn(pr.schema.Columns[colIdx].DataType, decompressed[pos.OffsetInDecompressedBlock:], rows)
	if err != nil {
		return nil, fmt.Errorf("decoding granule %d: %w", mark, err)
	}
	return col, nil
}

func (pr *PartReader) loadMarks(path string, positions int) ([]MarkWithRows, error) {
	if marks, ok := pr.marks[path]; ok {
		return marks, nil
	}
	marks, err := ReadMarksFile(path, pr.part.GranularityInfo, positions)
	if err != nil {
		return nil, fmt.Errorf("reading marks: %w", err)
	}
	if want := pr.part.MarksCount(); len(marks) != want {
		return nil, fmt.Errorf("%s has %d marks, granularity has %d", filepath.Base(path), len(marks), want)
	}
	pr.marks[path] = marks
	return marks, nil
}

func (pr *PartReader) loadData(path string) ([]byte, error) {
	if data, ok := pr.data[path]; ok {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}
	pr.data[path] = data
	return data, nil
}

// LoadPrimaryIndex loads the primary index for this part.
func (pr *PartReader) LoadPrimaryIndex() (*PrimaryIndex, error) {
	keyTypes, err := pr.schema.keyTypes()
	if err != nil {
		return nil, err
	}
	dataMarks := granularity.MarksCountWithoutFinal(pr.part.IndexGranularity())
	return ReadPrimaryIndex(filepath.Join(pr.part.BasePath, primaryIndexName), pr.schema.OrderBy, keyTypes, dataMarks)
}

// LoadMinMaxIndex loads the min-max index for the partition key column.
func (pr *PartReader) LoadMinMaxIndex() (*MinMaxIndex, error) {
	if pr.schema.PartitionBy == "" {
		return nil, nil
	}
	colDef, ok := pr.schema.GetColumnDef(pr.schema.PartitionBy)
	if !ok {
		return nil, fmt.Errorf("partition column %s not in schema", pr.schema.PartitionBy)
	}
	path := filepath.Join(pr.part.BasePath, minMaxFileName(pr.schema.PartitionBy))
	return ReadMinMaxIndex(path, pr.schema.PartitionBy, colDef.DataType)
}

// readRowCount reads the row count from count.txt.
func readRowCount(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, countFileName))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", countFileName, err)
	}
	return n, nil
}

func readUUID(dir string) (uuid.UUID, error) {
	data, err := os.ReadFile(filepath.Join(dir, uuidFileName))
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing %s: %w", uuidFileName, err)
	}
	return id, nil
}
