package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harshithgowdakt/granulestore/internal/column"
	"github.com/harshithgowdakt/granulestore/internal/compression"
	"github.com/harshithgowdakt/granulestore/internal/gologger"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/metrics"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

var logger = gologger.Component("storage")

const (
	binExt = ".bin"
	// compactDataName is the file stem shared by all columns of a compact part.
	compactDataName = "data"

	countFileName       = "count.txt"
	columnsFileName     = "columns.txt"
	uuidFileName        = "uuid.txt"
	granularityFileName = "granularity.txt"
	primaryIndexName    = "primary.idx"
)

// WriterOptions control how a PartWriter lays out a part.
type WriterOptions struct {
	Codec compression.Codec
	// Adaptive selects adaptive marks, usually from CanUseAdaptiveGranularity.
	Adaptive bool
	// BlocksAreGranules turns every input block into exactly one granule.
	BlocksAreGranules bool
	// ForcePartType skips ChoosePartType and writes PartType instead.
	ForcePartType bool
	PartType      granularity.PartType
}

// PartWriter creates new parts on disk from blocks.
type PartWriter struct {
	schema  *TableSchema
	baseDir string // parent directory (table data dir)
	opts    WriterOptions
}

// NewPartWriter creates a new PartWriter.
func NewPartWriter(schema *TableSchema, baseDir string, opts WriterOptions) *PartWriter {
	if opts.Codec == nil {
		opts.Codec = &compression.LZ4Codec{}
	}
	return &PartWriter{
		schema:  schema,
		baseDir: baseDir,
		opts:    opts,
	}
}

// WritePart writes blocks as one new part directory. The concatenation of the
// blocks must already be sorted by ORDER BY columns and belong to a single
// partition. Each block is measured separately when sizing granules.
func (pw *PartWriter) WritePart(info PartInfo, blocks ...*column.Block) (*Part, error) {
	blocks, err := pw.prepareBlocks(blocks)
	if err != nil {
		return nil, err
	}
	all, err := column.ConcatBlocks(blocks)
	if err != nil {
		return nil, err
	}
	numRows := all.NumRows()

	settings := pw.schema.Settings
	partType := granularity.ChoosePartType(numRows, all.ByteSize(), settings, pw.opts.Adaptive)
	if pw.opts.ForcePartType {
		partType = pw.opts.PartType
	}
	ginfo := granularity.NewInfo(settings, partType, pw.opts.Adaptive)
	if !ginfo.MarkType.Valid() {
		return nil, fmt.Errorf("cannot write %s part with %s marks", partType, ginfo.MarkType)
	}

	index, err := pw.computeIndexGranularity(ginfo, blocks, numRows)
	if err != nil {
		return nil, fmt.Errorf("computing granularity: %w", err)
	}

	tmpDir := filepath.Join(pw.baseDir, info.TmpDirName())
	finalDir := filepath.Join(pw.baseDir, info.DirName())

	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("creating tmp dir: %w", err)
	}

	// Clean up on failure
	success := false
	defer func() {
		if !success {
			os.RemoveAll(tmpDir)
		}
	}()

	if partType == granularity.PartCompact {
		err = pw.writeCompact(tmpDir, all, index, ginfo)
	} else {
		err = pw.writeWide(tmpDir, all, index, ginfo)
	}
	if err != nil {
		return nil, err
	}

	if err := pw.writePrimaryIndex(tmpDir, all, index); err != nil {
		return nil, fmt.Errorf("writing primary index: %w", err)
	}

	if pw.schema.PartitionBy != "" {
		if err := pw.writeMinMaxIndex(tmpDir, all, pw.schema.PartitionBy); err != nil {
			return nil, fmt.Errorf("writing minmax index for %s: %w", pw.schema.PartitionBy, err)
		}
	}

	part := &Part{
		Info:            info,
		UUID:            uuid.New(),
		Type:            partType,
		GranularityInfo: ginfo,
		State:           PartActive,
		NumRows:         uint64(numRows),
		CreatedAt:       time.Now(),
		BasePath:        finalDir,
	}
	part.SetIndexGranularity(index)
	part.OptimizeIndexGranularity()

	if err := pw.writeMetadata(tmpDir, part); err != nil {
		return nil, err
	}

	// Atomic rename from tmp to final
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return nil, fmt.Errorf("renaming part dir: %w", err)
	}
	success = true

	part.SizeBytes = dirSize(finalDir)
	pw.recordMetrics(part, index)

	logger.Debug().
		Str("part", info.DirName()).
		Str("type", partType.String()).
		Int("rows", numRows).
		Int("marks", index.MarksCount()).
		Str("granularity", part.IndexGranularity().Describe()).
		Msg("wrote part")
	return part, nil
}

// prepareBlocks drops empty blocks and projects the rest onto the schema.
func (pw *PartWriter) prepareBlocks(blocks []*column.Block) ([]*column.Block, error) {
	names := pw.schema.ColumnNames()
	out := make([]*column.Block, 0, len(blocks))
	for _, b := range blocks {
		if b == nil || b.NumRows() == 0 {
			continue
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		projected, err := b.SelectColumns(names)
		if err != nil {
			return nil, err
		}
		for i, col := range projected.Columns {
			if want := pw.schema.Columns[i].DataType; col.DataType() != want {
				return nil, fmt.Errorf("column %s is %s, schema says %s", names[i], col.DataType().Name(), want.Name())
			}
		}
		out = append(out, projected)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no rows to write")
	}
	return out, nil
}

// computeIndexGranularity fills a new granularity table block by block.
func (pw *PartWriter) computeIndexGranularity(ginfo granularity.Info, blocks []*column.Block, numRows int) (granularity.Table, error) {
	settings := pw.schema.Settings
	first := blocks[0]
	index, err := granularity.Create(first.NumRows(), first.ByteSize(), settings, ginfo, pw.opts.BlocksAreGranules)
	if err != nil {
		return nil, err
	}

	offset := 0
	for _, b := range blocks {
		rows := b.NumRows()
		g := granularity.ComputeForBlock(rows, b.ByteSize(),
			ginfo.IndexGranularityBytes, ginfo.FixedIndexGranularity,
			pw.opts.BlocksAreGranules, ginfo.MarkType.Adaptive)
		if offset, err = granularity.FillFromBlock(index, rows, g, offset); err != nil {
			return nil, err
		}
	}
	if err := granularity.FinishFill(index, numRows, settings.WriteFinalMark); err != nil {
		return nil, err
	}
	index.ShrinkToFitInMemory()
	return index, nil
}

// granuleRows returns the row range [begin, end) of data mark m.
func granuleRows(index granularity.Table, m int) (int, int) {
	begin := index.MarkStartingRow(m)
	return begin, begin + index.MarkRows(m)
}

// writeWide writes one .bin and one marks file per column.
func (pw *PartWriter) writeWide(dir string, block *column.Block, index granularity.Table, ginfo granularity.Info) error {
	for i, colDef := range pw.schema.Columns {
		if err := pw.writeWideColumn(dir, colDef.Name, block.Columns[i], index, ginfo); err != nil {
			return fmt.Errorf("writing column %s: %w", colDef.Name, err)
		}
	}
	return nil
}

func (pw *PartWriter) writeWideColumn(dir, colName string, col column.Column, index granularity.Table, ginfo granularity.Info) error {
	binFile, err := os.Create(filepath.Join(dir, colName+binExt))
	if err != nil {
		return err
	}
	defer binFile.Close()

	marks := make([]MarkWithRows, 0, index.MarksCount())
	var compressedOffset uint64

	for m := range granularity.MarksCountWithoutFinal(index) {
		begin, end := granuleRows(index, m)
		compressed, err := pw.compressGranule(col.Slice(begin, end))
		if err != nil {
			return fmt.Errorf("granule %d: %w", m, err)
		}

		// Record mark BEFORE writing compressed block
		marks = append(marks, MarkWithRows{
			Columns: []Mark{{OffsetInCompressedFile: compressedOffset}},
			Rows:    uint64(end - begin),
		})
		if _, err := binFile.Write(compressed); err != nil {
			return err
		}
		compressedOffset += uint64(len(compressed))
	}
	if index.HasFinalMark() {
		marks = append(marks, MarkWithRows{Columns: []Mark{{OffsetInCompressedFile: compressedOffset}}})
	}

	return WriteMarksFile(filepath.Join(dir, colName+ginfo.MarksFileExtension()), ginfo, 1, marks, pw.opts.Codec)
}

// writeCompact writes all columns into one data file, granule by granule, and
// a marks file with one position per column per granule.
func (pw *PartWriter) writeCompact(dir string, block *column.Block, index granularity.Table, ginfo granularity.Info) error {
	binFile, err := os.Create(filepath.Join(dir, compactDataName+binExt))
	if err != nil {
		return err
	}
	defer binFile.Close()

	numCols := len(pw.schema.Columns)
	marks := make([]MarkWithRows, 0, index.MarksCount())
	var compressedOffset uint64

	for m := range granularity.MarksCountWithoutFinal(index) {
		begin, end := granuleRows(index, m)
		mark := MarkWithRows{Columns: make([]Mark, numCols), Rows: uint64(end - begin)}
		for c, col := range block.Columns {
			compressed, err := pw.compressGranule(col.Slice(begin, end))
			if err != nil {
				return fmt.Errorf("column %s granule %d: %w", pw.schema.Columns[c].Name, m, err)
			}
			mark.Columns[c].OffsetInCompressedFile = compressedOffset
			if _, err := binFile.Write(compressed); err != nil {
				return err
			}
			compressedOffset += uint64(len(compressed))
		}
		marks = append(marks, mark)
	}
	if index.HasFinalMark() {
		final := MarkWithRows{Columns: make([]Mark, numCols)}
		for c := range final.Columns {
			final.Columns[c].OffsetInCompressedFile = compressedOffset
		}
		marks = append(marks, final)
	}

	return WriteMarksFile(filepath.Join(dir, compactDataName+ginfo.MarksFileExtension()), ginfo, numCols, marks, pw.opts.Codec)
}

func (pw *PartWriter) compressGranule(col column.Column) ([]byte, error) {
	raw, err := column.EncodeColumn(col)
	if err != nil {
		return nil, fmt.Errorf("encoding granule: %w", err)
	}
	compressed, err := compression.CompressBlock(pw.opts.Codec, raw)
	if err != nil {
		return nil, fmt.Errorf("compressing granule: %w", err)
	}
	return compressed, nil
}

// writePrimaryIndex writes the ORDER BY key at the first row of every data mark.
func (pw *PartWriter) writePrimaryIndex(dir string, block *column.Block, index granularity.Table) error {
	keyTypes, err := pw.schema.keyTypes()
	if err != nil {
		return err
	}
	dataMarks := granularity.MarksCountWithoutFinal(index)
	idx := &PrimaryIndex{
		KeyColumns: pw.schema.OrderBy,
		KeyTypes:   keyTypes,
		Values:     make([][]types.Value, dataMarks),
	}
	for m := range dataMarks {
		row := index.MarkStartingRow(m)
		vals := make([]types.Value, len(pw.schema.OrderBy))
		for k, keyName := range pw.schema.OrderBy {
			col, _ := block.GetColumn(keyName)
			vals[k] = col.Value(row)
		}
		idx.Values[m] = vals
	}
	return WritePrimaryIndex(filepath.Join(dir, primaryIndexName), idx)
}

// writeMinMaxIndex writes minmax_<col>.idx for the given column.
func (pw *PartWriter) writeMinMaxIndex(dir string, block *column.Block, colName string) error {
	col, ok := block.GetColumn(colName)
	if !ok {
		return fmt.Errorf("partition column %s not found", colName)
	}
	minVal, maxVal := ComputeMinMax(col)
	idx := &MinMaxIndex{
		ColumnName: colName,
		DataType:   col.DataType(),
		Min:        minVal,
		Max:        maxVal,
	}
	return WriteMinMaxIndex(filepath.Join(dir, minMaxFileName(colName)), idx)
}

// writeMetadata writes count.txt, columns.txt, uuid.txt and granularity.txt.
func (pw *PartWriter) writeMetadata(dir string, part *Part) error {
	var cols strings.Builder
	for _, c := range pw.schema.Columns {
		cols.WriteString(c.Name)
		cols.WriteByte('\t')
		cols.WriteString(c.DataType.Name())
		cols.WriteByte('\n')
	}
	files := []struct {
		name, content string
	}{
		{countFileName, strconv.FormatUint(part.NumRows, 10) + "\n"},
		{columnsFileName, cols.String()},
		{uuidFileName, part.UUID.String() + "\n"},
		{granularityFileName, part.GranularityInfo.String() + "\n" + part.IndexGranularity().Describe() + "\n"},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	return nil
}

func (pw *PartWriter) recordMetrics(part *Part, written granularity.Table) {
	metrics.PartsWritten.WithLabelValues(part.Type.String()).Inc()
	kind := "adaptive"
	if _, ok := written.(*granularity.Constant); ok {
		kind = "constant"
	}
	metrics.MarksWritten.WithLabelValues(kind).Add(float64(written.MarksCount()))
	for m := range granularity.MarksCountWithoutFinal(written) {
		metrics.RowsPerGranule.Observe(float64(written.MarkRows(m)))
	}
}

func dirSize(dir string) uint64 {
	var total uint64
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
