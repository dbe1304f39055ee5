package merge

import (
	"container/heap"
	"fmt"

	"github.com/harshithgowdakt/granulestore/internal/column"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/storage"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

// DefaultMergeBlockSize is the number of rows per block handed to the writer.
const DefaultMergeBlockSize = 8192

// MergeExecutor performs the actual merge of multiple source parts into one.
type MergeExecutor struct {
	schema *storage.TableSchema
	opts   storage.WriterOptions

	// BlockSize caps the rows of each merged block; the writer sizes granules
	// per block.
	BlockSize int
}

// NewMergeExecutor creates a new merge executor.
func NewMergeExecutor(schema *storage.TableSchema, opts storage.WriterOptions) *MergeExecutor {
	return &MergeExecutor{schema: schema, opts: opts, BlockSize: DefaultMergeBlockSize}
}

// Merge reads all source parts, merge-sorts them, and writes a new merged part.
// Granularity of the result is recomputed from the merged blocks.
func (me *MergeExecutor) Merge(baseDir string, sourceParts []*storage.Part) (*storage.Part, error) {
	if len(sourceParts) == 0 {
		return nil, fmt.Errorf("no parts to merge")
	}
	partitionID := sourceParts[0].Info.PartitionID
	for _, p := range sourceParts[1:] {
		if p.Info.PartitionID != partitionID {
			return nil, fmt.Errorf("cannot merge parts of partitions %s and %s", partitionID, p.Info.PartitionID)
		}
	}

	colNames := me.schema.ColumnNames()
	sources := make([]*column.Block, 0, len(sourceParts))
	for _, src := range sourceParts {
		block, err := storage.NewPartReader(src, me.schema).ReadAll(colNames)
		if err != nil {
			return nil, fmt.Errorf("reading part %s: %w", src.Info.DirName(), err)
		}
		sources = append(sources, block)
	}

	blocks, err := me.kWayMerge(sources)
	if err != nil {
		return nil, err
	}

	writer := storage.NewPartWriter(me.schema, baseDir, me.opts)
	return writer.WritePart(mergedPartInfo(sourceParts), blocks...)
}

// Rewrite writes part again in targetType layout, keeping every granule of the
// source as a granule of the result.
func (me *MergeExecutor) Rewrite(baseDir string, part *storage.Part, targetType granularity.PartType) (*storage.Part, error) {
	index := part.IndexGranularity()
	if index == nil {
		return nil, fmt.Errorf("part %s has no granularity loaded", part.Info.DirName())
	}
	reader := storage.NewPartReader(part, me.schema)
	colNames := me.schema.ColumnNames()

	dataMarks := granularity.MarksCountWithoutFinal(index)
	blocks := make([]*column.Block, 0, dataMarks)
	for m := range dataMarks {
		blk, err := reader.ReadRanges(colNames, granularity.MarkRanges{{Begin: m, End: m + 1}})
		if err != nil {
			return nil, fmt.Errorf("reading granule %d of %s: %w", m, part.Info.DirName(), err)
		}
		blocks = append(blocks, blk)
	}

	opts := me.opts
	opts.BlocksAreGranules = true
	opts.ForcePartType = true
	opts.PartType = targetType

	info := part.Info
	info.Level++
	return storage.NewPartWriter(me.schema, baseDir, opts).WritePart(info, blocks...)
}

func mergedPartInfo(sourceParts []*storage.Part) storage.PartInfo {
	info := sourceParts[0].Info
	for _, p := range sourceParts[1:] {
		info.MinBlock = min(info.MinBlock, p.Info.MinBlock)
		info.MaxBlock = max(info.MaxBlock, p.Info.MaxBlock)
		info.Level = max(info.Level, p.Info.Level)
	}
	info.Level++
	return info
}

// kWayMerge merges already-sorted blocks into sorted output blocks of at most
// BlockSize rows. Equal keys keep the order of their sources.
func (me *MergeExecutor) kWayMerge(sources []*column.Block) ([]*column.Block, error) {
	keys := make([]int, len(me.schema.OrderBy))
	keyTypes := make([]types.DataType, len(me.schema.OrderBy))
	for i, name := range me.schema.OrderBy {
		idx, ok := me.schema.ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("ORDER BY column %s not in schema", name)
		}
		keys[i] = idx
		keyTypes[i] = me.schema.Columns[idx].DataType
	}

	h := &cursorHeap{keys: keys, keyTypes: keyTypes}
	for i, b := range sources {
		if b.NumRows() > 0 {
			h.cursors = append(h.cursors, &cursor{block: b, source: i})
		}
	}
	heap.Init(h)

	blockSize := me.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultMergeBlockSize
	}
	names := me.schema.ColumnNames()
	dts := me.schema.ColumnTypes()

	var out []*column.Block
	cur := column.NewEmptyBlock(names, dts)
	for h.Len() > 0 {
		c := h.cursors[0]
		for i, col := range cur.Columns {
			col.Append(c.block.Columns[i].Value(c.row))
		}
		c.row++
		if c.row == c.block.NumRows() {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
		if cur.NumRows() == blockSize {
			out = append(out, cur)
			cur = column.NewEmptyBlock(names, dts)
		}
	}
	if cur.NumRows() > 0 {
		out = append(out, cur)
	}
	return out, nil
}

type cursor struct {
	block  *column.Block
	row    int
	source int
}

type cursorHeap struct {
	cursors  []*cursor
	keys     []int
	keyTypes []types.DataType
}

func (h *cursorHeap) Len() int { return len(h.cursors) }

func (h *cursorHeap) Less(i, j int) bool {
	a, b := h.cursors[i], h.cursors[j]
	for k, col := range h.keys {
		if c := types.CompareValues(h.keyTypes[k], a.block.Columns[col].Value(a.row), b.block.Columns[col].Value(b.row)); c != 0 {
			return c < 0
		}
	}
	return a.source < b.source
}

func (h *cursorHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *cursorHeap) Push(x any) { h.cursors = append(h.cursors, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := h.cursors
	n := len(old)
	c := old[n-1]
	h.cursors = old[:n-1]
	return c
}
