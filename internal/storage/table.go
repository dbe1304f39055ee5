package storage

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/harshithgowdakt/granulestore/internal/column"
	"github.com/harshithgowdakt/granulestore/internal/compression"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

// MergeTreeTable represents a single table with MergeTree engine.
type MergeTreeTable struct {
	Name    string
	Schema  TableSchema
	DataDir string // path: <db_data_dir>/<table_name>/

	mu           sync.RWMutex
	parts        []*Part
	blockCounter atomic.Uint64
}

// NewMergeTreeTable creates a new table.
func NewMergeTreeTable(name string, schema TableSchema, dataDir string) *MergeTreeTable {
	return &MergeTreeTable{
		Name:    name,
		Schema:  schema,
		DataDir: dataDir,
	}
}

// Codec returns the compression codec configured for the table.
func (t *MergeTreeTable) Codec() (compression.Codec, error) {
	return compression.CodecByName(t.Schema.Settings.CompressionCodec)
}

// HasNonAdaptiveParts reports whether any active part uses .mrk marks.
func (t *MergeTreeTable) HasNonAdaptiveParts() bool {
	for _, p := range t.GetActiveParts() {
		if !p.GranularityInfo.MarkType.Adaptive {
			return true
		}
	}
	return false
}

// WriterOptions returns the writer settings for new parts of this table.
func (t *MergeTreeTable) WriterOptions() (WriterOptions, error) {
	codec, err := t.Codec()
	if err != nil {
		return WriterOptions{}, err
	}
	return WriterOptions{
		Codec:    codec,
		Adaptive: granularity.CanUseAdaptiveGranularity(t.Schema.Settings, t.HasNonAdaptiveParts()),
	}, nil
}

// NextBlockNumber allocates a block number for a new level-0 part.
func (t *MergeTreeTable) NextBlockNumber() uint64 {
	return t.blockCounter.Add(1)
}

// Insert writes each block as its own set of parts: the block is split by
// partition and every sub-block is sorted by ORDER BY before writing.
func (t *MergeTreeTable) Insert(blocks ...*column.Block) error {
	opts, err := t.WriterOptions()
	if err != nil {
		return err
	}
	writer := NewPartWriter(&t.Schema, t.DataDir, opts)

	for _, block := range blocks {
		if block.NumRows() == 0 {
			continue
		}
		if err := block.Validate(); err != nil {
			return err
		}
		partitions, err := t.splitByPartition(block)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(partitions))
		for id := range partitions {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for _, partitionID := range ids {
			subBlock := partitions[partitionID]
			if err := subBlock.SortByColumns(t.Schema.OrderBy); err != nil {
				return fmt.Errorf("sorting block: %w", err)
			}

			blockNum := t.NextBlockNumber()
			info := PartInfo{
				PartitionID: partitionID,
				MinBlock:    blockNum,
				MaxBlock:    blockNum,
				Level:       0,
			}

			part, err := writer.WritePart(info, subBlock)
			if err != nil {
				return fmt.Errorf("writing part: %w", err)
			}

			t.mu.Lock()
			t.parts = append(t.parts, part)
			t.mu.Unlock()
		}
	}
	return nil
}

// splitByPartition splits a block into sub-blocks per partition.
func (t *MergeTreeTable) splitByPartition(block *column.Block) (map[string]*column.Block, error) {
	if t.Schema.PartitionBy == "" {
		return map[string]*column.Block{"all": block}, nil
	}

	partCol, ok := block.GetColumn(t.Schema.PartitionBy)
	if !ok {
		return nil, fmt.Errorf("partition column %s not found", t.Schema.PartitionBy)
	}

	// Group row indices by partition value
	partRows := make(map[string][]int)
	for i := 0; i < block.NumRows(); i++ {
		pid := types.ValueToString(partCol.DataType(), partCol.Value(i))
		partRows[pid] = append(partRows[pid], i)
	}

	result := make(map[string]*column.Block, len(partRows))
	for pid, rows := range partRows {
		cols := make([]column.Column, block.NumColumns())
		for c, src := range block.Columns {
			cols[c] = column.Gather(src, rows)
		}
		result[pid] = column.NewBlock(slices.Clone(block.ColumnNames), cols)
	}
	return result, nil
}

// GetActiveParts returns all parts with state == PartActive.
func (t *MergeTreeTable) GetActiveParts() []*Part {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var active []*Part
	for _, p := range t.parts {
		if p.State == PartActive {
			active = append(active, p)
		}
	}
	// Sort by partition then MinBlock for deterministic ordering
	sort.Slice(active, func(i, j int) bool {
		if active[i].Info.PartitionID != active[j].Info.PartitionID {
			return active[i].Info.PartitionID < active[j].Info.PartitionID
		}
		return active[i].Info.MinBlock < active[j].Info.MinBlock
	})
	return active
}

// GetActivePartsForPartition returns active parts for a specific partition.
func (t *MergeTreeTable) GetActivePartsForPartition(partitionID string) []*Part {
	var result []*Part
	for _, p := range t.GetActiveParts() {
		if p.Info.PartitionID == partitionID {
			result = append(result, p)
		}
	}
	return result
}

// ReplaceParts atomically marks old parts as outdated and adds the new part.
func (t *MergeTreeTable) ReplaceParts(oldParts []*Part, newPart *Part) {
	t.mu.Lock()
	defer t.mu.Unlock()

	oldSet := make(map[string]bool, len(oldParts))
	for _, p := range oldParts {
		oldSet[p.Info.DirName()] = true
	}
	for _, p := range t.parts {
		if oldSet[p.Info.DirName()] {
			p.State = PartOutdated
		}
	}
	t.parts = append(t.parts, newPart)
}

// RemoveOutdatedParts deletes the directories of outdated parts and forgets them.
func (t *MergeTreeTable) RemoveOutdatedParts() (int, error) {
	t.mu.Lock()
	var keep, remove []*Part
	for _, p := range t.parts {
		if p.State == PartOutdated {
			p.State = PartDeleting
			remove = append(remove, p)
		} else {
			keep = append(keep, p)
		}
	}
	t.parts = keep
	t.mu.Unlock()

	for _, p := range remove {
		if err := os.RemoveAll(p.BasePath); err != nil {
			return 0, fmt.Errorf("removing %s: %w", p.Info.DirName(), err)
		}
	}
	return len(remove), nil
}

// AddPart adds a part directly (used during metadata loading).
func (t *MergeTreeTable) AddPart(part *Part) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parts = append(t.parts, part)
	if part.Info.MaxBlock >= t.blockCounter.Load() {
		t.blockCounter.Store(part.Info.MaxBlock)
	}
}

// Select reads the rows with lo <= keyCol < hi from all active parts. Parts are
// pruned by their min-max index and marks by the primary index, then the
// remaining rows are filtered exactly. A nil bound is open.
func (t *MergeTreeTable) Select(columnNames []string, keyCol string, lo, hi types.Value) (*column.Block, error) {
	keyDef, ok := t.Schema.GetColumnDef(keyCol)
	if !ok {
		return nil, fmt.Errorf("column %s not in schema", keyCol)
	}
	for _, name := range columnNames {
		if _, ok := t.Schema.GetColumnDef(name); !ok {
			return nil, fmt.Errorf("column %s not in schema", name)
		}
	}
	readCols := slices.Clone(columnNames)
	if !slices.Contains(readCols, keyCol) {
		readCols = append(readCols, keyCol)
	}

	out := column.NewEmptyBlock(columnNames, t.columnTypes(columnNames))
	for _, part := range t.GetActiveParts() {
		reader := NewPartReader(part, &t.Schema)

		if keyCol == t.Schema.PartitionBy {
			mm, err := reader.LoadMinMaxIndex()
			if err != nil {
				return nil, err
			}
			if mm != nil && !mm.Overlaps(lo, hi) {
				continue
			}
		}

		idx, err := reader.LoadPrimaryIndex()
		if err != nil {
			return nil, err
		}
		ranges := idx.SelectMarkRanges(keyCol, lo, hi)
		if len(ranges) == 0 {
			continue
		}
		logger.Debug().
			Str("part", part.Info.DirName()).
			Str("ranges", ranges.String()).
			Int("rows", granularity.RowsCountInRanges(part.IndexGranularity(), ranges)).
			Msg("selected marks")

		blk, err := reader.ReadRanges(readCols, ranges)
		if err != nil {
			return nil, err
		}
		keys, _ := blk.GetColumn(keyCol)
		var rows []int
		for i := 0; i < keys.Len(); i++ {
			v := keys.Value(i)
			if lo != nil && types.CompareValues(keyDef.DataType, v, lo) < 0 {
				continue
			}
			if hi != nil && types.CompareValues(keyDef.DataType, v, hi) >= 0 {
				continue
			}
			rows = append(rows, i)
		}
		for i, name := range columnNames {
			src, _ := blk.GetColumn(name)
			column.AppendColumn(out.Columns[i], column.Gather(src, rows))
		}
	}
	return out, nil
}

func (t *MergeTreeTable) columnTypes(names []string) []types.DataType {
	dts := make([]types.DataType, len(names))
	for i, n := range names {
		def, _ := t.Schema.GetColumnDef(n)
		dts[i] = def.DataType
	}
	return dts
}
