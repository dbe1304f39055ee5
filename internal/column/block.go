package column

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/granulestore/internal/types"
)

// Block is a chunk of columnar data with named columns, all the same length.
type Block struct {
	ColumnNames []string
	Columns     []Column
	nameIndex   map[string]int
}

// NewBlock creates a block from parallel slices of names and columns.
func NewBlock(names []string, cols []Column) *Block {
	b := &Block{ColumnNames: names, Columns: cols}
	b.rebuildIndex()
	return b
}

// NewEmptyBlock creates a zero-row block with the given schema.
func NewEmptyBlock(names []string, dts []types.DataType) *Block {
	cols := make([]Column, len(dts))
	for i, dt := range dts {
		cols[i] = NewColumn(dt)
	}
	return NewBlock(slices.Clone(names), cols)
}

// NumRows returns the number of rows in the block.
func (b *Block) NumRows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return b.Columns[0].Len()
}

func (b *Block) NumColumns() int {
	return len(b.Columns)
}

// ByteSize is the in-memory size of all columns.
func (b *Block) ByteSize() int {
	n := 0
	for _, c := range b.Columns {
		n += c.ByteSize()
	}
	return n
}

// GetColumn returns the column with the given name.
func (b *Block) GetColumn(name string) (Column, bool) {
	i, ok := b.GetColumnIndex(name)
	if !ok {
		return nil, false
	}
	return b.Columns[i], true
}

// GetColumnIndex returns the index of a column by name.
func (b *Block) GetColumnIndex(name string) (int, bool) {
	if b.nameIndex == nil {
		b.rebuildIndex()
	}
	i, ok := b.nameIndex[name]
	return i, ok
}

// ColumnTypes returns the data types of all columns.
func (b *Block) ColumnTypes() []types.DataType {
	dts := make([]types.DataType, len(b.Columns))
	for i, c := range b.Columns {
		dts[i] = c.DataType()
	}
	return dts
}

func (b *Block) rebuildIndex() {
	b.nameIndex = make(map[string]int, len(b.ColumnNames))
	for i, n := range b.ColumnNames {
		b.nameIndex[n] = i
	}
}

// Validate checks that names and columns line up and all columns have the
// same length.
func (b *Block) Validate() error {
	if len(b.ColumnNames) != len(b.Columns) {
		return errors.Newf("block has %d names but %d columns", len(b.ColumnNames), len(b.Columns))
	}
	rows := b.NumRows()
	for i, c := range b.Columns {
		if c.Len() != rows {
			return errors.Newf("column %s has %d rows, expected %d", b.ColumnNames[i], c.Len(), rows)
		}
	}
	return nil
}

// AppendBlock appends all rows from another block with the same schema.
func (b *Block) AppendBlock(other *Block) error {
	if len(b.Columns) != len(other.Columns) {
		return errors.Newf("column count mismatch: %d vs %d", len(b.Columns), len(other.Columns))
	}
	for i := range b.Columns {
		if b.Columns[i].DataType() != other.Columns[i].DataType() {
			return errors.Newf("column %s type mismatch: %s vs %s",
				b.ColumnNames[i], b.Columns[i].DataType().Name(), other.Columns[i].DataType().Name())
		}
	}
	for i := range b.Columns {
		AppendColumn(b.Columns[i], other.Columns[i])
	}
	return nil
}

// ConcatBlocks concatenates blocks sharing a schema into a new block.
func ConcatBlocks(blocks []*Block) (*Block, error) {
	if len(blocks) == 0 {
		return nil, errors.New("no blocks to concatenate")
	}
	out := NewEmptyBlock(blocks[0].ColumnNames, blocks[0].ColumnTypes())
	for _, blk := range blocks {
		if err := out.AppendBlock(blk); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SliceRows returns a new block with rows [from, to).
func (b *Block) SliceRows(from, to int) *Block {
	cols := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = c.Slice(from, to)
	}
	return NewBlock(slices.Clone(b.ColumnNames), cols)
}

// SortByColumns stably sorts the block by the given columns in ascending order.
func (b *Block) SortByColumns(sortCols []string) error {
	if b.NumRows() <= 1 || len(sortCols) == 0 {
		return nil
	}

	keys := make([]Column, len(sortCols))
	for i, name := range sortCols {
		c, ok := b.GetColumn(name)
		if !ok {
			return errors.Newf("sort column not found: %s", name)
		}
		keys[i] = c
	}

	indices := make([]int, b.NumRows())
	for i := range indices {
		indices[i] = i
	}
	slices.SortStableFunc(indices, func(x, y int) int {
		for _, k := range keys {
			if c := types.CompareValues(k.DataType(), k.Value(x), k.Value(y)); c != 0 {
				return c
			}
		}
		return 0
	})

	for i, c := range b.Columns {
		b.Columns[i] = Gather(c, indices)
	}
	return nil
}

// SelectColumns returns a new block with only the specified columns.
func (b *Block) SelectColumns(names []string) (*Block, error) {
	cols := make([]Column, len(names))
	for i, name := range names {
		c, ok := b.GetColumn(name)
		if !ok {
			return nil, errors.Newf("column not found: %s", name)
		}
		cols[i] = c
	}
	return NewBlock(slices.Clone(names), cols), nil
}
