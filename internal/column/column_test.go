package column

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/granulestore/internal/types"
)

func testBlock() *Block {
	return NewBlock(
		[]string{"id", "name", "ts"},
		[]Column{
			NewUInt64Column(3, 1, 2, 1),
			NewStringColumn("c", "a", "b", "a2"),
			NewDateTimeColumn(30, 10, 20, 11),
		},
	)
}

func TestEncodeDecodeColumn(t *testing.T) {
	cols := []Column{
		NewUInt64Column(1, 2, 1<<40),
		NewInt64Column(-5, 0, 7),
		NewFloat64Column(1.5, -2.25),
		NewDateTimeColumn(1700000000, 0),
		NewStringColumn("", "hello", "wörld"),
		&FixedColumn[uint8]{Type: types.TypeUInt8, Data: []uint8{0, 255}},
	}
	for _, col := range cols {
		t.Run(col.DataType().Name(), func(t *testing.T) {
			data, err := EncodeColumn(col)
			require.NoError(t, err)
			got, err := DecodeColumn(col.DataType(), data, col.Len())
			require.NoError(t, err)
			require.Equal(t, col, got)
		})
	}
}

func TestDecodeColumnShortInput(t *testing.T) {
	data, err := EncodeColumn(NewUInt64Column(1, 2))
	require.NoError(t, err)
	_, err = DecodeColumn(types.TypeUInt64, data, 3)
	require.Error(t, err)
}

func TestEncodeValueSequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeValue(&buf, types.TypeString, "key"))
	require.NoError(t, EncodeValue(&buf, types.TypeUInt32, uint32(42)))
	require.NoError(t, EncodeValue(&buf, types.TypeString, "next"))

	r := bytes.NewReader(buf.Bytes())
	for _, want := range []struct {
		dt types.DataType
		v  types.Value
	}{
		{types.TypeString, "key"},
		{types.TypeUInt32, uint32(42)},
		{types.TypeString, "next"},
	} {
		v, err := DecodeValue(r, want.dt)
		require.NoError(t, err)
		assert.Equal(t, want.v, v)
	}
	assert.Zero(t, r.Len())
}

func TestByteSize(t *testing.T) {
	assert.Equal(t, 24, NewUInt64Column(1, 2, 3).ByteSize())
	assert.Equal(t, 8, NewDateTimeColumn(1, 2).ByteSize())
	assert.Equal(t, 5+2*8, NewStringColumn("abc", "de").ByteSize())
	assert.Equal(t, 32+(5+32)+16, testBlock().ByteSize())
}

func TestSortByColumns(t *testing.T) {
	b := testBlock()
	require.NoError(t, b.SortByColumns([]string{"id", "ts"}))

	ids := b.Columns[0].(*FixedColumn[uint64]).Data
	names := b.Columns[1].(*StringColumn).Data
	assert.Equal(t, []uint64{1, 1, 2, 3}, ids)
	assert.Equal(t, []string{"a", "a2", "b", "c"}, names)

	assert.Error(t, b.SortByColumns([]string{"missing"}))
}

func TestSliceAndAppend(t *testing.T) {
	b := testBlock()
	head := b.SliceRows(0, 2)
	tail := b.SliceRows(2, 4)
	require.Equal(t, 2, head.NumRows())
	require.NoError(t, head.Validate())

	merged, err := ConcatBlocks([]*Block{head, tail})
	require.NoError(t, err)
	assert.Equal(t, b.Columns, merged.Columns)

	other := NewBlock([]string{"id"}, []Column{NewUInt64Column(1)})
	assert.Error(t, merged.AppendBlock(other))
}

func TestAppendBlockTypeMismatch(t *testing.T) {
	a := NewBlock([]string{"x"}, []Column{NewUInt64Column(1)})
	b := NewBlock([]string{"x"}, []Column{NewInt64Column(1)})
	assert.Error(t, a.AppendBlock(b))
}

func TestValidate(t *testing.T) {
	b := NewBlock([]string{"a", "b"}, []Column{NewUInt64Column(1, 2), NewStringColumn("x")})
	assert.Error(t, b.Validate())
}

func TestSelectColumns(t *testing.T) {
	b := testBlock()
	sel, err := b.SelectColumns([]string{"ts", "id"})
	require.NoError(t, err)
	assert.Equal(t, []types.DataType{types.TypeDateTime, types.TypeUInt64}, sel.ColumnTypes())

	_, err = b.SelectColumns([]string{"nope"})
	assert.Error(t, err)
}
