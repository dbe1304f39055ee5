package column

import (
	"fmt"

	"github.com/harshithgowdakt/granulestore/internal/types"
)

// Column is an in-memory columnar array of a single type.
type Column interface {
	DataType() types.DataType
	Len() int
	Value(i int) types.Value
	Append(v types.Value)
	Slice(from, to int) Column
	Clone() Column
	// ByteSize is the in-memory size of the data, used to size granules.
	ByteSize() int
}

// Fixed lists the Go types backing fixed-width columns.
type Fixed interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

// FixedColumn stores values of a fixed-width type. Type distinguishes types
// sharing a Go representation, such as UInt32 and DateTime.
type FixedColumn[T Fixed] struct {
	Type types.DataType
	Data []T
}

func (c *FixedColumn[T]) DataType() types.DataType { return c.Type }
func (c *FixedColumn[T]) Len() int                 { return len(c.Data) }
func (c *FixedColumn[T]) Value(i int) types.Value  { return c.Data[i] }
func (c *FixedColumn[T]) Append(v types.Value)     { c.Data = append(c.Data, v.(T)) }
func (c *FixedColumn[T]) ByteSize() int            { return len(c.Data) * c.Type.FixedSize() }

func (c *FixedColumn[T]) Slice(from, to int) Column {
	return &FixedColumn[T]{Type: c.Type, Data: append([]T(nil), c.Data[from:to]...)}
}

func (c *FixedColumn[T]) Clone() Column {
	return c.Slice(0, len(c.Data))
}

// StringColumn stores variable-length strings.
type StringColumn struct{ Data []string }

func (c *StringColumn) DataType() types.DataType { return types.TypeString }
func (c *StringColumn) Len() int                 { return len(c.Data) }
func (c *StringColumn) Value(i int) types.Value  { return c.Data[i] }
func (c *StringColumn) Append(v types.Value)     { c.Data = append(c.Data, v.(string)) }

// ByteSize counts characters plus one 8-byte offset per row.
func (c *StringColumn) ByteSize() int {
	n := 8 * len(c.Data)
	for _, s := range c.Data {
		n += len(s)
	}
	return n
}

func (c *StringColumn) Slice(from, to int) Column {
	return &StringColumn{Data: append([]string(nil), c.Data[from:to]...)}
}

func (c *StringColumn) Clone() Column {
	return c.Slice(0, len(c.Data))
}

func NewUInt32Column(vals ...uint32) *FixedColumn[uint32] {
	return &FixedColumn[uint32]{Type: types.TypeUInt32, Data: vals}
}

func NewUInt64Column(vals ...uint64) *FixedColumn[uint64] {
	return &FixedColumn[uint64]{Type: types.TypeUInt64, Data: vals}
}

func NewInt64Column(vals ...int64) *FixedColumn[int64] {
	return &FixedColumn[int64]{Type: types.TypeInt64, Data: vals}
}

func NewFloat64Column(vals ...float64) *FixedColumn[float64] {
	return &FixedColumn[float64]{Type: types.TypeFloat64, Data: vals}
}

func NewDateTimeColumn(vals ...uint32) *FixedColumn[uint32] {
	return &FixedColumn[uint32]{Type: types.TypeDateTime, Data: vals}
}

func NewStringColumn(vals ...string) *StringColumn {
	return &StringColumn{Data: vals}
}

// NewColumn creates an empty column of the given type.
func NewColumn(dt types.DataType) Column {
	return NewColumnWithCapacity(dt, 0)
}

// NewColumnWithCapacity creates a column pre-allocated for n rows.
func NewColumnWithCapacity(dt types.DataType, n int) Column {
	switch dt {
	case types.TypeUInt8:
		return newFixed[uint8](dt, n)
	case types.TypeUInt16:
		return newFixed[uint16](dt, n)
	case types.TypeUInt32, types.TypeDateTime:
		return newFixed[uint32](dt, n)
	case types.TypeUInt64:
		return newFixed[uint64](dt, n)
	case types.TypeInt8:
		return newFixed[int8](dt, n)
	case types.TypeInt16:
		return newFixed[int16](dt, n)
	case types.TypeInt32:
		return newFixed[int32](dt, n)
	case types.TypeInt64:
		return newFixed[int64](dt, n)
	case types.TypeFloat32:
		return newFixed[float32](dt, n)
	case types.TypeFloat64:
		return newFixed[float64](dt, n)
	case types.TypeString:
		return &StringColumn{Data: make([]string, 0, n)}
	default:
		panic(fmt.Sprintf("unsupported data type %d", dt))
	}
}

func newFixed[T Fixed](dt types.DataType, n int) *FixedColumn[T] {
	return &FixedColumn[T]{Type: dt, Data: make([]T, 0, n)}
}

// AppendColumn appends all rows of src onto dst. Both must have the same type.
func AppendColumn(dst, src Column) {
	switch d := dst.(type) {
	case *StringColumn:
		d.Data = append(d.Data, src.(*StringColumn).Data...)
	default:
		for i := 0; i < src.Len(); i++ {
			dst.Append(src.Value(i))
		}
	}
}

// Gather returns a new column with rows reordered by indices.
func Gather(col Column, indices []int) Column {
	out := NewColumnWithCapacity(col.DataType(), len(indices))
	for _, idx := range indices {
		out.Append(col.Value(idx))
	}
	return out
}
