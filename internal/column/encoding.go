package column

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/granulestore/internal/types"
)

// WriteVarUInt writes a variable-length unsigned integer (same encoding as protobuf varint).
func WriteVarUInt(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// ReadVarUInt reads a variable-length unsigned integer.
func ReadVarUInt(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}

// EncodeColumn encodes a column to binary format.
// Fixed-size types: raw little-endian contiguous bytes.
// String: VarInt(length) + raw bytes per string.
func EncodeColumn(col Column) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeColumnTo(&buf, col); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeColumnTo streams the encoding of col into w.
func EncodeColumnTo(w io.Writer, col Column) error {
	switch c := col.(type) {
	case *StringColumn:
		for _, s := range c.Data {
			if err := WriteVarUInt(w, uint64(len(s))); err != nil {
				return err
			}
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
		}
		return nil
	case interface{ encodeTo(io.Writer) error }:
		return c.encodeTo(w)
	default:
		return errors.Newf("unsupported column type for encoding: %T", col)
	}
}

func (c *FixedColumn[T]) encodeTo(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, c.Data)
}

func (c *FixedColumn[T]) decodeFrom(r io.Reader, numRows int) error {
	c.Data = make([]T, numRows)
	return binary.Read(r, binary.LittleEndian, c.Data)
}

// DecodeColumn decodes numRows values of type dt from data.
func DecodeColumn(dt types.DataType, data []byte, numRows int) (Column, error) {
	return DecodeColumnFrom(dt, bytes.NewReader(data), numRows)
}

// DecodeColumnFrom reads numRows values of type dt from r.
func DecodeColumnFrom(dt types.DataType, r io.Reader, numRows int) (Column, error) {
	col := NewColumnWithCapacity(dt, numRows)
	switch c := col.(type) {
	case *StringColumn:
		br := asByteReader(r)
		for i := 0; i < numRows; i++ {
			n, err := ReadVarUInt(br)
			if err != nil {
				return nil, errors.Wrapf(err, "reading string length at row %d", i)
			}
			buf := make([]byte, n)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, errors.Wrapf(err, "reading string at row %d", i)
			}
			c.Data = append(c.Data, string(buf))
		}
	case interface {
		decodeFrom(io.Reader, int) error
	}:
		if err := c.decodeFrom(r, numRows); err != nil {
			return nil, errors.Wrapf(err, "decoding %d %s values", numRows, dt.Name())
		}
	}
	return col, nil
}

// EncodeValue encodes a single value to binary format.
func EncodeValue(w io.Writer, dt types.DataType, v types.Value) error {
	col := NewColumnWithCapacity(dt, 1)
	col.Append(v)
	return EncodeColumnTo(w, col)
}

// DecodeValue decodes a single value from binary format.
func DecodeValue(r io.Reader, dt types.DataType) (types.Value, error) {
	col, err := DecodeColumnFrom(dt, r, 1)
	if err != nil {
		return nil, err
	}
	return col.Value(0), nil
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

// byteReaderWrapper adds io.ByteReader to a plain io.Reader without read-ahead,
// so later reads from the underlying reader stay in sync.
type byteReaderWrapper struct {
	r   io.Reader
	buf [1]byte
}

func asByteReader(r io.Reader) byteReader {
	if br, ok := r.(byteReader); ok {
		return br
	}
	return &byteReaderWrapper{r: r}
}

func (b *byteReaderWrapper) ReadByte() (byte, error) {
	_, err := io.ReadFull(b.r, b.buf[:])
	return b.buf[0], err
}

func (b *byteReaderWrapper) Read(p []byte) (int, error) {
	return b.r.Read(p)
}
