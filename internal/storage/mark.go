package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/harshithgowdakt/granulestore/internal/compression"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
)

// Mark represents a position within a compressed column file.
// Each mark stores the byte offset to the compressed block and the offset within
// the decompressed block (always 0 in our format where each granule is one
// compressed block).
type Mark struct {
	OffsetInCompressedFile    uint64
	OffsetInDecompressedBlock uint64
}

// MarkWithRows is one entry of a marks file: a position per column (a single
// one for wide parts) and the rows of the granule starting there. Rows is only
// persisted for adaptive marks and reads back as 0 from .mrk files.
type MarkWithRows struct {
	Columns []Mark
	Rows    uint64
}

// EncodeMarks serializes marks in the layout described by info. columns is the
// number of positions per mark: 1 for wide parts, the column count for compact.
func EncodeMarks(info granularity.Info, columns int, marks []MarkWithRows) ([]byte, error) {
	size := info.MarkSizeInBytes(columns)
	buf := make([]byte, 0, size*len(marks))
	for i, m := range marks {
		if len(m.Columns) != columns {
			return nil, fmt.Errorf("mark %d has %d positions, expected %d", i, len(m.Columns), columns)
		}
		for _, pos := range m.Columns {
			buf = binary.LittleEndian.AppendUint64(buf, pos.OffsetInCompressedFile)
			buf = binary.LittleEndian.AppendUint64(buf, pos.OffsetInDecompressedBlock)
		}
		if info.MarkType.Adaptive {
			buf = binary.LittleEndian.AppendUint64(buf, m.Rows)
		}
	}
	return buf, nil
}

// DecodeMarks parses a marks file body written by EncodeMarks.
func DecodeMarks(info granularity.Info, columns int, data []byte) ([]MarkWithRows, error) {
	size := info.MarkSizeInBytes(columns)
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%s marks size %d is not a multiple of %d", info.MarkType, len(data), size)
	}
	marks := make([]MarkWithRows, len(data)/size)
	for i := range marks {
		rec := data[i*size : (i+1)*size]
		positions := make([]Mark, columns)
		for c := range positions {
			positions[c].OffsetInCompressedFile = binary.LittleEndian.Uint64(rec[c*16:])
			positions[c].OffsetInDecompressedBlock = binary.LittleEndian.Uint64(rec[c*16+8:])
		}
		marks[i].Columns = positions
		if info.MarkType.Adaptive {
			marks[i].Rows = binary.LittleEndian.Uint64(rec[columns*16:])
		}
	}
	return marks, nil
}

// WriteMarksFile writes marks to path, compressing the body with codec when
// the mark type is compressed.
func WriteMarksFile(path string, info granularity.Info, columns int, marks []MarkWithRows, codec compression.Codec) error {
	data, err := EncodeMarks(info, columns, marks)
	if err != nil {
		return err
	}
	if info.MarkType.Compressed {
		if data, err = compression.CompressBlock(codec, data); err != nil {
			return fmt.Errorf("compressing marks: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// ReadMarksFile reads all marks from a marks file of the given layout.
func ReadMarksFile(path string, info granularity.Info, columns int) ([]MarkWithRows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if info.MarkType.Compressed {
		if data, err = decompressAll(data); err != nil {
			return nil, fmt.Errorf("decompressing marks %s: %w", path, err)
		}
	}
	return DecodeMarks(info, columns, data)
}

// decompressAll decompresses a sequence of framed blocks.
func decompressAll(data []byte) ([]byte, error) {
	var out bytes.Buffer
	for len(data) > 0 {
		block, err := compression.DecompressBlock(data)
		if err != nil {
			return nil, err
		}
		total, _, _ := compression.ReadBlockHeader(data)
		out.Write(block)
		data = data[total:]
	}
	return out.Bytes(), nil
}
