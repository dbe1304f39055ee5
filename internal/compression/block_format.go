package compression

import (
	"encoding/binary"
	"fmt"
)

// Compressed block format (MergeTree layout without the 16-byte checksum):
//
//	[method (1)] [compressed size incl. header (4 LE)] [uncompressed size (4 LE)] [payload]
const HeaderSize = 9

// CompressBlock compresses data and frames it with a header. Blocks the codec
// cannot shrink are stored uncompressed.
func CompressBlock(codec Codec, data []byte) ([]byte, error) {
	compressed, err := codec.Compress(data)
	if err != nil {
		return nil, err
	}
	method := codec.MethodByte()
	if len(data) > 0 && (len(compressed) == 0 || len(compressed) >= len(data)) {
		compressed = data
		method = MethodNone
	}

	totalSize := HeaderSize + len(compressed)
	block := make([]byte, totalSize)
	block[0] = method
	binary.LittleEndian.PutUint32(block[1:5], uint32(totalSize))
	binary.LittleEndian.PutUint32(block[5:9], uint32(len(data)))
	copy(block[HeaderSize:], compressed)
	return block, nil
}

// DecompressBlock validates the header of the block at the start of data and
// returns its decompressed payload.
func DecompressBlock(data []byte) ([]byte, error) {
	compressedTotal, uncompressed, err := ReadBlockHeader(data)
	if err != nil {
		return nil, err
	}
	if int(compressedTotal) > len(data) || compressedTotal < HeaderSize {
		return nil, fmt.Errorf("compressed block size mismatch: header says %d, have %d", compressedTotal, len(data))
	}
	codec, err := codecByMethod(data[0])
	if err != nil {
		return nil, err
	}
	return codec.Decompress(data[HeaderSize:compressedTotal], int(uncompressed))
}

// ReadBlockHeader returns the framed size and the uncompressed size of the
// block at the start of data.
func ReadBlockHeader(data []byte) (compressedTotal uint32, uncompressed uint32, err error) {
	if len(data) < HeaderSize {
		return 0, 0, fmt.Errorf("not enough data for block header: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint32(data[1:5]), binary.LittleEndian.Uint32(data[5:9]), nil
}
