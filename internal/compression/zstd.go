package compression

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdInitErr error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdInitErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdInitErr != nil {
			return
		}
		zstdDecoder, zstdInitErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdInitErr
}

// ZSTDCodec implements zstd block compression. Encoder and decoder are shared
// and safe for concurrent EncodeAll/DecodeAll calls.
type ZSTDCodec struct{}

func (c *ZSTDCodec) MethodByte() byte { return MethodZSTD }

func (c *ZSTDCodec) Name() string { return "zstd" }

func (c *ZSTDCodec) Compress(src []byte) ([]byte, error) {
	enc, _, err := zstdCoders()
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	return enc.EncodeAll(src, make([]byte, 0, len(src)/2+16)), nil
}

func (c *ZSTDCodec) Decompress(src []byte, decompressedSize int) ([]byte, error) {
	_, dec, err := zstdCoders()
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	dst, err := dec.DecodeAll(src, make([]byte, 0, decompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(dst) != decompressedSize {
		return nil, fmt.Errorf("zstd decompress: expected %d bytes, got %d", decompressedSize, len(dst))
	}
	return dst, nil
}
