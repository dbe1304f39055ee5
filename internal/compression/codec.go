package compression

import "fmt"

// Codec compresses and decompresses data blocks.
type Codec interface {
	// MethodByte returns the single-byte codec identifier stored in block headers.
	MethodByte() byte
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, decompressedSize int) ([]byte, error)
}

// Method bytes of the compressed block header.
const (
	MethodNone byte = 0x02
	MethodLZ4  byte = 0x82
	MethodZSTD byte = 0x90
)

// CodecByName returns the codec for a settings value ("none", "lz4", "zstd").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "none":
		return &NoneCodec{}, nil
	case "", "lz4":
		return &LZ4Codec{}, nil
	case "zstd":
		return &ZSTDCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression codec: %q", name)
	}
}

func codecByMethod(method byte) (Codec, error) {
	switch method {
	case MethodNone:
		return &NoneCodec{}, nil
	case MethodLZ4:
		return &LZ4Codec{}, nil
	case MethodZSTD:
		return &ZSTDCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression method: 0x%02x", method)
	}
}
