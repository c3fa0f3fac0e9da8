package sqlite

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	encodingRaw  = "raw"
	encodingZstd = "zstd"
)

// zstd.Encoder и zstd.Decoder безопасны для конкурентного использования
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("sqlite: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("sqlite: zstd decoder initialization failed: " + err.Error())
	}
}

// encode returns the stored form of value and its encoding name.
// Values that do not shrink are stored raw.
func (s *Storage) encode(value []byte) ([]byte, string) {
	if s.compressAt <= 0 || len(value) < s.compressAt {
		return value, encodingRaw
	}

	compressed := zstdEncoder.EncodeAll(value, nil)
	if len(compressed) >= len(value) {
		return value, encodingRaw
	}
	return compressed, encodingZstd
}

func decode(stored []byte, encoding string, size int) ([]byte, error) {
	switch encoding {
	case encodingRaw, "":
		return stored, nil
	case encodingZstd:
		out, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}
