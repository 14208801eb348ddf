package codec

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to a frame body.
type Compression uint8

const (
	// CompressionNone stores the body as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot data).
	CompressionLZ4 Compression = 1
	// CompressionZstd uses zstd (better ratio, good for cold data).
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps "none", "lz4" or "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecodeAllCapLimit(true))
}

// compress returns the compressed body, or ok=false if the algorithm did not
// shrink data enough to be worth storing.
func compress(data []byte, c Compression) (out []byte, ok bool, err error) {
	if c == CompressionNone || len(data) == 0 {
		return nil, false, nil
	}

	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, false, err
		}
		if n == 0 {
			// Incompressible.
			return nil, false, nil
		}
		out = buf[:n]
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, false, err
		}
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, false, fmt.Errorf("unsupported compression %s", c)
	}

	// Keep the raw body unless compression saves at least 10%.
	if float64(len(out)) > float64(len(data))*0.9 {
		return nil, false, nil
	}
	return out, true, nil
}

var (
	errSizeMismatch = errors.New("decompressed size mismatch")
	errRatio        = errors.New("raw length exceeds the maximum expansion of the body")
)

// Upper bounds on how far one body byte can expand. An LZ4 length byte
// covers at most 255 bytes and a 4-byte zstd RLE block at most 2 MiB.
const (
	lz4MaxRatio  = 255
	zstdMaxRatio = 1 << 19
)

// checkExpansion rejects raw lengths the body cannot possibly produce, so a
// corrupt header never drives a large allocation.
func checkExpansion(body []byte, c Compression, rawLen int) error {
	limit := uint64(len(body))
	switch c {
	case CompressionLZ4:
		limit *= lz4MaxRatio
	case CompressionZstd:
		limit *= zstdMaxRatio
	}
	if uint64(rawLen) > limit {
		return fmt.Errorf("%w: %d bytes from a %d byte body", errRatio, rawLen, len(body))
	}
	return nil
}

func decompress(body []byte, c Compression, rawLen int) ([]byte, error) {
	if err := checkExpansion(body, c, rawLen); err != nil {
		return nil, err
	}

	switch c {
	case CompressionLZ4:
		result := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, result)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, errSizeMismatch
		}
		return result, nil

	case CompressionZstd:
		var zh zstd.Header
		if err := zh.Decode(body); err != nil {
			return nil, err
		}
		if zh.HasFCS && zh.FrameContentSize != uint64(rawLen) {
			return nil, errSizeMismatch
		}

		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)

		// The decoder refuses to grow past cap(dst).
		decoded, err := dec.DecodeAll(body, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
		if len(decoded) != rawLen {
			return nil, errSizeMismatch
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
}
