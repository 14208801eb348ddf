package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/arraycache"
	"github.com/hupe1980/arraycache/internal/conv"
	"github.com/hupe1980/arraycache/internal/hash"
)

const (
	// Version is the frame format version written by Encode.
	Version = 1

	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 16

	// Extension is the file name suffix used for stored frames.
	Extension = ".acf"
)

var magic = [4]byte{'A', 'C', 'F', '1'}

var (
	// ErrInvalidMagic is returned when the input does not start with the frame magic.
	ErrInvalidMagic = errors.New("invalid frame magic")
	// ErrUnsupportedVersion is returned for frames written by a newer format version.
	ErrUnsupportedVersion = errors.New("unsupported frame version")
	// ErrChecksumMismatch is returned when the decoded body does not match its checksum.
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	// ErrCorruptFrame is returned for truncated frames or invalid header fields.
	ErrCorruptFrame = errors.New("corrupt frame")
)

// Header describes a frame.
type Header struct {
	Version     uint8
	Type        arraycache.ElementType
	Compression Compression
	RawLength   int
	Checksum    uint32
}

// Frame is a decoded frame.
type Frame struct {
	Header

	// Data holds the raw payload of a binary frame. For uncompressed frames it
	// aliases the input buffer.
	Data []byte

	// Native holds the sequence of a native frame.
	Native []float64
}

// Encode frames a binary payload of element type t.
// If compression does not shrink the payload the body is stored uncompressed.
func Encode(data []byte, t arraycache.ElementType, c Compression) ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("encode: invalid element type %s", t)
	}
	return encode(data, t, c)
}

// EncodeNative frames a native sequence as a JSON array.
func EncodeNative(seq []float64, c Compression) ([]byte, error) {
	if seq == nil {
		seq = []float64{}
	}
	data, err := gojson.Marshal(seq)
	if err != nil {
		return nil, fmt.Errorf("encode native: %w", err)
	}
	return encode(data, arraycache.Native, c)
}

func encode(data []byte, t arraycache.ElementType, c Compression) ([]byte, error) {
	rawLen, err := conv.IntToUint32(len(data))
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	body, ok, err := compress(data, c)
	if err != nil {
		return nil, fmt.Errorf("encode: %s: %w", c, err)
	}
	if !ok {
		body, c = data, CompressionNone
	}

	out := make([]byte, HeaderSize+len(body))
	copy(out[0:4], magic[:])
	out[4] = Version
	out[5] = byte(t)
	out[6] = byte(c)
	binary.LittleEndian.PutUint32(out[8:], rawLen)
	binary.LittleEndian.PutUint32(out[12:], hash.CRC32C(data))
	copy(out[HeaderSize:], body)

	return out, nil
}

// ReadHeader parses and validates the header at the start of b.
func ReadHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptFrame, len(b))
	}
	if [4]byte(b[0:4]) != magic {
		return Header{}, ErrInvalidMagic
	}
	if b[4] == 0 || b[4] > Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, b[4])
	}

	t := arraycache.ElementType(b[5])
	if !t.IsValid() && t != arraycache.Native {
		return Header{}, fmt.Errorf("%w: element type %d", ErrCorruptFrame, b[5])
	}

	c := Compression(b[6])
	if c > CompressionZstd {
		return Header{}, fmt.Errorf("%w: compression %d", ErrCorruptFrame, b[6])
	}

	rawLen, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(b[8:]))
	if err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrCorruptFrame, err)
	}

	return Header{
		Version:     b[4],
		Type:        t,
		Compression: c,
		RawLength:   rawLen,
		Checksum:    binary.LittleEndian.Uint32(b[12:]),
	}, nil
}

// Decode parses a frame and verifies its checksum.
func Decode(b []byte) (*Frame, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return nil, err
	}

	body := b[HeaderSize:]

	var raw []byte
	if h.Compression == CompressionNone {
		if len(body) != h.RawLength {
			return nil, fmt.Errorf("%w: body has %d bytes, header says %d", ErrCorruptFrame, len(body), h.RawLength)
		}
		raw = body
	} else {
		raw, err = decompress(body, h.Compression, h.RawLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptFrame, h.Compression, err)
		}
	}

	if hash.CRC32C(raw) != h.Checksum {
		return nil, ErrChecksumMismatch
	}

	f := &Frame{Header: h}
	if h.Type == arraycache.Native {
		if err := gojson.Unmarshal(raw, &f.Native); err != nil {
			return nil, fmt.Errorf("%w: native body: %w", ErrCorruptFrame, err)
		}
		if f.Native == nil {
			f.Native = []float64{}
		}
		return f, nil
	}

	f.Data = raw
	return f, nil
}

// Insert stores the frame's contents in c under key.
func (f *Frame) Insert(c *arraycache.Cache, key string) {
	if f.Type == arraycache.Native {
		c.InsertNative(key, f.Native)
		return
	}
	c.Insert(key, f.Data, f.Type)
}

// Size returns the bytes the decoded frame occupies once cached.
func (f *Frame) Size() int {
	if f.Type == arraycache.Native {
		return len(f.Native) * arraycache.Native.Size()
	}
	return len(f.Data)
}
