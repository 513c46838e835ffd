// Package compress implements the section codecs an index header may be
// stored with. Posting streams themselves are never compressed; only the
// term table, which is read once per open, is.
package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used for a section.
type Type uint8

const (
	// None stores the section as is.
	None Type = 0
	// LZ4 uses LZ4 block compression (fast).
	LZ4 Type = 1
	// ZSTD uses ZSTD compression (better ratio).
	ZSTD Type = 2
)

// String returns the lowercase codec name.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether t is a known codec.
func (t Type) Valid() bool {
	return t <= ZSTD
}

// Parse maps a codec name to its Type.
func Parse(s string) (Type, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

var (
	// ErrUnknownCodec is returned for codec identifiers this build cannot decode.
	ErrUnknownCodec = errors.New("compress: unknown codec")
	// ErrSizeMismatch is returned when a section does not decode to its recorded size.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses data with t. It returns the stored bytes and the codec
// actually applied: when compression saves less than 10% the section is
// stored uncompressed and None is returned.
func Encode(data []byte, t Type) ([]byte, Type, error) {
	if t == None || len(data) == 0 {
		return data, None, nil
	}

	var compressed []byte
	switch t {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, None, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, None, fmt.Errorf("%w: %d", ErrUnknownCodec, t)
	}

	// n == 0 means LZ4 found the input incompressible.
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		return data, None, nil
	}
	return compressed, t, nil
}

// Decode reverses Encode. rawLen is the uncompressed size recorded
// alongside the section.
func Decode(stored []byte, t Type, rawLen int) ([]byte, error) {
	switch t {
	case None:
		if len(stored) != rawLen {
			return nil, ErrSizeMismatch
		}
		return stored, nil
	case LZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, ErrSizeMismatch
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(stored, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
		if len(out) != rawLen {
			return nil, ErrSizeMismatch
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, t)
	}
}
