package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compression applied to encoded payloads.
type Compression uint8

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, hot artifacts).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD Compression = 2
)

var envelopeMagic = [4]byte{'S', 'S', 'E', 'G'}

const envelopeVersion = 1

// ErrBadEnvelope is returned when an artifact file does not carry a
// valid envelope header.
var ErrBadEnvelope = errors.New("artifact: malformed envelope")

// Envelope layout:
//
//	[4]byte magic "SSEG"
//	uint8   version
//	uint8   compression
//	uint8   codec name length
//	[]byte  codec name
//	uint32  uncompressed payload size (little endian)
//	[]byte  payload (possibly compressed)
//
// The header makes artifacts self-describing: the reader selects the
// codec by name and the compression by type, independent of store
// configuration.

// wrap encodes v with the codec, compresses the result and prepends the
// envelope header.
func wrap(c Codec, comp Compression, v any) ([]byte, error) {
	payload, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("artifact: encode (%s): %w", c.Name(), err)
	}

	compressed, err := compressBlock(payload, comp)
	if err != nil {
		return nil, err
	}

	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("artifact: codec name too long: %q", name)
	}

	buf := make([]byte, 0, 4+3+len(name)+4+len(compressed))
	buf = append(buf, envelopeMagic[:]...)
	buf = append(buf, envelopeVersion, byte(comp), byte(len(name)))
	buf = append(buf, name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, compressed...)
	return buf, nil
}

// unwrap parses the envelope header, decompresses the payload and
// decodes it into v using the codec named in the header.
func unwrap(data []byte, v any) error {
	if len(data) < 7 || [4]byte(data[:4]) != envelopeMagic {
		return ErrBadEnvelope
	}
	if data[4] != envelopeVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadEnvelope, data[4])
	}
	comp := Compression(data[5])
	nameLen := int(data[6])
	rest := data[7:]
	if len(rest) < nameLen+4 {
		return ErrBadEnvelope
	}
	name := string(rest[:nameLen])
	rest = rest[nameLen:]
	size := binary.LittleEndian.Uint32(rest[:4])
	rest = rest[4:]

	c, ok := CodecByName(name)
	if !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrBadEnvelope, name)
	}

	payload, err := decompressBlock(rest, comp, int(size))
	if err != nil {
		return err
	}
	if err := c.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("artifact: decode (%s): %w", name, err)
	}
	return nil
}

// Pooled ZSTD coders; lz4 block functions are stateless.
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

func compressBlock(data []byte, comp Compression) ([]byte, error) {
	switch comp {
	case CompressionNone:
		return data, nil
	case CompressionZSTD:
		enc := getZstdEncoder()
		out := enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
		return out, nil
	case CompressionLZ4:
		out := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, out, nil)
		if err != nil {
			return nil, fmt.Errorf("artifact: lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible; lz4 block format cannot represent it, fall
			// back to a raw copy sized exactly like the input.
			return append([]byte(nil), data...), nil
		}
		return out[:n], nil
	default:
		return nil, fmt.Errorf("artifact: unknown compression type %d", comp)
	}
}

func decompressBlock(data []byte, comp Compression, size int) ([]byte, error) {
	switch comp {
	case CompressionNone:
		return data, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(data, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("artifact: zstd decompress: %w", err)
		}
		return out, nil
	case CompressionLZ4:
		if len(data) == size {
			// Stored raw by the incompressible-input fallback.
			return data, nil
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("artifact: lz4 decompress: %w", err)
		}
		return out[:n], nil
	default:
		return nil, fmt.Errorf("artifact: unknown compression type %d", comp)
	}
}
