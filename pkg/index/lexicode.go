package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/geovec/pkg/feature"
)

// Escape bytes for variable-width values. Escaped values never contain 0x00,
// so the 0x00 terminator sorts before any continuation.
const (
	terminator = 0x00
	escape     = 0x01
)

// EncodeValue lexicodes a canonical attribute value so that byte order
// matches value order.
func EncodeValue(t feature.AttributeType, value any) ([]byte, error) {
	switch t {
	case feature.TypeString:
		if s, ok := value.(string); ok {
			return escapeBytes([]byte(s)), nil
		}
	case feature.TypeBytes:
		if b, ok := value.([]byte); ok {
			return escapeBytes(b), nil
		}
	case feature.TypeInteger:
		if n, ok := value.(int32); ok {
			return binary.BigEndian.AppendUint32(nil, uint32(n)^(1<<31)), nil
		}
	case feature.TypeLong:
		if n, ok := value.(int64); ok {
			return encodeInt64(n), nil
		}
	case feature.TypeFloat:
		if f, ok := value.(float32); ok {
			return binary.BigEndian.AppendUint32(nil, sortableFloat32(f)), nil
		}
	case feature.TypeDouble:
		if f, ok := value.(float64); ok {
			return binary.BigEndian.AppendUint64(nil, sortableFloat64(f)), nil
		}
	case feature.TypeDate:
		if d, ok := value.(time.Time); ok {
			return encodeInt64(d.UnixMilli()), nil
		}
	case feature.TypeBoolean:
		if b, ok := value.(bool); ok {
			if b {
				return []byte{1}, nil
			}
			return []byte{0}, nil
		}
	case feature.TypeUUID:
		if id, ok := value.(uuid.UUID); ok {
			return escapeBytes(id[:]), nil
		}
	default:
		return nil, fmt.Errorf("%s values are not attribute indexable", t)
	}
	return nil, fmt.Errorf("cannot lexicode %T as %s", value, t)
}

// DecodeValue reverses EncodeValue on the head of b, which must include the
// terminator. It returns the value and the bytes after the terminator.
func DecodeValue(t feature.AttributeType, b []byte) (any, []byte, error) {
	switch t {
	case feature.TypeString, feature.TypeBytes, feature.TypeUUID:
		raw, rest, err := unescapeBytes(b)
		if err != nil {
			return nil, nil, err
		}
		switch t {
		case feature.TypeString:
			return string(raw), rest, nil
		case feature.TypeUUID:
			id, err := uuid.FromBytes(raw)
			return id, rest, err
		}
		return raw, rest, nil
	}

	width := fixedWidth(t)
	if width == 0 {
		return nil, nil, fmt.Errorf("%s values are not attribute indexable", t)
	}
	if len(b) < width+1 || b[width] != terminator {
		return nil, nil, fmt.Errorf("truncated %s value", t)
	}
	raw, rest := b[:width], b[width+1:]
	switch t {
	case feature.TypeInteger:
		return int32(binary.BigEndian.Uint32(raw) ^ (1 << 31)), rest, nil
	case feature.TypeLong:
		return decodeInt64(raw), rest, nil
	case feature.TypeFloat:
		return unsortableFloat32(binary.BigEndian.Uint32(raw)), rest, nil
	case feature.TypeDouble:
		return unsortableFloat64(binary.BigEndian.Uint64(raw)), rest, nil
	case feature.TypeDate:
		return time.UnixMilli(decodeInt64(raw)).UTC(), rest, nil
	}
	return raw[0] == 1, rest, nil
}

func fixedWidth(t feature.AttributeType) int {
	switch t {
	case feature.TypeInteger, feature.TypeFloat:
		return 4
	case feature.TypeLong, feature.TypeDouble, feature.TypeDate:
		return 8
	case feature.TypeBoolean:
		return 1
	}
	return 0
}

func encodeInt64(n int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(n)^(1<<63))
}

func decodeInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// sortableFloat64 flips all bits of negatives and the sign bit of positives.
func sortableFloat64(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | 1<<63
}

func unsortableFloat64(bits uint64) float64 {
	if bits&(1<<63) != 0 {
		return math.Float64frombits(bits &^ (1 << 63))
	}
	return math.Float64frombits(^bits)
}

func sortableFloat32(f float32) uint32 {
	bits := math.Float32bits(f)
	if bits&(1<<31) != 0 {
		return ^bits
	}
	return bits | 1<<31
}

func unsortableFloat32(bits uint32) float32 {
	if bits&(1<<31) != 0 {
		return math.Float32frombits(bits &^ (1 << 31))
	}
	return math.Float32frombits(^bits)
}

func escapeBytes(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		switch c {
		case terminator:
			out = append(out, escape, 0x01)
		case escape:
			out = append(out, escape, 0x02)
		default:
			out = append(out, c)
		}
	}
	return out
}

// unescapeBytes decodes up to the terminator.
func unescapeBytes(b []byte) ([]byte, []byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case terminator:
			return out, b[i+1:], nil
		case escape:
			if i+1 >= len(b) {
				return nil, nil, fmt.Errorf("dangling escape byte")
			}
			i++
			switch b[i] {
			case 0x01:
				out = append(out, terminator)
			case 0x02:
				out = append(out, escape)
			default:
				return nil, nil, fmt.Errorf("invalid escape sequence 0x01 0x%02x", b[i])
			}
		default:
			out = append(out, b[i])
		}
	}
	return nil, nil, fmt.Errorf("missing value terminator")
}
