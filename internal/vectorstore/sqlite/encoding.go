package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector encodes vec as a BLOB: one byte holding the float width (4 or 8)
// followed by little-endian IEEE 754 values. bits selects 32 or 64-bit floats.
func EncodeVector(vec []float32, bits int) ([]byte, error) {
	switch bits {
	case 32:
		b := make([]byte, 1+len(vec)*4)
		b[0] = 4
		for i, v := range vec {
			binary.LittleEndian.PutUint32(b[1+i*4:], math.Float32bits(v))
		}
		return b, nil
	case 64:
		b := make([]byte, 1+len(vec)*8)
		b[0] = 8
		for i, v := range vec {
			binary.LittleEndian.PutUint64(b[1+i*8:], math.Float64bits(float64(v)))
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported embedding bits %d", bits)
	}
}

// DecodeVector decodes a BLOB produced by EncodeVector.
func DecodeVector(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty vector blob")
	}
	width := int(b[0])
	body := b[1:]
	if (width != 4 && width != 8) || len(body)%width != 0 {
		return nil, fmt.Errorf("invalid vector blob: width %d, length %d", width, len(body))
	}
	n := len(body) / width
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if width == 4 {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:])))
		} else {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:]))
		}
	}
	return out, nil
}
