package frame

import (
	"encoding/binary"
	"errors"
	"math"
)

// MaxVaruintLen is the longest encoding of a uint32.
const MaxVaruintLen = 5

var (
	ErrVaruintTruncated = errors.New("frame: truncated varuint")
	ErrVaruintOverflow  = errors.New("frame: varuint overflows uint32")
)

// AppendVaruint appends v as little-endian base-128, high bit set on every
// byte except the last.
func AppendVaruint(dst []byte, v uint32) []byte {
	return binary.AppendUvarint(dst, uint64(v))
}

func VaruintLen(v uint32) int {
	var buf [MaxVaruintLen]byte
	return binary.PutUvarint(buf[:], uint64(v))
}

// ReadVaruint decodes one varuint from the front of b and reports how many
// bytes it consumed.
func ReadVaruint(b []byte) (uint32, int, error) {
	v, n := binary.Uvarint(b)
	switch {
	case n == 0:
		return 0, 0, ErrVaruintTruncated
	case n < 0, n > MaxVaruintLen, v > math.MaxUint32:
		return 0, 0, ErrVaruintOverflow
	}
	return uint32(v), n, nil
}
