// Package socketcan carries register frames over a Linux CAN-FD interface.
//
// Each request is one extended-id frame from source to dest with the
// reply-requested bit set; the device answers with source and dest swapped.
package socketcan

import (
	"errors"
	"fmt"
)

const (
	// MaxPayload is the largest CAN-FD data field.
	MaxPayload = 64
	// Pad fills a payload up to a valid CAN-FD length.
	Pad byte = 0x50

	replyRequested uint32 = 0x8000
)

var (
	ErrUnsupported  = errors.New("socketcan: unsupported on this platform")
	ErrFrameTooLong = errors.New("socketcan: payload exceeds 64 bytes")
	ErrClosed       = errors.New("socketcan: transport closed")
)

// Config selects the interface and our own bus id.
type Config struct {
	Interface string
	Source    uint8
}

// RequestID is the arbitration id of a frame from source to dest.
func RequestID(source, dest uint8) uint32 {
	return uint32(source&0x7f)<<8 | uint32(dest&0x7f) | replyRequested
}

// ReplyID is the arbitration id dest uses to answer source.
func ReplyID(source, dest uint8) uint32 {
	return uint32(dest&0x7f)<<8 | uint32(source&0x7f)
}

var fdLengths = [...]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// PaddedLen rounds n up to the next length a CAN-FD frame can carry.
func PaddedLen(n int) (int, error) {
	for _, l := range fdLengths {
		if n <= l {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrFrameTooLong, n)
}

// PadPayload copies payload and fills it with Pad to a valid length.
func PadPayload(payload []byte) ([]byte, error) {
	n, err := PaddedLen(len(payload))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, payload)
	for i := len(payload); i < n; i++ {
		out[i] = Pad
	}
	return out, nil
}
