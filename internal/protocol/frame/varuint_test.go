package frame

import (
	"errors"
	"testing"
)

func TestVaruintRoundTripAddressSpace(t *testing.T) {
	buf := make([]byte, 0, MaxVaruintLen)
	for v := uint32(0); v < 1<<21; v++ {
		want := 3
		switch {
		case v < 1<<7:
			want = 1
		case v < 1<<14:
			want = 2
		}
		buf = AppendVaruint(buf[:0], v)
		if len(buf) != want || VaruintLen(v) != want {
			t.Fatalf("varuint %d: encoded %d bytes (len fn %d) want %d", v, len(buf), VaruintLen(v), want)
		}
		got, n, err := ReadVaruint(buf)
		if err != nil {
			t.Fatalf("read varuint %d: %v", v, err)
		}
		if got != v || n != want {
			t.Fatalf("varuint %d: got %d consumed %d", v, got, n)
		}
	}
}

func TestVaruintKnownEncodings(t *testing.T) {
	cases := []struct {
		v    uint32
		wire []byte
	}{
		{0x000, []byte{0x00}},
		{0x021, []byte{0x21}},
		{0x07f, []byte{0x7f}},
		{0x080, []byte{0x80, 0x01}},
		{0x160, []byte{0xe0, 0x02}},
		{0xffffffff, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, tc := range cases {
		got := AppendVaruint(nil, tc.v)
		if string(got) != string(tc.wire) {
			t.Fatalf("encode 0x%x: got % x want % x", tc.v, got, tc.wire)
		}
	}
}

func TestReadVaruintTruncated(t *testing.T) {
	_, _, err := ReadVaruint([]byte{0x80, 0x80})
	if !errors.Is(err, ErrVaruintTruncated) {
		t.Fatalf("expected ErrVaruintTruncated, got %v", err)
	}
}

func TestReadVaruintOverflow(t *testing.T) {
	_, _, err := ReadVaruint([]byte{0xff, 0xff, 0xff, 0xff, 0x1f})
	if !errors.Is(err, ErrVaruintOverflow) {
		t.Fatalf("expected ErrVaruintOverflow for 33-bit value, got %v", err)
	}
	_, _, err = ReadVaruint([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	if !errors.Is(err, ErrVaruintOverflow) {
		t.Fatalf("expected ErrVaruintOverflow for 6-byte value, got %v", err)
	}
}

func TestReadVaruintRejectsOverlongEncoding(t *testing.T) {
	// 1 padded out to six bytes fits uint32 but exceeds MaxVaruintLen.
	_, _, err := ReadVaruint([]byte{0x81, 0x80, 0x80, 0x80, 0x80, 0x00})
	if !errors.Is(err, ErrVaruintOverflow) {
		t.Fatalf("expected ErrVaruintOverflow, got %v", err)
	}
}
