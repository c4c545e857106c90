package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Tag classes occupy the high nibble of an operation tag.
const (
	ClassWrite byte = 0x00
	ClassRead  byte = 0x10
	ClassReply byte = 0x20

	// Nop pads a frame to a valid bus length and carries nothing.
	Nop byte = 0x50

	MaxCount = 3
)

var (
	ErrUnknownTag     = errors.New("frame: unknown tag")
	ErrShortValue     = errors.New("frame: short value")
	ErrMalformedReply = errors.New("frame: malformed reply")
)

// Kind is the wire type of a register value.
type Kind uint8

const (
	KindInt8 Kind = iota
	KindInt16
	KindInt32
	KindFloat32
)

func (k Kind) Width() int {
	switch k {
	case KindInt8:
		return 1
	case KindInt16:
		return 2
	case KindInt32, KindFloat32:
		return 4
	default:
		panic(fmt.Sprintf("frame: invalid kind %d", k))
	}
}

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one typed register value.
type Value struct {
	Kind Kind
	num  float64
}

func Int8(v int8) Value       { return Value{Kind: KindInt8, num: float64(v)} }
func Int16(v int16) Value     { return Value{Kind: KindInt16, num: float64(v)} }
func Int32(v int32) Value     { return Value{Kind: KindInt32, num: float64(v)} }
func Float32(v float32) Value { return Value{Kind: KindFloat32, num: float64(v)} }

// ValueOf converts v to kind, truncating toward zero for integer kinds.
func ValueOf(kind Kind, v float64) Value {
	switch kind {
	case KindInt8:
		return Int8(int8(v))
	case KindInt16:
		return Int16(int16(v))
	case KindInt32:
		return Int32(int32(v))
	default:
		return Float32(float32(v))
	}
}

// Float returns the value widened to float64; exact for every kind.
func (v Value) Float() float64 { return v.num }

func (v Value) Int() int64 { return int64(v.num) }

func (v Value) String() string {
	if v.Kind == KindFloat32 {
		return fmt.Sprintf("%g", float32(v.num))
	}
	return fmt.Sprintf("%d", int64(v.num))
}

// Op is one register operation inside a frame.
type Op struct {
	Class    byte
	Kind     Kind
	Register uint32
	Count    int
	Values   []Value
}

// Write builds a write of consecutive registers starting at reg.
func Write(reg uint32, kind Kind, values ...Value) Op {
	return Op{Class: ClassWrite, Kind: kind, Register: reg, Count: len(values), Values: values}
}

// Query builds a read of count consecutive registers starting at reg.
func Query(reg uint32, kind Kind, count int) Op {
	return Op{Class: ClassRead, Kind: kind, Register: reg, Count: count}
}

// Reply builds the device side answer to a query.
func Reply(reg uint32, kind Kind, values ...Value) Op {
	return Op{Class: ClassReply, Kind: kind, Register: reg, Count: len(values), Values: values}
}

func (o Op) carriesValues() bool {
	return o.Class == ClassWrite || o.Class == ClassReply
}

// Tag returns the header byte for o. It panics when the op cannot be encoded.
func (o Op) Tag() byte {
	if o.Count < 1 || o.Count > MaxCount {
		panic(fmt.Sprintf("frame: op count %d outside 1..%d (register 0x%03x)", o.Count, MaxCount, o.Register))
	}
	if o.Class != ClassWrite && o.Class != ClassRead && o.Class != ClassReply {
		panic(fmt.Sprintf("frame: invalid op class 0x%02x", o.Class))
	}
	return o.Class | byte(o.Kind)<<2 | byte(o.Count)
}

// Size is the encoded length of o in bytes.
func (o Op) Size() int {
	n := 1 + VaruintLen(o.Register)
	if o.carriesValues() {
		n += o.Count * o.Kind.Width()
	}
	return n
}

// ReplySize is the minimum length of a complete reply to queries.
func ReplySize(queries []Op) int {
	total := 0
	for _, q := range queries {
		total += 1 + VaruintLen(q.Register) + q.Count*q.Kind.Width()
	}
	return total
}

// Encode serializes ops into a fresh byte slice. Invalid ops are programming
// errors and panic.
func Encode(ops []Op) []byte {
	size := 0
	for _, op := range ops {
		size += op.Size()
	}
	buf := make([]byte, 0, size)
	for _, op := range ops {
		buf = appendOp(buf, op)
	}
	return buf
}

func appendOp(dst []byte, op Op) []byte {
	dst = append(dst, op.Tag())
	dst = AppendVaruint(dst, op.Register)
	if !op.carriesValues() {
		return dst
	}
	if len(op.Values) != op.Count {
		panic(fmt.Sprintf("frame: op declares %d values, has %d", op.Count, len(op.Values)))
	}
	for _, v := range op.Values {
		if v.Kind != op.Kind {
			panic(fmt.Sprintf("frame: %s value in %s op (register 0x%03x)", v.Kind, op.Kind, op.Register))
		}
		dst = appendValue(dst, v)
	}
	return dst
}

func appendValue(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindInt8:
		return append(dst, byte(int8(v.num)))
	case KindInt16:
		return binary.LittleEndian.AppendUint16(dst, uint16(int16(v.num)))
	case KindInt32:
		return binary.LittleEndian.AppendUint32(dst, uint32(int32(v.num)))
	default:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v.num)))
	}
}

func readValue(b []byte, kind Kind) (Value, error) {
	if len(b) < kind.Width() {
		return Value{}, ErrShortValue
	}
	switch kind {
	case KindInt8:
		return Int8(int8(b[0])), nil
	case KindInt16:
		return Int16(int16(binary.LittleEndian.Uint16(b))), nil
	case KindInt32:
		return Int32(int32(binary.LittleEndian.Uint32(b))), nil
	default:
		return Float32(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	}
}
