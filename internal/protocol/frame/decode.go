package frame

import "fmt"

// Response maps a register address to the value the device answered with.
type Response map[uint32]Value

func (r Response) Get(reg uint32) (Value, bool) {
	v, ok := r[reg]
	return v, ok
}

// Parse walks any frame (request or reply) into its operations. NOP bytes are
// skipped. A tag with a zero count field is followed by an explicit varuint count.
func Parse(b []byte) ([]Op, error) {
	ops := make([]Op, 0, 4)
	i := skipNops(b, 0)
	for i < len(b) {
		op, next, err := parseOp(b, i)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		i = skipNops(b, next)
	}
	return ops, nil
}

// Decode matches a reply against the queries that produced it. The reply must
// answer every query, in order, with the same kind, count and register.
// Anything after the last answer is not examined.
func Decode(reply []byte, queries []Op) (Response, error) {
	if want := ReplySize(queries); len(reply) < want {
		return nil, fmt.Errorf("%w: short reply: got %d bytes want %d", ErrMalformedReply, len(reply), want)
	}
	resp := make(Response, len(queries))
	i := 0
	for n, q := range queries {
		i = skipNops(reply, i)
		if i >= len(reply) {
			return nil, fmt.Errorf("%w: %d reply ops for %d queries", ErrMalformedReply, n, len(queries))
		}
		op, next, err := parseOp(reply, i)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedReply, err)
		}
		if op.Class != ClassReply || op.Kind != q.Kind || op.Count != q.Count || op.Register != q.Register {
			return nil, fmt.Errorf(
				"%w: tag mismatch at op %d: got class=0x%02x %s×%d @0x%03x want %s×%d @0x%03x",
				ErrMalformedReply, n, op.Class, op.Kind, op.Count, op.Register, q.Kind, q.Count, q.Register,
			)
		}
		for j, v := range op.Values {
			resp[op.Register+uint32(j)] = v
		}
		i = next
	}
	return resp, nil
}

func skipNops(b []byte, i int) int {
	for i < len(b) && b[i] == Nop {
		i++
	}
	return i
}

// parseOp decodes the op whose tag sits at b[i] and returns the offset just
// past it.
func parseOp(b []byte, i int) (Op, int, error) {
	tag := b[i]
	i++
	class := tag & 0xf0
	if class != ClassWrite && class != ClassRead && class != ClassReply {
		return Op{}, 0, fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownTag, tag, i-1)
	}
	op := Op{Class: class, Kind: Kind((tag >> 2) & 0x03), Count: int(tag & 0x03)}
	if op.Count == 0 {
		n, used, err := ReadVaruint(b[i:])
		if err != nil {
			return Op{}, 0, err
		}
		i += used
		op.Count = int(n)
	}
	reg, used, err := ReadVaruint(b[i:])
	if err != nil {
		return Op{}, 0, err
	}
	i += used
	op.Register = reg
	if !op.carriesValues() {
		return op, i, nil
	}
	if op.Count*op.Kind.Width() > len(b)-i {
		return Op{}, 0, fmt.Errorf("%w: register 0x%03x wants %d bytes, %d left", ErrShortValue, reg, op.Count*op.Kind.Width(), len(b)-i)
	}
	op.Values = make([]Value, 0, op.Count)
	for j := 0; j < op.Count; j++ {
		v, err := readValue(b[i:], op.Kind)
		if err != nil {
			return Op{}, 0, fmt.Errorf("%w: register 0x%03x", err, reg+uint32(j))
		}
		i += op.Kind.Width()
		op.Values = append(op.Values, v)
	}
	return op, i, nil
}
