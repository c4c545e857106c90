// Package sim provides an in-memory actuator that speaks the register
// protocol. It has no physics: commanded velocity is reported back as-is.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danmuck/motorctl/internal/protocol/frame"
	"github.com/danmuck/motorctl/internal/protocol/register"
	"github.com/danmuck/motorctl/internal/protocol/session"
)

var ErrClosed = errors.New("sim: actuator closed")

// Actuator implements session.Transport for a single device id.
type Actuator struct {
	mu       sync.Mutex
	id       uint8
	regs     map[uint32]frame.Value
	received [][]byte
	silent   bool
	failWith error
	closed   bool
}

var _ session.Transport = (*Actuator)(nil)

func New(id uint8) *Actuator {
	return &Actuator{id: id, regs: make(map[uint32]frame.Value)}
}

// SetGain stores the raw integral gain register. The device reports it with
// inverted sign, so callers pass the value as the device would hold it.
func (a *Actuator) SetGain(raw float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.regs[register.PositionKI.Address] = frame.Float32(raw)
}

// SetSilent makes the actuator drop every frame without answering.
func (a *Actuator) SetSilent(silent bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.silent = silent
}

// FailWith makes every following exchange fail with err; nil clears it.
func (a *Actuator) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failWith = err
}

// Register returns the current value of addr and whether it was ever set.
func (a *Actuator) Register(addr uint32) (frame.Value, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.regs[addr]
	return v, ok
}

// Received returns copies of every frame addressed to this actuator.
func (a *Actuator) Received() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][]byte, len(a.received))
	for i, f := range a.received {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

func (a *Actuator) SendAndAwaitReply(ctx context.Context, dest uint8, payload []byte, timeout time.Duration) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	if a.failWith != nil {
		return nil, a.failWith
	}
	if dest != a.id || a.silent {
		return nil, nil
	}
	a.received = append(a.received, append([]byte(nil), payload...))

	ops, err := frame.Parse(payload)
	if err != nil || !answerable(ops) {
		// A real controller ignores frames it cannot parse.
		return nil, nil
	}
	var replies []frame.Op
	for _, op := range ops {
		switch op.Class {
		case frame.ClassWrite:
			for i, v := range op.Values {
				a.regs[op.Register+uint32(i)] = v
			}
			a.settle()
		case frame.ClassRead:
			values := make([]frame.Value, op.Count)
			for i := range values {
				values[i] = frame.ValueOf(op.Kind, a.regs[op.Register+uint32(i)].Float())
			}
			replies = append(replies, frame.Reply(op.Register, op.Kind, values...))
		}
	}
	if len(replies) == 0 {
		return []byte{}, nil
	}
	return frame.Encode(replies), nil
}

// answerable reports whether every op fits in one reply tag. Explicit
// counts outside 1..MaxCount parse but cannot be answered.
func answerable(ops []frame.Op) bool {
	for _, op := range ops {
		if op.Count < 1 || op.Count > frame.MaxCount {
			return false
		}
	}
	return true
}

// settle mirrors the commanded velocity while a control mode is active.
func (a *Actuator) settle() {
	mode := int8(a.regs[register.Mode.Address].Int())
	if mode == register.ModeStopped {
		a.regs[register.Velocity.Address] = frame.Float32(0)
		return
	}
	a.regs[register.Velocity.Address] = frame.Float32(float32(a.regs[register.CommandVelocity.Address].Float()))
}

func (a *Actuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
