// Package register is the static catalog of actuator registers a control
// session touches.
package register

import (
	"fmt"
	"sort"

	"github.com/danmuck/motorctl/internal/protocol/frame"
)

// Register is a named, addressed block of Count consecutive same-typed slots.
type Register struct {
	Name    string
	Address uint32
	Kind    frame.Kind
	Count   int
}

// Register addresses from the controller register map.
var (
	Mode            = Register{Name: "mode", Address: 0x000, Kind: frame.KindInt8, Count: 1}
	Velocity        = Register{Name: "velocity", Address: 0x002, Kind: frame.KindFloat32, Count: 1}
	CommandVelocity = Register{Name: "command_velocity", Address: 0x021, Kind: frame.KindFloat32, Count: 1}
	PositionKI      = Register{Name: "position_ki", Address: 0x031, Kind: frame.KindFloat32, Count: 1}

	// SinusoidalCommand is the vendor block read by the sinusoidal velocity
	// mode: scale, phase, feedforward.
	SinusoidalCommand = Register{Name: "sinusoidal_command", Address: 0x160, Kind: frame.KindFloat32, Count: 3}
)

// Control modes written to Mode.
const (
	ModeStopped            int8 = 0
	ModeSinusoidalVelocity int8 = 16
)

var (
	byName    = map[string]Register{}
	byAddress = map[uint32]Register{}
)

func init() {
	for _, r := range []Register{Mode, Velocity, CommandVelocity, PositionKI, SinusoidalCommand} {
		byName[r.Name] = r
		for i := 0; i < r.Count; i++ {
			byAddress[r.Address+uint32(i)] = r
		}
	}
}

// Write builds a write op; the value count must match the register.
func (r Register) Write(values ...frame.Value) frame.Op {
	if len(values) != r.Count {
		panic(fmt.Sprintf("register: %s takes %d values, got %d", r.Name, r.Count, len(values)))
	}
	return frame.Write(r.Address, r.Kind, values...)
}

func (r Register) Query() frame.Op {
	return frame.Query(r.Address, r.Kind, r.Count)
}

func (r Register) String() string {
	return fmt.Sprintf("%s@0x%03x", r.Name, r.Address)
}

func Lookup(name string) (Register, bool) {
	r, ok := byName[name]
	return r, ok
}

// ByAddress resolves any slot address, including the inner slots of a
// multi-value block.
func ByAddress(addr uint32) (Register, bool) {
	r, ok := byAddress[addr]
	return r, ok
}

// All lists the catalog ordered by address.
func All() []Register {
	out := make([]Register, 0, len(byName))
	for _, r := range byName {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address < out[j].Address
	})
	return out
}
