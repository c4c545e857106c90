package motor

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/motorctl/internal/protocol/frame"
	"github.com/danmuck/motorctl/internal/protocol/register"
)

// ErrIncompleteSample is returned by SampleFromResponse when a response lacks
// a telemetry register. Replies checked by frame.Decode against
// TelemetryQueries always carry all three; this guards direct callers.
var ErrIncompleteSample = errors.New("motor: telemetry reply missing registers")

// CommandOps is one motion command: mode, target velocity, then the zeroed
// sinusoidal block (scale, phase, feedforward).
func CommandOps(mode int8, velocity float32) []frame.Op {
	return []frame.Op{
		register.Mode.Write(frame.Int8(mode)),
		register.CommandVelocity.Write(frame.Float32(velocity)),
		register.SinusoidalCommand.Write(frame.Float32(0), frame.Float32(0), frame.Float32(0)),
	}
}

func TelemetryQueries() []frame.Op {
	return []frame.Op{
		register.Mode.Query(),
		register.Velocity.Query(),
		register.PositionKI.Query(),
	}
}

// StopOps de-energizes the actuator and clears latched faults.
func StopOps() []frame.Op {
	return []frame.Op{register.Mode.Write(frame.Int8(register.ModeStopped))}
}

// Sample is one decoded telemetry reading.
type Sample struct {
	Mode     int8      `json:"mode"`
	Velocity float32   `json:"velocity_rps"`
	GainTerm float32   `json:"gain_term"`
	At       time.Time `json:"at"`
}

// SampleFromResponse converts a decoded reply. The device reports the
// integral gain term with inverted sign; it is negated here.
func SampleFromResponse(resp frame.Response, at time.Time) (Sample, error) {
	mode, okMode := resp.Get(register.Mode.Address)
	vel, okVel := resp.Get(register.Velocity.Address)
	ki, okKI := resp.Get(register.PositionKI.Address)
	if !okMode || !okVel || !okKI {
		return Sample{}, fmt.Errorf("%w: mode=%t velocity=%t ki=%t", ErrIncompleteSample, okMode, okVel, okKI)
	}
	return Sample{
		Mode:     int8(mode.Int()),
		Velocity: float32(vel.Float()),
		GainTerm: -float32(ki.Float()),
		At:       at,
	}, nil
}
