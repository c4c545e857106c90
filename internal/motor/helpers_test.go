package motor

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/motorctl/internal/protocol/frame"
	"github.com/danmuck/motorctl/internal/protocol/register"
)

// scriptedChannel records every frame and answers through respond.
type scriptedChannel struct {
	addr    uint8
	respond func(ctx context.Context, payload []byte) ([]byte, error)

	mu   sync.Mutex
	sent [][]byte
}

func (c *scriptedChannel) Address() uint8 { return c.addr }

func (c *scriptedChannel) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.Lock()
	c.sent = append(c.sent, append([]byte(nil), payload...))
	c.mu.Unlock()
	if c.respond == nil {
		return nil, nil
	}
	return c.respond(ctx, payload)
}

func (c *scriptedChannel) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

type recordingReporter struct {
	mu        sync.Mutex
	samples   []Sample
	missing   int
	malformed []error
	changed   chan struct{}
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{changed: make(chan struct{}, 64)}
}

func (r *recordingReporter) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

func (r *recordingReporter) Report(s Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
	r.notify()
}

func (r *recordingReporter) NoResponse() {
	r.mu.Lock()
	r.missing++
	r.mu.Unlock()
	r.notify()
}

func (r *recordingReporter) Malformed(err error) {
	r.mu.Lock()
	r.malformed = append(r.malformed, err)
	r.mu.Unlock()
	r.notify()
}

func (r *recordingReporter) snapshot() (samples []Sample, missing int, malformed []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...), r.missing, append([]error(nil), r.malformed...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func isStopFrame(f []byte) bool {
	return bytes.Equal(f, frame.Encode(StopOps()))
}

func isCommandFrame(f []byte) bool {
	ops, err := frame.Parse(f)
	if err != nil || len(ops) != 3 {
		return false
	}
	return ops[0].Class == frame.ClassWrite && ops[0].Register == register.Mode.Address &&
		int8(ops[0].Values[0].Int()) != register.ModeStopped
}

func isTelemetryFrame(f []byte) bool {
	return len(f) > 0 && f[0]&0xf0 == frame.ClassRead
}

func telemetryReply(mode int8, velocity, rawKI float32) []byte {
	return frame.Encode([]frame.Op{
		frame.Reply(register.Mode.Address, frame.KindInt8, frame.Int8(mode)),
		frame.Reply(register.Velocity.Address, frame.KindFloat32, frame.Float32(velocity)),
		frame.Reply(register.PositionKI.Address, frame.KindFloat32, frame.Float32(rawKI)),
	})
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Velocity = 5
	cfg.CommandPeriod = time.Millisecond
	cfg.TelemetryPeriod = time.Millisecond
	cfg.NoReplyBackoff.InitialDelay = time.Millisecond
	cfg.NoReplyBackoff.MaxDelay = time.Millisecond
	return cfg
}
