package motor

import (
	"context"
	"strconv"
	"time"

	"github.com/danmuck/motorctl/internal/observability"
)

// Exchanger is the slice of session.Channel the loops depend on.
type Exchanger interface {
	Exchange(ctx context.Context, frame []byte) ([]byte, error)
	Address() uint8
}

// LoopState is Running until cancellation is observed, then Stopped.
type LoopState int32

const (
	StateIdle LoopState = iota
	StateRunning
	StateStopped
)

func (s LoopState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

const (
	loopCommand   = "command"
	loopTelemetry = "telemetry"
	loopSafeStop  = "safe_stop"
)

// timedExchange runs one exchange outside ctx's cancellation, so a cancelled
// loop still lets its in-flight exchange finish.
func timedExchange(ctx context.Context, ch Exchanger, payload []byte) ([]byte, time.Duration, error) {
	start := time.Now()
	reply, err := ch.Exchange(context.WithoutCancel(ctx), payload)
	return reply, time.Since(start), err
}

func recordExchange(ch Exchanger, loop, outcome string, took time.Duration) {
	observability.RecordExchange(addrLabel(ch.Address()), loop, outcome, took)
}

func addrLabel(addr uint8) string {
	return strconv.Itoa(int(addr))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
