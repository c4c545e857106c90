package motor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/motorctl/internal/protocol/frame"
	"github.com/danmuck/motorctl/internal/protocol/register"
	"github.com/danmuck/motorctl/internal/protocol/session"
	"github.com/danmuck/motorctl/internal/testutil/testlog"
	"github.com/danmuck/motorctl/internal/transport/sim"
	"github.com/rs/zerolog/log"
)

func newSimSupervisor(t *testing.T, cfg Config) (*Supervisor, *sim.Actuator, *recordingReporter) {
	t.Helper()
	act := sim.New(cfg.Channel.Address)
	act.SetGain(-0.25)
	ch, err := session.NewChannel(act, cfg.Channel)
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	rep := newRecordingReporter()
	sup, err := NewSupervisor(ch, cfg, rep, log.Logger)
	if err != nil {
		t.Fatalf("supervisor: %v", err)
	}
	return sup, act, rep
}

func TestCleanRunEndsWithSingleSafeStop(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Velocity = 5
	sup, act, _ := newSimSupervisor(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	frames := act.Received()
	if len(frames) == 0 || !isStopFrame(frames[0]) {
		t.Fatalf("first frame is not the startup safe-stop: % x", frames)
	}
	lastCmd := -1
	commands := 0
	stops := 0
	for i, f := range frames {
		switch {
		case isStopFrame(f):
			stops++
		case isCommandFrame(f):
			commands++
			lastCmd = i
			ops, _ := frame.Parse(f)
			if ops[1].Values[0].Float() != 5 {
				t.Fatalf("command frame %d velocity = %v", i, ops[1].Values[0])
			}
		case isTelemetryFrame(f):
		default:
			t.Fatalf("unexpected frame %d: % x", i, f)
		}
	}
	if commands < 4 {
		t.Fatalf("command frames = %d, want >= 4", commands)
	}
	if stops != 2 {
		t.Fatalf("safe-stops = %d, want startup + shutdown", stops)
	}
	after := 0
	for _, f := range frames[lastCmd+1:] {
		if isStopFrame(f) {
			after++
		}
	}
	if after != 1 {
		t.Fatalf("safe-stops after last command = %d, want 1", after)
	}

	mode, _ := act.Register(register.Mode.Address)
	if int8(mode.Int()) != register.ModeStopped {
		t.Fatalf("actuator left in mode %v", mode)
	}
	st := sup.Status()
	if st.Phase != PhaseStopped || st.SafeStops != 2 || st.CommandFrames != uint64(commands) {
		t.Fatalf("status = %+v", st)
	}
}

func TestStatusTracksTelemetry(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Velocity = 2
	sup, _, rep := newSimSupervisor(t, cfg)
	if sup.Status().Phase != PhaseIdle {
		t.Fatalf("phase before run = %s", sup.Status().Phase)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()
	waitFor(t, 2*time.Second, func() bool { return sup.Status().LastSample != nil })

	st := sup.Status()
	if st.Phase != PhaseRunning || st.LastSample.GainTerm != 0.25 {
		t.Fatalf("status = %+v sample=%+v", st, st.LastSample)
	}
	if samples, _, _ := rep.snapshot(); len(samples) == 0 {
		t.Fatalf("reporter not forwarded samples")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := sup.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStartupSafeStopFailureIsFatal(t *testing.T) {
	testlog.Start(t)
	sup, act, _ := newSimSupervisor(t, DefaultConfig())
	act.FailWith(errors.New("no buffer space"))

	err := sup.Run(context.Background())
	if !errors.Is(err, ErrSafeStop) || !errors.Is(err, session.ErrTransport) {
		t.Fatalf("expected safe-stop transport error, got %v", err)
	}
	if sup.Status().Phase != PhaseFailed {
		t.Fatalf("phase = %s", sup.Status().Phase)
	}
	if sup.Status().CommandFrames != 0 {
		t.Fatalf("command frames sent after failed startup")
	}
}

func TestCancellationTimeoutStillSendsSafeStop(t *testing.T) {
	testlog.Start(t)
	release := make(chan struct{})
	defer close(release)
	stuck := make(chan struct{})
	var stalled atomic.Bool
	var once sync.Once
	ch := &scriptedChannel{addr: 1, respond: func(_ context.Context, payload []byte) ([]byte, error) {
		if isCommandFrame(payload) && stalled.Load() {
			once.Do(func() { close(stuck) })
			<-release
		}
		return nil, nil
	}}
	cfg := fastConfig()
	cfg.Channel.ReplyTimeout = 5 * time.Millisecond
	cfg.StopAckTimeout = 30 * time.Millisecond
	sup, err := NewSupervisor(ch, cfg, newRecordingReporter(), log.Logger)
	if err != nil {
		t.Fatalf("supervisor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()
	waitFor(t, time.Second, func() bool { return sup.cmd.FramesSent() >= 2 })
	stalled.Store(true)
	<-stuck
	cancel()

	err = <-done
	if !errors.Is(err, ErrCancellationTimeout) {
		t.Fatalf("expected ErrCancellationTimeout, got %v", err)
	}
	frames := ch.frames()
	stops := 0
	for _, f := range frames {
		if isStopFrame(f) {
			stops++
		}
	}
	if stops != 2 || !isStopFrame(lastNonTelemetry(frames)) {
		t.Fatalf("stops = %d, last = % x", stops, lastNonTelemetry(frames))
	}
	if sup.Status().Phase != PhaseFailed {
		t.Fatalf("phase = %s", sup.Status().Phase)
	}
}

func TestCommandAbortTriggersShutdownStop(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("bus error")
	var cmds atomic.Int32
	ch := &scriptedChannel{addr: 1, respond: func(_ context.Context, payload []byte) ([]byte, error) {
		if isCommandFrame(payload) && cmds.Add(1) == 3 {
			return nil, boom
		}
		return nil, nil
	}}
	sup, err := NewSupervisor(ch, fastConfig(), newRecordingReporter(), log.Logger)
	if err != nil {
		t.Fatalf("supervisor: %v", err)
	}
	err = sup.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected command loop error, got %v", err)
	}
	frames := ch.frames()
	if !isStopFrame(lastNonTelemetry(frames)) {
		t.Fatalf("session did not end with a safe-stop")
	}
	if cmds.Load() != 3 {
		t.Fatalf("command exchanges = %d, want 3", cmds.Load())
	}
}

func TestNewSupervisorRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.ControlMode = register.ModeStopped
	if _, err := NewSupervisor(&scriptedChannel{addr: 1}, cfg, nil, log.Logger); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewSupervisor(nil, DefaultConfig(), nil, log.Logger); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil channel, got %v", err)
	}
}

// lastNonTelemetry skips trailing telemetry queries, which may land after
// the final stop since that loop is not awaited.
func lastNonTelemetry(frames [][]byte) []byte {
	for i := len(frames) - 1; i >= 0; i-- {
		if !isTelemetryFrame(frames[i]) {
			return frames[i]
		}
	}
	return nil
}
