package motor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/danmuck/motorctl/internal/observability"
	"github.com/danmuck/motorctl/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// CommandLoop streams motion frames at a fixed cadence until cancelled. It
// never sends the safe-stop; that belongs to the Supervisor.
type CommandLoop struct {
	ch       Exchanger
	mode     int8
	velocity float32
	period   time.Duration
	logger   zerolog.Logger

	state atomic.Int32
	sent  atomic.Uint64
}

func NewCommandLoop(ch Exchanger, cfg Config, logger zerolog.Logger) *CommandLoop {
	return &CommandLoop{
		ch:       ch,
		mode:     cfg.ControlMode,
		velocity: cfg.Velocity,
		period:   cfg.CommandPeriod,
		logger:   logger.With().Str("loop", loopCommand).Logger(),
	}
}

// Run returns nil once cancellation is observed at the inter-cycle sleep, or
// the transport error that aborted the loop.
func (l *CommandLoop) Run(ctx context.Context) error {
	l.state.Store(int32(StateRunning))
	defer l.state.Store(int32(StateStopped))
	if ctx.Err() != nil {
		return nil
	}
	for {
		payload := frame.Encode(CommandOps(l.mode, l.velocity))
		reply, took, err := timedExchange(ctx, l.ch, payload)
		if err != nil {
			recordExchange(l.ch, loopCommand, observability.OutcomeTransportError, took)
			l.logger.Error().Err(err).Uint64("frames", l.sent.Load()).Msg("command loop aborted")
			return err
		}
		n := l.sent.Add(1)
		outcome := observability.OutcomeOK
		if reply == nil {
			outcome = observability.OutcomeNoReply
		}
		recordExchange(l.ch, loopCommand, outcome, took)
		if n == 1 {
			l.logger.Debug().Int8("mode", l.mode).Float32("velocity", l.velocity).Msg("first command frame sent")
		}

		if err := sleepCtx(ctx, l.period); err != nil {
			l.logger.Debug().Uint64("frames", n).Msg("command loop cancelled")
			return nil
		}
	}
}

func (l *CommandLoop) State() LoopState {
	return LoopState(l.state.Load())
}

func (l *CommandLoop) FramesSent() uint64 {
	return l.sent.Load()
}
