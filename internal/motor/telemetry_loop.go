package motor

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/danmuck/motorctl/internal/observability"
	"github.com/danmuck/motorctl/internal/protocol/frame"
	"github.com/danmuck/motorctl/internal/protocol/session"
	"github.com/rs/zerolog"
)

// ErrNoReply reports a one-shot read that got no answer.
var ErrNoReply = errors.New("motor: no reply from actuator")

// Reporter receives telemetry outcomes. Implementations must not block.
type Reporter interface {
	Report(Sample)
	NoResponse()
	Malformed(err error)
}

// TelemetryLoop polls mode, velocity and the gain term. Missing or malformed
// replies are reported and retried after a back-off; they never end the loop.
type TelemetryLoop struct {
	ch       Exchanger
	period   time.Duration
	backoff  session.BackoffConfig
	reporter Reporter
	logger   zerolog.Logger
	rng      *rand.Rand

	state atomic.Int32
}

func NewTelemetryLoop(ch Exchanger, cfg Config, reporter Reporter, logger zerolog.Logger) *TelemetryLoop {
	return &TelemetryLoop{
		ch:       ch,
		period:   cfg.TelemetryPeriod,
		backoff:  cfg.NoReplyBackoff,
		reporter: reporter,
		logger:   logger.With().Str("loop", loopTelemetry).Logger(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *TelemetryLoop) Run(ctx context.Context) error {
	l.state.Store(int32(StateRunning))
	defer l.state.Store(int32(StateStopped))
	misses := 0
	for ctx.Err() == nil {
		sample, err := readSample(ctx, l.ch)
		delay := l.period
		switch {
		case err == nil:
			misses = 0
			l.reporter.Report(sample)
		case errors.Is(err, ErrNoReply):
			misses++
			l.reporter.NoResponse()
			delay = session.NextBackoffDelay(l.backoff, misses, l.rng)
		case errors.Is(err, frame.ErrMalformedReply), errors.Is(err, ErrIncompleteSample):
			misses++
			l.reporter.Malformed(err)
			delay = session.NextBackoffDelay(l.backoff, misses, l.rng)
		case errors.Is(err, session.ErrClosed) || ctx.Err() != nil:
			// Shutdown closed the channel under an unawaited exchange.
			l.logger.Debug().Err(err).Msg("telemetry loop closed")
			return nil
		default:
			l.logger.Error().Err(err).Msg("telemetry loop aborted")
			return err
		}
		if sleepCtx(ctx, delay) != nil {
			break
		}
	}
	return nil
}

func (l *TelemetryLoop) State() LoopState {
	return LoopState(l.state.Load())
}

// ReadSample performs one telemetry exchange.
func ReadSample(ctx context.Context, ch Exchanger) (Sample, error) {
	return readSample(ctx, ch)
}

func readSample(ctx context.Context, ch Exchanger) (Sample, error) {
	queries := TelemetryQueries()
	reply, took, err := timedExchange(ctx, ch, frame.Encode(queries))
	if err != nil {
		recordExchange(ch, loopTelemetry, observability.OutcomeTransportError, took)
		return Sample{}, err
	}
	if reply == nil {
		recordExchange(ch, loopTelemetry, observability.OutcomeNoReply, took)
		return Sample{}, ErrNoReply
	}
	resp, err := frame.Decode(reply, queries)
	if err != nil {
		recordExchange(ch, loopTelemetry, observability.OutcomeMalformed, took)
		return Sample{}, err
	}
	sample, err := SampleFromResponse(resp, time.Now())
	if err != nil {
		recordExchange(ch, loopTelemetry, observability.OutcomeMalformed, took)
		return Sample{}, err
	}
	recordExchange(ch, loopTelemetry, observability.OutcomeOK, took)
	return sample, nil
}
