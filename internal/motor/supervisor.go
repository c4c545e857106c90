package motor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/motorctl/internal/observability"
	"github.com/danmuck/motorctl/internal/protocol/frame"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrCancellationTimeout means the command loop did not observe
	// cancellation within StopAckTimeout. The final safe-stop is still sent.
	ErrCancellationTimeout = errors.New("motor: command loop did not acknowledge cancellation")
	ErrSafeStop            = errors.New("motor: safe-stop exchange failed")
	ErrAlreadyRunning      = errors.New("motor: supervisor already ran")
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped"
	PhaseFailed   Phase = "failed"
)

// Safe-stop phases used in logs and metrics.
const (
	StopStartup  = "startup"
	StopShutdown = "shutdown"
	StopManual   = "manual"
)

// Status is a point-in-time view of a session.
type Status struct {
	Session       string    `json:"session"`
	Address       uint8     `json:"address"`
	Phase         Phase     `json:"phase"`
	Velocity      float32   `json:"target_velocity_rps"`
	Started       time.Time `json:"started,omitempty"`
	CommandFrames uint64    `json:"command_frames"`
	CommandLoop   string    `json:"command_loop"`
	TelemetryLoop string    `json:"telemetry_loop"`
	LastSample    *Sample   `json:"last_sample,omitempty"`
	NoResponses   uint64    `json:"no_responses"`
	Malformed     uint64    `json:"malformed"`
	SafeStops     int       `json:"safe_stops"`
}

// Supervisor owns one control session: startup safe-stop, both loops, and the
// ordered shutdown that ends with exactly one final safe-stop.
type Supervisor struct {
	id       string
	ch       Exchanger
	cfg      Config
	reporter Reporter
	logger   zerolog.Logger

	cmd       *CommandLoop
	telemetry *TelemetryLoop

	mu          sync.Mutex
	phase       Phase
	started     time.Time
	lastSample  *Sample
	noResponses uint64
	malformed   uint64
	safeStops   int
}

func NewSupervisor(ch Exchanger, cfg Config, reporter Reporter, logger zerolog.Logger) (*Supervisor, error) {
	if ch == nil {
		return nil, fmt.Errorf("%w: nil channel", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = LogReporter{Logger: logger}
	}
	id := uuid.NewString()
	s := &Supervisor{
		id:       id,
		ch:       ch,
		cfg:      cfg,
		reporter: reporter,
		phase:    PhaseIdle,
	}
	s.logger = logger.With().Str("session", id).Uint8("addr", ch.Address()).Logger()
	s.cmd = NewCommandLoop(ch, cfg, s.logger)
	s.telemetry = NewTelemetryLoop(ch, cfg, statusReporter{s: s, next: reporter}, s.logger)
	return s, nil
}

func (s *Supervisor) ID() string {
	return s.id
}

// Run drives the session until ctx is cancelled or the command loop aborts.
// It returns nil after a clean shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.phase = PhaseStarting
	s.started = time.Now()
	s.mu.Unlock()

	s.logger.Info().Float32("velocity", s.cfg.Velocity).Int8("mode", s.cfg.ControlMode).Msg("session starting")
	if err := s.SafeStop(ctx, StopStartup); err != nil {
		s.setPhase(PhaseFailed)
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdDone := make(chan error, 1)
	go func() { cmdDone <- s.cmd.Run(loopCtx) }()
	go func() {
		if err := s.telemetry.Run(loopCtx); err != nil {
			s.logger.Warn().Err(err).Msg("telemetry stopped")
		}
	}()
	s.setPhase(PhaseRunning)

	var errs []error
	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown requested")
		cancel()
		s.setPhase(PhaseStopping)
		timer := time.NewTimer(s.cfg.StopAckTimeout)
		select {
		case err := <-cmdDone:
			if err != nil {
				errs = append(errs, err)
			}
		case <-timer.C:
			s.logger.Error().Dur("waited", s.cfg.StopAckTimeout).Msg("command loop did not stop in time")
			errs = append(errs, fmt.Errorf("%w after %s", ErrCancellationTimeout, s.cfg.StopAckTimeout))
		}
		timer.Stop()
	case err := <-cmdDone:
		cancel()
		s.setPhase(PhaseStopping)
		if err != nil {
			s.logger.Error().Err(err).Msg("command loop aborted")
			errs = append(errs, err)
		}
	}

	if err := s.SafeStop(ctx, StopShutdown); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		s.setPhase(PhaseFailed)
		return err
	}
	s.setPhase(PhaseStopped)
	s.logger.Info().Uint64("frames", s.cmd.FramesSent()).Msg("session stopped")
	return nil
}

// SafeStop performs one blocking stop exchange. It ignores ctx cancellation
// so a stop requested during shutdown still goes out.
func (s *Supervisor) SafeStop(ctx context.Context, phase string) error {
	err := SendSafeStop(ctx, s.ch)
	observability.RecordSafeStop(addrLabel(s.ch.Address()), phase, err == nil)
	s.mu.Lock()
	s.safeStops++
	s.mu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Str("phase", phase).Msg("safe-stop failed")
		return err
	}
	s.logger.Info().Str("phase", phase).Msg("safe-stop sent")
	return nil
}

// SendSafeStop writes the stop mode to the actuator behind ch.
func SendSafeStop(ctx context.Context, ch Exchanger) error {
	_, took, err := timedExchange(ctx, ch, frame.Encode(StopOps()))
	if err != nil {
		recordExchange(ch, loopSafeStop, observability.OutcomeTransportError, took)
		return fmt.Errorf("%w: %w", ErrSafeStop, err)
	}
	recordExchange(ch, loopSafeStop, observability.OutcomeOK, took)
	return nil
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Session:       s.id,
		Address:       s.ch.Address(),
		Phase:         s.phase,
		Velocity:      s.cfg.Velocity,
		Started:       s.started,
		CommandFrames: s.cmd.FramesSent(),
		CommandLoop:   s.cmd.State().String(),
		TelemetryLoop: s.telemetry.State().String(),
		NoResponses:   s.noResponses,
		Malformed:     s.malformed,
		SafeStops:     s.safeStops,
	}
	if s.lastSample != nil {
		sample := *s.lastSample
		st.LastSample = &sample
	}
	return st
}

func (s *Supervisor) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// statusReporter tracks telemetry in the supervisor status before forwarding.
type statusReporter struct {
	s    *Supervisor
	next Reporter
}

func (r statusReporter) Report(sample Sample) {
	r.s.mu.Lock()
	r.s.lastSample = &sample
	r.s.mu.Unlock()
	observability.RecordTelemetry(addrLabel(r.s.ch.Address()), float64(sample.Velocity), float64(sample.GainTerm))
	r.next.Report(sample)
}

func (r statusReporter) NoResponse() {
	r.s.mu.Lock()
	r.s.noResponses++
	r.s.mu.Unlock()
	r.next.NoResponse()
}

func (r statusReporter) Malformed(err error) {
	r.s.mu.Lock()
	r.s.malformed++
	r.s.mu.Unlock()
	r.next.Malformed(err)
}
