package motor

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/motorctl/internal/protocol/register"
	"github.com/danmuck/motorctl/internal/protocol/session"
)

var ErrInvalidConfig = errors.New("motor: invalid config")

// Config describes one control session.
type Config struct {
	Channel         session.ChannelConfig
	ControlMode     int8
	Velocity        float32
	CommandPeriod   time.Duration
	TelemetryPeriod time.Duration
	NoReplyBackoff  session.BackoffConfig
	// StopAckTimeout bounds the wait for the command loop to observe
	// cancellation during shutdown.
	StopAckTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Channel:         session.DefaultChannelConfig(),
		ControlMode:     register.ModeSinusoidalVelocity,
		Velocity:        0,
		CommandPeriod:   20 * time.Millisecond,
		TelemetryPeriod: 500 * time.Millisecond,
		NoReplyBackoff:  session.ConstantBackoff(500 * time.Millisecond),
		StopAckTimeout:  time.Second,
	}
}

func (c Config) Validate() error {
	if c.Channel.Address > session.MaxAddress {
		return fmt.Errorf("%w: address %d exceeds %d", ErrInvalidConfig, c.Channel.Address, session.MaxAddress)
	}
	if c.ControlMode == register.ModeStopped {
		return fmt.Errorf("%w: control mode %d is the stop mode", ErrInvalidConfig, c.ControlMode)
	}
	if c.CommandPeriod <= 0 {
		return fmt.Errorf("%w: command period must be positive", ErrInvalidConfig)
	}
	if c.TelemetryPeriod <= 0 {
		return fmt.Errorf("%w: telemetry period must be positive", ErrInvalidConfig)
	}
	if c.NoReplyBackoff.InitialDelay <= 0 {
		return fmt.Errorf("%w: no-reply backoff must be positive", ErrInvalidConfig)
	}
	if c.StopAckTimeout <= c.Channel.WithDefaults().ReplyTimeout {
		return fmt.Errorf("%w: stop ack timeout %s must exceed reply timeout %s",
			ErrInvalidConfig, c.StopAckTimeout, c.Channel.WithDefaults().ReplyTimeout)
	}
	return nil
}
