package session

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// ChannelConfig binds a channel to one actuator on the bus.
type ChannelConfig struct {
	// Address is the actuator's bus id (0..127).
	Address uint8
	// ReplyTimeout bounds how long one exchange waits for an answer.
	ReplyTimeout time.Duration
}

const MaxAddress = 0x7f

// DefaultChannelConfig returns defaults for a single actuator at id 1.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		Address:      1,
		ReplyTimeout: 100 * time.Millisecond,
	}
}

// WithDefaults fills zero-valued fields from DefaultChannelConfig.
func (c ChannelConfig) WithDefaults() ChannelConfig {
	def := DefaultChannelConfig()
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = def.ReplyTimeout
	}
	return c
}

// ConstantBackoff retries at a fixed delay.
func ConstantBackoff(d time.Duration) BackoffConfig {
	return BackoffConfig{InitialDelay: d, Multiplier: 1.0, MaxDelay: d}
}
