package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrTransport        = errors.New("session: transport failure")
	ErrClosed           = errors.New("session: channel closed")
	ErrTransportMissing = errors.New("session: transport required")
	ErrInvalidAddress   = errors.New("session: invalid actuator address")
)

// Transport delivers one frame to dest and waits up to timeout for the reply.
// A nil reply with a nil error means nobody answered in time; an error means
// the bus itself failed.
type Transport interface {
	SendAndAwaitReply(ctx context.Context, dest uint8, frame []byte, timeout time.Duration) ([]byte, error)
}

// Channel owns the transport for one actuator and runs one exchange at a time.
type Channel struct {
	mu        sync.Mutex
	transport Transport
	cfg       ChannelConfig
	closed    bool
}

func NewChannel(t Transport, cfg ChannelConfig) (*Channel, error) {
	if t == nil {
		return nil, ErrTransportMissing
	}
	if cfg.Address > MaxAddress {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAddress, cfg.Address)
	}
	return &Channel{transport: t, cfg: cfg.WithDefaults()}, nil
}

func (c *Channel) Address() uint8 {
	return c.cfg.Address
}

// Exchange sends frame and returns the reply, or nil when the actuator did not
// answer. Concurrent callers are serialized; no retry happens here.
func (c *Channel) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	reply, err := c.transport.SendAndAwaitReply(ctx, c.cfg.Address, frame, c.cfg.ReplyTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: addr=%d: %w", ErrTransport, c.cfg.Address, err)
	}
	if len(reply) == 0 {
		return nil, nil
	}
	return reply, nil
}

// Close waits for an in-flight exchange, then releases the transport.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
