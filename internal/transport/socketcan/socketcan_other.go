//go:build !linux

package socketcan

import (
	"context"
	"time"
)

type Transport struct{}

func Open(cfg Config) (*Transport, error) {
	return nil, ErrUnsupported
}

func (t *Transport) SendAndAwaitReply(ctx context.Context, dest uint8, payload []byte, timeout time.Duration) ([]byte, error) {
	return nil, ErrUnsupported
}

func (t *Transport) Close() error {
	return nil
}
