//go:build linux

package socketcan

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	canfdFrameSize = 72
	canFrameSize   = 16
	maxPollSlice   = 50 * time.Millisecond
)

// Transport is a raw CAN socket bound to one interface.
type Transport struct {
	mu     sync.Mutex
	fd     int
	source uint8
	closed bool
}

func Open(cfg Config) (*Transport, error) {
	ifi, err := net.InterfaceByName(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("socketcan: interface %q: %w", cfg.Interface, err)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socketcan: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: enable fd frames: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: nonblock: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: bind %s: %w", cfg.Interface, err)
	}
	return &Transport{fd: fd, source: cfg.Source}, nil
}

// SendAndAwaitReply writes one frame and waits for the matching answer.
// Frames from other devices are discarded. A timeout yields a nil reply.
func (t *Transport) SendAndAwaitReply(ctx context.Context, dest uint8, payload []byte, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := PadPayload(payload)
	if err != nil {
		return nil, err
	}
	t.drain()

	var buf [canfdFrameSize]byte
	binary.NativeEndian.PutUint32(buf[0:4], RequestID(t.source, dest)|unix.CAN_EFF_FLAG)
	buf[4] = byte(len(data))
	buf[5] = unix.CANFD_BRS
	copy(buf[8:], data)
	if _, err := unix.Write(t.fd, buf[:]); err != nil {
		return nil, fmt.Errorf("socketcan: write: %w", err)
	}

	want := ReplyID(t.source, dest)
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ready, err := t.poll(min(remaining, maxPollSlice))
		if err != nil {
			return nil, err
		}
		if !ready {
			continue
		}
		id, reply, err := t.read()
		if err != nil {
			return nil, err
		}
		if reply != nil && id == want {
			return reply, nil
		}
	}
}

func (t *Transport) poll(d time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(d/time.Millisecond)+1)
	if errors.Is(err, unix.EINTR) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("socketcan: poll: %w", err)
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

// read returns the 29-bit id and data of one frame, or a nil slice when
// nothing was pending.
func (t *Transport) read() (uint32, []byte, error) {
	var buf [canfdFrameSize]byte
	n, err := unix.Read(t.fd, buf[:])
	if errors.Is(err, unix.EAGAIN) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("socketcan: read: %w", err)
	}
	if n != canfdFrameSize && n != canFrameSize {
		return 0, nil, nil
	}
	id := binary.NativeEndian.Uint32(buf[0:4]) & unix.CAN_EFF_MASK
	l := int(buf[4])
	if l > n-8 {
		l = n - 8
	}
	return id, append([]byte{}, buf[8:8+l]...), nil
}

// drain drops stale frames so a late reply to an earlier request is not
// mistaken for this one.
func (t *Transport) drain() {
	for {
		_, reply, err := t.read()
		if err != nil || reply == nil {
			return
		}
	}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return unix.Close(t.fd)
}
