// Package netwrk carries protocol frames between the host and its clients
// over TCP, WebSocket or an in-memory pipe.
package netwrk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"netpong/internal/protocol"
)

var (
	ErrClosed       = errors.New("connection closed")
	ErrSlowConsumer = errors.New("egress queue full")
)

const (
	egressQueueSize = 1024
	flushTimeout    = time.Second
)

// Conn is one peer. Send never blocks: frames are queued and written by the
// connection's own writer goroutine. Recv blocks until a frame arrives and
// returns io.EOF when the stream ends.
type Conn interface {
	ID() uuid.UUID
	Send(f protocol.Frame) error
	Recv() (protocol.Frame, error)
	Close() error
}

// Listener accepts peers and hands each one to the callback it was built
// with.
type Listener interface {
	Start() error
	Shutdown() error
}

// transport reads and writes whole frames. Reads and writes may happen on
// different goroutines, but never two writes at once.
type transport interface {
	ReadFrame() (protocol.Frame, error)
	WriteFrame(f protocol.Frame) error
	Close() error
}

type queuedConn struct {
	id     uuid.UUID
	t      transport
	egress chan protocol.Frame
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

func newQueuedConn(t transport) *queuedConn {
	id := uuid.New()
	c := &queuedConn{
		id:     id,
		t:      t,
		egress: make(chan protocol.Frame, egressQueueSize),
		done:   make(chan struct{}),
		log:    slog.With(slog.String("conn", id.String())),
	}
	go c.writer()
	return c
}

func (c *queuedConn) ID() uuid.UUID {
	return c.id
}

func (c *queuedConn) Send(f protocol.Frame) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.egress <- f:
		return nil
	default:
		c.log.Warn("egress queue full, dropping connection", slog.String("frame", protocol.Describe(f)))
		c.Close()
		return ErrSlowConsumer
	}
}

func (c *queuedConn) Recv() (protocol.Frame, error) {
	f, err := c.t.ReadFrame()
	if err != nil {
		select {
		case <-c.done:
			return nil, io.EOF
		default:
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("recv: %w", err)
	}
	return f, nil
}

// Close is idempotent. Frames already queued are flushed for up to a second
// before the transport is closed.
func (c *queuedConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		time.AfterFunc(flushTimeout, func() { c.t.Close() })
	})
	return nil
}

func (c *queuedConn) writer() {
	defer c.t.Close()
	for {
		select {
		case f := <-c.egress:
			if err := c.t.WriteFrame(f); err != nil {
				c.log.Debug("write failed", slog.Any("error", err))
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *queuedConn) flush() {
	for {
		select {
		case f := <-c.egress:
			if err := c.t.WriteFrame(f); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Listen builds the listener for a configured transport, "tcp" or "ws".
func Listen(transportName, addr string, codec protocol.Codec, onConn func(Conn)) (Listener, error) {
	switch transportName {
	case "tcp":
		return NewTCPListener(addr, codec, onConn), nil
	case "ws":
		return NewWebSocketListener(addr, codec, onConn), nil
	}
	return nil, fmt.Errorf("unknown transport %q", transportName)
}

// Dial connects to a host listening with Listen on the same transport.
func Dial(ctx context.Context, transportName, addr string, codec protocol.Codec) (Conn, error) {
	switch transportName {
	case "tcp":
		return DialTCP(ctx, addr, codec)
	case "ws":
		return DialWebSocket(ctx, "ws://"+addr+WebSocketPath, codec)
	}
	return nil, fmt.Errorf("unknown transport %q", transportName)
}
