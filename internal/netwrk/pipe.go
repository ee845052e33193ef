package netwrk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"netpong/internal/protocol"
)

// PipeListener hands out in-memory connections. The host side of every
// pipe goes to the listener callback, the other side is returned by Dial.
type PipeListener struct {
	codec  protocol.Codec
	onConn func(Conn)

	mu      sync.Mutex
	running bool
}

func NewPipeListener(codec protocol.Codec, onConn func(Conn)) *PipeListener {
	return &PipeListener{codec: codec, onConn: onConn}
}

func (l *PipeListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = true
	return nil
}

func (l *PipeListener) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	return nil
}

func (l *PipeListener) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if !running {
		return nil, fmt.Errorf("pipe listener: %w", ErrClosed)
	}

	host, peer := net.Pipe()
	l.onConn(newStreamConn(host, l.codec))
	return newStreamConn(peer, l.codec), nil
}

// Group runs several listeners as one, so a host can take a local pipe
// player and remote players at the same time.
type Group []Listener

// Start starts every listener, shutting the started ones down again if one
// fails.
func (g Group) Start() error {
	for i, l := range g {
		if err := l.Start(); err != nil {
			for _, started := range g[:i] {
				started.Shutdown()
			}
			return err
		}
	}
	return nil
}

func (g Group) Shutdown() error {
	var errs []error
	for _, l := range g {
		if err := l.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
