package netwrk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"netpong/internal/protocol"
)

// streamTransport frames a byte stream with a codec's encoder and decoder.
type streamTransport struct {
	conn net.Conn
	enc  protocol.Encoder
	dec  protocol.Decoder
}

func newStreamConn(conn net.Conn, codec protocol.Codec) *queuedConn {
	return newQueuedConn(&streamTransport{
		conn: conn,
		enc:  codec.NewEncoder(conn),
		dec:  codec.NewDecoder(conn),
	})
}

func (s *streamTransport) ReadFrame() (protocol.Frame, error) {
	return s.dec.Decode()
}

func (s *streamTransport) WriteFrame(f protocol.Frame) error {
	return s.enc.Encode(f)
}

func (s *streamTransport) Close() error {
	return s.conn.Close()
}

func tuneTCP(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			slog.Debug("could not disable nagle", slog.Any("error", err))
		}
	}
}

type TCPListener struct {
	addr   string
	codec  protocol.Codec
	onConn func(Conn)

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

func NewTCPListener(addr string, codec protocol.Codec, onConn func(Conn)) *TCPListener {
	return &TCPListener{addr: addr, codec: codec, onConn: onConn}
}

func (l *TCPListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return fmt.Errorf("tcp listener on %s already started", l.addr)
	}

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.addr, err)
	}
	l.ln = ln
	slog.Info("Listening for players", slog.String("transport", "tcp"), slog.String("addr", ln.Addr().String()))

	l.wg.Add(1)
	go l.accept(ln)
	return nil
}

// Addr is the bound address, or nil before Start.
func (l *TCPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *TCPListener) accept(ln net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept failed", slog.Any("error", err))
			continue
		}
		tuneTCP(conn)
		slog.Debug("Received connection", slog.String("remote", conn.RemoteAddr().String()))
		l.onConn(newStreamConn(conn, l.codec))
	}
}

// Shutdown stops accepting. Connections already handed out stay open.
func (l *TCPListener) Shutdown() error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil
	}
	err := ln.Close()
	l.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func DialTCP(ctx context.Context, addr string, codec protocol.Codec) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	tuneTCP(conn)
	return newStreamConn(conn, codec), nil
}
