package netwrk

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"netpong/internal/pong"
	"netpong/internal/protocol"
)

// accepted collects the host side of every connection.
func accepted() (chan Conn, func(Conn)) {
	ch := make(chan Conn, 4)
	return ch, func(c Conn) { ch <- c }
}

func waitConn(t *testing.T, ch chan Conn) Conn {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for connection")
	}
	return nil
}

func exchange(t *testing.T, host, peer Conn) {
	t.Helper()
	out := protocol.PaddleMove{Role: protocol.RightPaddle, Input: pong.InputMoveDown}
	if err := host.Send(out); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	got, err := peer.Recv()
	if err != nil {
		t.Fatalf("Recv returned error: %v", err)
	}
	if !reflect.DeepEqual(got, out) {
		t.Fatalf("got %#v, want %#v", got, out)
	}

	if err := peer.Send(protocol.Authorisation{Name: "bob"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	got, err = host.Recv()
	if err != nil {
		t.Fatalf("Recv returned error: %v", err)
	}
	if got != (protocol.Authorisation{Name: "bob"}) {
		t.Fatalf("unexpected frame %#v", got)
	}
}

func expectEOF(t *testing.T, c Conn) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := c.Recv()
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for end of stream")
	}
}

func TestPipeListener(t *testing.T) {
	for _, codec := range []protocol.Codec{protocol.JSON, protocol.MsgPack, protocol.Proto} {
		t.Run(codec.Name(), func(t *testing.T) {
			ch, onConn := accepted()
			l := NewPipeListener(codec, onConn)
			if _, err := l.Dial(context.Background()); !errors.Is(err, ErrClosed) {
				t.Fatalf("expected ErrClosed before Start, got %v", err)
			}
			if err := l.Start(); err != nil {
				t.Fatalf("Start returned error: %v", err)
			}

			peer, err := l.Dial(context.Background())
			if err != nil {
				t.Fatalf("Dial returned error: %v", err)
			}
			host := waitConn(t, ch)
			if host.ID() == peer.ID() {
				t.Fatalf("expected distinct connection ids")
			}
			exchange(t, host, peer)

			host.Close()
			expectEOF(t, peer)
			expectEOF(t, host)
			if err := host.Send(protocol.PingReply{}); !errors.Is(err, ErrClosed) {
				t.Fatalf("expected ErrClosed after close, got %v", err)
			}
			if err := host.Close(); err != nil {
				t.Fatalf("second Close returned error: %v", err)
			}
		})
	}
}

func TestCloseFlushesQueuedFrames(t *testing.T) {
	ch, onConn := accepted()
	l := NewPipeListener(protocol.JSON, onConn)
	l.Start()
	peer, err := l.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	host := waitConn(t, ch)

	host.Send(protocol.ScoreUpdate{Scores: map[protocol.Role]int{protocol.LeftPaddle: 1, protocol.RightPaddle: 0}})
	host.Close()

	f, err := peer.Recv()
	if err != nil {
		t.Fatalf("expected queued frame before close, got %v", err)
	}
	if _, ok := f.(protocol.ScoreUpdate); !ok {
		t.Fatalf("unexpected frame %#v", f)
	}
	expectEOF(t, peer)
}

func TestTCPListener(t *testing.T) {
	ch, onConn := accepted()
	l := NewTCPListener("127.0.0.1:0", protocol.Proto, onConn)
	if err := l.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer l.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peer, err := DialTCP(ctx, l.Addr().String(), protocol.Proto)
	if err != nil {
		t.Fatalf("DialTCP returned error: %v", err)
	}
	defer peer.Close()
	host := waitConn(t, ch)
	exchange(t, host, peer)

	peer.Close()
	expectEOF(t, host)

	if err := l.Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if _, err := DialTCP(ctx, l.Addr().String(), protocol.Proto); err == nil {
		t.Fatalf("expected dial to fail after shutdown")
	}
}

func TestWebSocketListener(t *testing.T) {
	ch, onConn := accepted()
	l := NewWebSocketListener("", protocol.JSON, onConn)
	srv := httptest.NewServer(l)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, err := DialWebSocket(ctx, url, protocol.JSON)
	if err != nil {
		t.Fatalf("DialWebSocket returned error: %v", err)
	}
	host := waitConn(t, ch)
	exchange(t, host, peer)

	peer.Close()
	expectEOF(t, host)
	host.Close()
}

func TestListenUnknownTransport(t *testing.T) {
	if _, err := Listen("carrier-pigeon", ":0", protocol.JSON, func(Conn) {}); err == nil {
		t.Fatalf("expected error for unknown transport")
	}
	if _, err := Dial(context.Background(), "carrier-pigeon", ":0", protocol.JSON); err == nil {
		t.Fatalf("expected error for unknown transport")
	}
}

type failingListener struct {
	started, stopped bool
	err              error
}

func (l *failingListener) Start() error {
	l.started = true
	return l.err
}

func (l *failingListener) Shutdown() error {
	l.stopped = true
	return nil
}

func TestGroup(t *testing.T) {
	ch, onConn := accepted()
	pipe := NewPipeListener(protocol.MsgPack, onConn)
	other := &failingListener{}
	g := Group{pipe, other}
	if err := g.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	peer, err := pipe.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	exchange(t, waitConn(t, ch), peer)

	if err := g.Shutdown(); err != nil || !other.stopped {
		t.Fatalf("expected every listener shut down, got %v", err)
	}
	if _, err := pipe.Dial(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after shutdown, got %v", err)
	}

	first, broken := &failingListener{}, &failingListener{err: errors.New("address in use")}
	if err := (Group{first, broken}).Start(); err == nil {
		t.Fatalf("expected start error")
	}
	if !first.stopped {
		t.Fatalf("expected started listeners rolled back")
	}
}
