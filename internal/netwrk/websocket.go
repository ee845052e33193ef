package netwrk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"netpong/internal/protocol"
)

// WebSocketPath is where WebSocketListener upgrades requests.
const WebSocketPath = "/pong"

// wsTransport sends every frame as its own websocket message. JSON frames go
// out as text, the binary codecs as binary messages.
type wsTransport struct {
	conn  *websocket.Conn
	codec protocol.Codec
}

func newWSConn(conn *websocket.Conn, codec protocol.Codec) *queuedConn {
	return newQueuedConn(&wsTransport{conn: conn, codec: codec})
}

func (w *wsTransport) ReadFrame() (protocol.Frame, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return w.codec.Unmarshal(data)
}

func (w *wsTransport) WriteFrame(f protocol.Frame) error {
	b, err := w.codec.Marshal(f)
	if err != nil {
		return err
	}
	mt := websocket.BinaryMessage
	if w.codec == protocol.JSON {
		mt = websocket.TextMessage
	}
	return w.conn.WriteMessage(mt, b)
}

func (w *wsTransport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

// WebSocketListener serves WebSocketPath on its own HTTP server. It is also
// an http.Handler so it can be mounted elsewhere.
type WebSocketListener struct {
	addr     string
	codec    protocol.Codec
	onConn   func(Conn)
	upgrader websocket.Upgrader

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

func NewWebSocketListener(addr string, codec protocol.Codec, onConn func(Conn)) *WebSocketListener {
	return &WebSocketListener{
		addr:     addr,
		codec:    codec,
		onConn:   onConn,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (l *WebSocketListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.srv != nil {
		return fmt.Errorf("websocket listener on %s already started", l.addr)
	}

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(WebSocketPath, l)
	l.ln = ln
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	slog.Info("Listening for players", slog.String("transport", "ws"), slog.String("addr", ln.Addr().String()))

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("websocket server stopped", slog.Any("error", err))
		}
	}(l.srv)
	return nil
}

// Addr is the bound address, or nil before Start.
func (l *WebSocketListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *WebSocketListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}
	slog.Debug("Received connection", slog.String("remote", r.RemoteAddr))
	l.onConn(newWSConn(ws, l.codec))
}

// Shutdown stops the HTTP server. Upgraded connections are hijacked and are
// not affected.
func (l *WebSocketListener) Shutdown() error {
	l.mu.Lock()
	srv := l.srv
	l.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

// DialWebSocket connects to a ws:// or wss:// URL.
func DialWebSocket(ctx context.Context, url string, codec protocol.Codec) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newWSConn(ws, codec), nil
}
