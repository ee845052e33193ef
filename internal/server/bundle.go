package server

import (
	"log/slog"
	"time"

	"netpong/internal/netwrk"
	"netpong/internal/pong"
	"netpong/internal/protocol"
)

// bundle is everything the server tracks about one connection.
type bundle struct {
	conn netwrk.Conn
	log  *slog.Logger

	authorised bool
	name       string
	hasRole    bool
	role       protocol.Role

	pingsSent       int
	repliesReceived int
	lastPingSent    time.Time
	// last measured round trip in milliseconds
	ping int64

	inputs []pong.Input
}

func newBundle(conn netwrk.Conn) *bundle {
	return &bundle{
		conn: conn,
		log:  slog.With(slog.String("conn", conn.ID().String())),
	}
}

func (b *bundle) player() protocol.Player {
	return protocol.Player{Name: b.name, Role: b.role, Ping: b.ping}
}

func (b *bundle) send(f protocol.Frame) {
	if err := b.conn.Send(f); err != nil {
		b.log.Debug("send failed", slog.String("frame", protocol.Describe(f)), slog.Any("error", err))
	}
}
