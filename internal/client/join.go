package client

import (
	"context"
	"fmt"
	"log/slog"

	"netpong/internal/netwrk"
	"netpong/internal/protocol"
)

// Join authorises with the host as name, answers the handshake pings and
// blocks until the match starts. Cancelling ctx closes conn.
func Join(ctx context.Context, conn netwrk.Conn, name string) (protocol.Started, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.Send(protocol.Authorisation{Name: name}); err != nil {
		return protocol.Started{}, fmt.Errorf("authorise: %w", err)
	}
	slog.Debug("Waiting for opponent", slog.String("name", name))

	for {
		f, err := conn.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return protocol.Started{}, ctx.Err()
			}
			return protocol.Started{}, fmt.Errorf("waiting for match: %w", err)
		}

		switch f := f.(type) {
		case protocol.Ping:
			if err := conn.Send(protocol.PingReply{}); err != nil {
				return protocol.Started{}, fmt.Errorf("ping reply: %w", err)
			}
		case protocol.Started:
			slog.Info("Match started", slog.String("role", f.Role.String()))
			return f, nil
		default:
			slog.Debug("ignoring frame while joining", slog.String("frame", protocol.Describe(f)))
		}
	}
}
