package server

import (
	"log/slog"

	"netpong/internal/pong"
	"netpong/internal/protocol"
)

func (s *Server) handleRunningFrame(b *bundle, f protocol.Frame) {
	switch f := f.(type) {
	case protocol.Input:
		if !b.hasRole {
			s.reject(b, f)
			return
		}
		b.inputs = append(b.inputs, f.Input)
	case protocol.PingReply:
		if s.recordPingReply(b) {
			b.log.Debug("Ping", slog.Int64("ms", b.ping))
		}
	default:
		s.reject(b, f)
	}
}

func (s *Server) broadcast(f protocol.Frame) {
	for _, b := range s.bundles {
		b.send(f)
	}
}

func (s *Server) onPing() {
	if s.state != stateRunning {
		s.log.Debug("ping ignored", slog.String("state", s.state.String()))
		return
	}
	pings := make(map[protocol.Role]int64, len(s.roles))
	for role, b := range s.roles {
		pings[role] = b.ping
	}
	for _, b := range s.roles {
		s.sendPing(b, pings)
	}
}

func (s *Server) onTick() {
	if s.state != stateRunning {
		s.log.Debug("tick ignored", slog.String("state", s.state.String()))
		return
	}
	s.ticks++

	s.applyInputs()
	s.game.Ball.Move(1)
	if !s.game.Settle(s.opts.MaxCollisionSteps, s.handleCollision) {
		s.log.Warn("Ball did not settle, respawning", slog.Any("ball", s.game.Ball.Bounds), slog.Any("velocity", s.game.Ball.Vel))
		s.respawn()
	}
	if s.state != stateRunning {
		return
	}

	if n := s.opts.SnapshotInterval; n > 0 && s.ticks%n == 0 {
		s.broadcast(protocol.Snapshot{State: protocol.SnapshotOf(s.game)})
	}
}

// applyInputs drains every queued input, left paddle first, and echoes each
// one to all clients.
func (s *Server) applyInputs() {
	for _, role := range []protocol.Role{protocol.LeftPaddle, protocol.RightPaddle} {
		b := s.roles[role]
		if b == nil {
			continue
		}
		paddle := s.game.Left
		if role == protocol.RightPaddle {
			paddle = s.game.Right
		}
		for _, in := range b.inputs {
			paddle.Move(in)
			s.broadcast(protocol.PaddleMove{Role: role, Input: in})
		}
		b.inputs = b.inputs[:0]
	}
}

func (s *Server) handleCollision(c pong.Collision) bool {
	switch c := c.(type) {
	case pong.WorldCollision:
		switch c.Edge {
		case pong.EdgeLeft:
			return s.score(protocol.RightPaddle)
		case pong.EdgeRight:
			return s.score(protocol.LeftPaddle)
		default:
			s.game.Resolver.Resolve(s.game, c)
		}
	case pong.PaddleCollision:
		s.game.Resolver.Resolve(s.game, c)
		s.broadcast(protocol.BallHit{Position: s.game.Ball.Bounds, Vel: s.game.Ball.Vel})
	}
	return true
}

// score credits role with a point. It reports false once the match is over.
func (s *Server) score(role protocol.Role) bool {
	if role == protocol.LeftPaddle {
		s.game.LeftScore++
	} else {
		s.game.RightScore++
	}
	s.log.Info("Score", slog.String("scorer", role.String()), slog.Int("left", s.game.LeftScore), slog.Int("right", s.game.RightScore))
	s.broadcast(protocol.ScoreUpdate{Scores: map[protocol.Role]int{
		protocol.LeftPaddle:  s.game.LeftScore,
		protocol.RightPaddle: s.game.RightScore,
	}})

	if s.game.HasEnded() {
		s.log.Info("Match over", slog.String("winner", role.String()))
		s.beginShutdown()
		return false
	}
	s.respawn()
	return true
}

func (s *Server) respawn() {
	s.game.RespawnBall()
	s.broadcast(protocol.BallSpawn{Position: s.game.Ball.Bounds, Vel: s.game.Ball.Vel})
}
