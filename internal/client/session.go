// Package client plays one side of a match against an authoritative host,
// predicting the local paddle and the ball between host events.
package client

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"netpong/internal/netwrk"
	"netpong/internal/pong"
	"netpong/internal/protocol"
)

// HUD is the match information drawn next to the playfield.
type HUD struct {
	Role        protocol.Role
	Players     map[protocol.Role]protocol.Player
	ShowPlayers bool
}

type Renderer interface {
	Render(v pong.View, hud HUD)
}

type Options struct {
	World             pong.World
	MaxCollisionSteps int
	Executor          Executor
	Keyboard          Keyboard
	Renderer          Renderer
	// OnDisconnect runs on the loop once the host goes away.
	OnDisconnect func()
}

// Session mirrors the host's game. All methods except Start and Stop must
// be called from the loop goroutine; frames from the host are handed to the
// loop through the Executor.
type Session struct {
	conn netwrk.Conn
	opts Options
	log  *slog.Logger

	role         protocol.Role
	players      map[protocol.Role]protocol.Player
	game         *pong.Game
	local        *PaddleAnimator
	remote       *PaddleAnimator
	remoteInputs []pong.Input
	showPlayers  bool

	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewSession(conn netwrk.Conn, started protocol.Started, opts Options) *Session {
	g := pong.NewStandardGame(opts.World, 0)
	s := &Session{
		conn:    conn,
		opts:    opts,
		log:     slog.With(slog.String("role", started.Role.String())),
		role:    started.Role,
		players: maps.Clone(started.Players),
		game:    g,
	}
	if s.players == nil {
		s.players = make(map[protocol.Role]protocol.Player)
	}

	localPaddle, remotePaddle := g.Left, g.Right
	if s.role == protocol.RightPaddle {
		localPaddle, remotePaddle = g.Right, g.Left
	}
	s.local = NewPaddleAnimator(localPaddle)
	s.remote = NewPaddleAnimator(remotePaddle)
	s.local.Start(pong.InputNone)
	s.remote.Start(pong.InputNone)
	return s
}

// Start launches the receive goroutine.
func (s *Session) Start() {
	s.wg.Add(1)
	go s.receive()
}

// Stop closes the connection and waits for the receive goroutine.
// OnDisconnect is not called for a stop we asked for.
func (s *Session) Stop() {
	s.stopped.Store(true)
	s.conn.Close()
	s.wg.Wait()
}

func (s *Session) Role() protocol.Role {
	return s.role
}

func (s *Session) View() pong.View {
	return s.game.View()
}

func (s *Session) receive() {
	defer s.wg.Done()
	for {
		f, err := s.conn.Recv()
		if err != nil {
			if s.stopped.Load() {
				s.log.Debug("receive loop stopped")
				return
			}
			if !errors.Is(err, io.EOF) {
				s.log.Warn("Lost connection to host", slog.Any("error", err))
			}
			s.opts.Executor.Execute(s.handleDisconnect)
			return
		}
		s.handleFrame(f)
	}
}

func (s *Session) handleDisconnect() {
	s.log.Info("Disconnected from host")
	if s.opts.OnDisconnect != nil {
		s.opts.OnDisconnect()
	}
}

// handleFrame runs on the receive goroutine. Ping replies go straight back,
// everything that touches the game is queued on the loop.
func (s *Session) handleFrame(f protocol.Frame) {
	exec := s.opts.Executor
	switch f := f.(type) {
	case protocol.Ping:
		if f.Pings != nil {
			exec.Execute(func() { s.updatePings(f.Pings) })
		}
		if err := s.conn.Send(protocol.PingReply{}); err != nil {
			s.log.Debug("ping reply failed", slog.Any("error", err))
		}
	case protocol.PaddleMove:
		if f.Role != s.role {
			exec.Execute(func() { s.remoteInputs = append(s.remoteInputs, f.Input) })
		}
	case protocol.BallHit:
		exec.Execute(func() { s.placeBall(f.Position, f.Vel) })
	case protocol.BallSpawn:
		exec.Execute(func() { s.spawnBall(f.Position, f.Vel) })
	case protocol.ScoreUpdate:
		exec.Execute(func() {
			s.game.LeftScore = f.Scores[protocol.LeftPaddle]
			s.game.RightScore = f.Scores[protocol.RightPaddle]
		})
	case protocol.Snapshot:
		exec.Execute(func() { s.applySnapshot(f.State) })
	default:
		s.log.Debug("unhandled frame", slog.String("frame", protocol.Describe(f)))
	}
}

func (s *Session) updatePings(pings map[protocol.Role]int64) {
	for role, ping := range pings {
		p := s.players[role]
		p.Role = role
		p.Ping = ping
		s.players[role] = p
	}
}

func (s *Session) placeBall(pos pong.Box, vel pong.Vector) {
	s.game.Ball.Bounds = pos
	s.game.Ball.Vel = vel
}

// spawnBall places a served ball where it most likely is by the time the
// event reaches the players. A ball heading for us is moved ahead by our
// one-way latency. Otherwise it is wound back by both one-way latencies so
// the opponent's view and ours line up. Latencies in milliseconds are used
// directly as the move scale.
func (s *Session) spawnBall(pos pong.Box, vel pong.Vector) {
	s.placeBall(pos, vel)
	ball := s.game.Ball

	if s.headingForUs(vel.X) {
		ball.Move(float64(s.players[s.role].Ping / 2))
		return
	}
	back := s.players[protocol.LeftPaddle].Ping/2 + s.players[protocol.RightPaddle].Ping/2
	ball.Vel = ball.Vel.Neg()
	ball.Move(float64(back))
	ball.Vel = ball.Vel.Neg()
}

func (s *Session) headingForUs(vx float64) bool {
	if s.role == protocol.LeftPaddle {
		return vx < 0
	}
	return vx > 0
}

// applySnapshot takes the host's scores, ball and opponent paddle. Our own
// paddle is ahead of the host and is left alone.
func (s *Session) applySnapshot(snap protocol.GameSnapshot) {
	s.game.LeftScore = snap.LeftScore
	s.game.RightScore = snap.RightScore
	s.game.Ball.Bounds = snap.Ball.Bounds
	s.game.Ball.Vel = snap.Ball.Vel
	s.game.Ball.Speed = snap.Ball.Speed

	s.remote.paddle.Bounds = snap.Paddle(s.role.Opponent())
	s.remote.Reset()
}

// Update advances the prediction by one tick.
func (s *Session) Update() {
	s.performInput()
	s.moveBall()
	s.advanceRemote()
}

func (s *Session) performInput() {
	s.local.Finish()
	in := InputFor(s.role, s.opts.Keyboard)
	s.local.Start(in)
	if err := s.conn.Send(protocol.Input{Input: in}); err != nil {
		s.log.Debug("input not sent", slog.Any("error", err))
	}
	s.showPlayers = s.opts.Keyboard.IsPressed(KeyTab)
}

// moveBall dead-reckons the ball. Scoring edges are left for the host to
// resolve.
func (s *Session) moveBall() {
	s.game.Ball.Move(1)
	settled := s.game.Settle(s.opts.MaxCollisionSteps, func(c pong.Collision) bool {
		if wc, ok := c.(pong.WorldCollision); ok && (wc.Edge == pong.EdgeLeft || wc.Edge == pong.EdgeRight) {
			return false
		}
		s.game.Resolver.Resolve(s.game, c)
		return true
	})
	if !settled {
		s.log.Debug("ball did not settle, waiting for host", slog.Any("ball", s.game.Ball.Bounds))
	}
}

// advanceRemote starts the next queued opponent input, skipping idle inputs
// while real moves are waiting.
func (s *Session) advanceRemote() {
	s.remote.Finish()
	next := pong.InputNone
	for len(s.remoteInputs) > 0 {
		next = s.remoteInputs[0]
		s.remoteInputs = s.remoteInputs[1:]
		if next != pong.InputNone {
			break
		}
	}
	s.remote.Start(next)
}

func (s *Session) Render(delta float64) {
	s.local.Animate(delta)
	s.remote.Animate(delta)
	if s.opts.Renderer == nil {
		return
	}
	s.opts.Renderer.Render(s.game.View(), HUD{
		Role:        s.role,
		Players:     maps.Clone(s.players),
		ShowPlayers: s.showPlayers,
	})
}
