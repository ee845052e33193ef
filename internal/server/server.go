// Package server runs the authoritative side of a match. Every event, from
// connections, timers or the public API, is a task on one actor goroutine,
// which is the only code touching the game, the bundles and the state.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"netpong/internal/netwrk"
	"netpong/internal/pong"
	"netpong/internal/protocol"
)

var ErrInvalidState = errors.New("invalid server state")

type Options struct {
	World pong.World
	Seed  uint64
	// TickRate is simulation steps per second.
	TickRate     int
	PingInterval time.Duration
	// HandshakePings round trips are measured before a client counts as ready.
	HandshakePings int
	// SnapshotInterval broadcasts a full snapshot every N ticks, 0 never.
	SnapshotInterval int
	// WinningScore ends the match, 0 plays forever.
	WinningScore      int
	MaxCollisionSteps int
}

func DefaultOptions(w pong.World) Options {
	return Options{
		World:             w,
		TickRate:          60,
		PingInterval:      time.Second,
		HandshakePings:    10,
		SnapshotInterval:  0,
		WinningScore:      0,
		MaxCollisionSteps: 16,
	}
}

// ListenerFunc builds the listener that feeds the server its connections.
type ListenerFunc func(onConnect func(netwrk.Conn)) netwrk.Listener

type Server struct {
	opts     Options
	listener netwrk.Listener
	log      *slog.Logger

	mb   *mailbox
	done chan struct{}

	// Everything below is owned by the actor.
	state      state
	bundles    map[uuid.UUID]*bundle
	readyOrder []*bundle
	roles      map[protocol.Role]*bundle
	game       *pong.Game
	ticks      int
	stopTick   func()
	stopPing   func()

	now         func() time.Time
	startTicker func(d time.Duration, fire func()) (stop func())
}

// New builds a server in its initial state. The actor is already running, so
// Shutdown works before Start.
func New(opts Options, newListener ListenerFunc) *Server {
	s := &Server{
		opts:        opts,
		log:         slog.With(slog.String("component", "server")),
		done:        make(chan struct{}),
		bundles:     make(map[uuid.UUID]*bundle),
		roles:       make(map[protocol.Role]*bundle),
		now:         time.Now,
		startTicker: startTicker,
	}
	s.mb = newMailbox(s.done)
	s.listener = newListener(s.onConnect)
	go s.run()
	return s
}

func (s *Server) run() {
	defer close(s.done)
	for task := range s.mb.out {
		task()
		if s.state == stateShutdown {
			s.log.Info("Server stopped")
			return
		}
	}
}

func (s *Server) submit(task func()) bool {
	return s.mb.submit(task)
}

// Start begins accepting players.
func (s *Server) Start() error {
	res := make(chan error, 1)
	if !s.submit(func() { res <- s.start() }) {
		return fmt.Errorf("start: %w", ErrInvalidState)
	}
	select {
	case err := <-res:
		return err
	case <-s.done:
		select {
		case err := <-res:
			return err
		default:
			return fmt.Errorf("start: %w", ErrInvalidState)
		}
	}
}

// Shutdown closes the listener and every connection and blocks until the
// actor has stopped. It is safe to call any number of times from any
// goroutine.
func (s *Server) Shutdown() {
	if !s.submit(s.beginShutdown) {
		s.log.Debug("shutdown called on a stopped server")
		return
	}
	<-s.done
}

// Done is closed once the server has fully shut down, including when a match
// ends by itself.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) transition(to state) {
	s.log.Debug("State change", slog.String("from", s.state.String()), slog.String("to", to.String()))
	s.state = to
}

func (s *Server) start() error {
	switch s.state {
	case stateInitial:
		if err := s.listener.Start(); err != nil {
			return fmt.Errorf("start listener: %w", err)
		}
		s.transition(stateWaitingForReady)
		s.log.Info("Waiting for players")
		return nil
	case stateShuttingDown, stateShutdown:
		s.log.Warn("start called after shutdown")
		return fmt.Errorf("server shut down: %w", ErrInvalidState)
	default:
		return fmt.Errorf("server already started: %w", ErrInvalidState)
	}
}

func (s *Server) beginShutdown() {
	switch s.state {
	case stateInitial:
		s.finalize()
	case stateWaitingForReady, stateRunning:
		s.log.Info("Shutting down", slog.Int("connections", len(s.bundles)))
		s.stopTimers()
		if err := s.listener.Shutdown(); err != nil {
			s.log.Error("listener shutdown failed", slog.Any("error", err))
		}
		for _, b := range s.bundles {
			b.conn.Close()
		}
		s.transition(stateShuttingDown)
		if len(s.bundles) == 0 {
			s.finalize()
		}
	default:
		s.log.Debug("shutdown already in progress", slog.String("state", s.state.String()))
	}
}

func (s *Server) finalize() {
	s.transition(stateShutdown)
}

func (s *Server) stopTimers() {
	if s.stopTick != nil {
		s.stopTick()
		s.stopTick = nil
	}
	if s.stopPing != nil {
		s.stopPing()
		s.stopPing = nil
	}
}

// onConnect is the listener callback; it runs on the listener's goroutine.
func (s *Server) onConnect(c netwrk.Conn) {
	if !s.submit(func() { s.handleConnect(c) }) {
		c.Close()
	}
}

func (s *Server) handleConnect(c netwrk.Conn) {
	switch s.state {
	case stateWaitingForReady:
		b := newBundle(c)
		s.bundles[c.ID()] = b
		b.log.Info("Client connected")
		go s.receive(c)
	case stateRunning:
		s.log.Info("Rejecting connection, match in progress", slog.String("conn", c.ID().String()))
		c.Close()
	default:
		s.log.Error("connection in unexpected state", slog.String("state", s.state.String()), slog.String("conn", c.ID().String()))
		c.Close()
	}
}

// receive forwards every frame from c to the actor until the stream ends.
func (s *Server) receive(c netwrk.Conn) {
	id := c.ID()
	for {
		f, err := c.Recv()
		if err != nil {
			slog.Debug("receive loop ended", slog.String("conn", id.String()), slog.Any("error", err))
			if !s.submit(func() { s.handleDisconnect(id) }) {
				c.Close()
			}
			return
		}
		if !s.submit(func() { s.handleFrame(id, f) }) {
			c.Close()
			return
		}
	}
}

func (s *Server) handleDisconnect(id uuid.UUID) {
	b, ok := s.bundles[id]
	if !ok {
		return
	}
	delete(s.bundles, id)
	s.drop(b)
	b.log.Info("Client disconnected", slog.String("name", b.name))

	switch s.state {
	case stateWaitingForReady:
	case stateRunning:
		if b.hasRole && s.roles[b.role] == b {
			delete(s.roles, b.role)
		}
		if len(s.roles) < 2 {
			s.log.Info("Not enough players left")
			s.beginShutdown()
		}
	case stateShuttingDown:
		if len(s.bundles) == 0 {
			s.finalize()
		}
	default:
		s.log.Error("disconnect in unexpected state", slog.String("state", s.state.String()))
	}
}

func (s *Server) handleFrame(id uuid.UUID, f protocol.Frame) {
	b, ok := s.bundles[id]
	if !ok {
		slog.Debug("frame from unknown connection", slog.String("conn", id.String()), slog.String("frame", protocol.Describe(f)))
		return
	}

	switch s.state {
	case stateWaitingForReady:
		s.handleWaitingFrame(b, f)
	case stateRunning:
		s.handleRunningFrame(b, f)
	default:
		b.log.Debug("discarding frame", slog.String("state", s.state.String()), slog.String("frame", protocol.Describe(f)))
	}
}

// drop closes b and takes it out of the ready queue. The bundle itself stays
// until its receive loop reports the disconnect.
func (s *Server) drop(b *bundle) {
	for i, r := range s.readyOrder {
		if r == b {
			s.readyOrder = append(s.readyOrder[:i], s.readyOrder[i+1:]...)
			break
		}
	}
	b.conn.Close()
}

func (s *Server) reject(b *bundle, f protocol.Frame) {
	b.log.Warn("Unexpected frame, closing connection", slog.String("frame", protocol.Describe(f)), slog.String("state", s.state.String()))
	s.drop(b)
}

func (s *Server) handleWaitingFrame(b *bundle, f protocol.Frame) {
	switch f := f.(type) {
	case protocol.Authorisation:
		if b.authorised {
			s.reject(b, f)
			return
		}
		b.authorised = true
		b.name = f.Name
		b.log.Info("Client authorised", slog.String("name", f.Name))
		s.sendPing(b, nil)
	case protocol.PingReply:
		if !b.authorised {
			s.reject(b, f)
			return
		}
		if !s.recordPingReply(b) {
			return
		}
		if b.repliesReceived < s.opts.HandshakePings {
			s.sendPing(b, nil)
			return
		}
		s.readyOrder = append(s.readyOrder, b)
		b.log.Debug("Client ready", slog.Int64("ping", b.ping))
		if len(s.readyOrder) == 2 {
			s.startMatch()
		}
	default:
		s.reject(b, f)
	}
}

func (s *Server) sendPing(b *bundle, pings map[protocol.Role]int64) {
	b.send(protocol.Ping{Pings: pings})
	b.pingsSent++
	b.lastPingSent = s.now()
}

func (s *Server) recordPingReply(b *bundle) bool {
	b.ping = s.now().Sub(b.lastPingSent).Milliseconds()
	b.repliesReceived++
	if b.repliesReceived != b.pingsSent {
		b.log.Warn("Ping mismatch, closing connection", slog.Int("sent", b.pingsSent), slog.Int("received", b.repliesReceived))
		s.drop(b)
		return false
	}
	return true
}

func (s *Server) startMatch() {
	left, right := s.readyOrder[0], s.readyOrder[1]
	left.hasRole, left.role = true, protocol.LeftPaddle
	right.hasRole, right.role = true, protocol.RightPaddle
	s.roles[protocol.LeftPaddle] = left
	s.roles[protocol.RightPaddle] = right

	for _, b := range s.bundles {
		if !b.hasRole {
			b.log.Info("Match full, closing connection")
			b.conn.Close()
		}
	}

	s.game = pong.NewStandardGame(s.opts.World, s.opts.Seed)
	s.game.Ended = pong.ScoreLimit(s.opts.WinningScore)
	s.ticks = 0

	players := map[protocol.Role]protocol.Player{
		protocol.LeftPaddle:  left.player(),
		protocol.RightPaddle: right.player(),
	}
	left.send(protocol.Started{Role: protocol.LeftPaddle, Players: players})
	right.send(protocol.Started{Role: protocol.RightPaddle, Players: players})
	s.log.Info("Match started", slog.String("left", left.name), slog.String("right", right.name))

	s.transition(stateRunning)
	s.stopTick = s.startTicker(time.Second/time.Duration(s.opts.TickRate), func() { s.submit(s.onTick) })
	s.stopPing = s.startTicker(s.opts.PingInterval, func() { s.submit(s.onPing) })
	s.onPing()
}

func startTicker(d time.Duration, fire func()) func() {
	t := time.NewTicker(d)
	stop := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fire()
			case <-stop:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}
