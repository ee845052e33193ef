package client

import (
	"context"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"netpong/internal/netwrk"
	"netpong/internal/pong"
	"netpong/internal/protocol"
)

type execNow struct{}

func (execNow) Execute(task func()) { task() }

type keys map[Key]bool

func (k keys) IsPressed(key Key) bool { return k[key] }

type fakeConn struct {
	id     uuid.UUID
	in     chan protocol.Frame
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []protocol.Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New(), in: make(chan protocol.Frame, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ID() uuid.UUID { return c.id }

func (c *fakeConn) Send(f protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, f)
	return nil
}

func (c *fakeConn) Recv() (protocol.Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frames() []protocol.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Frame(nil), c.sent...)
}

func newTestSession(t *testing.T, role protocol.Role, kb Keyboard) (*Session, *fakeConn) {
	t.Helper()
	w, err := pong.NewWorld(1024, 768)
	if err != nil {
		t.Fatalf("NewWorld returned error: %v", err)
	}
	conn := newFakeConn()
	started := protocol.Started{Role: role, Players: map[protocol.Role]protocol.Player{
		protocol.LeftPaddle:  {Name: "alice", Role: protocol.LeftPaddle, Ping: 200},
		protocol.RightPaddle: {Name: "bob", Role: protocol.RightPaddle, Ping: 100},
	}}
	if kb == nil {
		kb = keys{}
	}
	s := NewSession(conn, started, Options{
		World:             w,
		MaxCollisionSteps: 16,
		Executor:          execNow{},
		Keyboard:          kb,
	})
	return s, conn
}

func TestPaddleAnimator(t *testing.T) {
	w, _ := pong.NewWorld(1024, 768)
	p := pong.NewPaddle(w)
	p.Bounds = pong.Rect{X: 10, Y: 100, Width: 20, Height: 150}
	p.Speed = 15
	a := NewPaddleAnimator(p)

	a.Start(pong.InputMoveDown)
	a.Animate(0.5)
	if p.Bounds.Y != 107 {
		t.Fatalf("expected y=107 half way, got %d", p.Bounds.Y)
	}
	a.Finish()
	if p.Bounds.Y != 115 || p.Vel.Y != 0 {
		t.Fatalf("expected y=115 at rest, got y=%d vy=%f", p.Bounds.Y, p.Vel.Y)
	}

	// matches Paddle.Move at the bottom wall
	p.Bounds.Y = 610
	a.Start(pong.InputMoveDown)
	a.Animate(1)
	if p.Bounds.Y != 618 {
		t.Fatalf("expected clamped animation at 618, got %d", p.Bounds.Y)
	}
	a.Finish()
	q := pong.NewPaddle(w)
	q.Bounds, q.Speed = pong.Rect{X: 10, Y: 610, Width: 20, Height: 150}, 15
	q.Move(pong.InputMoveDown)
	if p.Bounds.Y != q.Bounds.Y {
		t.Fatalf("animator finished at %d, Move at %d", p.Bounds.Y, q.Bounds.Y)
	}
}

func TestInputFor(t *testing.T) {
	tests := []struct {
		role protocol.Role
		kb   keys
		want pong.Input
	}{
		{protocol.LeftPaddle, keys{KeyW: true}, pong.InputMoveUp},
		{protocol.LeftPaddle, keys{KeyS: true}, pong.InputMoveDown},
		{protocol.LeftPaddle, keys{KeyW: true, KeyS: true}, pong.InputNone},
		{protocol.LeftPaddle, keys{KeyUp: true}, pong.InputNone},
		{protocol.RightPaddle, keys{KeyUp: true}, pong.InputMoveUp},
		{protocol.RightPaddle, keys{KeyDown: true}, pong.InputMoveDown},
		{protocol.RightPaddle, keys{KeyS: true}, pong.InputNone},
	}
	for _, tt := range tests {
		if got := InputFor(tt.role, tt.kb); got != tt.want {
			t.Fatalf("InputFor(%v, %v) = %v, want %v", tt.role, tt.kb, got, tt.want)
		}
	}
}

func TestUpdateSendsInputAndPredictsPaddle(t *testing.T) {
	s, conn := newTestSession(t, protocol.LeftPaddle, keys{KeyS: true})
	y := s.game.Left.Bounds.Y

	s.Update()
	s.Render(1)
	if s.game.Left.Bounds.Y != y+15 {
		t.Fatalf("expected predicted paddle at %d, got %d", y+15, s.game.Left.Bounds.Y)
	}
	frames := conn.frames()
	if len(frames) != 1 || frames[0] != (protocol.Input{Input: pong.InputMoveDown}) {
		t.Fatalf("unexpected frames sent %#v", frames)
	}
}

func TestRemoteInputsSkipIdleMoves(t *testing.T) {
	s, _ := newTestSession(t, protocol.LeftPaddle, nil)

	s.handleFrame(protocol.PaddleMove{Role: protocol.RightPaddle, Input: pong.InputNone})
	s.handleFrame(protocol.PaddleMove{Role: protocol.RightPaddle, Input: pong.InputNone})
	s.handleFrame(protocol.PaddleMove{Role: protocol.RightPaddle, Input: pong.InputMoveUp})
	s.handleFrame(protocol.PaddleMove{Role: protocol.LeftPaddle, Input: pong.InputMoveDown})
	if len(s.remoteInputs) != 3 {
		t.Fatalf("expected only opponent moves queued, got %v", s.remoteInputs)
	}

	y := s.game.Right.Bounds.Y
	s.Update()
	if len(s.remoteInputs) != 0 {
		t.Fatalf("expected queue drained up to the real move, got %v", s.remoteInputs)
	}
	if s.game.Right.Vel.Y != -1 {
		t.Fatalf("expected opponent paddle moving up, got vy=%f", s.game.Right.Vel.Y)
	}
	s.Update()
	if s.game.Right.Bounds.Y != y-15 {
		t.Fatalf("expected opponent paddle at %d, got %d", y-15, s.game.Right.Bounds.Y)
	}
	if s.game.Right.Vel.Y != 0 {
		t.Fatalf("expected idle opponent once the queue is empty")
	}
}

func TestSpawnCompensation(t *testing.T) {
	pos := pong.Box{X: 500, Y: 300, Width: 19.2, Height: 19.2}

	// left player, ball heading left: forward by our one-way ping of 100ms
	s, _ := newTestSession(t, protocol.LeftPaddle, nil)
	s.handleFrame(protocol.BallSpawn{Position: pos, Vel: pong.Vector{X: -3, Y: 0}})
	if got := s.game.Ball.Bounds.X; math.Abs(got-400) > 1e-9 {
		t.Fatalf("expected ball moved forward to 400, got %f", got)
	}
	if s.game.Ball.Vel != (pong.Vector{X: -3, Y: 0}) {
		t.Fatalf("velocity should be untouched, got %+v", s.game.Ball.Vel)
	}

	// left player, ball heading right: back by both one-way pings, 100ms + 50ms
	s, _ = newTestSession(t, protocol.LeftPaddle, nil)
	s.handleFrame(protocol.BallSpawn{Position: pos, Vel: pong.Vector{X: 3, Y: 0}})
	if got := s.game.Ball.Bounds.X; math.Abs(got-350) > 1e-9 {
		t.Fatalf("expected ball wound back to 350, got %f", got)
	}
	if s.game.Ball.Vel != (pong.Vector{X: 3, Y: 0}) {
		t.Fatalf("velocity should be restored, got %+v", s.game.Ball.Vel)
	}

	// right player, ball heading right: forward by 50ms
	s, _ = newTestSession(t, protocol.RightPaddle, nil)
	s.handleFrame(protocol.BallSpawn{Position: pos, Vel: pong.Vector{X: 3, Y: 0}})
	if got := s.game.Ball.Bounds.X; math.Abs(got-550) > 1e-9 {
		t.Fatalf("expected ball moved forward to 550, got %f", got)
	}

	// the scale follows ball speed too
	s, _ = newTestSession(t, protocol.LeftPaddle, nil)
	s.game.Ball.Speed = 2
	s.handleFrame(protocol.BallSpawn{Position: pos, Vel: pong.Vector{X: -1, Y: 0}})
	if got := s.game.Ball.Bounds.X; math.Abs(got-300) > 1e-9 {
		t.Fatalf("expected ball moved forward to 300 at speed 2, got %f", got)
	}
}

func TestBallHitSnapsBall(t *testing.T) {
	s, _ := newTestSession(t, protocol.RightPaddle, nil)
	hit := protocol.BallHit{Position: pong.Box{X: 75, Y: 200, Width: 19.2, Height: 19.2}, Vel: pong.Vector{X: 0.9, Y: -0.4}}
	s.handleFrame(hit)
	if s.game.Ball.Bounds != hit.Position || s.game.Ball.Vel != hit.Vel {
		t.Fatalf("expected ball snapped to %+v, got %+v", hit, *s.game.Ball)
	}
}

func TestSnapshotLeavesLocalPaddleAlone(t *testing.T) {
	s, _ := newTestSession(t, protocol.LeftPaddle, nil)
	local := s.game.Left.Bounds
	snap := protocol.GameSnapshot{
		Ball:       protocol.BallState{Bounds: pong.Box{X: 10, Y: 20, Width: 19.2, Height: 19.2}, Vel: pong.Vector{X: 1, Y: 1}, Speed: 2},
		Left:       pong.Rect{X: 50, Y: 0, Width: 25, Height: 153},
		Right:      pong.Rect{X: 949, Y: 600, Width: 25, Height: 153},
		LeftScore:  4,
		RightScore: 2,
	}
	s.handleFrame(protocol.Snapshot{State: snap})

	if s.game.Left.Bounds != local {
		t.Fatalf("local paddle moved to %+v", s.game.Left.Bounds)
	}
	if s.game.Right.Bounds != snap.Right {
		t.Fatalf("expected opponent paddle %+v, got %+v", snap.Right, s.game.Right.Bounds)
	}
	if s.game.LeftScore != 4 || s.game.RightScore != 2 {
		t.Fatalf("unexpected score %d-%d", s.game.LeftScore, s.game.RightScore)
	}
	if s.game.Ball.Bounds != snap.Ball.Bounds || s.game.Ball.Speed != 2 {
		t.Fatalf("unexpected ball %+v", *s.game.Ball)
	}
	// the next tick must not drag the opponent back to its old spot
	s.Update()
	if s.game.Right.Bounds.Y != 600 {
		t.Fatalf("expected opponent to stay at 600, got %d", s.game.Right.Bounds.Y)
	}
}

func TestScoreAndPingFrames(t *testing.T) {
	s, conn := newTestSession(t, protocol.LeftPaddle, nil)
	s.handleFrame(protocol.ScoreUpdate{Scores: map[protocol.Role]int{protocol.LeftPaddle: 2, protocol.RightPaddle: 5}})
	if s.game.LeftScore != 2 || s.game.RightScore != 5 {
		t.Fatalf("unexpected score %d-%d", s.game.LeftScore, s.game.RightScore)
	}

	s.handleFrame(protocol.Ping{Pings: map[protocol.Role]int64{protocol.LeftPaddle: 30, protocol.RightPaddle: 40}})
	if s.players[protocol.LeftPaddle].Ping != 30 || s.players[protocol.RightPaddle].Ping != 40 {
		t.Fatalf("unexpected pings %#v", s.players)
	}
	if s.players[protocol.LeftPaddle].Name != "alice" {
		t.Fatalf("expected names kept, got %#v", s.players)
	}
	frames := conn.frames()
	if len(frames) != 1 || frames[0] != (protocol.PingReply{}) {
		t.Fatalf("expected a ping reply, got %#v", frames)
	}
}

type recordingExec struct {
	mu    sync.Mutex
	tasks []func()
}

func (e *recordingExec) Execute(task func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
}

func TestDisconnectRunsCallbackOnLoop(t *testing.T) {
	w, _ := pong.NewWorld(1024, 768)
	conn := newFakeConn()
	exec := &recordingExec{}
	disconnected := false
	s := NewSession(conn, protocol.Started{Role: protocol.LeftPaddle}, Options{
		World:        w,
		Executor:     exec,
		Keyboard:     keys{},
		OnDisconnect: func() { disconnected = true },
	})
	s.Start()
	conn.in <- protocol.BallHit{Position: pong.Box{X: 1, Y: 2, Width: 3, Height: 3}, Vel: pong.Vector{X: 1}}
	// host goes away
	conn.Close()
	s.wg.Wait()

	if disconnected {
		t.Fatalf("callback must wait for the loop")
	}
	exec.mu.Lock()
	tasks := exec.tasks
	exec.mu.Unlock()
	for _, task := range tasks {
		task()
	}
	if !disconnected {
		t.Fatalf("expected disconnect callback after running loop tasks")
	}
}

func TestStopSkipsDisconnectCallback(t *testing.T) {
	w, _ := pong.NewWorld(1024, 768)
	conn := newFakeConn()
	exec := &recordingExec{}
	disconnected := false
	s := NewSession(conn, protocol.Started{Role: protocol.LeftPaddle}, Options{
		World:        w,
		Executor:     exec,
		Keyboard:     keys{},
		OnDisconnect: func() { disconnected = true },
	})
	s.Start()
	s.Stop()
	s.Stop()

	exec.mu.Lock()
	tasks := exec.tasks
	exec.mu.Unlock()
	for _, task := range tasks {
		task()
	}
	if disconnected {
		t.Fatalf("disconnect callback ran after Stop")
	}
}

func TestJoinOverPipe(t *testing.T) {
	hosts := make(chan netwrk.Conn, 1)
	l := netwrk.NewPipeListener(protocol.JSON, func(c netwrk.Conn) { hosts <- c })
	l.Start()
	defer l.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peer, err := l.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer peer.Close()
	host := <-hosts
	defer host.Close()

	hostErr := make(chan error, 1)
	go func() {
		f, err := host.Recv()
		if err != nil {
			hostErr <- err
			return
		}
		if f != (protocol.Authorisation{Name: "alice"}) {
			t.Errorf("unexpected first frame %#v", f)
		}
		for i := 0; i < 3; i++ {
			host.Send(protocol.Ping{})
			if f, err := host.Recv(); err != nil || f != (protocol.PingReply{}) {
				t.Errorf("expected ping reply, got %#v %v", f, err)
			}
		}
		host.Send(protocol.PaddleMove{Role: protocol.RightPaddle})
		hostErr <- host.Send(protocol.Started{Role: protocol.RightPaddle, Players: map[protocol.Role]protocol.Player{
			protocol.RightPaddle: {Name: "alice", Role: protocol.RightPaddle},
		}})
	}()

	started, err := Join(ctx, peer, "alice")
	if err != nil {
		t.Fatalf("Join returned error: %v", err)
	}
	if started.Role != protocol.RightPaddle || started.Players[protocol.RightPaddle].Name != "alice" {
		t.Fatalf("unexpected STARTED %#v", started)
	}
	if err := <-hostErr; err != nil {
		t.Fatalf("host side failed: %v", err)
	}
}

func TestJoinCancelled(t *testing.T) {
	conn := newFakeConn()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Join(ctx, conn, "alice")
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Join did not return after cancel")
	}
}
