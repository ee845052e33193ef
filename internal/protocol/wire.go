package protocol

import (
	"errors"
	"fmt"

	"netpong/internal/pong"
)

var (
	ErrUnknownFrame   = errors.New("unknown frame type")
	ErrMalformedFrame = errors.New("malformed frame")
)

// wireFrame is the encoded shape of every frame. Only the fields that belong
// to the frame's type are set, everything else is omitted on the wire.
type wireFrame struct {
	Type         string                `json:"type" msgpack:"type"`
	Event        string                `json:"event,omitempty" msgpack:"event,omitempty"`
	Name         string                `json:"name,omitempty" msgpack:"name,omitempty"`
	Input        string                `json:"input,omitempty" msgpack:"input,omitempty"`
	Role         string                `json:"role,omitempty" msgpack:"role,omitempty"`
	DestPosition *wireBox              `json:"destPosition,omitempty" msgpack:"destPosition,omitempty"`
	Velocity     *wireVector           `json:"velocity,omitempty" msgpack:"velocity,omitempty"`
	Pings        map[string]int64      `json:"pings,omitempty" msgpack:"pings,omitempty"`
	Players      map[string]wirePlayer `json:"players,omitempty" msgpack:"players,omitempty"`
	Snapshot     *wireSnapshot         `json:"snapshot,omitempty" msgpack:"snapshot,omitempty"`
}

type wireBox struct {
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	Width  float64 `json:"width" msgpack:"width"`
	Height float64 `json:"height" msgpack:"height"`
}

type wireVector struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

type wireRect struct {
	X      int `json:"x" msgpack:"x"`
	Y      int `json:"y" msgpack:"y"`
	Width  int `json:"width" msgpack:"width"`
	Height int `json:"height" msgpack:"height"`
}

type wirePlayer struct {
	Name string `json:"name" msgpack:"name"`
	Role string `json:"role" msgpack:"role"`
	Ping int64  `json:"ping" msgpack:"ping"`
}

type wireBall struct {
	Position wireBox    `json:"position" msgpack:"position"`
	Velocity wireVector `json:"velocity" msgpack:"velocity"`
	Speed    int        `json:"speed" msgpack:"speed"`
}

type wireSnapshot struct {
	Ball        wireBall `json:"ball" msgpack:"ball"`
	LeftPaddle  wireRect `json:"leftPaddle" msgpack:"leftPaddle"`
	RightPaddle wireRect `json:"rightPaddle" msgpack:"rightPaddle"`
	LeftScore   int      `json:"leftScore" msgpack:"leftScore"`
	RightScore  int      `json:"rightScore" msgpack:"rightScore"`
}

func toWireBox(b pong.Box) *wireBox {
	return &wireBox{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func (b wireBox) box() pong.Box {
	return pong.Box{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func toWireRect(r pong.Rect) wireRect {
	return wireRect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func (r wireRect) rect() pong.Rect {
	return pong.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func toWire(f Frame) (wireFrame, error) {
	w := wireFrame{Type: f.Type().String()}
	if e, ok := f.(Event); ok {
		w.Event = e.Event().String()
	}

	switch f := f.(type) {
	case Authorisation:
		w.Name = f.Name
	case Snapshot:
		s := f.State
		w.Snapshot = &wireSnapshot{
			Ball: wireBall{
				Position: *toWireBox(s.Ball.Bounds),
				Velocity: wireVector{X: s.Ball.Vel.X, Y: s.Ball.Vel.Y},
				Speed:    s.Ball.Speed,
			},
			LeftPaddle:  toWireRect(s.Left),
			RightPaddle: toWireRect(s.Right),
			LeftScore:   s.LeftScore,
			RightScore:  s.RightScore,
		}
	case Input:
		w.Input = f.Input.String()
	case Ping:
		if f.Pings != nil {
			w.Pings = make(map[string]int64, len(f.Pings))
			for r, p := range f.Pings {
				w.Pings[r.String()] = p
			}
		}
	case PingReply:
	case PaddleMove:
		w.Role = f.Role.String()
		w.Input = f.Input.String()
	case BallHit:
		w.DestPosition = toWireBox(f.Position)
		w.Velocity = &wireVector{X: f.Vel.X, Y: f.Vel.Y}
	case BallSpawn:
		w.DestPosition = toWireBox(f.Position)
		w.Velocity = &wireVector{X: f.Vel.X, Y: f.Vel.Y}
	case ScoreUpdate:
		// Scores travel in the pings field, keyed by role.
		w.Pings = make(map[string]int64, len(f.Scores))
		for r, s := range f.Scores {
			w.Pings[r.String()] = int64(s)
		}
	case Started:
		w.Role = f.Role.String()
		w.Players = make(map[string]wirePlayer, len(f.Players))
		for r, p := range f.Players {
			w.Players[r.String()] = wirePlayer{Name: p.Name, Role: p.Role.String(), Ping: p.Ping}
		}
	default:
		return w, fmt.Errorf("%w: %T", ErrUnknownFrame, f)
	}
	return w, nil
}

func fromWire(w wireFrame) (Frame, error) {
	switch w.Type {
	case "AUTHORISATION":
		return Authorisation{Name: w.Name}, nil
	case "SNAPSHOT":
		if w.Snapshot == nil {
			return nil, fmt.Errorf("%w: snapshot frame without snapshot", ErrMalformedFrame)
		}
		s := w.Snapshot
		return Snapshot{State: GameSnapshot{
			Ball: BallState{
				Bounds: s.Ball.Position.box(),
				Vel:    pong.Vector{X: s.Ball.Velocity.X, Y: s.Ball.Velocity.Y},
				Speed:  s.Ball.Speed,
			},
			Left:       s.LeftPaddle.rect(),
			Right:      s.RightPaddle.rect(),
			LeftScore:  s.LeftScore,
			RightScore: s.RightScore,
		}}, nil
	case "INPUT":
		in, err := parseInput(w.Input)
		if err != nil {
			return nil, err
		}
		return Input{Input: in}, nil
	case "PING":
		pings, err := roleMap(w.Pings)
		if err != nil {
			return nil, err
		}
		return Ping{Pings: pings}, nil
	case "PING_REPLY":
		return PingReply{}, nil
	case "EVENT":
		return eventFromWire(w)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, w.Type)
}

func eventFromWire(w wireFrame) (Frame, error) {
	switch w.Event {
	case "PADDLE_MOVE_EVENT":
		role, err := ParseRole(w.Role)
		if err != nil {
			return nil, err
		}
		in, err := parseInput(w.Input)
		if err != nil {
			return nil, err
		}
		return PaddleMove{Role: role, Input: in}, nil
	case "BALL_HIT_EVENT", "BALL_SPAWN_EVENT":
		if w.DestPosition == nil || w.Velocity == nil {
			return nil, fmt.Errorf("%w: %s without position or velocity", ErrMalformedFrame, w.Event)
		}
		pos := w.DestPosition.box()
		vel := pong.Vector{X: w.Velocity.X, Y: w.Velocity.Y}
		if w.Event == "BALL_HIT_EVENT" {
			return BallHit{Position: pos, Vel: vel}, nil
		}
		return BallSpawn{Position: pos, Vel: vel}, nil
	case "SCORE_UPDATE_EVENT":
		pings, err := roleMap(w.Pings)
		if err != nil {
			return nil, err
		}
		scores := make(map[Role]int, len(pings))
		for r, s := range pings {
			scores[r] = int(s)
		}
		return ScoreUpdate{Scores: scores}, nil
	case "STARTED":
		role, err := ParseRole(w.Role)
		if err != nil {
			return nil, err
		}
		players := make(map[Role]Player, len(w.Players))
		for k, p := range w.Players {
			key, err := ParseRole(k)
			if err != nil {
				return nil, err
			}
			pr, err := ParseRole(p.Role)
			if err != nil {
				return nil, err
			}
			players[key] = Player{Name: p.Name, Role: pr, Ping: p.Ping}
		}
		return Started{Role: role, Players: players}, nil
	}
	return nil, fmt.Errorf("%w: event %q", ErrUnknownFrame, w.Event)
}

func parseInput(s string) (pong.Input, error) {
	in, ok := pong.ParseInput(s)
	if !ok {
		return pong.InputNone, fmt.Errorf("%w: unknown input %q", ErrMalformedFrame, s)
	}
	return in, nil
}

func roleMap(m map[string]int64) (map[Role]int64, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[Role]int64, len(m))
	for k, v := range m {
		r, err := ParseRole(k)
		if err != nil {
			return nil, err
		}
		out[r] = v
	}
	return out, nil
}
