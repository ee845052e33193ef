// Package protocol defines the frames exchanged between the host and its
// clients and the codecs that put them on the wire.
package protocol

import (
	"fmt"

	"netpong/internal/pong"
)

type Role int

const (
	LeftPaddle Role = iota
	RightPaddle
)

func (r Role) String() string {
	switch r {
	case LeftPaddle:
		return "LEFT_PADDLE"
	case RightPaddle:
		return "RIGHT_PADDLE"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) Opponent() Role {
	if r == LeftPaddle {
		return RightPaddle
	}
	return LeftPaddle
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "LEFT_PADDLE":
		return LeftPaddle, nil
	case "RIGHT_PADDLE":
		return RightPaddle, nil
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrMalformedFrame, s)
}

// Player is what each peer knows about a participant. Ping is the last
// measured round trip in milliseconds.
type Player struct {
	Name string
	Role Role
	Ping int64
}

type BallState struct {
	Bounds pong.Box
	Vel    pong.Vector
	Speed  int
}

// GameSnapshot is a full copy of the authoritative state used for periodic
// correction.
type GameSnapshot struct {
	Ball       BallState
	Left       pong.Rect
	Right      pong.Rect
	LeftScore  int
	RightScore int
}

func SnapshotOf(g *pong.Game) GameSnapshot {
	return GameSnapshot{
		Ball:       BallState{Bounds: g.Ball.Bounds, Vel: g.Ball.Vel, Speed: g.Ball.Speed},
		Left:       g.Left.Bounds,
		Right:      g.Right.Bounds,
		LeftScore:  g.LeftScore,
		RightScore: g.RightScore,
	}
}

// Paddle returns the snapshot's transform for the given role.
func (s GameSnapshot) Paddle(r Role) pong.Rect {
	if r == LeftPaddle {
		return s.Left
	}
	return s.Right
}
