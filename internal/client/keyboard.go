package client

import (
	"netpong/internal/pong"
	"netpong/internal/protocol"
)

type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyW
	KeyS
	KeyTab
)

// Keyboard reports which keys are held right now.
type Keyboard interface {
	IsPressed(k Key) bool
}

// Executor runs a task on the game loop before its next tick.
type Executor interface {
	Execute(task func())
}

// InputFor samples the keys of role: W and S for the left paddle, the arrow
// keys for the right one. Holding both keys cancels out.
func InputFor(role protocol.Role, kb Keyboard) pong.Input {
	up, down := KeyW, KeyS
	if role == protocol.RightPaddle {
		up, down = KeyUp, KeyDown
	}

	u, d := kb.IsPressed(up), kb.IsPressed(down)
	switch {
	case u && !d:
		return pong.InputMoveUp
	case d && !u:
		return pong.InputMoveDown
	}
	return pong.InputNone
}
