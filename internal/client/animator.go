package client

import "netpong/internal/pong"

// PaddleAnimator spreads one tick of paddle movement across the frames
// rendered before the next tick. Finish lands the paddle exactly where
// Paddle.Move would have put it.
type PaddleAnimator struct {
	paddle *pong.Paddle
	srcY   int
	destY  int
	step   float64
}

func NewPaddleAnimator(p *pong.Paddle) *PaddleAnimator {
	return &PaddleAnimator{paddle: p, srcY: p.Bounds.Y, destY: p.Bounds.Y}
}

func (a *PaddleAnimator) Start(in pong.Input) {
	p := a.paddle
	switch in {
	case pong.InputMoveDown:
		p.Vel.Y = 1
	case pong.InputMoveUp:
		p.Vel.Y = -1
	default:
		p.Vel.Y = 0
	}
	a.step = p.Vel.Y * float64(p.Speed)
	a.srcY = p.Bounds.Y
	a.destY = p.Bounds.Y + int(a.step)
}

// Animate places the paddle delta of the way to its destination.
func (a *PaddleAnimator) Animate(delta float64) {
	a.paddle.Bounds.Y = a.srcY + int(a.step*delta)
	a.paddle.Clamp()
}

func (a *PaddleAnimator) Finish() {
	a.paddle.Bounds.Y = a.destY
	a.paddle.Clamp()
	a.paddle.Vel.Y = 0
}

// Reset drops any movement in flight and holds the paddle where it is.
func (a *PaddleAnimator) Reset() {
	a.step = 0
	a.srcY = a.paddle.Bounds.Y
	a.destY = a.paddle.Bounds.Y
	a.paddle.Vel.Y = 0
}
