package pong

import (
	"errors"
	"fmt"
)

const (
	MinWorldWidth  = 100
	MinWorldHeight = 100
)

var ErrInvalidWorld = errors.New("invalid world dimensions")

// World is the fixed virtual coordinate space everything is simulated in.
// The origin is the top-left corner and Y grows downwards.
type World struct {
	width  int
	height int
}

func NewWorld(width, height int) (World, error) {
	if width < MinWorldWidth {
		return World{}, fmt.Errorf("%w: width %d is less than %d", ErrInvalidWorld, width, MinWorldWidth)
	}
	if height < MinWorldHeight {
		return World{}, fmt.Errorf("%w: height %d is less than %d", ErrInvalidWorld, height, MinWorldHeight)
	}
	return World{width: width, height: height}, nil
}

func (w World) Width() int  { return w.width }
func (w World) Height() int { return w.height }

func (w World) TopLeft() Point     { return Point{} }
func (w World) TopRight() Point    { return Point{X: w.width - 1} }
func (w World) BottomLeft() Point  { return Point{Y: w.height - 1} }
func (w World) BottomRight() Point { return Point{X: w.width - 1, Y: w.height - 1} }

// Centre uses integer division for odd dimensions.
func (w World) Centre() Point {
	return Point{X: w.width / 2, Y: w.height / 2}
}
