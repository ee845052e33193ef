package pong

import "math"

type Vector struct {
	X float64
	Y float64
}

// Normalize returns the unit vector pointing the same way as v. The zero
// vector normalizes to itself.
func (v Vector) Normalize() Vector {
	l := math.Hypot(v.X, v.Y)
	if l == 0 {
		return Vector{}
	}
	return Vector{X: v.X / l, Y: v.Y / l}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vector) Neg() Vector {
	return Vector{X: -v.X, Y: -v.Y}
}

// Box is a floating point bounding box. For the ball it bounds the ellipse
// that is actually tested for paddle overlap.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Rect is an integer bounding box used by paddles.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Rect) Box() Box {
	return Box{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height)}
}

type Point struct {
	X int
	Y int
}

// Input is a discrete paddle command sampled once per tick.
type Input int

const (
	InputNone Input = iota
	InputMoveUp
	InputMoveDown
)

var inputNames = [...]string{
	InputNone:     "NONE",
	InputMoveUp:   "MOVE_UP",
	InputMoveDown: "MOVE_DOWN",
}

func (i Input) String() string {
	if i < 0 || int(i) >= len(inputNames) {
		return "UNKNOWN"
	}
	return inputNames[i]
}

// ParseInput is the inverse of Input.String.
func ParseInput(s string) (Input, bool) {
	for i, name := range inputNames {
		if name == s {
			return Input(i), true
		}
	}
	return InputNone, false
}
