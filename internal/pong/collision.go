package pong

import (
	"fmt"
	"math"
)

type Edge int

const (
	EdgeTop Edge = iota
	EdgeRight
	EdgeBottom
	EdgeLeft
)

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "TOP"
	case EdgeRight:
		return "RIGHT"
	case EdgeBottom:
		return "BOTTOM"
	case EdgeLeft:
		return "LEFT"
	}
	return fmt.Sprintf("Edge(%d)", int(e))
}

// Collision is either a WorldCollision or a PaddleCollision.
type Collision interface {
	collision()
}

type WorldCollision struct {
	Edge Edge
}

type PaddleCollision struct {
	Paddle *Paddle
}

func (WorldCollision) collision()  {}
func (PaddleCollision) collision() {}

type Detector interface {
	// Detect returns the first collision found or nil.
	Detect(g *Game) Collision
}

type Resolver interface {
	Resolve(g *Game, c Collision)
}

// BoxDetector checks world edges before paddles and reports only the first
// hit. Top and bottom use strict comparisons, left and right do not.
type BoxDetector struct{}

func (BoxDetector) Detect(g *Game) Collision {
	b := g.Ball.Bounds
	switch {
	case b.Y < 0:
		return WorldCollision{Edge: EdgeTop}
	case b.Y+b.Height > float64(g.World.Height()):
		return WorldCollision{Edge: EdgeBottom}
	case b.X <= 0:
		return WorldCollision{Edge: EdgeLeft}
	case b.X+b.Width >= float64(g.World.Width()):
		return WorldCollision{Edge: EdgeRight}
	}

	if ellipseIntersects(b, g.Left.Bounds.Box()) {
		return PaddleCollision{Paddle: g.Left}
	}
	if ellipseIntersects(b, g.Right.Bounds.Box()) {
		return PaddleCollision{Paddle: g.Right}
	}
	return nil
}

// ellipseIntersects reports whether the ellipse inscribed in e overlaps r.
// Both are normalised so the ellipse becomes a circle of radius 0.5 centred
// on the origin, then the nearest point of r is tested against it.
func ellipseIntersects(e, r Box) bool {
	if r.Width <= 0 || r.Height <= 0 || e.Width <= 0 || e.Height <= 0 {
		return false
	}
	x0 := (r.X-e.X)/e.Width - 0.5
	x1 := x0 + r.Width/e.Width
	y0 := (r.Y-e.Y)/e.Height - 0.5
	y1 := y0 + r.Height/e.Height

	var nx, ny float64
	if x0 > 0 {
		nx = x0
	} else if x1 < 0 {
		nx = x1
	}
	if y0 > 0 {
		ny = y0
	} else if y1 < 0 {
		ny = y1
	}
	return nx*nx+ny*ny < 0.25
}

// Reflection angles in degrees, top segment of the paddle first.
var deflectionAngles = [...]int{45, 25, 15, 360, 345, 335, 315}

type BasicResolver struct{}

func (BasicResolver) Resolve(g *Game, c Collision) {
	switch c := c.(type) {
	case WorldCollision:
		resolveWorld(g, c.Edge)
	case PaddleCollision:
		resolvePaddle(g, c.Paddle)
	default:
		panic(fmt.Sprintf("pong: unhandled collision %T", c))
	}
}

func resolveWorld(g *Game, e Edge) {
	switch e {
	case EdgeTop:
		g.Ball.Bounds.Y = 0
		g.Ball.Vel.Y = -g.Ball.Vel.Y
	case EdgeBottom:
		g.Ball.Bounds.Y = float64(g.World.Height()) - g.Ball.Bounds.Height
		g.Ball.Vel.Y = -g.Ball.Vel.Y
	case EdgeLeft, EdgeRight:
		// scoring edges, the caller decides
	}
}

func resolvePaddle(g *Game, p *Paddle) {
	ball := g.Ball
	dir := -1.0
	if p == g.Left {
		ball.Bounds.X = float64(p.Bounds.X + p.Bounds.Width)
		dir = 1
	} else {
		ball.Bounds.X = float64(p.Bounds.X) - ball.Bounds.Width
	}

	angle := float64(deflectionAngles[DeflectionIndex(p, ball)]) * math.Pi / 180
	ball.Vel.X = dir * math.Cos(angle)
	// screen Y grows downwards
	ball.Vel.Y = -math.Sin(angle)
}

// DeflectionIndex maps the ball centre into one of the paddle's seven
// segments. Segment spacing uses integer division so the outermost hits can
// overflow the table and are clamped.
func DeflectionIndex(p *Paddle, ball *Ball) int {
	spacing := p.Bounds.Height / len(deflectionAngles)
	if spacing <= 0 {
		spacing = 1
	}
	y := ball.Bounds.Y + ball.Bounds.Height/2 - float64(p.Bounds.Y)
	i := int(y / float64(spacing))
	return max(0, min(len(deflectionAngles)-1, i))
}
