package pong

import (
	"golang.org/x/exp/rand"
)

// EndChecker decides whether a match is over.
type EndChecker func(g *Game) bool

// Endless never ends the match.
func Endless(*Game) bool { return false }

// ScoreLimit ends the match once either side reaches limit. A limit of zero
// or less never ends it.
func ScoreLimit(limit int) EndChecker {
	return func(g *Game) bool {
		if limit <= 0 {
			return false
		}
		return g.LeftScore >= limit || g.RightScore >= limit
	}
}

type Game struct {
	World World
	Ball  *Ball
	Left  *Paddle
	Right *Paddle

	Detector Detector
	Resolver Resolver
	Ended    EndChecker

	LeftScore  int
	RightScore int

	Rand *rand.Rand
}

// NewStandardGame lays out a game scaled to the world: a centred ball
// heading down-left and two vertically centred paddles inset from the side
// walls by twice their width.
func NewStandardGame(w World, seed uint64) *Game {
	return &Game{
		World:    w,
		Ball:     standardBall(w),
		Left:     standardPaddle(w, true),
		Right:    standardPaddle(w, false),
		Detector: BoxDetector{},
		Resolver: BasicResolver{},
		Ended:    Endless,
		Rand:     rand.New(rand.NewSource(seed)),
	}
}

func standardBall(w World) *Ball {
	d := float64(w.Height()) / 40
	c := w.Centre()
	return &Ball{
		Bounds: Box{X: float64(c.X) - d/2, Y: float64(c.Y) - d/2, Width: d, Height: d},
		Vel:    Vector{X: -2.5, Y: 2.0},
		Speed:  w.Height() / 400,
	}
}

func standardPaddle(w World, left bool) *Paddle {
	p := NewPaddle(w)
	width := w.Width() / 40
	height := w.Height() / 5
	margin := width * 2

	p.Bounds = Rect{X: margin, Y: w.Height()/2 - height/2, Width: width, Height: height}
	if !left {
		p.Bounds.X = w.Width() - width - margin
	}
	p.Speed = w.Height() / 50
	return p
}

// Settle runs detect then handle until no collision remains. handle returns
// false to stop early. Settle gives up after limit detections and reports
// false; a limit of zero or less means no cap.
func (g *Game) Settle(limit int, handle func(Collision) bool) bool {
	for n := 0; limit <= 0 || n < limit; n++ {
		c := g.Detector.Detect(g)
		if c == nil {
			return true
		}
		if !handle(c) {
			return true
		}
	}
	return g.Detector.Detect(g) == nil
}

// RespawnBall centres the ball and aims it at a random point on either the
// left or right wall. The aim spans twice the world height so the serve can
// bounce before it crosses.
func (g *Game) RespawnBall() {
	c := g.World.Centre()
	g.Ball.Bounds.X = float64(c.X) - g.Ball.Bounds.Width/2
	g.Ball.Bounds.Y = float64(c.Y) - g.Ball.Bounds.Width/2

	start := Vector{X: g.Ball.Bounds.X, Y: g.Ball.Bounds.Y}
	end := Vector{Y: float64(g.Rand.Intn(g.World.Height() * 2))}
	if g.Rand.Intn(2) == 1 {
		end.X = float64(g.World.Width())
	}
	g.Ball.Vel = end.Sub(start)
}

func (g *Game) HasEnded() bool {
	if g.Ended == nil {
		return false
	}
	return g.Ended(g)
}

// View is a read-only copy of everything a renderer needs.
type View struct {
	World      World
	Ball       Ball
	Left       Paddle
	Right      Paddle
	LeftScore  int
	RightScore int
}

func (g *Game) View() View {
	return View{
		World:      g.World,
		Ball:       *g.Ball,
		Left:       *g.Left,
		Right:      *g.Right,
		LeftScore:  g.LeftScore,
		RightScore: g.RightScore,
	}
}
