package pong

// Paddle keeps its World only to clamp itself inside the vertical bounds.
type Paddle struct {
	Bounds Rect
	Vel    Vector
	Speed  int

	world World
}

func NewPaddle(w World) *Paddle {
	return &Paddle{world: w}
}

func (p *Paddle) World() World {
	return p.world
}

func (p *Paddle) Move(in Input) {
	switch in {
	case InputMoveDown:
		p.Vel.Y = 1
		p.Bounds.Y += int(p.Vel.Y * float64(p.Speed))
	case InputMoveUp:
		p.Vel.Y = -1
		p.Bounds.Y += int(p.Vel.Y * float64(p.Speed))
	default:
		p.Vel.Y = 0
	}
	p.Clamp()
}

// Clamp forces 0 <= y <= worldHeight - height.
func (p *Paddle) Clamp() {
	if p.Bounds.Y < 0 {
		p.Bounds.Y = 0
	}
	if p.Bounds.Y+p.Bounds.Height >= p.world.Height() {
		p.Bounds.Y = p.world.Height() - p.Bounds.Height
	}
}
