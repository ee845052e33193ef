package pong

type Ball struct {
	Bounds Box
	// Vel is a direction only, Move normalizes it.
	Vel   Vector
	Speed int
}

// Move advances the ball by speed*scale along its direction. A scale of 1
// is one tick.
func (b *Ball) Move(scale float64) {
	n := b.Vel.Normalize()
	b.Bounds.X += n.X * float64(b.Speed) * scale
	b.Bounds.Y += n.Y * float64(b.Speed) * scale
}

// Centre returns the centre of the ball's bounding box.
func (b *Ball) Centre() Vector {
	return Vector{X: b.Bounds.X + b.Bounds.Width/2, Y: b.Bounds.Y + b.Bounds.Height/2}
}
