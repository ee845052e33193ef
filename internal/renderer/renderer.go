package renderer

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"netpong/internal/ansii"
	"netpong/internal/client"
	"netpong/internal/pong"
	"netpong/internal/protocol"
)

// Terminal draws the playfield scaled to a fixed terminal size. Its own
// paddle is drawn green, the opponent cyan.
type Terminal struct {
	out        io.Writer
	cols, rows int
}

func NewTerminal(out io.Writer, cols, rows int) *Terminal {
	return &Terminal{out: out, cols: cols, rows: rows}
}

func (t *Terminal) Render(v pong.View, hud client.HUD) {
	c := ansii.NewCanvas(t.cols, t.rows, v.World.Width(), v.World.Height())
	c.Clear()

	left, right := ansii.Colors.Cyan, ansii.Colors.Cyan
	if hud.Role == protocol.LeftPaddle {
		left = ansii.Colors.Green
	} else {
		right = ansii.Colors.Green
	}
	drawPaddle(c, v.Left, left)
	drawPaddle(c, v.Right, right)
	b := v.Ball.Bounds
	c.DrawBox(b.X, b.Y, b.Width, b.Height, ansii.Colors.White)

	score := fmt.Sprintf("%d : %d", v.LeftScore, v.RightScore)
	c.DrawText(max(0, (t.cols-len(score))/2), 0, score, ansii.Styles.Bold)
	if hud.ShowPlayers {
		drawPlayers(c, hud.Players)
	}

	if _, err := io.WriteString(t.out, string(ansii.Screen.HideCursor)+c.String()); err != nil {
		slog.Debug("failed to draw frame", slog.Any("error", err))
	}
}

func drawPaddle(c *ansii.Canvas, p pong.Paddle, style ansii.ANSI) {
	b := p.Bounds.Box()
	c.DrawBox(b.X, b.Y, b.Width, b.Height, style)
}

func drawPlayers(c *ansii.Canvas, players map[protocol.Role]protocol.Player) {
	roles := make([]protocol.Role, 0, len(players))
	for r := range players {
		roles = append(roles, r)
	}
	slices.Sort(roles)

	for i, r := range roles {
		p := players[r]
		line := fmt.Sprintf("%-12s %-16s %4dms", r, p.Name, p.Ping)
		c.DrawText(2, 2+i, line, ansii.Colors.Yellow)
	}
}
