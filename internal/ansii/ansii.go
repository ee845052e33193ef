package ansii

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

type ANSI string

const (
	reset       ANSI = "\033[0m"
	plain       ANSI = ""
	bold        ANSI = "\033[1m"
	underline   ANSI = "\033[4m"
	red         ANSI = "\033[31m"
	green       ANSI = "\033[32m"
	yellow      ANSI = "\033[33m"
	blue        ANSI = "\033[34m"
	purple      ANSI = "\033[35m"
	cyan        ANSI = "\033[36m"
	white       ANSI = "\033[37m"
	clearScreen ANSI = "\033[2J"
	hideCursor  ANSI = "\033[?25l"
	showCursor  ANSI = "\033[?25h"
)

type style struct {
	Reset     ANSI
	Plain     ANSI
	Bold      ANSI
	Underline ANSI
}

type color struct {
	Red    ANSI
	Green  ANSI
	Yellow ANSI
	Blue   ANSI
	Purple ANSI
	Cyan   ANSI
	White  ANSI
}

type screen struct {
	ClearScreen ANSI
	HideCursor  ANSI
	ShowCursor  ANSI
}

type ascii struct {
	Block string
}

var (
	Styles = style{Bold: bold, Underline: underline, Reset: reset, Plain: plain}
	Colors = color{Red: red, Green: green, Yellow: yellow, Blue: blue, Purple: purple, Cyan: cyan, White: white}
	Screen = screen{ClearScreen: clearScreen, HideCursor: hideCursor, ShowCursor: showCursor}
	Blocks = ascii{Block: "█"}
)

func GetTermSize() (width int, height int, err error) {
	width, height, err = term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("terminal size: %w", err)
	}
	return width, height, nil
}

// MakeTermRaw puts stdin in raw mode so single key presses can be read.
func MakeTermRaw() (*term.State, error) {
	return term.MakeRaw(int(os.Stdin.Fd()))
}

func RestoreTerm(prev *term.State) error {
	return term.Restore(int(os.Stdin.Fd()), prev)
}

// PlaceCursor moves to column X, row Y, both starting at 1.
func (s screen) PlaceCursor(X, Y int) ANSI {
	return ANSI(fmt.Sprintf("\033[%d;%dH", Y, X))
}

// Canvas maps a virtual coordinate space onto a grid of terminal cells.
type Canvas struct {
	builder strings.Builder

	cols, rows     int
	scaleX, scaleY float64
}

// NewCanvas draws a virtualW x virtualH space into cols x rows cells.
func NewCanvas(cols, rows, virtualW, virtualH int) *Canvas {
	return &Canvas{
		cols:   cols,
		rows:   rows,
		scaleX: float64(cols) / float64(virtualW),
		scaleY: float64(rows) / float64(virtualH),
	}
}

func (c *Canvas) Clear() {
	c.builder.WriteString(string(Screen.ClearScreen))
}

// DrawBox fills the virtual rectangle at (x, y). Every box covers at least
// one cell; cells off screen are clipped.
func (c *Canvas) DrawBox(x, y, width, height float64, style ANSI) {
	col0, row0 := c.cell(x, y)
	col1, row1 := c.cell(x+width, y+height)
	col1, row1 = max(col1, col0+1), max(row1, row0+1)

	c.builder.WriteString(string(style))
	for row := max(row0, 0); row < min(row1, c.rows); row++ {
		for col := max(col0, 0); col < min(col1, c.cols); col++ {
			c.drawPixel(col, row)
		}
	}
	c.builder.WriteString(string(Styles.Reset))
}

// DrawText writes s starting at the given cell.
func (c *Canvas) DrawText(col, row int, s string, style ANSI) {
	if row < 0 || row >= c.rows || col < 0 || col >= c.cols {
		return
	}
	c.builder.WriteString(string(style))
	c.builder.WriteString(string(Screen.PlaceCursor(col+1, row+1)))
	c.builder.WriteString(s)
	c.builder.WriteString(string(Styles.Reset))
}

func (c *Canvas) cell(x, y float64) (int, int) {
	return int(x * c.scaleX), int(y * c.scaleY)
}

func (c *Canvas) drawPixel(col, row int) {
	c.builder.WriteString(string(Screen.PlaceCursor(col+1, row+1) + ANSI(Blocks.Block)))
}

func (c *Canvas) Cols() int { return c.cols }
func (c *Canvas) Rows() int { return c.rows }

func (c *Canvas) String() string {
	return c.builder.String()
}
