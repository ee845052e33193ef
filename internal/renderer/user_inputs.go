package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"netpong/internal/client"
)

var ErrQuit = errors.New("quit requested")

type UiAction int

const (
	Unknown UiAction = iota
	Quit
	W
	S
	UpArrow
	DownArrow
	Tab
)

// ProcessInput turns raw terminal bytes into actions. Letters are case
// insensitive and arrows arrive as ESC [ A / ESC [ B.
func ProcessInput(raw []byte) []UiAction {
	var actions []UiAction
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		if b == 0x1b && i+2 < len(raw) && raw[i+1] == '[' {
			switch raw[i+2] {
			case 'A':
				actions = append(actions, UpArrow)
			case 'B':
				actions = append(actions, DownArrow)
			default:
				actions = append(actions, Unknown)
			}
			i += 2
			continue
		}
		// Convert to UpperCase
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		switch b {
		case 'Q', 0x03:
			actions = append(actions, Quit)
		case 'W':
			actions = append(actions, W)
		case 'S':
			actions = append(actions, S)
		case '\t':
			actions = append(actions, Tab)
		default:
			actions = append(actions, Unknown)
		}
	}
	return actions
}

func (a UiAction) key() (client.Key, bool) {
	switch a {
	case W:
		return client.KeyW, true
	case S:
		return client.KeyS, true
	case UpArrow:
		return client.KeyUp, true
	case DownArrow:
		return client.KeyDown, true
	case Tab:
		return client.KeyTab, true
	}
	return 0, false
}

// Keyboard is a client.Keyboard fed from a raw terminal. Terminals only
// report presses, so a key counts as held until hold has passed without a
// repeat.
type Keyboard struct {
	hold time.Duration
	now  func() time.Time

	mu      sync.Mutex
	pressed map[client.Key]time.Time
}

func NewKeyboard(hold time.Duration) *Keyboard {
	return &Keyboard{hold: hold, now: time.Now, pressed: make(map[client.Key]time.Time)}
}

func (k *Keyboard) IsPressed(key client.Key) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	at, ok := k.pressed[key]
	return ok && k.now().Sub(at) < k.hold
}

func (k *Keyboard) press(actions []UiAction) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, a := range actions {
		if a == Quit {
			return true
		}
		if key, ok := a.key(); ok {
			k.pressed[key] = k.now()
		}
	}
	return false
}

// Listen reads r until it ends, fails, or a quit key is pressed, which
// returns ErrQuit. A blocked read only notices ctx once it returns.
func (k *Keyboard) Listen(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 && k.press(ProcessInput(buf[:n])) {
			return ErrQuit
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read keys: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
