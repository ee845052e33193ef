package renderer

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"netpong/internal/ansii"
	"netpong/internal/client"
	"netpong/internal/pong"
	"netpong/internal/protocol"
)

func TestProcessInput(t *testing.T) {
	tests := []struct {
		raw  string
		want []UiAction
	}{
		{"w", []UiAction{W}},
		{"S", []UiAction{S}},
		{"\x1b[A\x1b[B", []UiAction{UpArrow, DownArrow}},
		{"\tq", []UiAction{Tab, Quit}},
		{"\x03", []UiAction{Quit}},
		{"x\x1b[C", []UiAction{Unknown, Unknown}},
	}
	for _, tt := range tests {
		if got := ProcessInput([]byte(tt.raw)); !slices.Equal(got, tt.want) {
			t.Fatalf("ProcessInput(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestKeyboardHoldsKeys(t *testing.T) {
	now := time.Unix(0, 0)
	k := NewKeyboard(100 * time.Millisecond)
	k.now = func() time.Time { return now }

	if err := k.Listen(context.Background(), strings.NewReader("w\x1b[A")); err != nil {
		t.Fatalf("Listen returned error: %v", err)
	}
	if !k.IsPressed(client.KeyW) || !k.IsPressed(client.KeyUp) || k.IsPressed(client.KeyS) {
		t.Fatalf("unexpected key state")
	}
	now = now.Add(100 * time.Millisecond)
	if k.IsPressed(client.KeyW) {
		t.Fatalf("expected W released after the hold window")
	}
}

func TestKeyboardQuit(t *testing.T) {
	k := NewKeyboard(time.Second)
	if err := k.Listen(context.Background(), strings.NewReader("sq")); !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
	if !k.IsPressed(client.KeyS) {
		t.Fatalf("keys before quit should still register")
	}
}

func TestTerminalRender(t *testing.T) {
	w, err := pong.NewWorld(800, 600)
	if err != nil {
		t.Fatalf("NewWorld returned error: %v", err)
	}
	g := pong.NewStandardGame(w, 1)
	g.LeftScore, g.RightScore = 3, 7

	var out bytes.Buffer
	r := NewTerminal(&out, 80, 24)
	r.Render(g.View(), client.HUD{
		Role: protocol.RightPaddle,
		Players: map[protocol.Role]protocol.Player{
			protocol.LeftPaddle:  {Name: "alice", Role: protocol.LeftPaddle, Ping: 12},
			protocol.RightPaddle: {Name: "bob", Role: protocol.RightPaddle, Ping: 34},
		},
		ShowPlayers: true,
	})

	s := out.String()
	for _, want := range []string{"3 : 7", "alice", "bob", string(ansii.Colors.Green), ansii.Blocks.Block} {
		if !strings.Contains(s, want) {
			t.Fatalf("expected %q in output", want)
		}
	}
	if strings.Index(s, "alice") > strings.Index(s, "bob") {
		t.Fatalf("expected players listed in role order")
	}
}
