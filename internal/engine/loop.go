// Package engine drives an activity at a fixed tick rate and renders it in
// between ticks.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Activity is what the loop drives. Update advances one tick. Render draws
// the state delta of the way towards the next tick, delta in [0, 1].
type Activity interface {
	Update()
	Render(delta float64)
}

type Loop struct {
	tickRate int
	fps      int

	mu    sync.Mutex
	tasks []func()
}

// NewLoop ticks tickRate times and renders fps times a second.
func NewLoop(tickRate, fps int) (*Loop, error) {
	if tickRate <= 0 || fps <= 0 {
		return nil, fmt.Errorf("tick rate and fps must be positive, got %d and %d", tickRate, fps)
	}
	return &Loop{tickRate: tickRate, fps: fps}, nil
}

func (l *Loop) TickRate() int {
	return l.tickRate
}

// Execute queues task to run on the loop goroutine before the next tick.
// Tasks run in the order they were queued.
func (l *Loop) Execute(task func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, task)
}

func (l *Loop) drain() {
	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	for _, task := range tasks {
		task()
	}
}

// Step runs queued tasks and then one Update.
func (l *Loop) Step(a Activity) {
	l.drain()
	a.Update()
}

// Run blocks until ctx is done.
func (l *Loop) Run(ctx context.Context, a Activity) error {
	period := time.Second / time.Duration(l.tickRate)
	tick := time.NewTicker(period)
	defer tick.Stop()
	frame := time.NewTicker(time.Second / time.Duration(l.fps))
	defer frame.Stop()

	slog.Debug("Loop started", slog.Int("tickRate", l.tickRate), slog.Int("fps", l.fps))
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case now := <-tick.C:
			l.Step(a)
			last = now
		case now := <-frame.C:
			delta := float64(now.Sub(last)) / float64(period)
			a.Render(max(0, min(1, delta)))
		}
	}
}
