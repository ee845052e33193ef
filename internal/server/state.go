package server

import "fmt"

type state int

const (
	stateInitial state = iota
	stateWaitingForReady
	stateRunning
	stateShuttingDown
	stateShutdown
)

func (s state) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateWaitingForReady:
		return "waiting-for-ready"
	case stateRunning:
		return "running"
	case stateShuttingDown:
		return "shutting-down"
	case stateShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("state(%d)", int(s))
}
