package protocol

import (
	"fmt"

	"netpong/internal/pong"
)

type FrameType int

const (
	TypeAuthorisation FrameType = iota
	TypeSnapshot
	TypeInput
	TypeEvent
	TypePing
	TypePingReply
)

var frameTypeNames = [...]string{
	TypeAuthorisation: "AUTHORISATION",
	TypeSnapshot:      "SNAPSHOT",
	TypeInput:         "INPUT",
	TypeEvent:         "EVENT",
	TypePing:          "PING",
	TypePingReply:     "PING_REPLY",
}

func (t FrameType) String() string {
	if t < 0 || int(t) >= len(frameTypeNames) {
		return fmt.Sprintf("FrameType(%d)", int(t))
	}
	return frameTypeNames[t]
}

type EventType int

const (
	EventPaddleMove EventType = iota
	EventBallHit
	EventScoreUpdate
	EventBallSpawn
	EventStarted
)

var eventTypeNames = [...]string{
	EventPaddleMove:  "PADDLE_MOVE_EVENT",
	EventBallHit:     "BALL_HIT_EVENT",
	EventScoreUpdate: "SCORE_UPDATE_EVENT",
	EventBallSpawn:   "BALL_SPAWN_EVENT",
	EventStarted:     "STARTED",
}

func (e EventType) String() string {
	if e < 0 || int(e) >= len(eventTypeNames) {
		return fmt.Sprintf("EventType(%d)", int(e))
	}
	return eventTypeNames[e]
}

// Frame is one message on the wire. The concrete types below are the only
// implementations; switch on them to handle a frame.
type Frame interface {
	Type() FrameType
}

// Event is a Frame of type EVENT.
type Event interface {
	Frame
	Event() EventType
}

type Authorisation struct {
	Name string
}

type Snapshot struct {
	State GameSnapshot
}

type Input struct {
	Input pong.Input
}

// Ping optionally carries the current round trip of every player.
type Ping struct {
	Pings map[Role]int64
}

type PingReply struct{}

type PaddleMove struct {
	Role  Role
	Input pong.Input
}

type BallHit struct {
	Position pong.Box
	Vel      pong.Vector
}

type BallSpawn struct {
	Position pong.Box
	Vel      pong.Vector
}

type ScoreUpdate struct {
	Scores map[Role]int
}

// Started tells a client which role it plays and who is playing.
type Started struct {
	Role    Role
	Players map[Role]Player
}

func (Authorisation) Type() FrameType { return TypeAuthorisation }
func (Snapshot) Type() FrameType      { return TypeSnapshot }
func (Input) Type() FrameType         { return TypeInput }
func (Ping) Type() FrameType          { return TypePing }
func (PingReply) Type() FrameType     { return TypePingReply }
func (PaddleMove) Type() FrameType    { return TypeEvent }
func (BallHit) Type() FrameType       { return TypeEvent }
func (BallSpawn) Type() FrameType     { return TypeEvent }
func (ScoreUpdate) Type() FrameType   { return TypeEvent }
func (Started) Type() FrameType       { return TypeEvent }

func (PaddleMove) Event() EventType  { return EventPaddleMove }
func (BallHit) Event() EventType     { return EventBallHit }
func (BallSpawn) Event() EventType   { return EventBallSpawn }
func (ScoreUpdate) Event() EventType { return EventScoreUpdate }
func (Started) Event() EventType     { return EventStarted }

// Describe names a frame for logs, e.g. "EVENT/BALL_HIT_EVENT".
func Describe(f Frame) string {
	if e, ok := f.(Event); ok {
		return f.Type().String() + "/" + e.Event().String()
	}
	return f.Type().String()
}
