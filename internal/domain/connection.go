package domain

import "github.com/google/uuid"

// ConnectionID identifies one physical transport session.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// SessionState is the lifecycle of a connection. Left is terminal.
type SessionState int

const (
	StateUnjoined SessionState = iota
	StateJoining
	StateJoined
	StateLeft
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}
