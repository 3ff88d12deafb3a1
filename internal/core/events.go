package core

import (
	"encoding/json"

	"github.com/mavprep/voice/internal/domain"
)

// Server to client event types.
const (
	EventRoomJoined = "room-joined"
	EventUserJoined = "user-joined"
	EventSignal     = "signal"
	EventUserLeft   = "user-left"
	EventRoomLeft   = "room-left"
	EventError      = "error"
	EventPong       = "pong"
	EventWhoAmI     = "whoami"
)

type RoomJoined struct {
	Type         string              `json:"type"`
	RoomID       domain.RoomID       `json:"roomId"`
	MemberCount  int                 `json:"memberCount"`
	ConnectionID domain.ConnectionID `json:"connectionId"`
	Members      []domain.Member     `json:"members"`
}

// PeerEvent is user-joined and user-left.
type PeerEvent struct {
	Type         string              `json:"type"`
	RoomID       domain.RoomID       `json:"roomId"`
	MemberID     domain.MemberID     `json:"memberId"`
	ConnectionID domain.ConnectionID `json:"connectionId"`
}

type SignalEvent struct {
	Type               string              `json:"type"`
	RoomID             domain.RoomID       `json:"roomId"`
	SenderConnectionID domain.ConnectionID `json:"senderConnectionId"`
	SenderMemberID     domain.MemberID     `json:"senderMemberId"`
	Payload            json.RawMessage     `json:"payload"`
}

type RoomLeft struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type WhoAmI struct {
	Type         string              `json:"type"`
	ConnectionID domain.ConnectionID `json:"connectionId"`
	State        string              `json:"state"`
	RoomID       domain.RoomID       `json:"roomId,omitempty"`
	MemberID     domain.MemberID     `json:"memberId,omitempty"`
	UserID       domain.UserID       `json:"userId,omitempty"`
	SlowSends    int                 `json:"slowSends,omitempty"`
}

func NewErrorEvent(err error) ErrorEvent {
	return ErrorEvent{Type: EventError, Code: domain.ErrorCode(err), Message: err.Error()}
}

// Encode marshals an event into a frame.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
