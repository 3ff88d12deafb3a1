package domain

import "time"

// MemberID is a caller-supplied participant id. It is not unique:
// one person may hold several connections in the same room.
type MemberID string

// Member is one joined connection inside a room.
// No transport or lifecycle logic here.
type Member struct {
	MemberID     MemberID     `json:"memberId"`
	ConnectionID ConnectionID `json:"connectionId"`
	JoinedAt     time.Time    `json:"joinedAt"`
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(id MemberID, conn ConnectionID) Member {
	return Member{MemberID: id, ConnectionID: conn, JoinedAt: time.Now()}
}
