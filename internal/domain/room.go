package domain

type RoomID string

// RoomInfo is a read-only view of a live room.
type RoomInfo struct {
	ID          RoomID `json:"id"`
	MemberCount int    `json:"memberCount"`
}
