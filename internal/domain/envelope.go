package domain

import "encoding/json"

// Envelope is a negotiation message in flight. Payload is never inspected.
type Envelope struct {
	RoomID         RoomID
	SenderID       ConnectionID
	TargetMemberID MemberID
	Payload        json.RawMessage
}
