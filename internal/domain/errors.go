package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrRoomFull           = errors.New("room full")
	ErrNotAMember         = errors.New("not a member of room")
	ErrStaleConnection    = errors.New("stale connection")
	ErrTransport          = errors.New("transport error")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
)

// ErrorCode maps an error to the code sent to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrStaleConnection), errors.Is(err, ErrConnectionNotFound):
		return "stale_connection"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
