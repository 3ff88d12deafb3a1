package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: roomId", ErrInvalidRequest), "invalid_request"},
		{fmt.Errorf("join: %w", ErrRoomFull), "room_full"},
		{ErrNotAMember, "not_a_member"},
		{ErrStaleConnection, "stale_connection"},
		{ErrConnectionNotFound, "stale_connection"},
		{ErrForbidden, "forbidden"},
		{ErrNotFound, "not_found"},
		{ErrRateLimited, "rate_limited"},
		{fmt.Errorf("room x: %w", context.DeadlineExceeded), "timeout"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, ErrorCode(tc.err), tc.err.Error())
	}
}

func TestChannelValidate(t *testing.T) {
	ch := Channel{ID: "study-1", Name: "  Study  ", Type: ChannelVoice}
	assert.NoError(t, ch.Validate())
	assert.Equal(t, "Study", ch.Name)
	assert.Equal(t, PrivacyPublic, ch.Privacy)
	assert.False(t, ch.CreatedAt.IsZero())

	bad := Channel{ID: "x", Name: "x", Type: "video"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRequest)
}
