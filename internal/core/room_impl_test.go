package core

import (
	"context"
	"testing"
	"time"

	"github.com/mavprep/voice/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomJoinReturnsExistingMembers(t *testing.T) {
	ctx := context.Background()
	r := NewRoomService("study-1")

	res, err := r.Join(ctx, domain.NewMember("alice", "c1"), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MemberCount)
	assert.Empty(t, res.Existing)

	res, err = r.Join(ctx, domain.NewMember("bob", "c2"), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.MemberCount)
	require.Len(t, res.Existing, 1)
	assert.Equal(t, domain.ConnectionID("c1"), res.Existing[0].ConnectionID)
	assert.Equal(t, 2, r.MemberCount())
}

func TestRoomRejectsDuplicateConnection(t *testing.T) {
	ctx := context.Background()
	r := NewRoomService("study-1")
	_, err := r.Join(ctx, domain.NewMember("alice", "c1"), 0)
	require.NoError(t, err)

	_, err = r.Join(ctx, domain.NewMember("alice", "c1"), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	// Same member id on another connection is fine.
	_, err = r.Join(ctx, domain.NewMember("alice", "c2"), 0)
	assert.NoError(t, err)
}

func TestRoomCapacity(t *testing.T) {
	ctx := context.Background()
	r := NewRoomService("study-1")
	_, err := r.Join(ctx, domain.NewMember("a", "c1"), 2)
	require.NoError(t, err)
	_, err = r.Join(ctx, domain.NewMember("b", "c2"), 2)
	require.NoError(t, err)

	_, err = r.Join(ctx, domain.NewMember("c", "c3"), 2)
	assert.ErrorIs(t, err, domain.ErrRoomFull)
	assert.Equal(t, 2, r.MemberCount())
}

func TestRoomLeave(t *testing.T) {
	ctx := context.Background()
	r := NewRoomService("study-1")
	_, _ = r.Join(ctx, domain.NewMember("a", "c1"), 0)
	_, _ = r.Join(ctx, domain.NewMember("b", "c2"), 0)
	_, _ = r.Join(ctx, domain.NewMember("c", "c3"), 0)

	m, removed, empty, err := r.Leave(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, domain.MemberID("a"), m.MemberID)

	_, removed, _, err = r.Leave(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, removed)

	// Index stays consistent after removing from the front.
	m, removed, _, err = r.Leave(ctx, "c3")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, domain.MemberID("c"), m.MemberID)

	members, err := r.Members(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, domain.ConnectionID("c2"), members[0].ConnectionID)
}

func TestRoomClosesWhenEmptied(t *testing.T) {
	ctx := context.Background()
	r := NewRoomService("study-1")
	_, _ = r.Join(ctx, domain.NewMember("a", "c1"), 0)

	_, removed, empty, err := r.Leave(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.True(t, empty)

	_, err = r.Join(ctx, domain.NewMember("b", "c2"), 0)
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestRoomHonoursContextWhileLocked(t *testing.T) {
	r := NewRoomService("study-1").(*roomImpl)
	r.lock <- struct{}{}
	defer r.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Join(ctx, domain.NewMember("a", "c1"), 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, r.MemberCount())
}

func TestMembersIsACopy(t *testing.T) {
	ctx := context.Background()
	r := NewRoomService("study-1")
	_, _ = r.Join(ctx, domain.NewMember("a", "c1"), 0)

	members, err := r.Members(ctx)
	require.NoError(t, err)
	members[0].MemberID = "mallory"

	again, _ := r.Members(ctx)
	assert.Equal(t, domain.MemberID("a"), again[0].MemberID)
}
