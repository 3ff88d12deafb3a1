package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mavprep/voice/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQL(context.Background(), "sqlite", filepath.Join(t.TempDir(), "voice.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func seedChannel(t *testing.T, s Store, id domain.ChannelID) {
	t.Helper()
	require.NoError(t, s.CreateChannel(context.Background(), domain.Channel{
		ID: id, Name: "Study " + string(id), Type: domain.ChannelText,
	}))
}

func TestChannels(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateChannel(ctx, domain.Channel{
				ID: "voice-1", Name: "Voice", Type: domain.ChannelVoice,
				Privacy: domain.PrivacyPrivate, PasswordHash: "hash", MaxMembers: 6, Course: "CS101",
			}))
			seedChannel(t, s, "text-1")

			ch, err := s.GetChannel(ctx, "voice-1")
			require.NoError(t, err)
			assert.Equal(t, domain.ChannelVoice, ch.Type)
			assert.Equal(t, domain.PrivacyPrivate, ch.Privacy)
			assert.Equal(t, "hash", ch.PasswordHash)
			assert.Equal(t, 6, ch.MaxMembers)
			assert.Equal(t, "CS101", ch.Course)

			all, err := s.GetAllChannels(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			_, err = s.GetChannel(ctx, "missing")
			assert.ErrorIs(t, err, domain.ErrNotFound)

			err = s.CreateChannel(ctx, domain.Channel{ID: "bad", Name: "x", Type: "video"})
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestDeleteChannelCascades(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedChannel(t, s, "text-1")
			_, err := s.CreateMessage(ctx, domain.Message{ChannelID: "text-1", UserID: "u1", UserName: "alice", Content: "hi"})
			require.NoError(t, err)

			require.NoError(t, s.DeleteChannel(ctx, "text-1"))
			_, err = s.GetChannel(ctx, "text-1")
			assert.ErrorIs(t, err, domain.ErrNotFound)

			// Recreating the channel does not resurrect old messages.
			seedChannel(t, s, "text-1")
			msgs, _, err := s.GetChannelMessages(ctx, "text-1", 0, "")
			require.NoError(t, err)
			assert.Empty(t, msgs)

			assert.ErrorIs(t, s.DeleteChannel(ctx, "missing"), domain.ErrNotFound)
		})
	}
}

func TestMessagePagination(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedChannel(t, s, "text-1")
			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			// Inserted out of order; two share a timestamp.
			for _, i := range []int{3, 0, 4, 1, 2} {
				ts := base.Add(time.Duration(i) * time.Minute)
				if i == 2 {
					ts = base.Add(time.Minute)
				}
				_, err := s.CreateMessage(ctx, domain.Message{
					ID:        domain.MessageID(fmt.Sprintf("m%d", i)),
					ChannelID: "text-1", UserID: "u1", UserName: "alice",
					Content: fmt.Sprintf("message %d", i), Timestamp: ts,
				})
				require.NoError(t, err)
			}

			var got []domain.MessageID
			cursor := ""
			pages := 0
			for {
				msgs, next, err := s.GetChannelMessages(ctx, "text-1", 2, cursor)
				require.NoError(t, err)
				for _, m := range msgs {
					got = append(got, m.ID)
				}
				pages++
				if next == "" {
					break
				}
				cursor = next
			}
			assert.Equal(t, []domain.MessageID{"m0", "m1", "m2", "m3", "m4"}, got)
			assert.Equal(t, 3, pages)

			_, _, err := s.GetChannelMessages(ctx, "text-1", 2, "%%%")
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestMessageEdits(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedChannel(t, s, "text-1")

			parent, err := s.CreateMessage(ctx, domain.Message{ChannelID: "text-1", UserID: "u1", UserName: "alice", Content: "question?"})
			require.NoError(t, err)
			assert.NotEmpty(t, parent.ID)

			reply, err := s.CreateMessage(ctx, domain.Message{
				ChannelID: "text-1", UserID: "u2", UserName: "bob", Content: "answer",
				ReplyTo: &domain.ReplyRef{ID: parent.ID, UserName: "alice", Content: "question?"},
			})
			require.NoError(t, err)

			edited, err := s.UpdateMessage(ctx, "text-1", reply.ID, "better answer")
			require.NoError(t, err)
			assert.Equal(t, "better answer", edited.Content)
			require.NotNil(t, edited.UpdatedAt)
			require.NotNil(t, edited.ReplyTo)
			assert.Equal(t, parent.ID, edited.ReplyTo.ID)

			_, err = s.UpdateMessage(ctx, "text-1", "nope", "x")
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = s.UpdateMessage(ctx, "text-1", reply.ID, "")
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)

			require.NoError(t, s.DeleteMessage(ctx, "text-1", parent.ID))
			assert.ErrorIs(t, s.DeleteMessage(ctx, "text-1", parent.ID), domain.ErrNotFound)

			msgs, _, err := s.GetChannelMessages(ctx, "text-1", 10, "")
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, reply.ID, msgs[0].ID)

			_, err = s.CreateMessage(ctx, domain.Message{ChannelID: "missing", UserID: "u1", UserName: "a", Content: "x"})
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(context.Background(), "mongo", "")
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	seeded, err := Seed(ctx, s, "system", false)
	require.NoError(t, err)
	assert.True(t, seeded)
	all, _ := s.GetAllChannels(ctx)
	assert.Len(t, all, len(DefaultChannels()))

	v1, err := s.GetChannel(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelVoice, v1.Type)
	assert.Equal(t, "system", v1.CreatedBy)

	seeded, err = Seed(ctx, s, "system", false)
	require.NoError(t, err)
	assert.False(t, seeded)

	seeded, err = Seed(ctx, s, "admin", true)
	require.NoError(t, err)
	assert.True(t, seeded)
	all, _ = s.GetAllChannels(ctx)
	assert.Len(t, all, len(DefaultChannels()))
}
