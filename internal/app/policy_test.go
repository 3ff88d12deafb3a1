package app

import (
	"context"
	"errors"
	"testing"

	"github.com/mavprep/voice/internal/domain"
	"github.com/mavprep/voice/internal/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

func TestChannelPolicyAdmit(t *testing.T) {
	ctrl := gomock.NewController(t)
	channels := mocks.NewMockChannelStore(ctrl)
	p := ChannelPolicy{Channels: channels, DefaultMaxMembers: 8, Action: KickMember}
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	channels.EXPECT().GetChannel(gomock.Any(), domain.ChannelID("adhoc")).
		Return(domain.Channel{}, domain.ErrNotFound)
	channels.EXPECT().GetChannel(gomock.Any(), domain.ChannelID("voice-1")).
		Return(domain.Channel{ID: "voice-1", Type: domain.ChannelVoice, MaxMembers: 3}, nil)
	channels.EXPECT().GetChannel(gomock.Any(), domain.ChannelID("text-1")).
		Return(domain.Channel{ID: "text-1", Type: domain.ChannelText}, nil)
	channels.EXPECT().GetChannel(gomock.Any(), domain.ChannelID("private")).
		Return(domain.Channel{ID: "private", Type: domain.ChannelVoice, Privacy: domain.PrivacyPrivate, PasswordHash: string(hash)}, nil).
		Times(2)
	channels.EXPECT().GetChannel(gomock.Any(), domain.ChannelID("broken")).
		Return(domain.Channel{}, errors.New("db down"))

	limit, err := p.Admit(ctx, "adhoc", "")
	require.NoError(t, err)
	assert.Equal(t, 8, limit)

	limit, err = p.Admit(ctx, "voice-1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, limit)

	_, err = p.Admit(ctx, "text-1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = p.Admit(ctx, "private", "wrong")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	limit, err = p.Admit(ctx, "private", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, 8, limit)

	_, err = p.Admit(ctx, "broken", "")
	assert.Error(t, err)
	assert.Equal(t, "internal", domain.ErrorCode(err))

	assert.Equal(t, KickMember, p.OnBackPressure("voice-1", "c1"))
}

func TestParseBackpressureAction(t *testing.T) {
	for in, want := range map[string]BackpressureAction{
		"":          KickMember,
		"kick":      KickMember,
		"none":      NoAction,
		"mark_slow": MarkSlow,
	} {
		got, err := ParseBackpressureAction(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"explode", "drop"} {
		_, err := ParseBackpressureAction(bad)
		assert.Error(t, err, bad)
	}
}
