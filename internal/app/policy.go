package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/mavprep/voice/internal/domain"
	"github.com/mavprep/voice/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	// MarkSlow keeps the peer and counts the dropped frame on its session.
	MarkSlow
	KickMember
)

// Policy decides who may enter a room, how many fit, and what happens to
// a peer whose send queue is full.
type Policy interface {
	// Admit returns the member limit for room (0 means unbounded).
	Admit(ctx context.Context, room domain.RoomID, password string) (int, error)
	OnBackPressure(room domain.RoomID, conn domain.ConnectionID) BackpressureAction
}

// SimplePolicy admits everyone into rooms of at most MaxMembers.
type SimplePolicy struct {
	MaxMembers int
	Action     BackpressureAction
}

func (p SimplePolicy) Admit(context.Context, domain.RoomID, string) (int, error) {
	return p.MaxMembers, nil
}

func (p SimplePolicy) OnBackPressure(domain.RoomID, domain.ConnectionID) BackpressureAction {
	return p.Action
}

// ChannelPolicy treats a room id as a voice channel id. Rooms without a
// channel record are ad-hoc and get DefaultMaxMembers.
type ChannelPolicy struct {
	Channels          store.ChannelStore
	DefaultMaxMembers int
	Action            BackpressureAction
}

func (p ChannelPolicy) Admit(ctx context.Context, room domain.RoomID, password string) (int, error) {
	ch, err := p.Channels.GetChannel(ctx, domain.ChannelID(room))
	if errors.Is(err, domain.ErrNotFound) {
		return p.DefaultMaxMembers, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup channel %s: %w", room, err)
	}
	if ch.Type != domain.ChannelVoice {
		return 0, fmt.Errorf("%w: %s is a %s channel", domain.ErrInvalidRequest, room, ch.Type)
	}
	if ch.Privacy == domain.PrivacyPrivate && ch.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(ch.PasswordHash), []byte(password)); err != nil {
			return 0, fmt.Errorf("%w: wrong password for %s", domain.ErrForbidden, room)
		}
	}
	if ch.MaxMembers > 0 {
		return ch.MaxMembers, nil
	}
	return p.DefaultMaxMembers, nil
}

func (p ChannelPolicy) OnBackPressure(domain.RoomID, domain.ConnectionID) BackpressureAction {
	return p.Action
}

// ParseBackpressureAction reads the config spelling of an action.
func ParseBackpressureAction(s string) (BackpressureAction, error) {
	switch s {
	case "", "kick":
		return KickMember, nil
	case "none":
		return NoAction, nil
	case "mark_slow":
		return MarkSlow, nil
	default:
		return NoAction, fmt.Errorf("unknown backpressure action %q", s)
	}
}
