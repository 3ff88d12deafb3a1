package domain

import (
	"fmt"
	"strings"
	"time"
)

type ChannelID string

type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
)

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

type Channel struct {
	ID           ChannelID   `json:"id"`
	Name         string      `json:"name"`
	Type         ChannelType `json:"type"`
	Privacy      Privacy     `json:"privacy"`
	PasswordHash string      `json:"-"`
	CreatedBy    string      `json:"createdBy"`
	CreatedAt    time.Time   `json:"createdAt"`
	MaxMembers   int         `json:"maxMembers,omitempty"`
	Course       string      `json:"course,omitempty"`
}

// Validate checks required fields and fills defaults.
func (c *Channel) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" || c.Name == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidRequest)
	}
	switch c.Type {
	case ChannelText, ChannelVoice:
	default:
		return fmt.Errorf("%w: unknown channel type %q", ErrInvalidRequest, c.Type)
	}
	switch c.Privacy {
	case "":
		c.Privacy = PrivacyPublic
	case PrivacyPublic, PrivacyPrivate:
	default:
		return fmt.Errorf("%w: unknown privacy %q", ErrInvalidRequest, c.Privacy)
	}
	if c.MaxMembers < 0 {
		return fmt.Errorf("%w: negative max members", ErrInvalidRequest)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}
