package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
	MaxMessageLen       = 4000
)

type MessageID string

// ReplyRef is the quoted parent of a threaded reply.
type ReplyRef struct {
	ID       MessageID `json:"id"`
	UserName string    `json:"userName"`
	Content  string    `json:"content"`
}

type Message struct {
	ID        MessageID  `json:"id"`
	ChannelID ChannelID  `json:"channelId"`
	UserID    UserID     `json:"userId"`
	UserName  string     `json:"userName"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	ReplyTo   *ReplyRef  `json:"replyTo,omitempty"`
}

// Prepare validates a new message and assigns id and timestamp when missing.
func (m *Message) Prepare() error {
	m.Content = strings.TrimSpace(m.Content)
	if m.ChannelID == "" || m.UserID == "" || m.UserName == "" || m.Content == "" {
		return fmt.Errorf("%w: channelId, userId, userName and content are required", ErrInvalidRequest)
	}
	if len(m.Content) > MaxMessageLen {
		return fmt.Errorf("%w: content too long", ErrInvalidRequest)
	}
	if m.ID == "" {
		m.ID = MessageID("msg-" + uuid.NewString())
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

// ClampLimit bounds a page size requested by a client.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		return MaxMessageLimit
	}
	return limit
}
