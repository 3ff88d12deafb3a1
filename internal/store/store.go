// Package store holds the channel and message collaborators. The voice core
// only reads channels; the REST adapter does the rest.
package store

import (
	"context"
	"fmt"

	"github.com/mavprep/voice/internal/domain"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

type ChannelStore interface {
	CreateChannel(ctx context.Context, ch domain.Channel) error
	GetChannel(ctx context.Context, id domain.ChannelID) (domain.Channel, error)
	GetAllChannels(ctx context.Context) ([]domain.Channel, error)
	// DeleteChannel removes the channel and every message in it.
	DeleteChannel(ctx context.Context, id domain.ChannelID) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	// GetChannelMessages returns up to limit messages oldest first, starting
	// after cursor, plus the cursor of the next page ("" when exhausted).
	GetChannelMessages(ctx context.Context, ch domain.ChannelID, limit int, cursor string) ([]domain.Message, string, error)
	UpdateMessage(ctx context.Context, ch domain.ChannelID, id domain.MessageID, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, ch domain.ChannelID, id domain.MessageID) error
}

// Store is both collaborators behind one backend.
type Store interface {
	ChannelStore
	MessageStore
	Close() error
}

// Open returns the backend named by driver: "memory", "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "postgres":
		return OpenSQL(ctx, driver, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
