package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mavprep/voice/internal/domain"
)

// Memory is a process-local Store used in development and tests.
type Memory struct {
	mu       sync.RWMutex
	channels map[domain.ChannelID]domain.Channel
	messages map[domain.ChannelID][]domain.Message
}

func NewMemory() *Memory {
	return &Memory{
		channels: make(map[domain.ChannelID]domain.Channel),
		messages: make(map[domain.ChannelID][]domain.Message),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateChannel(_ context.Context, ch domain.Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID] = ch
	return nil
}

func (m *Memory) GetChannel(_ context.Context, id domain.ChannelID) (domain.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return domain.Channel{}, fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
	}
	return ch, nil
}

func (m *Memory) GetAllChannels(context.Context) ([]domain.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteChannel(_ context.Context, id domain.ChannelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[id]; !ok {
		return fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
	}
	delete(m.channels, id)
	delete(m.messages, id)
	return nil
}

func (m *Memory) CreateMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	if err := msg.Prepare(); err != nil {
		return domain.Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[msg.ChannelID]; !ok {
		return domain.Message{}, fmt.Errorf("channel %s: %w", msg.ChannelID, domain.ErrNotFound)
	}
	list := append(m.messages[msg.ChannelID], msg)
	sort.SliceStable(list, func(i, j int) bool { return positionOf(list[j]).after(positionOf(list[i])) })
	m.messages[msg.ChannelID] = list
	return msg, nil
}

func (m *Memory) GetChannelMessages(_ context.Context, ch domain.ChannelID, limit int, cursor string) ([]domain.Message, string, error) {
	from, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	limit = domain.ClampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.messages[ch]
	i := sort.Search(len(list), func(i int) bool { return positionOf(list[i]).after(from) })
	end := min(i+limit, len(list))
	out := make([]domain.Message, end-i)
	copy(out, list[i:end])

	next := ""
	if end < len(list) && len(out) > 0 {
		next = encodeCursor(positionOf(out[len(out)-1]))
	}
	return out, next, nil
}

func (m *Memory) find(ch domain.ChannelID, id domain.MessageID) (int, error) {
	for i, msg := range m.messages[ch] {
		if msg.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
}

func (m *Memory) UpdateMessage(_ context.Context, ch domain.ChannelID, id domain.MessageID, content string) (domain.Message, error) {
	if content == "" || len(content) > domain.MaxMessageLen {
		return domain.Message{}, fmt.Errorf("%w: bad content", domain.ErrInvalidRequest)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.find(ch, id)
	if err != nil {
		return domain.Message{}, err
	}
	now := time.Now().UTC()
	msg := m.messages[ch][i]
	msg.Content = content
	msg.UpdatedAt = &now
	m.messages[ch][i] = msg
	return msg, nil
}

func (m *Memory) DeleteMessage(_ context.Context, ch domain.ChannelID, id domain.MessageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.find(ch, id)
	if err != nil {
		return err
	}
	list := m.messages[ch]
	m.messages[ch] = append(list[:i], list[i+1:]...)
	return nil
}
