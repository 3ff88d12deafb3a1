package app

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mavprep/voice/internal/core"
	"github.com/mavprep/voice/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomTableImpl keeps one RoomService per live room. The map lock is only
// held to find or swap a room; membership changes serialize on the room.
type RoomTableImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomTable() core.RoomTable {
	return &RoomTableImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (t *RoomTableImpl) getOrCreate(id domain.RoomID) core.RoomService {
	t.mu.RLock()
	room, ok := t.rooms[id]
	t.mu.RUnlock()
	if ok {
		return room
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if room, ok = t.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(id)
	t.rooms[id] = room
	log.Debug().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return room
}

func (t *RoomTableImpl) get(id domain.RoomID) (core.RoomService, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	room, ok := t.rooms[id]
	return room, ok
}

// drop removes room only if it is still the one mapped under its id.
func (t *RoomTableImpl) drop(room core.RoomService) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.rooms[room.ID()]; ok && cur == room {
		delete(t.rooms, room.ID())
		log.Debug().Str("module", "app.rooms").Str("room", string(room.ID())).Msg("room evicted")
	}
}

func (t *RoomTableImpl) Join(ctx context.Context, id domain.RoomID, m domain.Member, limit int) (core.JoinResult, error) {
	for {
		room := t.getOrCreate(id)
		res, err := room.Join(ctx, m, limit)
		if errors.Is(err, core.ErrRoomClosed) {
			// Lost a race with the leave that emptied the room.
			t.drop(room)
			continue
		}
		return res, err
	}
}

func (t *RoomTableImpl) Leave(ctx context.Context, id domain.RoomID, conn domain.ConnectionID) (domain.Member, bool, error) {
	room, ok := t.get(id)
	if !ok {
		return domain.Member{}, false, nil
	}
	m, removed, empty, err := room.Leave(ctx, conn)
	if err != nil {
		return domain.Member{}, false, err
	}
	if empty && removed {
		t.drop(room)
	}
	return m, removed, nil
}

func (t *RoomTableImpl) Members(ctx context.Context, id domain.RoomID) ([]domain.Member, error) {
	room, ok := t.get(id)
	if !ok {
		return nil, nil
	}
	return room.Members(ctx)
}

func (t *RoomTableImpl) Size(id domain.RoomID) int {
	room, ok := t.get(id)
	if !ok {
		return 0
	}
	return room.MemberCount()
}

func (t *RoomTableImpl) List() []domain.RoomInfo {
	t.mu.RLock()
	out := make([]domain.RoomInfo, 0, len(t.rooms))
	for id, r := range t.rooms {
		out = append(out, domain.RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *RoomTableImpl) EvictEmpty(ctx context.Context) int {
	t.mu.RLock()
	candidates := make([]core.RoomService, 0)
	for _, r := range t.rooms {
		if r.MemberCount() == 0 {
			candidates = append(candidates, r)
		}
	}
	t.mu.RUnlock()

	n := 0
	for _, r := range candidates {
		closed, err := r.CloseIfEmpty(ctx)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.rooms").Str("room", string(r.ID())).Msg("evict skipped")
			continue
		}
		if closed {
			t.drop(r)
			n++
		}
	}
	return n
}
