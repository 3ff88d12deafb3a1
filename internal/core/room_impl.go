package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mavprep/voice/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrRoomClosed is returned by a room that was evicted while the caller
// held a reference to it. The table retries on a fresh room.
var ErrRoomClosed = errors.New("room closed")

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id domain.RoomID
	// lock is a one-slot semaphore so acquisition can honour ctx.
	lock    chan struct{}
	members []domain.Member
	byConn  map[domain.ConnectionID]int
	closed  bool
	count   atomic.Int32
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:     id,
		lock:   make(chan struct{}, 1),
		byConn: make(map[domain.ConnectionID]int),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int { return int(r.count.Load()) }

func (r *roomImpl) acquire(ctx context.Context) error {
	select {
	case r.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("room %s: %w", r.id, ctx.Err())
	}
}

func (r *roomImpl) release() { <-r.lock }

func (r *roomImpl) Join(ctx context.Context, m domain.Member, limit int) (JoinResult, error) {
	if err := r.acquire(ctx); err != nil {
		return JoinResult{}, err
	}
	defer r.release()

	if r.closed {
		return JoinResult{}, ErrRoomClosed
	}
	if _, ok := r.byConn[m.ConnectionID]; ok {
		return JoinResult{}, fmt.Errorf("%w: connection already in room %s", domain.ErrInvalidRequest, r.id)
	}
	if limit > 0 && len(r.members) >= limit {
		return JoinResult{}, fmt.Errorf("%w: %s has %d/%d members", domain.ErrRoomFull, r.id, len(r.members), limit)
	}

	existing := make([]domain.Member, len(r.members))
	copy(existing, r.members)

	r.byConn[m.ConnectionID] = len(r.members)
	r.members = append(r.members, m)
	r.count.Store(int32(len(r.members)))

	log.Info().Str("module", "core.room").Str("room", string(r.id)).
		Str("conn", string(m.ConnectionID)).Str("member", string(m.MemberID)).
		Int("count", len(r.members)).Msg("member added")
	return JoinResult{MemberCount: len(r.members), Existing: existing}, nil
}

func (r *roomImpl) Leave(ctx context.Context, conn domain.ConnectionID) (domain.Member, bool, bool, error) {
	if err := r.acquire(ctx); err != nil {
		return domain.Member{}, false, false, err
	}
	defer r.release()

	idx, ok := r.byConn[conn]
	if !ok {
		return domain.Member{}, false, len(r.members) == 0, nil
	}
	m := r.members[idx]
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	delete(r.byConn, conn)
	for i := idx; i < len(r.members); i++ {
		r.byConn[r.members[i].ConnectionID] = i
	}
	r.count.Store(int32(len(r.members)))

	empty := len(r.members) == 0
	if empty {
		r.closed = true
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).
		Str("conn", string(conn)).Int("count", len(r.members)).Msg("member removed")
	return m, true, empty, nil
}

func (r *roomImpl) Members(ctx context.Context) ([]domain.Member, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()
	out := make([]domain.Member, len(r.members))
	copy(out, r.members)
	return out, nil
}

// CloseIfEmpty marks an empty room closed so the table can drop it.
func (r *roomImpl) CloseIfEmpty(ctx context.Context) (bool, error) {
	if err := r.acquire(ctx); err != nil {
		return false, err
	}
	defer r.release()
	if len(r.members) == 0 {
		r.closed = true
	}
	return r.closed, nil
}
