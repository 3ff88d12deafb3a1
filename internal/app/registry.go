package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/mavprep/voice/internal/core"
	"github.com/mavprep/voice/internal/domain"
	"github.com/rs/zerolog/log"
)

// Session is a point-in-time copy of a registry entry.
type Session struct {
	ID       domain.ConnectionID
	State    domain.SessionState
	RoomID   domain.RoomID
	MemberID domain.MemberID
	Identity domain.Identity
	// WasJoined is set once the connection completes a join and stays set
	// after it leaves.
	WasJoined bool
	// SlowSends counts frames dropped on a full send queue.
	SlowSends int
}

type sessionEntry struct {
	mu       sync.Mutex
	id       domain.ConnectionID
	conn     core.SignalConnection
	identity domain.Identity
	state    domain.SessionState
	room     domain.RoomID
	member   domain.MemberID
	joined   bool
	slow     int
}

func (e *sessionEntry) snapshot() Session {
	return Session{ID: e.id, State: e.state, RoomID: e.room, MemberID: e.member, Identity: e.identity, WasJoined: e.joined, SlowSends: e.slow}
}

type tombstone struct {
	at        time.Time
	wasJoined bool
}

// Registry owns live connections and their session state.
// Entries have no cross-entry invariants, so each carries its own lock.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[domain.ConnectionID]*sessionEntry
	tombstones map[domain.ConnectionID]tombstone
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[domain.ConnectionID]*sessionEntry),
		tombstones: make(map[domain.ConnectionID]tombstone),
		now:        time.Now,
	}
}

func (r *Registry) Register(conn core.SignalConnection, id domain.Identity) domain.ConnectionID {
	cid := domain.NewConnectionID()
	r.mu.Lock()
	r.sessions[cid] = &sessionEntry{id: cid, conn: conn, identity: id}
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Str("user", string(id.ID)).Msg("registered connection")
	return cid
}

func (r *Registry) entry(cid domain.ConnectionID) (*sessionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[cid]; ok {
		return e, nil
	}
	if _, ok := r.tombstones[cid]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStaleConnection, cid)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, cid)
}

func (r *Registry) Lookup(cid domain.ConnectionID) (core.SignalConnection, error) {
	e, err := r.entry(cid)
	if err != nil {
		return nil, err
	}
	return e.conn, nil
}

func (r *Registry) Snapshot(cid domain.ConnectionID) (Session, error) {
	e, err := r.entry(cid)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// BeginJoin moves an unjoined connection to Joining.
func (r *Registry) BeginJoin(cid domain.ConnectionID, room domain.RoomID, member domain.MemberID) error {
	e, err := r.entry(cid)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case domain.StateUnjoined:
		e.state = domain.StateJoining
		e.room = room
		e.member = member
		return nil
	case domain.StateLeft:
		return fmt.Errorf("%w: %s", domain.ErrStaleConnection, cid)
	default:
		return fmt.Errorf("%w: connection already %s room %s", domain.ErrInvalidRequest, e.state, e.room)
	}
}

// CompleteJoin moves Joining to Joined. It fails when the connection
// departed while the room table was being updated.
func (r *Registry) CompleteJoin(cid domain.ConnectionID) error {
	e, err := r.entry(cid)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != domain.StateJoining {
		return fmt.Errorf("%w: %s is %s", domain.ErrStaleConnection, cid, e.state)
	}
	e.state = domain.StateJoined
	e.joined = true
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Str("room", string(e.room)).Msg("joined")
	return nil
}

// FailJoin moves Joining to Left.
func (r *Registry) FailJoin(cid domain.ConnectionID) {
	e, err := r.entry(cid)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == domain.StateJoining {
		e.state = domain.StateLeft
	}
}

// Depart handles an explicit leave of room. It returns the session as it was
// before the call and whether this call performed the Joined to Left move.
// An unjoined connection is left untouched.
func (r *Registry) Depart(cid domain.ConnectionID, room domain.RoomID) (Session, bool, error) {
	e, err := r.entry(cid)
	if err != nil {
		return Session{}, false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.snapshot()
	switch e.state {
	case domain.StateUnjoined:
		return prev, false, nil
	case domain.StateLeft:
		return prev, false, fmt.Errorf("%w: %s", domain.ErrStaleConnection, cid)
	case domain.StateJoining:
		return prev, false, fmt.Errorf("%w: join in progress", domain.ErrInvalidRequest)
	}
	if e.room != room {
		return prev, false, fmt.Errorf("%w: %s is in %q, not %q", domain.ErrNotAMember, cid, e.room, room)
	}
	e.state = domain.StateLeft
	return prev, true, nil
}

// Unregister drops the transport mapping and leaves a tombstone. Only the
// first call for a connection reports first=true; every later call is a no-op.
// The returned session is the state before the call, so the caller knows
// whether a departure still has to be announced.
func (r *Registry) Unregister(cid domain.ConnectionID) (Session, bool) {
	r.mu.Lock()
	e, ok := r.sessions[cid]
	if !ok {
		r.mu.Unlock()
		return Session{}, false
	}
	delete(r.sessions, cid)
	e.mu.Lock()
	prev := e.snapshot()
	e.state = domain.StateLeft
	e.mu.Unlock()
	r.tombstones[cid] = tombstone{at: r.now(), wasJoined: prev.WasJoined}
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Str("prev_state", prev.State.String()).Msg("unregistered connection")
	return prev, true
}

// MarkSlow counts a dropped frame against cid and returns the new total.
func (r *Registry) MarkSlow(cid domain.ConnectionID) (int, error) {
	e, err := r.entry(cid)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slow++
	return e.slow, nil
}

// JoinedOnce reports whether cid ever completed a join, live or tombstoned.
// known is false once the connection is forgotten entirely.
func (r *Registry) JoinedOnce(cid domain.ConnectionID) (joined, known bool) {
	r.mu.RLock()
	e, live := r.sessions[cid]
	ts, dead := r.tombstones[cid]
	r.mu.RUnlock()
	switch {
	case live:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.joined, true
	case dead:
		return ts.wasJoined, true
	default:
		return false, false
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PruneTombstones forgets connections unregistered more than ttl ago.
func (r *Registry) PruneTombstones(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for cid, ts := range r.tombstones {
		if ts.at.Before(cutoff) {
			delete(r.tombstones, cid)
			n++
		}
	}
	return n
}

// Cancel closes the transport of cid; the adapter's read pump then
// reports the disconnect.
func (r *Registry) Cancel(cid domain.ConnectionID) bool {
	conn, err := r.Lookup(cid)
	if err != nil {
		return false
	}
	conn.Close()
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("canceled connection")
	return true
}
