package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/mavprep/voice/internal/app"
	"github.com/mavprep/voice/internal/core"
	"github.com/mavprep/voice/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinRequest struct {
	RoomID   domain.RoomID
	MemberID domain.MemberID
	Password string
}

func (o *Orchestrator) validateJoin(sess app.Session, req JoinRequest) error {
	if req.RoomID == "" || req.MemberID == "" {
		return fmt.Errorf("%w: roomId and memberId are required", domain.ErrInvalidRequest)
	}
	if len(req.MemberID) > domain.MaxMemberIDLen {
		return fmt.Errorf("%w: memberId too long", domain.ErrInvalidRequest)
	}
	if !sess.Identity.Anonymous() && req.MemberID != domain.MemberID(sess.Identity.ID) {
		return fmt.Errorf("%w: memberId does not match authenticated user", domain.ErrInvalidRequest)
	}
	return nil
}

// Join runs the join handshake for cid. On success the joiner is acked with
// the members that were already present, then the rest of the room is told.
// A failure after validation leaves the connection in the Left state.
//
// The member is visible in the room table before its ack is queued, so a
// concurrent signal or user-joined fan-out may reach the joiner ahead of
// room-joined. Clients must accept room events before the ack.
func (o *Orchestrator) Join(ctx context.Context, cid domain.ConnectionID, req JoinRequest) error {
	sess, err := o.Registry.Snapshot(cid)
	if err != nil {
		return err
	}
	if sess.State == domain.StateLeft {
		return fmt.Errorf("%w: %s", domain.ErrStaleConnection, cid)
	}
	if err := o.validateJoin(sess, req); err != nil {
		return err
	}
	if err := o.Registry.BeginJoin(cid, req.RoomID, req.MemberID); err != nil {
		return err
	}

	logger := log.With().Str("module", "orch").Str("conn", string(cid)).
		Str("room", string(req.RoomID)).Str("member", string(req.MemberID)).Logger()

	joinCtx, cancel := context.WithTimeout(ctx, o.Opts.JoinTimeout)
	defer cancel()

	limit := 0
	if o.Policy != nil {
		limit, err = o.Policy.Admit(joinCtx, req.RoomID, req.Password)
		if err != nil {
			o.Registry.FailJoin(cid)
			logger.Warn().Err(err).Msg("join refused")
			return err
		}
	}

	me := domain.NewMember(req.MemberID, cid)
	res, err := o.Rooms.Join(joinCtx, req.RoomID, me, limit)
	if err != nil {
		o.Registry.FailJoin(cid)
		logger.Warn().Err(err).Msg("join failed")
		return err
	}
	if err := o.Registry.CompleteJoin(cid); err != nil {
		// Disconnected mid-join: nobody was told, so remove quietly.
		if _, _, lerr := o.removeWithRetry(context.WithoutCancel(ctx), req.RoomID, cid); lerr != nil {
			logger.Error().Err(lerr).Msg("rollback failed, left for reconciliation")
		}
		return err
	}

	if err := o.Relay.Unicast(cid, core.RoomJoined{
		Type:         core.EventRoomJoined,
		RoomID:       req.RoomID,
		MemberCount:  res.MemberCount,
		ConnectionID: cid,
		Members:      res.Existing,
	}); err != nil {
		logger.Warn().Err(err).Msg("join ack not delivered")
	}

	pub, err := o.Relay.BroadcastJoin(ctx, req.RoomID, me)
	if err != nil {
		logger.Warn().Err(err).Msg("join broadcast failed")
		return nil
	}
	o.onPublish(req.RoomID, pub)
	logger.Info().Int("count", res.MemberCount).Msg("joined room")
	return nil
}

// Leave handles an explicit leave-room. A connection that never joined gets
// removed=false and nothing is broadcast. If the room table cannot be
// updated the error is returned without a room-left ack; the connection is
// already Left and the sweep finishes the removal.
func (o *Orchestrator) Leave(ctx context.Context, cid domain.ConnectionID, room domain.RoomID, member domain.MemberID) (bool, error) {
	if room == "" {
		return false, fmt.Errorf("%w: roomId is required", domain.ErrInvalidRequest)
	}
	sess, err := o.Registry.Snapshot(cid)
	if err != nil {
		return false, err
	}
	if sess.State == domain.StateJoined && member != "" && member != sess.MemberID {
		return false, fmt.Errorf("%w: memberId does not match session", domain.ErrInvalidRequest)
	}
	prev, first, err := o.Registry.Depart(cid, room)
	if err != nil || !first {
		return false, err
	}

	removed, err := o.depart(ctx, prev)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(cid)).Str("room", string(room)).Msg("leave not acked")
		return false, err
	}
	if err := o.Relay.Unicast(cid, core.RoomLeft{Type: core.EventRoomLeft, RoomID: room}); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(cid)).Msg("leave ack not delivered")
	}
	return removed, nil
}

// Disconnect is called by the transport when a connection goes away. It is
// safe to call any number of times and after Leave; the departure runs once.
func (o *Orchestrator) Disconnect(cid domain.ConnectionID) {
	prev, first := o.Registry.Unregister(cid)
	if !first {
		return
	}
	if prev.State != domain.StateJoined {
		return
	}
	_, _ = o.depart(context.Background(), prev)
}

// depart removes s from its room and announces it. Only the caller that
// actually removed the member broadcasts, so the announcement happens once.
func (o *Orchestrator) depart(ctx context.Context, s app.Session) (bool, error) {
	logger := log.With().Str("module", "orch").Str("conn", string(s.ID)).Str("room", string(s.RoomID)).Logger()

	m, removed, err := o.removeWithRetry(ctx, s.RoomID, s.ID)
	if err != nil {
		logger.Error().Err(err).Msg("cleanup failed, left for reconciliation")
		return false, err
	}
	if !removed {
		return false, nil
	}
	o.announceLeave(ctx, s.RoomID, m)
	logger.Info().Str("member", string(m.MemberID)).Msg("left room")
	return true, nil
}

func (o *Orchestrator) announceLeave(ctx context.Context, room domain.RoomID, m domain.Member) {
	bctx, cancel := context.WithTimeout(ctx, o.Opts.JoinTimeout)
	defer cancel()
	pub, err := o.Relay.BroadcastLeave(bctx, room, m)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Msg("leave broadcast failed")
		return
	}
	o.onPublish(room, pub)
}

// removeWithRetry retries the room table leave with exponential backoff.
func (o *Orchestrator) removeWithRetry(ctx context.Context, room domain.RoomID, cid domain.ConnectionID) (domain.Member, bool, error) {
	backoff := o.Opts.CleanupBackoff
	for attempt := 0; ; attempt++ {
		actx, cancel := context.WithTimeout(ctx, o.Opts.JoinTimeout)
		m, removed, err := o.Rooms.Leave(actx, room, cid)
		cancel()
		if err == nil {
			return m, removed, nil
		}
		if attempt >= o.Opts.CleanupRetries {
			return domain.Member{}, false, fmt.Errorf("leave %s after %d attempts: %w", room, attempt+1, err)
		}
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Int("attempt", attempt+1).Msg("leave retry")
		select {
		case <-ctx.Done():
			return domain.Member{}, false, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
