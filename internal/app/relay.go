package app

import (
	"context"
	"fmt"

	"github.com/mavprep/voice/internal/core"
	"github.com/mavprep/voice/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay fans events out to room members. It reads membership from the room
// table and transports from the registry; it never mutates either.
// Every send is independent and fire-and-forget.
type Relay struct {
	Registry *Registry
	Rooms    core.RoomTable
}

func NewRelay(reg *Registry, rooms core.RoomTable) *Relay {
	return &Relay{Registry: reg, Rooms: rooms}
}

// Unicast encodes v and queues it on one connection.
func (r *Relay) Unicast(cid domain.ConnectionID, v any) error {
	frame, err := core.Encode(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return r.send(cid, frame)
}

func (r *Relay) send(cid domain.ConnectionID, frame core.Frame) error {
	conn, err := r.Registry.Lookup(cid)
	if err != nil {
		return err
	}
	if err := conn.TrySend(frame); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrTransport, cid, err)
	}
	return nil
}

func (r *Relay) fanout(room domain.RoomID, to []domain.Member, frame core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, m := range to {
		err := r.send(m.ConnectionID, frame)
		if err == nil {
			res.SendTo++
			continue
		}
		log.Warn().Err(err).Str("module", "app.relay").Str("room", string(room)).
			Str("dst_conn", string(m.ConnectionID)).Msg("send failed")
		res.Dropped = append(res.Dropped, m.ConnectionID)
	}
	log.Debug().Str("module", "app.relay").Str("room", string(room)).
		Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("fanout result")
	return res
}

func others(members []domain.Member, self domain.ConnectionID) []domain.Member {
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if m.ConnectionID != self {
			out = append(out, m)
		}
	}
	return out
}

func (r *Relay) broadcastPeer(ctx context.Context, kind string, room domain.RoomID, who domain.Member) (core.PublishResult, error) {
	members, err := r.Rooms.Members(ctx, room)
	if err != nil {
		return core.PublishResult{}, err
	}
	frame, err := core.Encode(core.PeerEvent{
		Type:         kind,
		RoomID:       room,
		MemberID:     who.MemberID,
		ConnectionID: who.ConnectionID,
	})
	if err != nil {
		return core.PublishResult{}, err
	}
	return r.fanout(room, others(members, who.ConnectionID), frame), nil
}

// BroadcastJoin tells every member of room except the joiner about it.
func (r *Relay) BroadcastJoin(ctx context.Context, room domain.RoomID, joiner domain.Member) (core.PublishResult, error) {
	return r.broadcastPeer(ctx, core.EventUserJoined, room, joiner)
}

// BroadcastLeave tells every remaining member of room that leaver is gone.
func (r *Relay) BroadcastLeave(ctx context.Context, room domain.RoomID, leaver domain.Member) (core.PublishResult, error) {
	return r.broadcastPeer(ctx, core.EventUserLeft, room, leaver)
}

// RelaySignal forwards env to its target member, or to every other member
// when no target is set. The sender must be in env.RoomID. A target that is
// not connected is a silent drop.
func (r *Relay) RelaySignal(ctx context.Context, env domain.Envelope) (core.PublishResult, error) {
	members, err := r.Rooms.Members(ctx, env.RoomID)
	if err != nil {
		return core.PublishResult{}, err
	}
	var sender *domain.Member
	for i := range members {
		if members[i].ConnectionID == env.SenderID {
			sender = &members[i]
			break
		}
	}
	if sender == nil {
		return core.PublishResult{}, fmt.Errorf("%w: %s not in %s", domain.ErrNotAMember, env.SenderID, env.RoomID)
	}

	to := others(members, env.SenderID)
	if env.TargetMemberID != "" {
		targeted := to[:0]
		for _, m := range to {
			if m.MemberID == env.TargetMemberID {
				targeted = append(targeted, m)
			}
		}
		to = targeted
	}
	if len(to) == 0 {
		log.Debug().Str("module", "app.relay").Str("room", string(env.RoomID)).
			Str("target", string(env.TargetMemberID)).Msg("signal dropped, no recipient")
		return core.PublishResult{}, nil
	}

	frame, err := core.Encode(core.SignalEvent{
		Type:               core.EventSignal,
		RoomID:             env.RoomID,
		SenderConnectionID: env.SenderID,
		SenderMemberID:     sender.MemberID,
		Payload:            env.Payload,
	})
	if err != nil {
		return core.PublishResult{}, err
	}
	return r.fanout(env.RoomID, to, frame), nil
}
