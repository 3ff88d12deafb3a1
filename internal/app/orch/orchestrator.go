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

type Options struct {
	JoinTimeout    time.Duration
	CleanupRetries int
	CleanupBackoff time.Duration
	TombstoneTTL   time.Duration
	SweepWorkers   int
}

func DefaultOptions() Options {
	return Options{
		JoinTimeout:    5 * time.Second,
		CleanupRetries: 3,
		CleanupBackoff: 100 * time.Millisecond,
		TombstoneTTL:   10 * time.Minute,
		SweepWorkers:   4,
	}
}

// Orchestrator is the session coordinator. It drives each connection through
// Unjoined, Joining, Joined and Left, and is the only writer of the room table.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomTable
	Policy   app.Policy
	Relay    *app.Relay
	Opts     Options
}

func New(reg *app.Registry, rooms core.RoomTable, policy app.Policy, opts Options) *Orchestrator {
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultOptions().JoinTimeout
	}
	if opts.SweepWorkers <= 0 {
		opts.SweepWorkers = 1
	}
	return &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Policy:   policy,
		Relay:    app.NewRelay(reg, rooms),
		Opts:     opts,
	}
}

// Connect registers a fresh transport and returns its connection id.
func (o *Orchestrator) Connect(conn core.SignalConnection, id domain.Identity) domain.ConnectionID {
	return o.Registry.Register(conn, id)
}

// Signal relays an opaque negotiation payload from cid.
func (o *Orchestrator) Signal(ctx context.Context, cid domain.ConnectionID, room domain.RoomID, target domain.MemberID, payload []byte) error {
	if room == "" || len(payload) == 0 {
		return fmt.Errorf("%w: roomId and payload are required", domain.ErrInvalidRequest)
	}
	sess, err := o.Registry.Snapshot(cid)
	if err != nil {
		return err
	}
	if sess.State == domain.StateLeft {
		return fmt.Errorf("%w: %s", domain.ErrStaleConnection, cid)
	}
	res, err := o.Relay.RelaySignal(ctx, domain.Envelope{
		RoomID:         room,
		SenderID:       cid,
		TargetMemberID: target,
		Payload:        payload,
	})
	if err != nil {
		return err
	}
	o.onPublish(room, res)
	return nil
}

// onPublish applies the backpressure policy to peers a fan-out could not reach.
func (o *Orchestrator) onPublish(room domain.RoomID, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			o.Kick(slow)
		case app.MarkSlow:
			if n, err := o.Registry.MarkSlow(slow); err == nil {
				log.Warn().Str("module", "orch").Str("room", string(room)).Str("conn", string(slow)).
					Int("slow_sends", n).Msg("slow peer")
			}
		case app.NoAction:
		}
	}
}

// Kick closes a connection's transport and runs its departure.
func (o *Orchestrator) Kick(cid domain.ConnectionID) {
	log.Info().Str("module", "orch").Str("conn", string(cid)).Msg("kicking connection")
	o.Registry.Cancel(cid)
	o.Disconnect(cid)
}

func (o *Orchestrator) WhoAmI(cid domain.ConnectionID) (core.WhoAmI, error) {
	sess, err := o.Registry.Snapshot(cid)
	if err != nil {
		return core.WhoAmI{}, err
	}
	resp := core.WhoAmI{
		Type:         core.EventWhoAmI,
		ConnectionID: cid,
		State:        sess.State.String(),
		UserID:       sess.Identity.ID,
		SlowSends:    sess.SlowSends,
	}
	if sess.State == domain.StateJoined || sess.State == domain.StateJoining {
		resp.RoomID = sess.RoomID
		resp.MemberID = sess.MemberID
	}
	return resp, nil
}
