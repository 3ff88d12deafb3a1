package orch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mavprep/voice/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// isGhost reports whether m has no live connection joined to room.
// Every ghost condition is terminal, so the answer cannot flip back.
func (o *Orchestrator) isGhost(m domain.Member, room domain.RoomID) bool {
	s, err := o.Registry.Snapshot(m.ConnectionID)
	if err != nil || s.RoomID != room {
		return true
	}
	return s.State != domain.StateJoined && s.State != domain.StateJoining
}

// Reconcile evicts room members whose connection is no longer joined to that
// room, announcing each eviction of a member that had been announced, then drops empty rooms and old tombstones.
// It returns the number of evicted members.
func (o *Orchestrator) Reconcile(ctx context.Context) int {
	var evicted atomic.Int64

	p := pool.New().WithMaxGoroutines(o.Opts.SweepWorkers)
	for _, info := range o.Rooms.List() {
		room := info.ID
		p.Go(func() {
			members, err := o.Rooms.Members(ctx, room)
			if err != nil {
				log.Warn().Err(err).Str("module", "orch.sweep").Str("room", string(room)).Msg("audit skipped")
				return
			}
			for _, m := range members {
				if !o.isGhost(m, room) {
					continue
				}
				gone, removed, err := o.Rooms.Leave(ctx, room, m.ConnectionID)
				if err != nil {
					log.Warn().Err(err).Str("module", "orch.sweep").Str("room", string(room)).Msg("evict failed")
					continue
				}
				if !removed {
					continue
				}
				evicted.Add(1)
				// A connection that never finished joining was never
				// announced, so its eviction is not either.
				joined, known := o.Registry.JoinedOnce(gone.ConnectionID)
				announce := joined || !known
				log.Info().Str("module", "orch.sweep").Str("room", string(room)).
					Str("conn", string(gone.ConnectionID)).Bool("announce", announce).Msg("evicted stale member")
				if announce {
					o.announceLeave(ctx, room, gone)
				}
			}
		})
	}
	p.Wait()

	rooms := o.Rooms.EvictEmpty(ctx)
	tombs := o.Registry.PruneTombstones(o.Opts.TombstoneTTL)
	if n := evicted.Load(); n > 0 || rooms > 0 || tombs > 0 {
		log.Info().Str("module", "orch.sweep").Int64("members", n).Int("rooms", rooms).Int("tombstones", tombs).Msg("reconciled")
	}
	return int(evicted.Load())
}

// RunSweeper calls Reconcile every interval until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			o.Reconcile(ctx)
		}
	}
}
