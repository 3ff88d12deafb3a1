package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mavprep/voice/internal/app/orch"
	"github.com/mavprep/voice/internal/domain"
	"github.com/rs/zerolog/log"
)

type joinPayload struct {
	RoomID   domain.RoomID   `json:"roomId"`
	MemberID domain.MemberID `json:"memberId"`
	Password string          `json:"password,omitempty"`
}

type leavePayload struct {
	RoomID   domain.RoomID   `json:"roomId"`
	MemberID domain.MemberID `json:"memberId"`
}

type signalPayload struct {
	RoomID         domain.RoomID   `json:"roomId"`
	TargetMemberID domain.MemberID `json:"targetMemberId,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, cid domain.ConnectionID, conn *WsSignalConn, data []byte) {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		ctl.sendError(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(cid)).Str("room", string(p.RoomID)).Msg("join")
	err := ctl.Orch.Join(ctx, cid, orch.JoinRequest{
		RoomID:   p.RoomID,
		MemberID: p.MemberID,
		Password: p.Password,
	})
	if err != nil {
		ctl.sendError(conn, err)
	}
}

// handleLeave leaves the room; the connection itself stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, cid domain.ConnectionID, conn *WsSignalConn, data []byte) {
	var p leavePayload
	if err := decode(data, &p); err != nil {
		ctl.sendError(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(cid)).Str("room", string(p.RoomID)).Msg("leave")
	if _, err := ctl.Orch.Leave(ctx, cid, p.RoomID, p.MemberID); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cid domain.ConnectionID, conn *WsSignalConn, data []byte) {
	if !ctl.Limiter.Allow(cid) {
		log.Warn().Str("module", "signal").Str("conn", string(cid)).Msg("signal rate limited")
		ctl.sendError(conn, domain.ErrRateLimited)
		return
	}
	var p signalPayload
	if err := decode(data, &p); err != nil {
		ctl.sendError(conn, err)
		return
	}
	if err := ctl.Orch.Signal(ctx, cid, p.RoomID, p.TargetMemberID, p.Payload); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("signal rejected")
		ctl.sendError(conn, err)
	}
}
