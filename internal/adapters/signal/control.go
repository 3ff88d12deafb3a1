package signal

import (
	"github.com/mavprep/voice/internal/core"
	"github.com/mavprep/voice/internal/domain"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: core.EventPong,
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(cid domain.ConnectionID, conn *WsSignalConn) {
	resp, err := ctl.Orch.WhoAmI(cid)
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, resp)
}
