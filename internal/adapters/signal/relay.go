package signal

import (
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/protocol"
)

func (ctl *SignalWSController) handleRelay(sid domain.UserID, msg protocol.Message) {
	ctl.Orch.Route(sid, msg)
}
