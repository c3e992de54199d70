package signal

import (
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/metrics"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(sid domain.UserID, msg protocol.Message) {
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		ctl.Orch.Metrics.Dropped(metrics.DropRateLimited)
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("room", string(msg.Room)).Msg("join rate limited")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(msg.Room)).Msg("join")
	ctl.Orch.Join(sid, msg.Room)
}

// handleLeave leaves the current room; the channel itself stays open.
func (ctl *SignalWSController) handleLeave(sid domain.UserID) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.Leave(sid)
}
