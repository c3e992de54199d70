package orch

import (
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/metrics"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Route rewrites a client request into the event its target receives.
// Targets without an open channel are skipped silently.
func (o *Orchestrator) Route(from domain.UserID, req protocol.Message) bool {
	var ev protocol.Message
	switch req.Type {
	case protocol.TypeUserCall:
		ev = protocol.IncomingCall(from, req.Offer)
	case protocol.TypeAcceptCall:
		ev = protocol.CallAccepted(from, req.Answer)
	case protocol.TypeDeclineCall:
		ev = protocol.CallDeclined(from)
	case protocol.TypeCandidate:
		ev = protocol.CandidateFrom(from, req.Candidate)
	default:
		log.Warn().Str("module", "orch").Str("type", string(req.Type)).Msg("not a routed message")
		return false
	}

	sig, ok := o.Registry.Signal(req.To)
	if !ok {
		o.Metrics.Dropped(metrics.DropNoRoute)
		log.Debug().Str("module", "orch").Str("from", string(from)).Str("to", string(req.To)).Str("type", string(req.Type)).Msg("no route, dropped")
		return false
	}
	room, _ := o.Registry.RoomOf(req.To)
	log.Debug().Str("module", "orch").Str("from", string(from)).Str("to", string(req.To)).Str("type", string(req.Type)).Msg("relay")
	return o.sendTo(sig, room, req.To, ev)
}
