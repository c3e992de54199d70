package orch

import (
	"context"
	"errors"

	"github.com/dkeye/MeshCall/internal/app"
	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/metrics"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the signaling relay: it owns membership and routes
// messages between participants without looking at their payloads.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
	Metrics  *metrics.Metrics
	// LinkBase prefixes the room name in the host's meeting link.
	LinkBase string
}

// Connect registers a freshly opened channel and tells it who it is.
// user-id is queued before anything else can reach the channel.
func (o *Orchestrator) Connect(sig core.SignalConnection, cancel context.CancelFunc) domain.UserID {
	id := domain.NewUserID()
	o.Registry.Bind(id, sig, cancel)
	o.Metrics.ConnOpened()
	o.sendTo(sig, "", id, protocol.UserIDMsg(id))
	log.Info().Str("module", "orch").Str("sid", string(id)).Msg("participant connected")
	return id
}

// Disconnect runs the implicit leave and forgets the identity.
func (o *Orchestrator) Disconnect(id domain.UserID) {
	o.Leave(id)
	if _, ok := o.Registry.Unbind(id); ok {
		o.Metrics.ConnClosed()
	}
	log.Info().Str("module", "orch").Str("sid", string(id)).Msg("participant disconnected")
}

func (o *Orchestrator) send(room domain.RoomName, to domain.UserID, msg protocol.Message) bool {
	sig, ok := o.Registry.Signal(to)
	if !ok {
		return false
	}
	return o.sendTo(sig, room, to, msg)
}

func (o *Orchestrator) sendTo(sig core.SignalConnection, room domain.RoomName, to domain.UserID, msg protocol.Message) bool {
	frame, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", string(msg.Type)).Msg("encode")
		return false
	}
	err = sig.TrySend(frame)
	switch {
	case err == nil:
		return true
	case errors.Is(err, core.ErrBackpressure):
		o.Metrics.Dropped(metrics.DropBackpressure)
		o.onBackpressure(room, to)
	case errors.Is(err, core.ErrConnClosed):
		o.Metrics.Dropped(metrics.DropNoRoute)
	default:
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(to)).Msg("send failed")
	}
	return false
}

func (o *Orchestrator) onBackpressure(room domain.RoomName, to domain.UserID) {
	log.Warn().Str("module", "orch").Str("sid", string(to)).Str("room", string(room)).Msg("send buffer full")
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(room, to) {
	case app.KickMember:
		o.Registry.Cancel(to)
	case app.DropMessage, app.NoAction:
	}
}

func (o *Orchestrator) broadcast(room domain.RoomName, to []domain.UserID, msg protocol.Message) int {
	sent := 0
	for _, id := range to {
		if o.send(room, id, msg) {
			sent++
		}
	}
	log.Debug().Str("module", "orch").Str("room", string(room)).Str("type", string(msg.Type)).Int("sent_to", sent).Int("targets", len(to)).Msg("broadcast result")
	return sent
}
