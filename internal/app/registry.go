package app

import (
	"context"
	"sync"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/rs/zerolog/log"
)

type participantEntry struct {
	Room   domain.RoomName
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Registry maps identities to their open channel.
// An entry exists exactly while the participant's channel is open.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.UserID]*participantEntry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.UserID]*participantEntry),
	}
}

func (r *Registry) Bind(id domain.UserID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &participantEntry{Signal: sig, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("bound signal")
}

// Unbind removes the participant and returns the room it was still in, if any.
func (r *Registry) Unbind(id domain.UserID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.Participant{}, false
	}
	delete(r.entries, id)
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("unbind session")
	return domain.Participant{ID: id, Room: e.Room}, true
}

func (r *Registry) Signal(id domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.Signal, true
	}
	return nil, false
}

func (r *Registry) Get(id domain.UserID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.Participant{}, false
	}
	return domain.Participant{ID: id, Room: e.Room}, true
}

func (r *Registry) RoomOf(id domain.UserID) (domain.RoomName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok || entry.Room == "" {
		return "", false
	}
	return entry.Room, true
}

func (r *Registry) UpdateRoom(id domain.UserID, room domain.RoomName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	entry.Room = room
	log.Debug().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(room)).Msg("updated room")
	return true
}

func (r *Registry) RemoveRoom(id domain.UserID) {
	r.UpdateRoom(id, "")
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Cancel stops the participant's pumps; the read loop then runs the disconnect path.
func (r *Registry) Cancel(id domain.UserID) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("canceled session")
	return true
}
