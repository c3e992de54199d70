package core

import (
	"slices"
	"sync"

	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room    domain.Room
	mu      sync.RWMutex
	members map[domain.UserID]struct{}
}

func NewRoomService(room domain.Room) RoomService {
	return &roomImpl{
		room:    room,
		members: make(map[domain.UserID]struct{}),
	}
}

func (r *roomImpl) Room() domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) Has(id domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

func (r *roomImpl) AddMember(id domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; ok {
		return false
	}
	r.members[id] = struct{}{}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.Name)).Str("user", string(id)).Msg("member added")
	return true
}

func (r *roomImpl) RemoveMember(id domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	log.Debug().Str("module", "core.room").Str("room", string(r.room.Name)).Str("user", string(id)).Msg("member removed")
	return true
}

func (r *roomImpl) MembersSnapshot() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
