package app

import (
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
)

// RoomManagerImpl owns every room behind one mutex.
// A room exists iff it has at least one member; its host is fixed at creation.
type RoomManagerImpl struct {
	mu    sync.Mutex
	rooms map[domain.RoomName]core.RoomService
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomName]core.RoomService)}
}

func (f *RoomManagerImpl) Join(name domain.RoomName, id domain.UserID) core.JoinResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := core.JoinResult{}
	room, ok := f.rooms[name]
	if !ok {
		room = core.NewRoomService(domain.Room{Name: name, Host: id})
		f.rooms[name] = room
		res.Created = true
	}
	others := room.MembersSnapshot()
	if room.Has(id) {
		// a repeated join reports the room without adding a second seat
		others = slices.DeleteFunc(others, func(u domain.UserID) bool { return u == id })
	} else {
		room.AddMember(id)
	}
	res.Others = others
	res.Room = room.Room()
	return res
}

func (f *RoomManagerImpl) Leave(name domain.RoomName, id domain.UserID) (core.LeaveResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	room, ok := f.rooms[name]
	if !ok || !room.RemoveMember(id) {
		return core.LeaveResult{}, false
	}
	res := core.LeaveResult{Room: name}
	if room.MemberCount() == 0 {
		delete(f.rooms, name)
		res.Destroyed = true
		return res, true
	}
	res.Remaining = room.MembersSnapshot()
	return res, true
}

func (f *RoomManagerImpl) Get(name domain.RoomName) (core.RoomService, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[name]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for name, r := range f.rooms {
		out = append(out, core.RoomInfo{Name: name, Host: r.Room().Host, MemberCount: r.MemberCount()})
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return strings.Compare(string(a.Name), string(b.Name)) })
	return out
}

func (f *RoomManagerImpl) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms)
}
