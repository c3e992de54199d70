package orch

import (
	"net/url"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/metrics"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Join admits id into room. It refuses when id already sits in a room.
func (o *Orchestrator) Join(id domain.UserID, room domain.RoomName) bool {
	if cur, ok := o.Registry.RoomOf(id); ok {
		o.Metrics.Dropped(metrics.DropPrecondition)
		log.Warn().Str("module", "orch").Str("sid", string(id)).Str("room", string(room)).Str("current", string(cur)).Msg("join while already in a room")
		return false
	}
	if _, ok := o.Registry.Get(id); !ok {
		return false
	}

	res := o.Rooms.Join(room, id)
	o.Registry.UpdateRoom(id, room)
	o.Metrics.SetRooms(o.Rooms.Count())
	log.Info().Str("module", "orch").Str("sid", string(id)).Str("room", string(room)).Bool("host", res.Created).Int("others", len(res.Others)).Msg("added to room")

	if res.Created {
		o.send(room, id, protocol.MeetingLink(o.meetingLink(room)))
	}
	o.send(room, id, protocol.AllUsers(res.Others))
	o.broadcast(room, res.Others, protocol.UserJoined(id))
	return true
}

// Leave removes id from its room; the last one out destroys the room.
func (o *Orchestrator) Leave(id domain.UserID) bool {
	room, ok := o.Registry.RoomOf(id)
	if !ok {
		return false
	}
	o.Registry.RemoveRoom(id)
	res, ok := o.Rooms.Leave(room, id)
	if !ok {
		return false
	}
	o.Metrics.SetRooms(o.Rooms.Count())
	log.Info().Str("module", "orch").Str("sid", string(id)).Str("room", string(room)).Bool("destroyed", res.Destroyed).Msg("left room")

	if !res.Destroyed {
		o.broadcast(room, res.Remaining, protocol.UserLeft(id))
	}
	return true
}

func (o *Orchestrator) meetingLink(room domain.RoomName) string {
	return o.LinkBase + url.PathEscape(string(room))
}

// ListRooms returns every live room ordered by name.
func (o *Orchestrator) ListRooms() []core.RoomInfo {
	return o.Rooms.List()
}

// RoomMembers describes one room and its members.
func (o *Orchestrator) RoomMembers(name domain.RoomName) (core.RoomInfo, []domain.UserID, bool) {
	r, ok := o.Rooms.Get(name)
	if !ok {
		return core.RoomInfo{}, nil, false
	}
	members := r.MembersSnapshot()
	info := core.RoomInfo{Name: name, Host: r.Room().Host, MemberCount: len(members)}
	return info, members, true
}
