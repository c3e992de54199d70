package core

import (
	"github.com/dkeye/MeshCall/internal/domain"
)

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() domain.Room
	MemberCount() int
	Has(id domain.UserID) bool
	// MembersSnapshot returns members in a stable order.
	MembersSnapshot() []domain.UserID

	AddMember(id domain.UserID) bool
	RemoveMember(id domain.UserID) bool
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	Host        domain.UserID   `json:"host"`
	MemberCount int             `json:"client_count"`
}

// JoinResult is the membership view taken atomically with a join.
type JoinResult struct {
	Room    domain.Room
	Created bool
	// Others are the members present before the joiner, excluding it.
	Others []domain.UserID
}

// LeaveResult is the membership view taken atomically with a leave.
type LeaveResult struct {
	Room      domain.RoomName
	Destroyed bool
	Remaining []domain.UserID
}

// RoomManager is the single serialization point for room state.
// Every mutation and the snapshot it returns happen in one critical section.
type RoomManager interface {
	Join(name domain.RoomName, id domain.UserID) JoinResult
	Leave(name domain.RoomName, id domain.UserID) (LeaveResult, bool)
	Get(name domain.RoomName) (RoomService, bool)
	List() []RoomInfo
	Count() int
}
