package app

import "github.com/dkeye/MeshCall/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropMessage
	KickMember
)

// Policy decides what happens to a participant whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomName, member domain.UserID) BackpressureAction
}

// DropPolicy loses the message and keeps the channel.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomName, domain.UserID) BackpressureAction {
	return DropMessage
}

// KickPolicy disconnects slow consumers.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.RoomName, domain.UserID) BackpressureAction {
	return KickMember
}

func PolicyByName(name string) Policy {
	switch name {
	case "kick":
		return KickPolicy{}
	default:
		return DropPolicy{}
	}
}
