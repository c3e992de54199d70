package domain

type RoomName string

// Room is the read-only view of a room's lifetime meta.
// Host is the first joiner of the current lifetime and is never reassigned.
type Room struct {
	Name RoomName `json:"name"`
	Host UserID   `json:"host"`
}
