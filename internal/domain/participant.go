package domain

// Participant is a connected identity and the room it currently sits in.
// Room is empty while the participant is not in any room.
type Participant struct {
	ID   UserID   `json:"id"`
	Room RoomName `json:"room,omitempty"`
}
