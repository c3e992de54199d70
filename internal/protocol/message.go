// Package protocol is the wire schema shared by the relay and the participants.
// Every frame is one JSON object with a "type" discriminator.
package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/dkeye/MeshCall/internal/domain"
)

type Type string

// Server -> client.
const (
	TypeUserID       Type = "user-id"
	TypeAllUsers     Type = "all-users"
	TypeMeetingLink  Type = "meeting-link"
	TypeUserJoined   Type = "user-joined"
	TypeIncomingCall Type = "incoming-call"
	TypeCallAccepted Type = "call-accepted"
	TypeCallDeclined Type = "call-declined"
	TypeUserLeft     Type = "user-left"
)

// Client -> server.
const (
	TypeJoinRoom    Type = "join-room"
	TypeUserCall    Type = "user-call"
	TypeAcceptCall  Type = "accept-call"
	TypeDeclineCall Type = "decline-call"
	TypeLeaveRoom   Type = "leave-room"
)

// TypeCandidate travels both ways: with "to" from a client, with "from" to a client.
const TypeCandidate Type = "candidate"

// Payload is an opaque session description or ICE candidate.
// The relay never looks inside; it is re-emitted with the exact bytes it arrived with.
type Payload = json.RawMessage

type Message struct {
	Type   Type            `json:"type"`
	UserID domain.UserID   `json:"userId,omitempty"`
	Users  []domain.UserID `json:"users,omitempty"`
	Link   string          `json:"link,omitempty"`
	Room   domain.RoomName `json:"room,omitempty"`
	From   domain.UserID   `json:"from,omitempty"`
	To     domain.UserID   `json:"to,omitempty"`

	Offer     Payload `json:"offer,omitempty"`
	Answer    Payload `json:"answer,omitempty"`
	Candidate Payload `json:"candidate,omitempty"`
}

// envelope is Message without the payloads; those are appended verbatim by Encode.
type envelope struct {
	Type   Type            `json:"type"`
	UserID domain.UserID   `json:"userId,omitempty"`
	Users  []domain.UserID `json:"users,omitempty"`
	Link   string          `json:"link,omitempty"`
	Room   domain.RoomName `json:"room,omitempty"`
	From   domain.UserID   `json:"from,omitempty"`
	To     domain.UserID   `json:"to,omitempty"`
}

// allUsersEnvelope always carries the users array, even when empty.
type allUsersEnvelope struct {
	Type  Type            `json:"type"`
	Users []domain.UserID `json:"users"`
}

// Encode renders m as a single JSON object.
func Encode(m Message) ([]byte, error) {
	var head any
	if m.Type == TypeAllUsers {
		users := m.Users
		if users == nil {
			users = []domain.UserID{}
		}
		head = allUsersEnvelope{Type: m.Type, Users: users}
	} else {
		head = envelope{
			Type:   m.Type,
			UserID: m.UserID,
			Users:  m.Users,
			Link:   m.Link,
			Room:   m.Room,
			From:   m.From,
			To:     m.To,
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(head); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	// drop the closing brace, payloads are spliced in before it
	out = out[:len(out)-1]
	out = appendPayload(out, "offer", m.Offer)
	out = appendPayload(out, "answer", m.Answer)
	out = appendPayload(out, "candidate", m.Candidate)
	return append(out, '}'), nil
}

func appendPayload(out []byte, key string, p Payload) []byte {
	if len(p) == 0 {
		return out
	}
	out = append(out, `,"`...)
	out = append(out, key...)
	out = append(out, `":`...)
	return append(out, p...)
}

func (m Message) MarshalJSON() ([]byte, error) { return Encode(m) }
