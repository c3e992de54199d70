package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed marks frames that cannot be decoded or miss a required field.
var ErrMalformed = errors.New("malformed message")

// ParseRequest decodes a client -> server frame.
// Unknown fields are tolerated; browsers send extras such as "email".
func ParseRequest(data []byte) (Message, error) {
	m, err := decode(data)
	if err != nil {
		return Message{}, err
	}
	if err := m.validateRequest(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ParseEvent decodes a server -> client frame.
func ParseEvent(data []byte) (Message, error) {
	m, err := decode(data)
	if err != nil {
		return Message{}, err
	}
	if err := m.validateEvent(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return m, nil
}

func missing(p Payload) bool {
	t := bytes.TrimSpace(p)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func malformed(t Type, what string) error {
	return fmt.Errorf("%w: %s missing %s", ErrMalformed, t, what)
}

func (m Message) validateRequest() error {
	switch m.Type {
	case TypeJoinRoom:
		if m.Room == "" {
			return malformed(m.Type, "room")
		}
	case TypeUserCall:
		if m.To == "" {
			return malformed(m.Type, "to")
		}
		if missing(m.Offer) {
			return malformed(m.Type, "offer")
		}
	case TypeAcceptCall:
		if m.To == "" {
			return malformed(m.Type, "to")
		}
		if missing(m.Answer) {
			return malformed(m.Type, "answer")
		}
	case TypeDeclineCall:
		if m.To == "" {
			return malformed(m.Type, "to")
		}
	case TypeCandidate:
		if m.To == "" {
			return malformed(m.Type, "to")
		}
		if missing(m.Candidate) {
			return malformed(m.Type, "candidate")
		}
	case TypeLeaveRoom:
	default:
		return fmt.Errorf("%w: unsupported request type %q", ErrMalformed, m.Type)
	}
	return nil
}

func (m Message) validateEvent() error {
	switch m.Type {
	case TypeUserID, TypeUserJoined, TypeUserLeft:
		if m.UserID == "" {
			return malformed(m.Type, "userId")
		}
	case TypeAllUsers:
	case TypeMeetingLink:
		if m.Link == "" {
			return malformed(m.Type, "link")
		}
	case TypeIncomingCall:
		if m.From == "" {
			return malformed(m.Type, "from")
		}
		if missing(m.Offer) {
			return malformed(m.Type, "offer")
		}
	case TypeCallAccepted:
		if m.From == "" {
			return malformed(m.Type, "from")
		}
		if missing(m.Answer) {
			return malformed(m.Type, "answer")
		}
	case TypeCallDeclined:
		if m.From == "" {
			return malformed(m.Type, "from")
		}
	case TypeCandidate:
		if m.From == "" {
			return malformed(m.Type, "from")
		}
		if missing(m.Candidate) {
			return malformed(m.Type, "candidate")
		}
	default:
		return fmt.Errorf("%w: unsupported event type %q", ErrMalformed, m.Type)
	}
	return nil
}
