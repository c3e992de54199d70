package peer

import (
	"errors"
	"fmt"

	"github.com/dkeye/MeshCall/internal/domain"
)

var (
	ErrMediaNotAcquired = errors.New("local media not acquired")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrSessionBusy      = errors.New("session is not idle")
	ErrAlreadyJoined    = errors.New("already in a room")
	ErrNotJoined        = errors.New("not in a room")
	ErrNoSignal         = errors.New("no signaling channel")
)

// SessionError reports a failed negotiation step; the session is closed by then.
type SessionError struct {
	Peer domain.UserID
	Op   string
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.Peer, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
