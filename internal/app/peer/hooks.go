package peer

import (
	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
)

// Hooks let the caller present what the orchestrator does. All fields are optional.
// Session hooks run on that session's goroutine, so different peers may call concurrently.
type Hooks struct {
	OnMeetingLink   func(link string)
	OnPeerJoined    func(peer domain.UserID)
	OnPeerLeft      func(peer domain.UserID)
	OnStateChange   func(peer domain.UserID, st State)
	OnRemoteTrack   func(peer domain.UserID, track core.RemoteTrack)
	OnStreamRemoved func(peer domain.UserID)
	OnSessionError  func(err *SessionError)
}

func (h Hooks) meetingLink(link string) {
	if h.OnMeetingLink != nil {
		h.OnMeetingLink(link)
	}
}

func (h Hooks) peerJoined(p domain.UserID) {
	if h.OnPeerJoined != nil {
		h.OnPeerJoined(p)
	}
}

func (h Hooks) peerLeft(p domain.UserID) {
	if h.OnPeerLeft != nil {
		h.OnPeerLeft(p)
	}
}

func (h Hooks) stateChange(p domain.UserID, st State) {
	if h.OnStateChange != nil {
		h.OnStateChange(p, st)
	}
}

func (h Hooks) remoteTrack(p domain.UserID, t core.RemoteTrack) {
	if h.OnRemoteTrack != nil {
		h.OnRemoteTrack(p, t)
	}
}

func (h Hooks) streamRemoved(p domain.UserID) {
	if h.OnStreamRemoved != nil {
		h.OnStreamRemoved(p)
	}
}

func (h Hooks) sessionError(err *SessionError) {
	if h.OnSessionError != nil {
		h.OnSessionError(err)
	}
}
