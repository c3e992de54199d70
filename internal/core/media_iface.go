package core

import (
	"context"
	"errors"

	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/pion/rtp"
)

var ErrDeviceUnavailable = errors.New("media device unavailable")

// LocalStream is captured local media.
// Toggles flip the tracks' enabled flags; they never renegotiate.
type LocalStream interface {
	SetAudioEnabled(bool)
	SetVideoEnabled(bool)
	AudioEnabled() bool
	VideoEnabled() bool
	// Stop releases the capture.
	Stop()
}

type MediaCapture interface {
	// Acquire fails with ErrDeviceUnavailable when nothing can be captured.
	Acquire(ctx context.Context) (LocalStream, error)
}

// RemoteTrack is a track received from a remote peer.
type RemoteTrack interface {
	ID() string
	Kind() string
	StreamID() string
	ReadRTP() (*rtp.Packet, error)
}

// MediaTransport is one negotiation endpoint towards one remote peer.
// Descriptions and candidates are opaque JSON in the browser's shape.
type MediaTransport interface {
	CreateOffer() (protocol.Payload, error)
	CreateAnswer() (protocol.Payload, error)
	SetLocalDescription(protocol.Payload) error
	SetRemoteDescription(protocol.Payload) error
	AddICECandidate(protocol.Payload) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(protocol.Payload))
	// OnRemoteTrack sets a callback that will be invoked when a new remote track arrives.
	OnRemoteTrack(func(RemoteTrack))
	Close() error
}

type TransportFactory interface {
	NewTransport(peer domain.UserID, local LocalStream) (MediaTransport, error)
}
