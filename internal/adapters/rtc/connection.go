package rtc

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const DefaultSTUN = "stun:stun.l.google.com:19302"

// Connection is a trickle-ICE peer connection towards one remote participant.
type Connection struct {
	pc   *webrtc.PeerConnection
	peer domain.UserID

	mu      sync.Mutex
	onICE   func(protocol.Payload)
	onTrack func(core.RemoteTrack)
}

func DefaultWebRTCConfig(stun ...string) webrtc.Configuration {
	if len(stun) == 0 {
		stun = []string{DefaultSTUN}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: stun,
			},
		},
	}
}

func NewConnection(cfg webrtc.Configuration, peer domain.UserID) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	c := &Connection{pc: pc, peer: peer}
	c.start()
	return c, nil
}

func (c *Connection) start() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "webrtc").Str("peer", c.peer.String()).Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("peer", c.peer.String()).Str("peer_connection_state", s.String()).Msg("Peer state")
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		raw, err := json.Marshal(cand.ToJSON())
		if err != nil {
			log.Error().Err(err).Str("module", "webrtc").Str("peer", c.peer.String()).Msg("encode candidate")
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(raw)
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("peer", c.peer.String()).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(remoteTrack{track})
		}
	})
}

func (c *Connection) CreateOffer() (protocol.Payload, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(offer)
}

func (c *Connection) CreateAnswer() (protocol.Payload, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(answer)
}

func (c *Connection) SetLocalDescription(p protocol.Payload) error {
	sd, err := decodeDescription(p)
	if err != nil {
		return err
	}
	return c.pc.SetLocalDescription(sd)
}

func (c *Connection) SetRemoteDescription(p protocol.Payload) error {
	sd, err := decodeDescription(p)
	if err != nil {
		return err
	}
	return c.pc.SetRemoteDescription(sd)
}

func (c *Connection) AddICECandidate(p protocol.Payload) error {
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(p, &ci); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return c.pc.AddICECandidate(ci)
}

func (c *Connection) OnICECandidate(fn func(protocol.Payload)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

// OnRemoteTrack sets application-level callback for remote tracks.
func (c *Connection) OnRemoteTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

// AddLocalTrack attaches a local track and drains its RTCP.
func (c *Connection) AddLocalTrack(track webrtc.TrackLocal) error {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (c *Connection) Close() error {
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "webrtc").Str("peer", c.peer.String()).Msg("close error")
		return err
	}
	log.Info().Str("module", "webrtc").Str("peer", c.peer.String()).Msg("closed")
	return nil
}

func decodeDescription(p protocol.Payload) (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(p, &sd); err != nil {
		return sd, fmt.Errorf("decode session description: %w", err)
	}
	if sd.SDP == "" {
		return sd, fmt.Errorf("decode session description: empty sdp")
	}
	return sd, nil
}

type remoteTrack struct {
	t *webrtc.TrackRemote
}

func (r remoteTrack) ID() string       { return r.t.ID() }
func (r remoteTrack) Kind() string     { return r.t.Kind().String() }
func (r remoteTrack) StreamID() string { return r.t.StreamID() }

func (r remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.t.ReadRTP()
	return pkt, err
}

// TrackSource is a local stream that can publish its tracks.
type TrackSource interface {
	Tracks() []webrtc.TrackLocal
}

// Factory builds one Connection per remote peer.
type Factory struct {
	Config webrtc.Configuration
}

func (f Factory) NewTransport(peer domain.UserID, local core.LocalStream) (core.MediaTransport, error) {
	c, err := NewConnection(f.Config, peer)
	if err != nil {
		return nil, err
	}
	if src, ok := local.(TrackSource); ok {
		for _, track := range src.Tracks() {
			if err := c.AddLocalTrack(track); err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("add %s track: %w", track.Kind(), err)
			}
		}
	}
	return c, nil
}
