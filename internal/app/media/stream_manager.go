// Package media presents the tracks received from remote participants.
package media

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/rs/zerolog/log"
)

// StreamManager keeps one relay per received track, grouped by peer.
type StreamManager struct {
	mu     sync.RWMutex
	relays map[domain.UserID]map[string]*Relay
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		relays: make(map[domain.UserID]map[string]*Relay),
	}
}

// Start creates a relay for track of peer and starts its loop.
// A relay already running for the same track id is replaced.
func (m *StreamManager) Start(ctx context.Context, peer domain.UserID, track core.RemoteTrack) *Relay {
	logger := log.With().
		Str("module", "media").
		Str("peer", peer.String()).
		Str("track_id", track.ID()).
		Str("kind", track.Kind()).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(track, cancel)

	m.mu.Lock()
	tracks, ok := m.relays[peer]
	if !ok {
		tracks = make(map[string]*Relay)
		m.relays[peer] = tracks
	}
	if old, ok := tracks[track.ID()]; ok {
		logger.Info().Msg("replacing existing relay for track")
		old.stop()
	}
	tracks[track.ID()] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")

	go relay.loop(relayCtx, &logger)
	go func() {
		<-relay.Done()
		m.forget(peer, track.ID(), relay)
	}()
	return relay
}

// forget drops an ended relay unless it was already replaced or revoked.
func (m *StreamManager) forget(peer domain.UserID, trackID string, relay *Relay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tracks, ok := m.relays[peer]
	if !ok || tracks[trackID] != relay {
		return
	}
	delete(tracks, trackID)
	if len(tracks) == 0 {
		delete(m.relays, peer)
	}
}

// Mute pauses or resumes every output of peer's relays.
func (m *StreamManager) Mute(peer domain.UserID, muted bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, relay := range m.relays[peer] {
		relay.setMuted(muted)
	}
}

// Revoke stops every relay of peer.
func (m *StreamManager) Revoke(peer domain.UserID) {
	m.mu.Lock()
	tracks, ok := m.relays[peer]
	delete(m.relays, peer)
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, relay := range tracks {
		relay.stop()
	}
	log.Info().Str("module", "media").Str("peer", peer.String()).Int("tracks", len(tracks)).Msg("streams revoked")
}

// RevokeAll stops every relay.
func (m *StreamManager) RevokeAll() {
	for _, p := range m.Peers() {
		m.Revoke(p)
	}
}

func (m *StreamManager) Has(peer domain.UserID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[peer]
	return ok
}

func (m *StreamManager) Relay(peer domain.UserID, trackID string) (*Relay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	relay, ok := m.relays[peer][trackID]
	return relay, ok
}

// Peers returns the peers currently presenting streams.
func (m *StreamManager) Peers() []domain.UserID {
	m.mu.RLock()
	out := make([]domain.UserID, 0, len(m.relays))
	for p := range m.relays {
		out = append(out, p)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
