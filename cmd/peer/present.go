package main

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/MeshCall/internal/adapters/rtc"
	"github.com/dkeye/MeshCall/internal/app/media"
	"github.com/dkeye/MeshCall/internal/app/peer"
	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// opusSilence is a single 20ms Opus silence frame.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// silentCapture feeds the acquired audio track with silence until ctx ends.
type silentCapture struct {
	rtc.Capture
	ctx context.Context
}

func (c silentCapture) Acquire(ctx context.Context) (core.LocalStream, error) {
	ls, err := c.Capture.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if s, ok := ls.(*rtc.Stream); ok && c.Audio {
		go feedSilence(c.ctx, s)
	}
	return ls, nil
}

func feedSilence(ctx context.Context, s *rtc.Stream) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	sample := pionmedia.Sample{Data: opusSilence, Duration: 20 * time.Millisecond}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.WriteAudio(sample); err != nil {
				log.Debug().Err(err).Str("module", "cli").Msg("write silence")
			}
		}
	}
}

// presenter shows remote streams as packet statistics.
type presenter struct {
	ctx     context.Context
	streams *media.StreamManager

	mu    sync.Mutex
	stats map[domain.UserID][]*media.PacketCounter
}

func newPresenter(ctx context.Context) *presenter {
	return &presenter{
		ctx:     ctx,
		streams: media.NewStreamManager(),
		stats:   make(map[domain.UserID][]*media.PacketCounter),
	}
}

func (p *presenter) hooks() peer.Hooks {
	return peer.Hooks{
		OnMeetingLink: func(link string) {
			log.Info().Str("module", "cli").Str("link", link).Msg("meeting link")
		},
		OnPeerJoined: func(id domain.UserID) {
			log.Info().Str("module", "cli").Str("peer", id.String()).Msg("peer joined")
		},
		OnPeerLeft: func(id domain.UserID) {
			log.Info().Str("module", "cli").Str("peer", id.String()).Msg("peer left")
		},
		OnStateChange: func(id domain.UserID, st peer.State) {
			log.Info().Str("module", "cli").Str("peer", id.String()).Stringer("state", st).Msg("session")
			// hold presentation while the peer renegotiates
			p.streams.Mute(id, st != peer.Connected)
		},
		OnRemoteTrack: p.present,
		OnStreamRemoved: func(id domain.UserID) {
			p.streams.Revoke(id)
			p.mu.Lock()
			delete(p.stats, id)
			p.mu.Unlock()
		},
		OnSessionError: func(err *peer.SessionError) {
			log.Error().Err(err.Err).Str("module", "cli").Str("peer", err.Peer.String()).Str("op", err.Op).Msg("session failed")
		},
	}
}

func (p *presenter) present(id domain.UserID, track core.RemoteTrack) {
	relay := p.streams.Start(p.ctx, id, track)
	counter := &media.PacketCounter{}
	relay.AddSink("stats", counter)
	p.mu.Lock()
	p.stats[id] = append(p.stats[id], counter)
	p.mu.Unlock()
}

func (p *presenter) report(o *peer.Orchestrator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range o.Sessions() {
		var packets, bytes uint64
		for _, c := range p.stats[s.Peer()] {
			packets += c.Packets()
			bytes += c.Bytes()
		}
		log.Info().Str("module", "cli").Str("peer", s.Peer().String()).Stringer("state", s.State()).
			Uint64("packets", packets).Uint64("bytes", bytes).Msg("stats")
	}
}

func (p *presenter) close() {
	p.streams.RevokeAll()
}
