package rtc

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// Capture produces local Opus/VP8 tracks fed by the caller through WriteAudio/WriteVideo.
type Capture struct {
	StreamID string
	Audio    bool
	Video    bool
}

func (c Capture) Acquire(ctx context.Context) (core.LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Audio && !c.Video {
		return nil, fmt.Errorf("%w: no audio or video requested", core.ErrDeviceUnavailable)
	}
	streamID := c.StreamID
	if streamID == "" {
		streamID = "meshcall"
	}

	s := &Stream{}
	if c.Audio {
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrDeviceUnavailable, err)
		}
		s.audio = track
		s.audioOn.Store(true)
	}
	if c.Video {
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrDeviceUnavailable, err)
		}
		s.video = track
		s.videoOn.Store(true)
	}
	log.Info().Str("module", "capture").Str("stream_id", streamID).Bool("audio", c.Audio).Bool("video", c.Video).Msg("local media acquired")
	return s, nil
}

// Stream is acquired local media. Disabled tracks stay negotiated but carry no samples.
type Stream struct {
	audio   *webrtc.TrackLocalStaticSample
	video   *webrtc.TrackLocalStaticSample
	audioOn atomic.Bool
	videoOn atomic.Bool
	stopped atomic.Bool
}

func (s *Stream) Tracks() []webrtc.TrackLocal {
	var out []webrtc.TrackLocal
	if s.audio != nil {
		out = append(out, s.audio)
	}
	if s.video != nil {
		out = append(out, s.video)
	}
	return out
}

func (s *Stream) SetAudioEnabled(v bool) { s.audioOn.Store(v && s.audio != nil) }
func (s *Stream) SetVideoEnabled(v bool) { s.videoOn.Store(v && s.video != nil) }
func (s *Stream) AudioEnabled() bool     { return s.audioOn.Load() }
func (s *Stream) VideoEnabled() bool     { return s.videoOn.Load() }

func (s *Stream) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.audioOn.Store(false)
	s.videoOn.Store(false)
	log.Info().Str("module", "capture").Msg("local media stopped")
}

// WriteAudio sends one encoded Opus frame. It reports whether the frame was sent.
func (s *Stream) WriteAudio(sample media.Sample) (bool, error) {
	if s.stopped.Load() || !s.audioOn.Load() {
		return false, nil
	}
	return true, s.audio.WriteSample(sample)
}

// WriteVideo sends one encoded VP8 frame. It reports whether the frame was sent.
func (s *Stream) WriteVideo(sample media.Sample) (bool, error) {
	if s.stopped.Load() || !s.videoOn.Load() {
		return false, nil
	}
	return true, s.video.WriteSample(sample)
}
