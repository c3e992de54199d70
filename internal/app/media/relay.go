package media

import (
	"context"
	"maps"
	"sync"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// Relay pumps one remote track into its outputs.
type Relay struct {
	Src core.RemoteTrack

	mu      sync.RWMutex
	outputs map[string]*Output

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(src core.RemoteTrack, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:     src,
		outputs: make(map[string]*Output),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Done is closed when the read loop has exited.
func (r *Relay) Done() <-chan struct{} { return r.done }

// loop reads RTP packets from the source track and forwards them to all outputs.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all outputs for delete")
			r.markAllDelete()
			return
		default:
		}
		pkt, err := r.Src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read RTP stopped")
			r.markAllDelete()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := make(map[string]*Output, len(r.outputs))
	maps.Copy(snapshot, r.outputs)
	r.mu.RUnlock()

	var dirty []string
	for name, out := range snapshot {
		switch out.GetState() {
		case SinkStateDelete:
			dirty = append(dirty, name)
		case SinkStateMuted:
		case SinkStateOk:
			if err := out.Sink.WriteRTP(pkt); err != nil {
				logger.Error().
					Err(err).
					Str("sink", name).
					Msg("relay write RTP error, marking output as delete")
				out.MarkDelete()
				dirty = append(dirty, name)
			}
		}
	}

	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range dirty {
		if out, ok := r.outputs[name]; ok && out.GetState() == SinkStateDelete {
			delete(r.outputs, name)
		}
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, out := range r.outputs {
		out.MarkDelete()
	}
}

func (r *Relay) AddSink(name string, s Sink) *Output {
	out := NewOutput(s)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[name] = out
	return out
}

func (r *Relay) setMuted(muted bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, out := range r.outputs {
		if muted {
			out.MarkMuted()
		} else {
			out.MarkOk()
		}
	}
}

func (r *Relay) stop() {
	r.markAllDelete()
	if r.cancel != nil {
		r.cancel()
	}
}
