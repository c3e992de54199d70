package media

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type SinkState int32

const (
	SinkStateOk SinkState = iota
	SinkStateMuted
	SinkStateDelete
)

// Sink consumes packets of one remote track.
type Sink interface {
	WriteRTP(*rtp.Packet) error
}

// Output is a single sink attached to a relay.
type Output struct {
	Sink  Sink
	state atomic.Int32 // Zero by default (SinkStateOk)
}

func NewOutput(s Sink) *Output {
	return &Output{Sink: s}
}

func (o *Output) GetState() SinkState {
	return SinkState(o.state.Load())
}

// MarkOk resumes a muted output. Deleted outputs stay deleted.
func (o *Output) MarkOk() {
	o.state.CompareAndSwap(int32(SinkStateMuted), int32(SinkStateOk))
}

// MarkMuted pauses delivery without detaching the sink.
func (o *Output) MarkMuted() {
	o.state.CompareAndSwap(int32(SinkStateOk), int32(SinkStateMuted))
}

func (o *Output) MarkDelete() {
	o.state.Store(int32(SinkStateDelete))
}

// PacketCounter is a Sink that only keeps statistics.
type PacketCounter struct {
	packets atomic.Uint64
	bytes   atomic.Uint64
}

func (c *PacketCounter) WriteRTP(pkt *rtp.Packet) error {
	c.packets.Add(1)
	c.bytes.Add(uint64(len(pkt.Payload)))
	return nil
}

func (c *PacketCounter) Packets() uint64 { return c.packets.Load() }
func (c *PacketCounter) Bytes() uint64   { return c.bytes.Load() }
