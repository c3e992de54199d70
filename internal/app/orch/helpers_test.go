package orch

import (
	"sync"
	"testing"

	"github.com/dkeye/MeshCall/internal/app"
	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/metrics"
	"github.com/dkeye/MeshCall/internal/protocol"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   []core.Frame
	full     bool
	closed   bool
	canceled bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) cancel() {
	c.mu.Lock()
	c.canceled = true
	c.mu.Unlock()
}

func (c *fakeConn) messages(t *testing.T) []protocol.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Message, 0, len(c.frames))
	for _, f := range c.frames {
		m, err := protocol.ParseEvent(f)
		if err != nil {
			t.Fatalf("relay emitted invalid frame %s: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func (c *fakeConn) ofType(t *testing.T, typ protocol.Type) []protocol.Message {
	t.Helper()
	var out []protocol.Message
	for _, m := range c.messages(t) {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func newTestOrch() *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.DropPolicy{},
		Metrics:  metrics.New(),
		LinkBase: "http://localhost:5000/join/",
	}
}

func connect(o *Orchestrator) (domain.UserID, *fakeConn) {
	c := &fakeConn{}
	id := o.Connect(c, c.cancel)
	return id, c
}
