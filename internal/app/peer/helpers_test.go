package peer

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/pion/rtp"
)

const (
	testOffer  = `{"type":"offer","sdp":"v=0 offer"}`
	testAnswer = `{"type":"answer","sdp":"v=0 answer"}`
)

func cand(s string) protocol.Payload {
	return protocol.Payload(`{"candidate":"` + s + `","sdpMid":"0"}`)
}

type fakeSignaler struct {
	mu   sync.Mutex
	msgs []protocol.Message
	err  error
}

func (f *fakeSignaler) Send(m protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeSignaler) sent() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.msgs...)
}

func (f *fakeSignaler) ofType(t protocol.Type) []protocol.Message {
	var out []protocol.Message
	for _, m := range f.sent() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type fakeStream struct {
	audio   atomic.Bool
	video   atomic.Bool
	stopped atomic.Bool
}

func newFakeStream() *fakeStream {
	s := &fakeStream{}
	s.audio.Store(true)
	s.video.Store(true)
	return s
}

func (s *fakeStream) SetAudioEnabled(v bool) { s.audio.Store(v) }
func (s *fakeStream) SetVideoEnabled(v bool) { s.video.Store(v) }
func (s *fakeStream) AudioEnabled() bool     { return s.audio.Load() }
func (s *fakeStream) VideoEnabled() bool     { return s.video.Load() }
func (s *fakeStream) Stop()                  { s.stopped.Store(true) }

type fakeCapture struct {
	err    error
	stream *fakeStream
}

func (c *fakeCapture) Acquire(context.Context) (core.LocalStream, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.stream = newFakeStream()
	return c.stream, nil
}

type fakeTransport struct {
	peer domain.UserID
	fail map[string]error

	mu      sync.Mutex
	calls   []string
	closed  bool
	onCand  func(protocol.Payload)
	onTrack func(core.RemoteTrack)
}

func (t *fakeTransport) record(op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, op)
	return t.fail[op]
}

func (t *fakeTransport) CreateOffer() (protocol.Payload, error) {
	if err := t.record("create-offer"); err != nil {
		return nil, err
	}
	return protocol.Payload(testOffer), nil
}

func (t *fakeTransport) CreateAnswer() (protocol.Payload, error) {
	if err := t.record("create-answer"); err != nil {
		return nil, err
	}
	return protocol.Payload(testAnswer), nil
}

func (t *fakeTransport) SetLocalDescription(protocol.Payload) error {
	return t.record("set-local")
}

func (t *fakeTransport) SetRemoteDescription(protocol.Payload) error {
	return t.record("set-remote")
}

func (t *fakeTransport) AddICECandidate(c protocol.Payload) error {
	t.mu.Lock()
	t.calls = append(t.calls, "add "+string(c))
	err := t.fail["add"]
	t.mu.Unlock()
	return err
}

func (t *fakeTransport) OnICECandidate(fn func(protocol.Payload)) {
	t.mu.Lock()
	t.onCand = fn
	t.mu.Unlock()
}

func (t *fakeTransport) OnRemoteTrack(fn func(core.RemoteTrack)) {
	t.mu.Lock()
	t.onTrack = fn
	t.mu.Unlock()
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) emitCandidate(c protocol.Payload) {
	t.mu.Lock()
	fn := t.onCand
	t.mu.Unlock()
	fn(c)
}

func (t *fakeTransport) emitTrack(tr core.RemoteTrack) {
	t.mu.Lock()
	fn := t.onTrack
	t.mu.Unlock()
	fn(tr)
}

func (t *fakeTransport) log() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeFactory struct {
	mu         sync.Mutex
	fail       map[domain.UserID]map[string]error
	transports map[domain.UserID][]*fakeTransport
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		fail:       make(map[domain.UserID]map[string]error),
		transports: make(map[domain.UserID][]*fakeTransport),
	}
}

func (f *fakeFactory) NewTransport(peer domain.UserID, _ core.LocalStream) (core.MediaTransport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTransport{peer: peer, fail: f.fail[peer]}
	f.transports[peer] = append(f.transports[peer], t)
	return t, nil
}

func (f *fakeFactory) of(peer domain.UserID) []*fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeTransport(nil), f.transports[peer]...)
}

func (f *fakeFactory) last(t *testing.T, peer domain.UserID) *fakeTransport {
	t.Helper()
	ts := f.of(peer)
	if len(ts) == 0 {
		t.Fatalf("no transport for %s", peer)
	}
	return ts[len(ts)-1]
}

type fakeTrack struct{ kind string }

func (t fakeTrack) ID() string                   { return t.kind + "-track" }
func (t fakeTrack) Kind() string                 { return t.kind }
func (t fakeTrack) StreamID() string             { return "stream" }
func (t fakeTrack) ReadRTP() (*rtp.Packet, error) { return nil, io.EOF }

// gatedTrack parks the session goroutine inside Kind until released.
type gatedTrack struct {
	fakeTrack
	entered chan struct{}
	release chan struct{}
}

func newGatedTrack(kind string) *gatedTrack {
	return &gatedTrack{fakeTrack: fakeTrack{kind: kind}, entered: make(chan struct{}), release: make(chan struct{})}
}

func (t *gatedTrack) Kind() string {
	close(t.entered)
	<-t.release
	return t.kind
}

type recorder struct {
	mu      sync.Mutex
	links   []string
	tracks  []domain.UserID
	removed []domain.UserID
	errs    []*SessionError
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnMeetingLink: func(link string) {
			r.mu.Lock()
			r.links = append(r.links, link)
			r.mu.Unlock()
		},
		OnRemoteTrack: func(p domain.UserID, _ core.RemoteTrack) {
			r.mu.Lock()
			r.tracks = append(r.tracks, p)
			r.mu.Unlock()
		},
		OnStreamRemoved: func(p domain.UserID) {
			r.mu.Lock()
			r.removed = append(r.removed, p)
			r.mu.Unlock()
		},
		OnSessionError: func(err *SessionError) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

type harness struct {
	o       *Orchestrator
	sig     *fakeSignaler
	factory *fakeFactory
	capture *fakeCapture
	rec     *recorder
}

// newHarness builds an orchestrator that already knows its own identity.
func newHarness(self domain.UserID, autoCall bool) *harness {
	h := &harness{
		sig:     &fakeSignaler{},
		factory: newFakeFactory(),
		capture: &fakeCapture{},
		rec:     &recorder{},
	}
	h.o = New(h.capture, h.factory, Options{AutoCall: autoCall, Hooks: h.rec.hooks()})
	h.o.Attach(h.sig)
	h.o.HandleMessage(protocol.UserIDMsg(self))
	return h
}

func (h *harness) join(t *testing.T) {
	t.Helper()
	if err := h.o.Join(context.Background(), "lobby"); err != nil {
		t.Fatalf("join: %v", err)
	}
}

// settle waits until every event queued so far for the session has run.
func settle(t *testing.T, s *Session) {
	t.Helper()
	ch := make(chan struct{})
	if !s.box.push(func() { close(ch) }) {
		ch = nil
	}
	select {
	case <-ch:
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s did not settle", s.Peer())
	}
	if s.State() == Closed {
		select {
		case <-s.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("session %s did not tear down", s.Peer())
		}
	}
}

func (h *harness) settleAll(t *testing.T) {
	t.Helper()
	for _, s := range h.o.Sessions() {
		settle(t, s)
	}
}

func (h *harness) session(t *testing.T, p domain.UserID) *Session {
	t.Helper()
	s, ok := h.o.Session(p)
	if !ok {
		t.Fatalf("no session for %s", p)
	}
	return s
}

func (h *harness) state(t *testing.T, p domain.UserID) State {
	t.Helper()
	s := h.session(t, p)
	settle(t, s)
	return s.State()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
