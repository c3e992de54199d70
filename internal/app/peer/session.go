package peer

import (
	"sync"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Session negotiates with one remote peer.
// Every event runs on the session's own goroutine in the order it was posted;
// transport, pending and remoteSet are touched only there.
type Session struct {
	peer domain.UserID
	o    *Orchestrator
	box  *mailbox
	done chan struct{}

	mu        sync.Mutex
	state     State
	presented bool

	transport core.MediaTransport
	pending   candidateQueue
	remoteSet bool
}

func newSession(o *Orchestrator, peer domain.UserID) *Session {
	s := &Session{
		peer: peer,
		o:    o,
		box:  newMailbox(),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) Peer() domain.UserID { return s.peer }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed after the session has torn down its transport.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) run() {
	defer close(s.done)
	for {
		fn, ok := s.box.pop()
		if !ok {
			return
		}
		fn()
	}
}

// post queues fn; it is dropped once the session is closed.
func (s *Session) post(fn func()) bool {
	return s.box.push(func() {
		if s.State() == Closed {
			return
		}
		fn()
	})
}

// setState moves to st unless the session is already closed.
func (s *Session) setState(st State) bool {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return false
	}
	prev := s.state
	s.state = st
	s.mu.Unlock()

	if prev != st {
		log.Debug().Str("module", "peer").Str("peer", s.peer.String()).
			Stringer("from", prev).Stringer("to", st).Msg("session state")
		s.o.hooks.stateChange(s.peer, st)
	}
	return true
}

// close marks the session Closed at once; the transport is released on the
// session goroutine after whatever step is in flight.
func (s *Session) close(reason string) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	s.mu.Unlock()

	log.Info().Str("module", "peer").Str("peer", s.peer.String()).Str("reason", reason).Msg("session closed")
	s.o.hooks.stateChange(s.peer, Closed)
	s.box.pushLast(s.teardown)
}

// teardown runs on the session goroutine after any step already in flight,
// so a presentation that raced with close is still revoked here.
func (s *Session) teardown() {
	s.revokeStream()
	s.pending.drain()
	s.remoteSet = false
	if s.transport == nil {
		return
	}
	if err := s.transport.Close(); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("peer", s.peer.String()).Msg("transport close failed")
	}
	s.transport = nil
}

func (s *Session) fail(op string, err error) {
	serr := &SessionError{Peer: s.peer, Op: op, Err: err}
	log.Error().Err(err).Str("module", "peer").Str("peer", s.peer.String()).Str("op", op).Msg("negotiation failed")
	s.o.hooks.sessionError(serr)
	s.close(op + " failed")
}

func (s *Session) ensureTransport() error {
	if s.transport != nil {
		return nil
	}
	local := s.o.localStream()
	if local == nil {
		return ErrMediaNotAcquired
	}
	t, err := s.o.transports.NewTransport(s.peer, local)
	if err != nil {
		return err
	}
	t.OnICECandidate(func(c protocol.Payload) {
		s.post(func() { s.sendLocalCandidate(t, c) })
	})
	t.OnRemoteTrack(func(track core.RemoteTrack) {
		s.post(func() { s.presentTrack(t, track) })
	})
	s.transport = t
	return nil
}

// resetTransport drops the current transport but keeps buffered remote candidates,
// which belong to the offer about to be answered.
func (s *Session) resetTransport() {
	s.revokeStream()
	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("peer", s.peer.String()).Msg("transport close failed")
		}
	}
	s.transport = nil
	s.remoteSet = false
}

// applyRemote sets the remote description, runs then, and only after that
// flushes the buffered candidates in arrival order.
func (s *Session) applyRemote(desc protocol.Payload, then func() error) error {
	if err := s.transport.SetRemoteDescription(desc); err != nil {
		return err
	}
	s.remoteSet = true
	if then != nil {
		if err := then(); err != nil {
			return err
		}
	}
	for _, c := range s.pending.drain() {
		s.addCandidate(c)
	}
	return nil
}

func (s *Session) applyCandidate(c protocol.Payload) {
	if !s.remoteSet {
		s.pending.push(c)
		log.Debug().Str("module", "peer").Str("peer", s.peer.String()).Int("buffered", s.pending.len()).Msg("candidate buffered")
		return
	}
	s.addCandidate(c)
}

func (s *Session) addCandidate(c protocol.Payload) {
	if err := s.transport.AddICECandidate(c); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("peer", s.peer.String()).Msg("add ice candidate failed")
	}
}

func (s *Session) startCall() {
	if s.State() != Idle {
		log.Debug().Str("module", "peer").Str("peer", s.peer.String()).Msg("call skipped: session busy")
		return
	}
	if err := s.ensureTransport(); err != nil {
		s.fail("create transport", err)
		return
	}
	offer, err := s.transport.CreateOffer()
	if err != nil {
		s.fail("create offer", err)
		return
	}
	if err := s.transport.SetLocalDescription(offer); err != nil {
		s.fail("set local description", err)
		return
	}
	if !s.setState(OfferSent) {
		return
	}
	if err := s.o.send(protocol.UserCall(s.peer, offer)); err != nil {
		s.fail("send offer", err)
	}
}

func (s *Session) handleOffer(offer protocol.Payload) {
	switch s.State() {
	case OfferSent:
		if s.o.keepsOwnOffer(s.peer) {
			log.Info().Str("module", "peer").Str("peer", s.peer.String()).Msg("glare: keeping own offer")
			if err := s.o.send(protocol.DeclineCall(s.peer)); err != nil {
				s.fail("send decline", err)
			}
			return
		}
		log.Info().Str("module", "peer").Str("peer", s.peer.String()).Msg("glare: answering remote offer")
		s.resetTransport()
	case Answering, Connected:
		log.Info().Str("module", "peer").Str("peer", s.peer.String()).Msg("remote restarted negotiation")
		s.resetTransport()
	}

	if s.o.localStream() == nil {
		log.Info().Str("module", "peer").Str("peer", s.peer.String()).Msg("no local media, declining call")
		if err := s.o.send(protocol.DeclineCall(s.peer)); err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("peer", s.peer.String()).Msg("send decline failed")
		}
		s.close("declined")
		return
	}

	if !s.setState(Answering) {
		return
	}
	if err := s.ensureTransport(); err != nil {
		s.fail("create transport", err)
		return
	}
	err := s.applyRemote(offer, func() error {
		answer, err := s.transport.CreateAnswer()
		if err != nil {
			return err
		}
		if err := s.transport.SetLocalDescription(answer); err != nil {
			return err
		}
		return s.o.send(protocol.AcceptCall(s.peer, answer))
	})
	if err != nil {
		s.fail("answer", err)
		return
	}
	s.setState(Connected)
}

func (s *Session) handleAnswer(answer protocol.Payload) {
	if s.State() != OfferSent {
		log.Debug().Str("module", "peer").Str("peer", s.peer.String()).Msg("unexpected answer dropped")
		return
	}
	if err := s.applyRemote(answer, nil); err != nil {
		s.fail("set remote description", err)
		return
	}
	s.setState(Connected)
}

func (s *Session) handleDeclined() {
	if s.State() != OfferSent {
		return
	}
	s.close("call declined")
}

func (s *Session) handleCandidate(c protocol.Payload) {
	s.applyCandidate(c)
}

func (s *Session) sendLocalCandidate(from core.MediaTransport, c protocol.Payload) {
	if from != s.transport {
		return
	}
	if err := s.o.send(protocol.CandidateTo(s.peer, c)); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("peer", s.peer.String()).Msg("send candidate failed")
	}
}

func (s *Session) presentTrack(from core.MediaTransport, track core.RemoteTrack) {
	if from != s.transport {
		return
	}
	kind := track.Kind()
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.presented = true
	s.mu.Unlock()
	log.Info().Str("module", "peer").Str("peer", s.peer.String()).Str("kind", kind).Msg("remote track")
	s.o.hooks.remoteTrack(s.peer, track)
}

// revokeStream withdraws the presented stream. Only the session goroutine
// presents and revokes, so the hooks never fire out of order.
func (s *Session) revokeStream() {
	s.mu.Lock()
	presented := s.presented
	s.presented = false
	s.mu.Unlock()
	if presented {
		s.o.hooks.streamRemoved(s.peer)
	}
}
