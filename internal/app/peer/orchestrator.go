// Package peer keeps one negotiation session per remote participant consistent
// with relay events and local intent.
package peer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Signaler delivers messages to the relay without blocking.
type Signaler interface {
	Send(protocol.Message) error
}

type Options struct {
	// AutoCall makes the newcomer call every member listed in all-users.
	AutoCall bool
	Hooks    Hooks
}

type Orchestrator struct {
	capture    core.MediaCapture
	transports core.TransportFactory
	hooks      Hooks
	autoCall   bool

	mu       sync.Mutex
	signal   Signaler
	self     domain.UserID
	room     domain.RoomName
	local    core.LocalStream
	members  map[domain.UserID]struct{}
	departed map[domain.UserID]struct{}
	sessions map[domain.UserID]*Session
}

func New(capture core.MediaCapture, transports core.TransportFactory, opts Options) *Orchestrator {
	return &Orchestrator{
		capture:    capture,
		transports: transports,
		hooks:      opts.Hooks,
		autoCall:   opts.AutoCall,
		members:    make(map[domain.UserID]struct{}),
		departed:   make(map[domain.UserID]struct{}),
		sessions:   make(map[domain.UserID]*Session),
	}
}

// Attach sets the channel used for outgoing messages.
func (o *Orchestrator) Attach(sig Signaler) {
	o.mu.Lock()
	o.signal = sig
	o.mu.Unlock()
}

func (o *Orchestrator) Self() domain.UserID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.self
}

func (o *Orchestrator) Room() domain.RoomName {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.room
}

func (o *Orchestrator) send(msg protocol.Message) error {
	o.mu.Lock()
	sig := o.signal
	o.mu.Unlock()
	if sig == nil {
		return ErrNoSignal
	}
	return sig.Send(msg)
}

func (o *Orchestrator) localStream() core.LocalStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.local
}

// keepsOwnOffer resolves glare: the smaller identity keeps its offer.
func (o *Orchestrator) keepsOwnOffer(peer domain.UserID) bool {
	self := o.Self()
	return self != "" && self < peer
}

// HandleMessage applies one relay event. It never blocks on negotiation work.
func (o *Orchestrator) HandleMessage(m protocol.Message) {
	switch m.Type {
	case protocol.TypeUserID:
		o.mu.Lock()
		o.self = m.UserID
		o.mu.Unlock()
		log.Info().Str("module", "peer").Str("self", m.UserID.String()).Msg("identity assigned")
	case protocol.TypeMeetingLink:
		o.hooks.meetingLink(m.Link)
	case protocol.TypeAllUsers:
		o.onAllUsers(m.Users)
	case protocol.TypeUserJoined:
		if o.addMember(m.UserID) {
			o.hooks.peerJoined(m.UserID)
		}
	case protocol.TypeIncomingCall:
		offer := m.Offer
		if s := o.sessionForOffer(m.From); s != nil {
			s.post(func() { s.handleOffer(offer) })
		}
	case protocol.TypeCallAccepted:
		answer := m.Answer
		o.dispatch(m, func(s *Session) { s.handleAnswer(answer) })
	case protocol.TypeCallDeclined:
		o.dispatch(m, func(s *Session) { s.handleDeclined() })
	case protocol.TypeCandidate:
		c := m.Candidate
		o.dispatch(m, func(s *Session) { s.handleCandidate(c) })
	case protocol.TypeUserLeft:
		o.onUserLeft(m.UserID)
	default:
		log.Debug().Str("module", "peer").Str("type", string(m.Type)).Msg("unhandled event")
	}
}

func (o *Orchestrator) onAllUsers(users []domain.UserID) {
	var others []domain.UserID
	for _, u := range users {
		if u == o.Self() {
			continue
		}
		if o.addMember(u) {
			others = append(others, u)
		}
	}
	log.Info().Str("module", "peer").Int("members", len(others)).Msg("room members")
	if !o.autoCall {
		return
	}
	for _, u := range others {
		if err := o.Call(u); err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("peer", u.String()).Msg("auto call failed")
		}
	}
}

// addMember registers a peer in the room with an Idle session. It reports
// whether the peer was new.
func (o *Orchestrator) addMember(p domain.UserID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p == "" || p == o.self {
		return false
	}
	delete(o.departed, p)
	if _, ok := o.members[p]; ok {
		return false
	}
	o.members[p] = struct{}{}
	if _, ok := o.sessions[p]; !ok {
		o.sessions[p] = newSession(o, p)
	}
	return true
}

// sessionForOffer returns a session able to take an offer from p, replacing a
// closed one. Offers from departed peers are dropped.
func (o *Orchestrator) sessionForOffer(p domain.UserID) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, gone := o.departed[p]; gone || p == "" {
		log.Debug().Str("module", "peer").Str("peer", p.String()).Msg("offer from departed peer dropped")
		return nil
	}
	o.members[p] = struct{}{}
	s, ok := o.sessions[p]
	if !ok || s.State() == Closed {
		s = newSession(o, p)
		o.sessions[p] = s
	}
	return s
}

func (o *Orchestrator) dispatch(m protocol.Message, fn func(*Session)) {
	o.mu.Lock()
	s, ok := o.sessions[m.From]
	o.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "peer").Str("peer", m.From.String()).Str("type", string(m.Type)).Msg("event for unknown session dropped")
		return
	}
	s.post(func() { fn(s) })
}

func (o *Orchestrator) onUserLeft(p domain.UserID) {
	o.mu.Lock()
	s, ok := o.sessions[p]
	delete(o.sessions, p)
	delete(o.members, p)
	o.departed[p] = struct{}{}
	o.mu.Unlock()

	if ok {
		s.close("peer left")
	}
	log.Info().Str("module", "peer").Str("peer", p.String()).Msg("peer left")
	o.hooks.peerLeft(p)
}

// Join acquires local media and asks the relay to admit us to room.
// A capture failure aborts the join before anything is sent.
func (o *Orchestrator) Join(ctx context.Context, room domain.RoomName) error {
	o.mu.Lock()
	if o.room != "" {
		o.mu.Unlock()
		return ErrAlreadyJoined
	}
	o.mu.Unlock()

	stream, err := o.capture.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("join %s: %w", room, err)
	}

	o.mu.Lock()
	if o.room != "" {
		o.mu.Unlock()
		stream.Stop()
		return ErrAlreadyJoined
	}
	o.room = room
	o.local = stream
	o.mu.Unlock()

	if err := o.send(protocol.JoinRoom(room)); err != nil {
		o.mu.Lock()
		o.room = ""
		o.local = nil
		o.mu.Unlock()
		stream.Stop()
		return fmt.Errorf("join %s: %w", room, err)
	}
	log.Info().Str("module", "peer").Str("room", string(room)).Msg("join requested")
	return nil
}

// Call starts negotiation with p. The offer is created on the session goroutine.
func (o *Orchestrator) Call(p domain.UserID) error {
	o.mu.Lock()
	if o.local == nil {
		o.mu.Unlock()
		return ErrMediaNotAcquired
	}
	if _, ok := o.members[p]; !ok {
		o.mu.Unlock()
		return ErrUnknownPeer
	}
	s, ok := o.sessions[p]
	if !ok || s.State() == Closed {
		s = newSession(o, p)
		o.sessions[p] = s
	}
	o.mu.Unlock()

	if st := s.State(); st != Idle {
		return fmt.Errorf("call %s: %w (%s)", p, ErrSessionBusy, st)
	}
	s.post(s.startCall)
	return nil
}

// HangUp closes every session, stops the capture and leaves the room.
func (o *Orchestrator) HangUp() error {
	o.mu.Lock()
	if o.room == "" {
		o.mu.Unlock()
		return ErrNotJoined
	}
	sessions := o.sessions
	local := o.local
	o.sessions = make(map[domain.UserID]*Session)
	o.members = make(map[domain.UserID]struct{})
	o.departed = make(map[domain.UserID]struct{})
	o.local = nil
	o.room = ""
	o.mu.Unlock()

	for _, s := range sessions {
		s.close("hang up")
	}
	if local != nil {
		local.Stop()
	}
	return o.send(protocol.LeaveRoom())
}

func (o *Orchestrator) SetMuted(muted bool) error {
	local := o.localStream()
	if local == nil {
		return ErrMediaNotAcquired
	}
	local.SetAudioEnabled(!muted)
	return nil
}

func (o *Orchestrator) SetVideoOff(off bool) error {
	local := o.localStream()
	if local == nil {
		return ErrMediaNotAcquired
	}
	local.SetVideoEnabled(!off)
	return nil
}

// State reports the session state towards p.
func (o *Orchestrator) State(p domain.UserID) (State, bool) {
	o.mu.Lock()
	s, ok := o.sessions[p]
	o.mu.Unlock()
	if !ok {
		return Closed, false
	}
	return s.State(), true
}

func (o *Orchestrator) Session(p domain.UserID) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[p]
	return s, ok
}

// Sessions returns the current sessions ordered by peer.
func (o *Orchestrator) Sessions() []*Session {
	o.mu.Lock()
	out := make([]*Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		out = append(out, s)
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].peer < out[j].peer })
	return out
}

// Close hangs up if in a room. The orchestrator can be reused afterwards.
func (o *Orchestrator) Close() {
	if err := o.HangUp(); err != nil && !errors.Is(err, ErrNotJoined) {
		log.Warn().Err(err).Str("module", "peer").Msg("leave on close failed")
	}
}
