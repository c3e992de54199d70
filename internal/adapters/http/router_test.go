package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/MeshCall/internal/adapters/signal"
	"github.com/dkeye/MeshCall/internal/app"
	"github.com/dkeye/MeshCall/internal/app/orch"
	"github.com/dkeye/MeshCall/internal/config"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/dkeye/MeshCall/internal/metrics"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/gorilla/websocket"
)

type testServer struct {
	*httptest.Server
	orch *orch.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m := metrics.New()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.DropPolicy{},
		Metrics:  m,
		LinkBase: "http://meet.test/join/",
	}
	ctrl := signal.NewSignalWSController(o, signal.NewRoomRateLimiter(0, time.Second), signal.DefaultSettings())
	cfg := &config.Config{Mode: "test", StaticPath: t.TempDir()}

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(ctx, cfg, ctrl, m))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{Server: srv, orch: o}
}

func (s *testServer) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + path
}

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
	id   domain.UserID
}

// dial connects and consumes the user-id greeting.
func (s *testServer) dial(t *testing.T, path string) *wsPeer {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(path), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	p := &wsPeer{t: t, conn: conn}
	m := p.expect(protocol.TypeUserID)
	p.id = m.UserID
	return p
}

func (p *wsPeer) raw() []byte {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		p.t.Fatalf("read: %v", err)
	}
	return data
}

func (p *wsPeer) expect(typ protocol.Type) protocol.Message {
	p.t.Helper()
	data := p.raw()
	m, err := protocol.ParseEvent(data)
	if err != nil {
		p.t.Fatalf("parse %s: %v", data, err)
	}
	if m.Type != typ {
		p.t.Fatalf("got %s, want %s (%s)", m.Type, typ, data)
	}
	return m
}

func (p *wsPeer) sendRaw(s string) {
	p.t.Helper()
	if err := p.conn.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

func (p *wsPeer) send(m protocol.Message) {
	p.t.Helper()
	data, err := protocol.Encode(m)
	if err != nil {
		p.t.Fatal(err)
	}
	p.sendRaw(string(data))
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestSignal_UserIDFirstAndUnique(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "/ws")
	b := s.dial(t, "/")
	if a.id == "" || a.id == b.id {
		t.Fatalf("ids %q %q", a.id, b.id)
	}
}

func TestSignal_TwoPeerScenario(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "/ws")
	a.send(protocol.JoinRoom("standup"))
	if m := a.expect(protocol.TypeMeetingLink); m.Link != "http://meet.test/join/standup" {
		t.Fatalf("link = %q", m.Link)
	}
	if m := a.expect(protocol.TypeAllUsers); len(m.Users) != 0 {
		t.Fatalf("users = %v", m.Users)
	}

	b := s.dial(t, "/ws")
	b.send(protocol.JoinRoom("standup"))
	if m := b.expect(protocol.TypeAllUsers); len(m.Users) != 1 || m.Users[0] != a.id {
		t.Fatalf("users = %v, want [%s]", m.Users, a.id)
	}
	if m := a.expect(protocol.TypeUserJoined); m.UserID != b.id {
		t.Fatalf("user-joined = %s", m.UserID)
	}

	offer := `{"sdp":  "v=0\r\na=x <y> & z", "type":"offer"}`
	b.sendRaw(`{"type":"user-call","to":"` + string(a.id) + `","offer":` + offer + `}`)
	data := a.raw()
	if !strings.Contains(string(data), offer) {
		t.Fatalf("offer bytes changed: %s", data)
	}
	if m, _ := protocol.ParseEvent(data); m.Type != protocol.TypeIncomingCall || m.From != b.id {
		t.Fatalf("incoming-call = %s", data)
	}

	a.send(protocol.AcceptCall(b.id, protocol.Payload(`{"type":"answer","sdp":"v=0"}`)))
	if m := b.expect(protocol.TypeCallAccepted); m.From != a.id || string(m.Answer) != `{"type":"answer","sdp":"v=0"}` {
		t.Fatalf("call-accepted = %+v", m)
	}

	b.send(protocol.CandidateTo(a.id, protocol.Payload(`{"candidate":"c1","sdpMid":"0"}`)))
	if m := a.expect(protocol.TypeCandidate); m.From != b.id {
		t.Fatalf("candidate from = %s", m.From)
	}

	b.send(protocol.LeaveRoom())
	if m := a.expect(protocol.TypeUserLeft); m.UserID != b.id {
		t.Fatalf("user-left = %s", m.UserID)
	}

	var room RoomResponse
	if code := getJSON(t, s.URL+"/api/rooms/standup", &room); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if room.Host != a.id || room.MemberCount != 1 || len(room.Members) != 1 {
		t.Fatalf("room = %+v", room)
	}
}

func TestSignal_MalformedFrameKeepsChannel(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "/ws")
	a.sendRaw("not json")
	a.sendRaw(`{"type":"user-call","offer":{}}`)
	a.sendRaw(`{"type":"teleport"}`)
	a.send(protocol.JoinRoom("r"))
	a.expect(protocol.TypeMeetingLink)
	a.expect(protocol.TypeAllUsers)
}

func TestSignal_RouteToUnknownIsDropped(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "/ws")
	a.send(protocol.DeclineCall("ghost"))
	a.send(protocol.JoinRoom("r"))
	a.expect(protocol.TypeMeetingLink)
}

func TestSignal_DisconnectActsAsLeave(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "/ws")
	a.send(protocol.JoinRoom("r"))
	a.expect(protocol.TypeMeetingLink)
	a.expect(protocol.TypeAllUsers)

	b := s.dial(t, "/ws")
	b.send(protocol.JoinRoom("r"))
	b.expect(protocol.TypeAllUsers)
	a.expect(protocol.TypeUserJoined)

	b.conn.Close()
	if m := a.expect(protocol.TypeUserLeft); m.UserID != b.id {
		t.Fatalf("user-left = %s", m.UserID)
	}

	a.send(protocol.LeaveRoom())
	deadline := time.Now().Add(2 * time.Second)
	for {
		var rooms RoomsResponse
		getJSON(t, s.URL+"/api/rooms", &rooms)
		if len(rooms.Rooms) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room survived its last member: %+v", rooms.Rooms)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if code := getJSON(t, s.URL+"/api/rooms/r", nil); code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.dial(t, "/ws")

	var health HealthResponse
	if code := getJSON(t, s.URL+"/healthz", &health); code != http.StatusOK || health.Status != "ok" {
		t.Fatalf("health %d %+v", code, health)
	}
	if health.Connections != 1 {
		t.Fatalf("connections = %d", health.Connections)
	}

	resp, err := http.Get(s.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "meshcall_connections 1") {
		t.Fatalf("metrics missing connection gauge:\n%s", body)
	}
}
