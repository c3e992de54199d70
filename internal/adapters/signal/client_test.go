package signal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/MeshCall/internal/app"
	"github.com/dkeye/MeshCall/internal/app/orch"
	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newRelay(t *testing.T, limiter *RoomRateLimiter) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.DropPolicy{},
		LinkBase: "/join/",
	}
	ctrl := NewSignalWSController(o, limiter, DefaultSettings())
	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctrl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

type inbox chan protocol.Message

func (in inbox) next(t *testing.T, typ protocol.Type) protocol.Message {
	t.Helper()
	select {
	case m := <-in:
		if m.Type != typ {
			t.Fatalf("got %s, want %s", m.Type, typ)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s received", typ)
	}
	return protocol.Message{}
}

func dialInbox(t *testing.T, url string) (*Client, inbox) {
	t.Helper()
	in := make(inbox, 16)
	c, err := Dial(context.Background(), url, func(m protocol.Message) { in <- m })
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(c.Close)
	return c, in
}

func TestClient_JoinAndRoute(t *testing.T) {
	url := newRelay(t, nil)
	a, ain := dialInbox(t, url)
	aID := ain.next(t, protocol.TypeUserID).UserID

	if err := a.Send(protocol.JoinRoom("r")); err != nil {
		t.Fatal(err)
	}
	if m := ain.next(t, protocol.TypeMeetingLink); m.Link != "/join/r" {
		t.Fatalf("link = %q", m.Link)
	}
	ain.next(t, protocol.TypeAllUsers)

	b, bin := dialInbox(t, url)
	bID := bin.next(t, protocol.TypeUserID).UserID
	if err := b.Send(protocol.JoinRoom("r")); err != nil {
		t.Fatal(err)
	}
	bin.next(t, protocol.TypeAllUsers)
	ain.next(t, protocol.TypeUserJoined)

	if err := b.Send(protocol.UserCall(aID, protocol.Payload(`{"type":"offer","sdp":"x"}`))); err != nil {
		t.Fatal(err)
	}
	if m := ain.next(t, protocol.TypeIncomingCall); m.From != bID {
		t.Fatalf("from = %s", m.From)
	}

	// leave-room queued right before Close still reaches the relay
	if err := b.Send(protocol.LeaveRoom()); err != nil {
		t.Fatal(err)
	}
	b.Close()
	if m := ain.next(t, protocol.TypeUserLeft); m.UserID != bID {
		t.Fatalf("user-left = %s", m.UserID)
	}
	if err := b.Send(protocol.LeaveRoom()); !errors.Is(err, core.ErrConnClosed) {
		t.Fatalf("send after close err = %v", err)
	}
}

func TestClient_RateLimitedJoinIsDropped(t *testing.T) {
	url := newRelay(t, NewRoomRateLimiter(1, time.Minute))
	a, ain := dialInbox(t, url)
	ain.next(t, protocol.TypeUserID)

	_ = a.Send(protocol.JoinRoom("r"))
	ain.next(t, protocol.TypeMeetingLink)
	ain.next(t, protocol.TypeAllUsers)
	_ = a.Send(protocol.LeaveRoom())
	_ = a.Send(protocol.JoinRoom("r"))

	select {
	case m := <-ain:
		t.Fatalf("rate limited join answered with %s", m.Type)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClient_KeepaliveOutlivesReadDeadline(t *testing.T) {
	url := newRelay(t, nil)
	in := make(inbox, 16)
	c, err := dial(context.Background(), url, func(m protocol.Message) { in <- m }, 20*time.Millisecond, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(c.Close)
	in.next(t, protocol.TypeUserID)

	select {
	case <-c.Done():
		t.Fatal("idle channel dropped despite keepalive")
	case <-time.After(400 * time.Millisecond):
	}
	if err := c.Send(protocol.JoinRoom("r")); err != nil {
		t.Fatalf("send: %v", err)
	}
	in.next(t, protocol.TypeMeetingLink)
}

func TestClient_SilentRelayTimesOut(t *testing.T) {
	upgrader := websocket.Upgrader{}
	stop := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// never reads, so pings go unanswered
		<-stop
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(stop) })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := dial(context.Background(), url, nil, 20*time.Millisecond, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(c.Close)
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("dead relay not detected")
	}
}
