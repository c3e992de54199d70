package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/MeshCall/internal/app/orch"
	"github.com/dkeye/MeshCall/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Settings bound the per-channel resources of the WS controller.
type Settings struct {
	ReadLimit  int64
	SendBuffer int
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		ReadLimit:  64 * 1024,
		SendBuffer: 64,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
	}
}

// Merge returns s with every non-zero field of o applied on top.
func (s Settings) Merge(o Settings) Settings {
	if o.ReadLimit > 0 {
		s.ReadLimit = o.ReadLimit
	}
	if o.SendBuffer > 0 {
		s.SendBuffer = o.SendBuffer
	}
	if o.PingPeriod > 0 {
		s.PingPeriod = o.PingPeriod
	}
	if o.PongWait > 0 {
		s.PongWait = o.PongWait
	}
	if o.WriteWait > 0 {
		s.WriteWait = o.WriteWait
	}
	return s
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Limiter  *RoomRateLimiter
	Settings Settings
}

func NewSignalWSController(o *orch.Orchestrator, limiter *RoomRateLimiter, s Settings) *SignalWSController {
	return &SignalWSController{
		Orch:     o,
		Limiter:  limiter,
		Settings: s,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewWsSignalConn(conn *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := NewWsSignalConn(ws, ctl.Settings.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	// user-id is queued by Connect before the pumps start.
	sid := ctl.Orch.Connect(conn, cancel)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("remote", ws.RemoteAddr().String()).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
