package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	clientWriteWait    = 10 * time.Second
	clientPongWait     = 60 * time.Second
	clientPingPeriod   = (clientPongWait * 9) / 10
	clientSendBuffer   = 64
	clientMaxFrameSize = 64 * 1024
)

// Client is a participant's channel to the relay.
// Received events are handed to the handler one at a time, in arrival order.
type Client struct {
	conn     *websocket.Conn
	outgoing chan core.Frame
	done     chan struct{}
	once     sync.Once
	handler  func(protocol.Message)

	pingPeriod time.Duration
	pongWait   time.Duration
}

// Dial connects to the relay and starts the pumps.
func Dial(ctx context.Context, url string, handler func(protocol.Message)) (*Client, error) {
	return dial(ctx, url, handler, clientPingPeriod, clientPongWait)
}

func dial(ctx context.Context, url string, handler func(protocol.Message), pingPeriod, pongWait time.Duration) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	conn.SetReadLimit(clientMaxFrameSize)

	c := &Client{
		conn:     conn,
		outgoing: make(chan core.Frame, clientSendBuffer),
		done:     make(chan struct{}),
		handler:  handler,

		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Send queues msg without blocking.
func (c *Client) Send(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return core.ErrConnClosed
	default:
	}
	select {
	case c.outgoing <- frame:
		return nil
	default:
		return core.ErrBackpressure
	}
}

// Done is closed once the channel is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	defer c.Close()
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	// relay pings count as liveness too
	c.conn.SetPingHandler(func(data string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(clientWriteWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal.client").Msg("read error")
			}
			return
		}
		msg, err := protocol.ParseEvent(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal.client").Msg("bad event")
			continue
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal.client").Msg("ping failed")
				return
			}
		case frame := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "signal.client").Msg("write error")
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(clientWriteWait))
			return
		}
	}
}

// flush writes whatever was queued before Close, e.g. a final leave-room.
func (c *Client) flush() {
	for {
		select {
		case frame := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
