package websocket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"campus-chat/internal/presence"
	"campus-chat/internal/stomp"
	"campus-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	SendBuffer      int
	BroadcastBuffer int
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxFrameSize    int64
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.BroadcastBuffer <= 0 {
		o.BroadcastBuffer = 1024
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = 65536
	}
	return o
}

// Client is one websocket connection speaking STOMP.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	id    string
	attrs *presence.Attributes
	log   *logger.Logger

	mu        sync.Mutex
	connected bool
	// subscription id -> destination
	subs map[string]string

	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, attrs *presence.Attributes) *Client {
	id := uuid.NewString()
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, hub.opts.SendBuffer),
		done:  make(chan struct{}),
		id:    id,
		attrs: attrs,
		log:   logger.GlobalLogger.With("conn", id),
		subs:  make(map[string]string),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Start registers the client with the hub and runs both pumps. A hub that
// is shutting down refuses the connection.
func (c *Client) Start() {
	if !c.hub.register(c) {
		c.log.Debug("Hub is shutting down, closing connection")
		c.conn.Close()
		return
	}
	c.log.Debug("WebSocket session connected (handshake identity %q)", c.attrs.Identity())
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) ReadPump() {
	ctx := context.Background()
	defer c.hub.pumps.Done()
	defer func() {
		c.hub.unregister(c)
		c.mu.Lock()
		connected := c.connected
		c.mu.Unlock()
		if connected && c.hub.presence != nil {
			c.hub.presence.OnDisconnect(ctx, c.attrs.Identity(), c.id)
		}
		c.close()
		c.log.Debug("WebSocket session disconnected")
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Error("WebSocket error: %v", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))

		if stomp.IsHeartBeat(data) {
			continue
		}
		frame, err := stomp.Decode(data)
		if err != nil {
			c.log.Warn("Invalid frame: %v", err)
			c.fail("invalid frame", err.Error())
			return
		}
		c.hub.metrics.IncFrame(frame.Command)
		if !c.handleFrame(ctx, frame) {
			return
		}
	}
}

// handleFrame reports whether the connection should stay open.
func (c *Client) handleFrame(ctx context.Context, frame *stomp.Frame) bool {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()

	switch frame.Command {
	case stomp.CmdConnect, stomp.CmdStomp:
		if connected {
			c.fail("duplicate CONNECT", "")
			return false
		}
		return c.handleConnect(frame)
	}

	if !connected {
		c.fail("not connected", "the first frame must be CONNECT")
		return false
	}

	switch frame.Command {
	case stomp.CmdSubscribe:
		return c.handleSubscribe(ctx, frame)
	case stomp.CmdUnsubscribe:
		id := frame.Header.Get(stomp.HdrID)
		c.mu.Lock()
		destination, ok := c.subs[id]
		delete(c.subs, id)
		c.mu.Unlock()
		if ok {
			c.hub.unsubscribe(c, destination)
		}
		c.receipt(frame)
		return true
	case stomp.CmdDisconnect:
		c.receipt(frame)
		return false
	case stomp.CmdSend:
		c.fail("SEND is not supported", "chat messages are relayed by another service")
		return false
	default:
		c.fail("unexpected frame", frame.Command)
		return false
	}
}

func (c *Client) handleConnect(frame *stomp.Frame) bool {
	identity, err := c.hub.extractor.Resolve(c.attrs, frame.Header)
	if errors.Is(err, presence.ErrMissingIdentity) {
		c.log.Warn("CONNECT without identity, presence disabled for this connection")
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	if c.hub.presence != nil {
		c.hub.presence.OnConnect(identity, c.id)
	}
	c.log.Info("STOMP CONNECT: registered user %q", identity)

	reply := stomp.New(stomp.CmdConnected,
		stomp.HdrVersion, "1.2",
		stomp.HdrHeartBeat, "0,0",
		"server", "campus-chat",
		"session", c.id,
	)
	if identity != "" && !strings.ContainsAny(identity, "\r\n\x00") {
		reply.Header.Set(stomp.HdrUserName, identity)
	}
	return c.enqueue(stomp.Encode(reply))
}

func (c *Client) handleSubscribe(ctx context.Context, frame *stomp.Frame) bool {
	id := frame.Header.Get(stomp.HdrID)
	destination := frame.Header.Get(stomp.HdrDestination)
	if id == "" || destination == "" {
		c.fail("invalid SUBSCRIBE", "id and destination headers are required")
		return false
	}

	c.mu.Lock()
	c.subs[id] = destination
	c.mu.Unlock()
	c.hub.subscribe(c, destination, id)
	c.receipt(frame)

	// the subscription is live before presence may publish on it
	if c.hub.presence != nil {
		c.hub.presence.OnSubscribe(ctx, c.attrs.Identity(), c.id, destination)
	}
	return true
}

func (c *Client) receipt(frame *stomp.Frame) {
	if id := frame.Header.Get(stomp.HdrReceipt); id != "" {
		c.enqueue(stomp.Encode(stomp.New(stomp.CmdReceipt, stomp.HdrReceiptID, id)))
	}
}

// fail sends an ERROR frame. The caller closes the connection afterwards.
func (c *Client) fail(message, detail string) {
	frame := stomp.New(stomp.CmdError, stomp.HdrMessage, message)
	frame.Body = []byte(detail)
	c.enqueue(stomp.Encode(frame))
}

func (c *Client) enqueue(msg []byte) bool {
	if !c.trySend(msg) {
		c.log.Warn("Send buffer full, closing connection")
		return false
	}
	return true
}

// trySend queues msg without blocking. It fails when the buffer is full or
// the client is closed.
func (c *Client) trySend(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.hub.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Error("Write error: %v", err)
				c.close()
				return
			}

		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// flush writes whatever is still queued, so ERROR and RECEIPT frames reach
// the peer before the close.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
