package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// DefaultSendQueue is the number of frames buffered per viewer before
	// further frames are dropped.
	DefaultSendQueue = 64
)

type cameraRequest struct {
	CamID string `json:"cam_id"`
}

// Client is one websocket viewer. Reads and writes run on separate
// goroutines; outbound frames pass through a bounded queue.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func NewClient(h *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return newClient(h, conn, DefaultSendQueue, logger)
}

func newClient(h *Hub, conn *websocket.Conn, queue int, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, queue),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		logger: logger.With("conn_id", id),
	}
}

func (c *Client) ID() string { return c.id }

// Deliver queues frame without blocking. It returns false when the client
// is gone or its queue is full.
func (c *Client) Deliver(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Run registers the client with the hub and serves it until the connection
// fails or the peer goes away. It blocks until the socket is closed.
func (c *Client) Run() {
	c.hub.OnConnect(c.id, c)
	go c.writePump()
	c.readPump()

	c.hub.OnDisconnect(c.id)
	c.shutdown()
	<-c.closed
}

// shutdown asks the write pump to send a close frame and release the
// socket. It is safe to call more than once.
func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		c.handle(data)
	}
}

// handle answers one inbound frame. Replies use the event name of the
// request; anything unrecognized is answered with an error event.
func (c *Client) handle(data []byte) {
	var in Frame
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply(EventError, Ack{Message: "Malformed message"})
		return
	}

	var req cameraRequest
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, &req); err != nil {
			c.reply(in.Event, Ack{Message: "Malformed message"})
			return
		}
	}

	var (
		ack Ack
		err error
	)
	switch in.Event {
	case EventSubscribe:
		ack, err = c.hub.Subscribe(c.id, req.CamID)
	case EventUnsubscribe:
		ack, err = c.hub.Unsubscribe(c.id, req.CamID)
	default:
		c.reply(EventError, Ack{Message: "Unknown event " + in.Event})
		return
	}
	if errors.Is(err, ErrUnknownConnection) {
		ack = Ack{Message: "Connection is not registered"}
	}
	c.reply(in.Event, ack)
}

func (c *Client) reply(event string, ack Ack) {
	frame, err := EncodeFrame(event, ack)
	if err != nil {
		c.logger.Error("failed to encode reply", "error", err)
		return
	}
	if !c.Deliver(frame) {
		c.logger.Warn("reply dropped", "event", event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("close websocket", "error", err)
		}
		close(c.closed)
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
