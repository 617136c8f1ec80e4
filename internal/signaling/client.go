package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP with gathered candidates
	// fits comfortably.
	maxMessageSize = 64 * 1024

	// DefaultSendBuffer is the outbound queue length per connection.
	DefaultSendBuffer = 256
)

// Client is one participant's websocket connection. It implements Peer.
type Client struct {
	id    string
	hub   *Hub
	conn  *websocket.Conn
	codec protocol.Codec
	log   *slog.Logger

	// send is drained by writePump. It is never closed; done ends the pump.
	send chan *protocol.Message
	done chan struct{}
	once sync.Once
}

// NewClient wraps an upgraded connection. The outbound codec follows the
// negotiated subprotocol.
func NewClient(hub *Hub, conn *websocket.Conn, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	id := NewParticipantID()
	return &Client{
		id:    id,
		hub:   hub,
		conn:  conn,
		codec: protocol.CodecFor(conn.Subprotocol()),
		log:   hub.log.With("peer", id),
		send:  make(chan *protocol.Message, sendBuffer),
		done:  make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues msg without blocking. A participant whose queue is full is
// disconnected; the resulting leave keeps everyone else consistent.
func (c *Client) Send(msg *protocol.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn("send queue full, disconnecting participant")
		c.shutdown()
		return false
	}
}

// Run registers the client and pumps messages until the connection ends.
// It blocks; the caller's goroutine becomes the read pump.
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.readPump()
}

func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// readPump pumps messages from the websocket connection to the hub.
//
// There is at most one reader on a connection; every read happens in this
// goroutine, which also serializes this participant's joins and leaves.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.shutdown()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read failed", "err", err)
			}
			return
		}

		// Inbound frames are decoded by frame kind, whatever was negotiated.
		codec := protocol.JSON
		if kind == websocket.BinaryMessage {
			codec = protocol.Msgpack
		}

		var msg protocol.Message
		if err := codec.Decode(data, &msg); err != nil {
			c.log.Warn("malformed message", "err", err)
			c.Send(protocol.Errorf("malformed message"))
			continue
		}

		c.hub.Handle(c, &msg)
	}
}

// writePump pumps messages from the send queue to the websocket connection.
//
// There is at most one writer on a connection; every write happens here.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	frame := websocket.TextMessage
	if c.codec.Binary() {
		frame = websocket.BinaryMessage
	}

	for {
		select {
		case msg := <-c.send:
			data, err := c.codec.Encode(msg)
			if err != nil {
				c.log.Error("encode failed", "type", msg.Type, "err", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frame, data); err != nil {
				c.log.Debug("write failed", "err", err)
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
