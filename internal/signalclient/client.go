// Package signalclient is the participant side of the signaling websocket.
package signalclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cagdaskarabulut/yali-speak/internal/dns"
	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	queueSize = 64
)

var (
	// ErrClosed is returned when sending on a closed client.
	ErrClosed = errors.New("signaling connection closed")
	// ErrNotConnected is returned when sending before Connect.
	ErrNotConnected = errors.New("signaling connection not established")
)

// Client manages the websocket connection to the signaling server.
type Client struct {
	serverURL string
	codec     protocol.Codec
	log       *slog.Logger

	// Dialer is used by Connect. NewClient sets one that resolves through
	// the dns package.
	Dialer *websocket.Dialer

	conn     *websocket.Conn
	incoming chan *protocol.Message
	outgoing chan *protocol.Message
	done     chan struct{}

	once    sync.Once
	mu      sync.Mutex
	readErr error
}

// NewClient creates a client for serverURL. codec is the preferred wire
// format; the server has the final say through subprotocol negotiation.
func NewClient(serverURL string, codec protocol.Codec, log *slog.Logger) *Client {
	if codec == nil {
		codec = protocol.JSON
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		serverURL: serverURL,
		codec:     codec,
		log:       log.With("component", "signaling"),
		Dialer: &websocket.Dialer{
			NetDialContext:   dns.DialContext,
			HandshakeTimeout: 10 * time.Second,
		},
		incoming: make(chan *protocol.Message, queueSize),
		outgoing: make(chan *protocol.Message, queueSize),
		done:     make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := *c.Dialer
	dialer.Subprotocols = []string{c.codec.Name()}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", u.Host, err)
	}

	c.conn = conn
	c.codec = protocol.CodecFor(conn.Subprotocol())
	c.log.Debug("connected", "url", u.String(), "codec", c.codec.Name())

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// Codec is the codec in use for outbound frames.
func (c *Client) Codec() protocol.Codec { return c.codec }

// readPump reads messages from the websocket connection. It closes incoming
// when the connection ends.
func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.setErr(err)
			}
			return
		}

		codec := protocol.JSON
		if kind == websocket.BinaryMessage {
			codec = protocol.Msgpack
		}

		var msg protocol.Message
		if err := codec.Decode(data, &msg); err != nil {
			c.log.Warn("dropping malformed message", "err", err)
			continue
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued messages and sends periodic pings.
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
		case msg := <-c.outgoing:
			data, err := c.codec.Encode(msg)
			if err != nil {
				c.log.Error("encode failed", "type", msg.Type, "err", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frame, data); err != nil {
				c.setErr(err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.setErr(err)
				return
			}

		case <-c.done:
			// Flush what was queued before Close, leave-room in particular.
			for len(c.outgoing) > 0 {
				msg := <-c.outgoing
				if data, err := c.codec.Encode(msg); err == nil {
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(frame, data)
				}
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// SendMessage queues msg for the server.
func (c *Client) SendMessage(msg *protocol.Message) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming returns the channel of messages from the server. It is closed
// when the connection ends.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Done is closed once the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended, or nil after a local Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

func (c *Client) JoinRoom(roomID string) error {
	return c.SendMessage(protocol.JoinRoom(roomID))
}

func (c *Client) LeaveRoom() error {
	return c.SendMessage(protocol.LeaveRoom())
}

func (c *Client) SendSignal(recipientID string, payload json.RawMessage) error {
	return c.SendMessage(protocol.Signal(recipientID, payload))
}

// Close ends the connection after flushing queued messages. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
}
