package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lalith-99/pulserelay/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// sendBuffer bounds how far a slow reader can fall behind before
	// deliveries to it start being dropped.
	sendBuffer = 256
)

// Conn adapts one gorilla/websocket connection to relay.Connection.
//
// Two goroutines per connection: readPump is the single consumer of
// inbound frames (which is what makes FIFO-per-sender hold — a
// sender's messages are relayed in the order its one reader sees
// them), and writePump is the single producer of outbound frames,
// draining the send channel in order.
type Conn struct {
	id   string
	room string

	ns       *relay.Namespace
	registry *relay.Registry

	ws     *websocket.Conn
	send   chan []byte
	logger *zap.Logger
}

func NewConn(id string, claims relay.Claims, ns *relay.Namespace, registry *relay.Registry, wsConn *websocket.Conn, logger *zap.Logger) *Conn {
	return &Conn{
		id:       id,
		room:     claims.Room,
		ns:       ns,
		registry: registry,
		ws:       wsConn,
		send:     make(chan []byte, sendBuffer),
		logger:   logger,
	}
}

func (c *Conn) ID() string   { return c.id }
func (c *Conn) Room() string { return c.room }

// Send queues data for the write pump. Non-blocking: a full buffer
// means this client is too slow to keep up and the payload is dropped
// for it — delivery is best-effort, never back-pressure on the sender.
func (c *Conn) Send(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// Start registers the connection with its namespace and launches the
// pumps. Must only be called after the authorization gate has passed.
func (c *Conn) Start() {
	c.ns.Register(c)
	go c.writePump()
	go c.readPump()
}

// readPump is the connection's single inbound event stream. Its defer
// is the one and only disconnect path: transport close, read error,
// and protocol violations all land here, and Unregister runs before
// any further fanout can observe this connection.
func (c *Conn) readPump() {
	defer func() {
		c.ns.Unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("read error",
					zap.String("client_id", c.id),
					zap.Error(err),
				)
			}
			return
		}

		c.handle(data)
	}
}

// handle dispatches one inbound frame. Malformed or unknown frames are
// dropped with a warning — a bad frame from one client is never fatal
// to the connection, let alone to its namespace.
func (c *Conn) handle(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("dropping malformed frame",
			zap.String("client_id", c.id),
			zap.Error(err),
		)
		return
	}

	switch env.Kind {
	case KindRoom:
		out, err := json.Marshal(Envelope{Kind: KindMessage, Room: c.room, Payload: env.Payload})
		if err != nil {
			c.logger.Error("marshal outbound frame", zap.Error(err))
			return
		}
		res := c.ns.RelayFrom(c, out)
		c.logger.Debug("relayed room message",
			zap.String("tenant", c.ns.TenantID()),
			zap.String("room", c.room),
			zap.Int("delivered", res.Delivered),
		)
		c.registry.Mirror(relay.DeliveryEvent{
			Namespace: c.ns.TenantID(),
			Room:      c.room,
			Message:   env.Payload,
		})

	case KindNamespace:
		out, err := json.Marshal(Envelope{Kind: KindMessage, Payload: env.Payload})
		if err != nil {
			c.logger.Error("marshal outbound frame", zap.Error(err))
			return
		}
		res := c.ns.SendToNamespace(out)
		c.logger.Debug("relayed namespace message",
			zap.String("tenant", c.ns.TenantID()),
			zap.Int("delivered", res.Delivered),
		)
		c.registry.Mirror(relay.DeliveryEvent{
			Namespace: c.ns.TenantID(),
			Room:      "main",
			Message:   env.Payload,
		})

	default:
		c.logger.Warn("dropping frame with unknown kind",
			zap.String("client_id", c.id),
			zap.String("kind", env.Kind),
		)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
