package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ldonohue/eventlive/internal/domain"
	"github.com/ldonohue/eventlive/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Inbound control message types form a closed set. Anything else is a
// protocol error: answered with an error envelope, connection stays open.
const (
	inboundGetParticipants = "get_participants"
	inboundGetEvents       = "get_events"
	inboundPing            = "ping"
)

type inboundMessage struct {
	Type string `json:"type"`
}

// connection is one admitted live session. It owns its websocket and send
// buffer; the registry only ever touches it through Deliver. Teardown runs
// exactly once no matter which path triggers it (peer close, read error,
// liveness timeout, full send buffer, server shutdown).
type connection struct {
	id        string
	principal *domain.Principal
	eventID   string // empty on the dashboard channel
	groups    []string

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	gw   *Gateway
	once sync.Once
}

func (c *connection) ID() string {
	return c.id
}

// Deliver queues a payload for the write pump without blocking. A consumer
// whose buffer is full is dropped: a stalled peer must never stall a
// publisher.
func (c *connection) Deliver(payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.gw.logger.Warn("send buffer full, dropping connection", "connection", c.id)
		go c.teardown("send buffer full")
	}
}

// teardown releases everything the connection holds: group memberships,
// gateway registration and the socket itself.
func (c *connection) teardown(reason string) {
	c.once.Do(func() {
		for _, group := range c.groups {
			c.gw.registry.Leave(group, c)
		}
		c.gw.remove(c)
		close(c.done)
		c.ws.Close()
		c.gw.logger.Debug("connection closed", "connection", c.id, "reason", reason)
	})
}

// readPump reads inbound control messages until the peer goes away or the
// liveness deadline lapses. The pong handler extends the read deadline; a
// peer that stops answering protocol pings times out here.
func (c *connection) readPump() {
	defer c.teardown("read loop ended")

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.gw.pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.gw.pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.dispatch(data)
	}
}

// writePump serializes all writes to the socket: queued payloads and the
// liveness pings.
func (c *connection) writePump() {
	ticker := time.NewTicker(c.gw.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case payload := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.teardown("write failed")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.teardown("ping failed")
				return
			}
		}
	}
}

// dispatch handles one inbound message over the closed control set.
func (c *connection) dispatch(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendEnvelope(notify.NewError("invalid JSON"))
		return
	}

	switch msg.Type {
	case inboundGetParticipants:
		if c.eventID == "" {
			c.sendEnvelope(notify.NewError("get_participants is only valid on an event channel"))
			return
		}
		c.refreshSnapshot()

	case inboundGetEvents:
		if c.eventID != "" {
			c.sendEnvelope(notify.NewError("get_events is only valid on the dashboard channel"))
			return
		}
		c.refreshSnapshot()

	case inboundPing:
		c.sendEnvelope(notify.NewPong())

	default:
		c.sendEnvelope(notify.NewError("unknown message type: " + msg.Type))
	}
}

// sendSnapshot delivers the channel's full current state: event summary plus
// participants on the detail channel, the accessible-events list on the
// dashboard.
func (c *connection) sendSnapshot(ctx context.Context) error {
	var env notify.Envelope

	if c.eventID != "" {
		event, err := c.gw.store.GetEvent(ctx, c.eventID)
		if err != nil {
			return err
		}
		participants, err := c.gw.store.ListParticipants(ctx, c.eventID)
		if err != nil {
			return err
		}
		env = notify.NewInitialData(event, participants)
	} else {
		events, err := c.gw.store.ListAccessibleEvents(ctx, c.principal)
		if err != nil {
			return err
		}
		env = notify.NewDashboardSnapshot(events)
	}

	c.sendEnvelope(env)
	return nil
}

// refreshSnapshot re-sends the snapshot on client request. A store failure
// here is non-fatal: the client gets an error envelope and stays connected.
func (c *connection) refreshSnapshot() {
	if err := c.sendSnapshot(context.Background()); err != nil {
		c.gw.logger.Error("failed to refresh snapshot", "connection", c.id, "error", err)
		c.sendEnvelope(notify.NewError("failed to load current state"))
	}
}

func (c *connection) sendEnvelope(env notify.Envelope) {
	payload, err := env.Encode()
	if err != nil {
		c.gw.logger.Error("failed to encode envelope", "type", env.Type, "error", err)
		return
	}
	c.Deliver(payload)
}
