package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/auctioneer/auction"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	replyBuffer    = 16
)

// Dispatcher executes commands on behalf of an identity.
type Dispatcher interface {
	Handle(ctx context.Context, id auction.Identity, cmd auction.Command) (*auction.Event, error)
	Snapshot(ctx context.Context) (*auction.Snapshot, error)
}

// WSHandler upgrades participants to a bidirectional channel: commands in,
// broadcasts and issuer-only replies out.
type WSHandler struct {
	dispatcher Dispatcher
	hub        *Hub
	auth       Authenticator
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

// NewWSHandler creates a WebSocket handler. An empty allowedOrigins accepts
// any origin.
func NewWSHandler(d Dispatcher, hub *Hub, auth Authenticator, log *slog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		dispatcher: d,
		hub:        hub,
		auth:       auth,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type wsClient struct {
	conn    *websocket.Conn
	id      auction.Identity
	sub     *Subscriber
	replies chan auction.Event
	log     *slog.Logger
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := identify(r, h.auth)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	c := &wsClient{
		conn:    conn,
		id:      id,
		sub:     h.hub.Subscribe("ws"),
		replies: make(chan auction.Event, replyBuffer),
		log:     h.log.With("subscriber", "ws", "identity", id.ID),
	}
	defer h.hub.Unsubscribe(c.sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx)
		// Unblocks a reader parked in ReadMessage.
		conn.Close()
	}()

	c.readPump(ctx, h.dispatcher)
	cancel()
	<-writerDone
}

func (c *wsClient) readPump(ctx context.Context, d Dispatcher) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("WebSocket read failed", "err", err)
			}
			return
		}

		cmd, err := auction.ParseCommand(data)
		if err != nil {
			if !c.reply(ctx, auction.NewErrorEvent("", err)) {
				return
			}
			continue
		}

		reply, err := d.Handle(ctx, c.id, cmd)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return
			}
			if !c.reply(ctx, auction.NewErrorEvent(cmd.CommandType(), err)) {
				return
			}
			continue
		}
		if reply != nil && !c.reply(ctx, *reply) {
			return
		}
	}
}

// reply queues an issuer-only event. It reports false once the connection
// is going away.
func (c *wsClient) reply(ctx context.Context, ev auction.Event) bool {
	select {
	case c.replies <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.writeClose(websocket.CloseNormalClosure, "")
			return
		case <-c.sub.Done():
			code := websocket.ClosePolicyViolation
			if c.sub.Reason() == CloseShutdown {
				code = websocket.CloseGoingAway
			}
			c.writeClose(code, c.sub.Reason())
			return
		case ev := <-c.replies:
			if err := c.write(ev); err != nil {
				return
			}
		case ev := <-c.sub.Events():
			if err := c.write(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) write(ev auction.Event) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		c.log.Debug("WebSocket write failed", "err", err, "event", ev.Type)
		return err
	}
	return nil
}

func (c *wsClient) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
