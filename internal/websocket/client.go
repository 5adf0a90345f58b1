package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/plantcare/internal/plant"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Client is one websocket connection streaming a plant feed.
type Client struct {
	hub         *Hub
	conn        *ws.Conn
	feed        *plant.Feed
	householdID string
	cancel      context.CancelFunc
}

// NewClient creates a Client that streams feed over conn.
func NewClient(hub *Hub, conn *ws.Conn, feed *plant.Feed, householdID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		feed:        feed,
		householdID: householdID,
		cancel:      func() {},
	}
}

func (c *Client) stop() {
	c.cancel()
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters and closes the
// feed.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancel = cancel

	c.hub.Register(c)
	defer c.hub.Unregister(c)
	defer c.feed.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(ctx, cancel)
	}()
	c.readPump(ctx)
	cancel()
	<-done
}

// readPump reads and discards incoming messages so control frames are
// handled. It returns when the connection closes or ctx ends.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump writes every plant list from the feed and pings periodically to
// detect stale connections.
func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case plants, ok := <-c.feed.C:
			if !ok {
				code, reason := feedEndStatus(c.feed.Err())
				if code == ws.StatusInternalError {
					c.hub.logger.Error("plant feed ended", "household_id", c.householdID, "error", c.feed.Err())
				}
				c.conn.Close(code, reason)
				return
			}
			data, err := encodeMessage(NewSnapshot(c.householdID, plants))
			if err != nil {
				c.hub.logger.Error("encode snapshot", "error", err)
				continue
			}
			if err := c.write(ctx, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			c.conn.Close(ws.StatusGoingAway, "")
			return
		}
	}
}

// feedEndStatus picks the close frame sent when the plant feed stops.
func feedEndStatus(err error) (ws.StatusCode, string) {
	if err != nil {
		return ws.StatusInternalError, "plant feed failed"
	}
	return ws.StatusGoingAway, "plant feed ended"
}

func (c *Client) write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, data)
}
