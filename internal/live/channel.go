// Package live maintains the push channel for one project scope. The server
// fans every change in the scope out over this connection; the channel
// decodes envelopes and hands typed events to the consumer. No reconnection
// is attempted: when the connection drops, Done is closed and the scope
// keeps serving its last canonical state.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/crewdeck/crewdeck-go/internal/event"
)

// Channel is one push subscription.
type Channel struct {
	conn   *websocket.Conn
	events chan event.Event
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Dial opens the push channel at wsURL. authToken is sent as a bearer token
// on the upgrade request.
func Dial(ctx context.Context, wsURL, authToken string, logger *slog.Logger) (*Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var hdr map[string][]string
	if authToken != "" {
		hdr = map[string][]string{"Authorization": {"Bearer " + authToken}}
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, hdr)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	if resp != nil {
		resp.Body.Close()
	}

	c := &Channel{
		conn:   conn,
		events: make(chan event.Event, 16),
		done:   make(chan struct{}),
		logger: logger,
	}
	go c.readLoop()
	return c, nil
}

// Events delivers decoded change events. The channel is closed after the
// connection ends.
func (c *Channel) Events() <-chan event.Event {
	return c.events
}

// Done is closed when the channel has terminated, for any reason.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal error, nil after a clean Close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close tears the connection down. Safe to call more than once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *Channel) readLoop() {
	defer close(c.done)
	defer close(c.events)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}

		var env event.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			// Malformed frames are dropped; the channel never dies
			// on bad input.
			c.logger.Warn("dropping malformed envelope", "error", err)
			continue
		}
		ev, err := event.Decode(env)
		if err != nil {
			c.logger.Warn("dropping event", "type", env.Type, "error", err)
			continue
		}
		c.events <- ev
	}
}
