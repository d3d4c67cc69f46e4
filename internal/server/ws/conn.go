package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn serializes writes to a websocket connection. gorilla/websocket
// allows only one concurrent writer.
type conn struct {
	ws        *websocket.Conn
	writeWait time.Duration
	mu        sync.Mutex
}

func (c *conn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *conn) Close() error {
	return c.ws.Close()
}
