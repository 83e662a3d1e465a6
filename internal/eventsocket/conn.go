package eventsocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// conn wraps a *websocket.Conn with a write mutex: gorilla only allows one
// concurrent writer per connection, but both the dispatch loop and emitters
// from other goroutines need to write.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws}
}

func (c *conn) send(m Message) error {
	data, err := encodeMessage(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) readLoop(dispatch func(Message)) error {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		m, err := decodeMessage(raw)
		if err != nil {
			continue
		}
		dispatch(m)
	}
}

func (c *conn) close() error {
	return c.ws.Close()
}
