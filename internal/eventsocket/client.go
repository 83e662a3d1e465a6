package eventsocket

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// reconnectInterval is the fixed retry cadence for a Client's connect loop,
// matching the 1Hz reconnect cadence the node/master session manager uses.
const reconnectInterval = time.Second

// Client is an outbound event-socket session to one namespace on a remote
// Hub. It reconnects indefinitely on disconnect; on every successful
// (re)connect it invokes the registered OnConnect hooks, so callers can
// rebuild their subscriptions from scratch exactly as the master does
// against each node's current camera list.
type Client struct {
	url       string
	namespace string

	mu          sync.RWMutex
	handlers    map[string][]Handler
	onConnect   []func(*Client)
	onDisconnect []func()

	connMu sync.Mutex
	conn   *conn

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient builds a Client dialing rawURL (e.g. "ws://node-host:8080")
// scoped to namespace ("/", "/gui", "/analytics", ...). Call Run to start
// the connect loop.
func NewClient(rawURL, namespace string) *Client {
	return &Client{
		url:       rawURL,
		namespace: namespace,
		handlers:  make(map[string][]Handler),
	}
}

// On registers a handler for event. Handlers persist across reconnects;
// callers that need fresh per-connection subscriptions should call
// ClearHandlers from an OnConnect hook before re-registering.
func (c *Client) On(event string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// ClearHandlers drops every registered event handler.
func (c *Client) ClearHandlers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = make(map[string][]Handler)
}

// OnConnect registers a hook run synchronously after each successful
// (re)connect, before inbound events are dispatched.
func (c *Client) OnConnect(fn func(*Client)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// OnDisconnect registers a hook run once a connection drops, before the
// next reconnect attempt. Per the transport contract, this is where
// callers null out session state bound to the dead connection.
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, fn)
}

// Emit sends a named event over the current connection. It is a no-op,
// returning an error, while disconnected.
func (c *Client) Emit(event string, data []byte) error {
	c.connMu.Lock()
	cn := c.conn
	c.connMu.Unlock()
	if cn == nil {
		return errNotConnected
	}
	return cn.send(Message{Namespace: c.namespace, Event: event, Data: data})
}

// Connected reports whether the client currently has a live connection.
func (c *Client) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// Run starts the indefinite connect/reconnect loop. It blocks until ctx is
// cancelled or Close is called; run it in its own goroutine.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ws, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL(c.url, c.namespace), nil)
		if err != nil {
			log.Printf("eventsocket: dial %s%s failed: %v", c.url, c.namespace, err)
			if !sleepOrDone(ctx, reconnectInterval) {
				return
			}
			continue
		}

		cn := newConn(ws)
		c.connMu.Lock()
		c.conn = cn
		c.connMu.Unlock()

		c.mu.RLock()
		hooks := append([]func(*Client){}, c.onConnect...)
		c.mu.RUnlock()
		for _, hook := range hooks {
			hook(c)
		}

		err = cn.readLoop(func(m Message) {
			c.mu.RLock()
			handlers := append([]Handler{}, c.handlers[m.Event]...)
			c.mu.RUnlock()
			peer := &Peer{id: "server", namespace: c.namespace, c: cn}
			for _, fn := range handlers {
				fn(peer, m.Data)
			}
		})
		if err != nil {
			log.Printf("eventsocket: %s%s connection lost: %v", c.url, c.namespace, err)
		}

		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()

		c.mu.RLock()
		discHooks := append([]func(){}, c.onDisconnect...)
		c.mu.RUnlock()
		for _, fn := range discHooks {
			fn()
		}

		if !sleepOrDone(ctx, reconnectInterval) {
			return
		}
	}
}

// Close stops the connect loop and closes any live connection.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.close()
	}
	c.connMu.Unlock()
	if c.done != nil {
		<-c.done
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func dialURL(base, namespace string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket" + namespace
	return u.String()
}

type notConnectedError struct{}

func (notConnectedError) Error() string { return "eventsocket: client not connected" }

var errNotConnected error = notConnectedError{}
