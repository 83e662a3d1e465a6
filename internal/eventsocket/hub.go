package eventsocket

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Handler reacts to one named event arriving from one Peer.
type Handler func(peer *Peer, data []byte)

// DisconnectHandler is invoked once per Peer when its connection drops,
// after it has been removed from the namespace's roster.
type DisconnectHandler func(peer *Peer)

// Peer is one connected client as seen from the Hub side: it can be
// addressed directly (Emit) in addition to whatever namespace broadcasts
// it also receives.
type Peer struct {
	id        string
	namespace string
	c         *conn
}

// Emit sends a named event to this peer only.
func (p *Peer) Emit(event string, data []byte) error {
	return p.c.send(Message{Namespace: p.namespace, Event: event, Data: data})
}

// ID is an opaque per-connection identifier, stable for the connection's
// lifetime.
func (p *Peer) ID() string { return p.id }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// namespace holds the client roster and registered handlers for one
// namespace ("/", "/gui", "/analytics", or a per-analytics-service path).
type namespace struct {
	mu         sync.RWMutex
	peers      map[*Peer]bool
	handlers   map[string][]Handler
	onConnect  []func(*Peer)
	onDisconnect []DisconnectHandler
}

func newNamespace() *namespace {
	return &namespace{
		peers:    make(map[*Peer]bool),
		handlers: make(map[string][]Handler),
	}
}

// Hub is a server-side event-socket endpoint: it upgrades incoming HTTP
// connections into namespaced, named-event peers and dispatches inbound
// events to registered handlers. The node's Hub backs its "/" namespace,
// the master's backs "/gui" and "/analytics", and the analytics bridge's
// backs one namespace per analytics service.
type Hub struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
	nextID     uint64
	idMu       sync.Mutex
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{namespaces: make(map[string]*namespace)}
}

func (h *Hub) ns(name string) *namespace {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.namespaces[name]
	if !ok {
		n = newNamespace()
		h.namespaces[name] = n
	}
	return n
}

// On registers a handler for event within namespace. Multiple handlers for
// the same event all run, in registration order.
func (h *Hub) On(namespace, event string, fn Handler) {
	n := h.ns(namespace)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[event] = append(n.handlers[event], fn)
}

// OnConnect registers a callback invoked once a peer's handshake completes
// within namespace, before its read loop starts dispatching events.
func (h *Hub) OnConnect(namespace string, fn func(*Peer)) {
	n := h.ns(namespace)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onConnect = append(n.onConnect, fn)
}

// OnDisconnect registers a callback invoked once a peer's connection drops.
func (h *Hub) OnDisconnect(namespace string, fn DisconnectHandler) {
	n := h.ns(namespace)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onDisconnect = append(n.onDisconnect, fn)
}

// ServeNamespace upgrades r into a websocket connection scoped to
// namespace. Mount it behind a chi route, one per namespace path.
func (h *Hub) ServeNamespace(namespace string) http.HandlerFunc {
	n := h.ns(namespace)
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("eventsocket: upgrade failed for %s: %v", namespace, err)
			return
		}

		peer := &Peer{id: h.allocID(), namespace: namespace, c: newConn(ws)}

		n.mu.Lock()
		n.peers[peer] = true
		hooks := append([]func(*Peer){}, n.onConnect...)
		n.mu.Unlock()

		for _, hook := range hooks {
			hook(peer)
		}

		err = peer.c.readLoop(func(m Message) {
			n.mu.RLock()
			handlers := append([]Handler{}, n.handlers[m.Event]...)
			n.mu.RUnlock()
			for _, fn := range handlers {
				fn(peer, m.Data)
			}
		})

		n.mu.Lock()
		delete(n.peers, peer)
		disc := append([]DisconnectHandler{}, n.onDisconnect...)
		n.mu.Unlock()

		if err != nil {
			log.Printf("eventsocket: %s peer %s disconnected: %v", namespace, peer.id, err)
		}
		for _, fn := range disc {
			fn(peer)
		}
	}
}

func (h *Hub) allocID() string {
	h.idMu.Lock()
	defer h.idMu.Unlock()
	h.nextID++
	return formatID(h.nextID)
}

func formatID(n uint64) string {
	const digits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 0, 16)
	for n > 0 {
		buf = append([]byte{digits[n%16]}, buf...)
		n /= 16
	}
	return "peer-" + string(buf)
}

// Broadcast sends event to every peer currently connected to namespace.
// Slow or gone peers are skipped rather than blocking the sender; the
// transport does not back-pressure on fan-out.
func (h *Hub) Broadcast(namespace, event string, data []byte) {
	n := h.ns(namespace)
	n.mu.RLock()
	peers := make([]*Peer, 0, len(n.peers))
	for p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.RUnlock()

	for _, p := range peers {
		if err := p.Emit(event, data); err != nil {
			log.Printf("eventsocket: broadcast to %s on %s failed: %v", p.id, namespace, err)
		}
	}
}

// PeerCount reports how many peers are currently connected to namespace.
func (h *Hub) PeerCount(namespace string) int {
	n := h.ns(namespace)
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}
