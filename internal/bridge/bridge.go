// Package bridge implements the Event Bridge (Analytics): the secondary
// process that ingests the master's /analytics namespace and dispatches
// per-subdomain subscribers, per §4.9.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brunomcebola/argos/internal/eventsocket"
)

// connectTimeout bounds the POST this bridge issues on every (re)connect
// to ask the master to re-emit update_events_list for every node.
const connectTimeout = 5 * time.Second

// updateEventsListPayload is what the master broadcasts on /analytics in
// response to emit_update_events_list_events: one message per node, naming
// the cameras it currently advertises.
type updateEventsListPayload struct {
	NodeID  int      `json:"node_id"`
	Cameras []string `json:"cameras"`
}

// Bridge owns the outbound session to the master's /analytics namespace
// and a local Hub exposing one sub-namespace per analytics service. Local
// subscribers connect to a sub-namespace and receive only the (node,
// camera) payloads they subscribed to.
type Bridge struct {
	client     *eventsocket.Client
	masterHTTP string
	localHub   *eventsocket.Hub

	mu       sync.Mutex
	known    map[int][]string    // node_id -> camera serials, from update_events_list
	bound    map[string]bool     // "<node>_<camera>" keys the client currently handles
	services map[string]*Service // service name -> subscription state
}

// New builds a Bridge dialing masterWS (e.g. "ws://master-host:8080") and
// issuing its reconnect-sync POST against masterHTTP (e.g.
// "http://master-host:8080").
func New(masterWS, masterHTTP string) *Bridge {
	b := &Bridge{
		client:     eventsocket.NewClient(masterWS, "/analytics"),
		masterHTTP: masterHTTP,
		localHub:   eventsocket.NewHub(),
		known:      make(map[int][]string),
		bound:      make(map[string]bool),
		services:   make(map[string]*Service),
	}

	b.client.OnConnect(func(c *eventsocket.Client) {
		b.onConnect(c)
	})
	return b
}

// Run starts the indefinite connect loop. It blocks until ctx is
// cancelled; run it in its own goroutine.
func (b *Bridge) Run(ctx context.Context) {
	b.client.Run(ctx)
}

// onConnect re-requests a full update_events_list emission (the source of
// truth for every node's camera set) and re-subscribes to
// "update_events_list" itself. The master replays it per node on every
// request, so a freshly (re)started bridge never has to guess the camera
// set left over from before an outage.
func (b *Bridge) onConnect(c *eventsocket.Client) {
	c.ClearHandlers()
	c.On("update_events_list", func(peer *eventsocket.Peer, data []byte) {
		b.handleUpdateEventsList(data)
	})

	go func() {
		httpClient := http.Client{Timeout: connectTimeout}
		url := strings.TrimRight(b.masterHTTP, "/") + "/nodes/emit_update_events_list_events"
		resp, err := httpClient.Post(url, "application/json", nil)
		if err != nil {
			log.Printf("bridge: emit_update_events_list_events request failed: %v", err)
			return
		}
		resp.Body.Close()
	}()
}

// handleUpdateEventsList rebuilds the frame-event handler set bound to the
// master connection: every node's current camera list is recorded, then
// the bridge re-derives the full "<node>_<camera>" key set and registers a
// handler for exactly that set, dropping ones whose camera no longer
// appears (§4.9, §8 invariant 5's reconnect analogue on the bridge side).
func (b *Bridge) handleUpdateEventsList(data []byte) {
	var payload updateEventsListPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("bridge: malformed update_events_list payload: %v", err)
		return
	}

	b.mu.Lock()
	b.known[payload.NodeID] = payload.Cameras
	desired := make(map[string]bool)
	for nodeID, cameras := range b.known {
		for _, sn := range cameras {
			desired[fmt.Sprintf("%d_%s", nodeID, sn)] = true
		}
	}
	b.mu.Unlock()

	b.client.ClearHandlers()
	b.client.On("update_events_list", func(peer *eventsocket.Peer, d []byte) {
		b.handleUpdateEventsList(d)
	})

	keys := make([]string, 0, len(desired))
	for k := range desired {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		k := key
		b.client.On(k, func(peer *eventsocket.Peer, d []byte) {
			b.dispatch(k, d)
		})
	}

	b.mu.Lock()
	b.bound = desired
	b.mu.Unlock()
}

// dispatch fans a frame payload for event "<node>_<camera>" out to every
// registered service that subscribed to that key.
func (b *Bridge) dispatch(event string, data []byte) {
	b.mu.Lock()
	services := make([]*Service, 0, len(b.services))
	for _, svc := range b.services {
		services = append(services, svc)
	}
	b.mu.Unlock()

	for _, svc := range services {
		if svc.subscribed(event) {
			b.localHub.Broadcast("/"+svc.name, event, data)
		}
	}
}

// Service is one analytics subdomain's subscription state, living under
// its own sub-namespace of the bridge's local Hub.
type Service struct {
	name string

	mu   sync.RWMutex
	subs map[string]bool
}

// RegisterService creates (or returns the existing) Service named name,
// backed by the sub-namespace "/"+name on the bridge's local Hub.
func (b *Bridge) RegisterService(name string) *Service {
	b.mu.Lock()
	defer b.mu.Unlock()
	if svc, ok := b.services[name]; ok {
		return svc
	}
	svc := &Service{name: name, subs: make(map[string]bool)}
	b.services[name] = svc
	return svc
}

// Subscribe records interest in frames from (nodeID, cameraSN).
func (s *Service) Subscribe(nodeID, cameraSN string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[nodeID+"_"+cameraSN] = true
}

// Unsubscribe drops interest in (nodeID, cameraSN).
func (s *Service) Unsubscribe(nodeID, cameraSN string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, nodeID+"_"+cameraSN)
}

func (s *Service) subscribed(event string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs[event]
}

// ServeNamespace exposes a Service's sub-namespace over HTTP for local
// subscriber processes to connect to, mirroring how the master exposes
// /gui and /analytics.
func (b *Bridge) ServeNamespace(name string) http.HandlerFunc {
	return b.localHub.ServeNamespace("/" + name)
}
