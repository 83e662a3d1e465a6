package master

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/brunomcebola/argos/internal/codec"
	"github.com/brunomcebola/argos/internal/dataset"
	"github.com/brunomcebola/argos/internal/eventsocket"
)

// httpTimeout bounds the /cameras query issued right after connect.
const httpTimeout = 5 * time.Second

// nodeSession is the live connection state for one registered node: its
// event-socket client, the camera set it last advertised, and the handler
// registrations bound to that set.
type nodeSession struct {
	mu      sync.RWMutex
	record  Record
	client  *eventsocket.Client
	cameras []string
}

func (s *nodeSession) Cameras() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.cameras))
	copy(out, s.cameras)
	return out
}

// Fleet owns every node's outbound session, the fan-out to /gui and
// /analytics, and (optionally) an analytics NATS egress.
type Fleet struct {
	registry *Registry
	hub      *eventsocket.Hub
	egress   AnalyticsEgress
	recorder *dataset.Recorder
	dedup    *frameDedup

	mu       sync.Mutex
	sessions map[int]*nodeSession

	onReconnect func(nodeID int)
	onFanout    func(namespace string)
}

// AnalyticsEgress re-publishes an analytics-bound frame to an
// out-of-process subscriber, e.g. over NATS. A nil egress is a no-op.
type AnalyticsEgress interface {
	Publish(subject string, data []byte) error
}

// NewFleet wires a Fleet to its registry, the hub serving /gui and
// /analytics to local consumers, and the recorder that persists frames for
// any camera currently under an active recording session.
func NewFleet(registry *Registry, hub *eventsocket.Hub, egress AnalyticsEgress, recorder *dataset.Recorder) *Fleet {
	return &Fleet{
		registry: registry,
		hub:      hub,
		egress:   egress,
		recorder: recorder,
		dedup:    newFrameDedup(),
		sessions: make(map[int]*nodeSession),
	}
}

// SetReconnectHook installs a callback fired every time a node session
// completes a (re)connect, for the metrics collector to count it.
func (f *Fleet) SetReconnectHook(fn func(nodeID int)) { f.onReconnect = fn }

// SetFanoutHook installs a callback fired once per fan-out emission, for
// the metrics collector to count events per namespace.
func (f *Fleet) SetFanoutHook(fn func(namespace string)) { f.onFanout = fn }

// Start spawns a connect_node task for every node currently in the
// registry. Call once at boot; new nodes created afterward are started via
// StartNode.
func (f *Fleet) Start(ctx context.Context) {
	for _, rec := range f.registry.List() {
		f.StartNode(ctx, rec)
	}
}

// StartNode spawns the outbound session for one node record. Reconnection
// is handled indefinitely by the underlying eventsocket.Client.
func (f *Fleet) StartNode(ctx context.Context, rec Record) {
	client := eventsocket.NewClient("http://"+rec.Address, "/")
	session := &nodeSession{record: rec, client: client}

	f.mu.Lock()
	f.sessions[rec.ID] = session
	f.mu.Unlock()

	client.OnConnect(func(c *eventsocket.Client) {
		f.bindSession(rec, session, c)
		if f.onReconnect != nil {
			f.onReconnect(rec.ID)
		}
	})
	client.OnDisconnect(func() {
		session.mu.Lock()
		cameras := session.cameras
		session.cameras = nil
		session.mu.Unlock()

		nodeKey := fmt.Sprintf("%d", rec.ID)
		for _, sn := range cameras {
			f.recorder.Stop(nodeKey, sn)
		}
	})

	go client.Run(ctx)
}

// bindSession queries /cameras on the freshly (re)connected node and
// re-registers one handler per camera event, dropping any stale ones the
// camera set no longer contains.
func (f *Fleet) bindSession(rec Record, session *nodeSession, c *eventsocket.Client) {
	cameras, err := queryCameras(rec.Address)
	if err != nil {
		log.Printf("master: query /cameras on node %d (%s) failed: %v", rec.ID, rec.Address, err)
		cameras = nil
	}

	c.ClearHandlers()
	for _, camSN := range cameras {
		sn := camSN
		c.On(sn, func(peer *eventsocket.Peer, data []byte) {
			f.handleFrame(rec, sn, data)
		})
	}

	session.mu.Lock()
	session.cameras = cameras
	session.mu.Unlock()
}

func queryCameras(address string) ([]string, error) {
	client := http.Client{Timeout: httpTimeout}
	resp, err := client.Get(fmt.Sprintf("http://%s/cameras", address))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var cameras []string
	if err := json.NewDecoder(resp.Body).Decode(&cameras); err != nil {
		return nil, err
	}
	return cameras, nil
}

// handleFrame implements Frame Fan-out: re-emit the payload on /gui and
// /analytics under the event name "<node_id>_<camera_sn>", egress to NATS
// if configured, and enqueue into an active recording session.
func (f *Fleet) handleFrame(rec Record, cameraSN string, data []byte) {
	if f.dedup.isDuplicate(rec.ID, cameraSN, data) {
		return
	}

	event := codec.EventName(fmt.Sprintf("%d", rec.ID), cameraSN)

	f.hub.Broadcast("/gui", event, data)
	if f.onFanout != nil {
		f.onFanout("/gui")
	}

	f.hub.Broadcast("/analytics", event, data)
	if f.onFanout != nil {
		f.onFanout("/analytics")
	}

	if f.egress != nil {
		subject := fmt.Sprintf("argos.analytics.%d.%s", rec.ID, cameraSN)
		if err := f.egress.Publish(subject, data); err != nil {
			log.Printf("master: analytics egress publish failed: %v", err)
		}
	}

	f.recorder.Enqueue(fmt.Sprintf("%d", rec.ID), cameraSN, data)
}

// Session returns the camera set a node last advertised and whether the
// node has a session at all. The set is empty while the node is
// disconnected; ok is false for a node that was never started.
func (f *Fleet) Session(nodeID int) ([]string, bool) {
	f.mu.Lock()
	session, ok := f.sessions[nodeID]
	f.mu.Unlock()
	if !ok {
		return nil, false
	}
	return session.Cameras(), true
}
