package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_SubscribeUnsubscribe(t *testing.T) {
	svc := &Service{name: "test", subs: make(map[string]bool)}

	assert.False(t, svc.subscribed("1_SN001"))

	svc.Subscribe("1", "SN001")
	assert.True(t, svc.subscribed("1_SN001"))

	svc.Unsubscribe("1", "SN001")
	assert.False(t, svc.subscribed("1_SN001"))
}

func TestBridge_HandleUpdateEventsList_TracksKnownCameras(t *testing.T) {
	b := New("ws://127.0.0.1:0", "http://127.0.0.1:0")

	payload, err := json.Marshal(updateEventsListPayload{NodeID: 1, Cameras: []string{"SN001", "SN002"}})
	require.NoError(t, err)

	b.handleUpdateEventsList(payload)

	b.mu.Lock()
	known := append([]string{}, b.known[1]...)
	bound := make(map[string]bool, len(b.bound))
	for k, v := range b.bound {
		bound[k] = v
	}
	b.mu.Unlock()

	assert.Equal(t, []string{"SN001", "SN002"}, known)
	assert.True(t, bound["1_SN001"])
	assert.True(t, bound["1_SN002"])
}

func TestBridge_HandleUpdateEventsList_DropsStaleCameraKeys(t *testing.T) {
	b := New("ws://127.0.0.1:0", "http://127.0.0.1:0")

	first, err := json.Marshal(updateEventsListPayload{NodeID: 1, Cameras: []string{"SN001", "SN002"}})
	require.NoError(t, err)
	b.handleUpdateEventsList(first)

	second, err := json.Marshal(updateEventsListPayload{NodeID: 1, Cameras: []string{"SN002"}})
	require.NoError(t, err)
	b.handleUpdateEventsList(second)

	b.mu.Lock()
	bound := make(map[string]bool, len(b.bound))
	for k, v := range b.bound {
		bound[k] = v
	}
	b.mu.Unlock()

	assert.False(t, bound["1_SN001"])
	assert.True(t, bound["1_SN002"])
}

func TestBridge_HandleUpdateEventsList_MalformedPayloadIsIgnored(t *testing.T) {
	b := New("ws://127.0.0.1:0", "http://127.0.0.1:0")

	b.handleUpdateEventsList([]byte("not json"))

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Empty(t, b.known)
	assert.Empty(t, b.bound)
}

func TestBridge_DispatchOnlyReachesSubscribedServices(t *testing.T) {
	b := New("ws://127.0.0.1:0", "http://127.0.0.1:0")

	subscribed := b.RegisterService("subscribed")
	subscribed.Subscribe("1", "SN001")
	unsubscribed := b.RegisterService("unsubscribed")

	// dispatch fans out via localHub.Broadcast, which is a safe no-op with
	// zero connected peers; what matters here is the subscription gate.
	b.dispatch("1_SN001", []byte("frame"))

	assert.True(t, subscribed.subscribed("1_SN001"))
	assert.False(t, unsubscribed.subscribed("1_SN001"))
}

func TestBridge_RegisterServiceIsIdempotent(t *testing.T) {
	b := New("ws://127.0.0.1:0", "http://127.0.0.1:0")

	a := b.RegisterService("dup")
	bAgain := b.RegisterService("dup")

	assert.Same(t, a, bAgain)
}
