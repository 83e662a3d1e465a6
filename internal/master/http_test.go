package master

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunomcebola/argos/internal/dataset"
	"github.com/brunomcebola/argos/internal/eventsocket"
)

func newTestServer(t *testing.T) (*Server, *Registry) {
	t.Helper()

	registry, err := NewRegistry(filepath.Join(t.TempDir(), "nodes.yaml"))
	require.NoError(t, err)

	datasets, err := dataset.NewRegistry(t.TempDir())
	require.NoError(t, err)

	recorder := dataset.NewRecorder()
	hub := eventsocket.NewHub()
	fleet := NewFleet(registry, hub, nil, recorder)

	return NewServer(registry, fleet, datasets, t.TempDir(), nil), registry
}

func multipartNodeBody(t *testing.T, name, address string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("name", name))
	require.NoError(t, w.WriteField("address", address))
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHandleCreateNode_HappyPath(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartNodeBody(t, "front-door", "127.0.0.1:9001")
	req := httptest.NewRequest(http.MethodPost, "/nodes", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var rec Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "front-door", rec.Name)
	assert.Equal(t, 1, rec.ID)
}

func TestHandleCreateNode_DuplicateNameRejected(t *testing.T) {
	srv, registry := newTestServer(t)
	_, err := registry.Create(Record{Name: "dup", Address: "127.0.0.1:9001"})
	require.NoError(t, err)

	body, contentType := multipartNodeBody(t, "dup", "127.0.0.1:9002")
	req := httptest.NewRequest(http.MethodPost, "/nodes", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleListNodes(t *testing.T) {
	srv, registry := newTestServer(t)
	_, err := registry.Create(Record{Name: "a", Address: "127.0.0.1:9001"})
	require.NoError(t, err)
	_, err = registry.Create(Record{Name: "b", Address: "127.0.0.1:9002"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var recs []Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	assert.Len(t, recs, 2)
}

func TestHandleDeleteNode(t *testing.T) {
	srv, registry := newTestServer(t)
	rec, err := registry.Create(Record{Name: "gone", Address: "127.0.0.1:9001"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, filepath.Join("/nodes", strconv.Itoa(rec.ID)), nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	_, ok := registry.Get(rec.ID)
	assert.False(t, ok)
}

func TestHandleToggleRecording_StartAndStop(t *testing.T) {
	srv, registry := newTestServer(t)
	rec, err := registry.Create(Record{Name: "cam-node", Address: "127.0.0.1:9001"})
	require.NoError(t, err)
	_, err = srv.datasets.Create("sess")
	require.NoError(t, err)

	startBody, _ := json.Marshal(map[string]any{"dataset": "sess", "start": true})
	req := httptest.NewRequest(http.MethodPost,
		"/nodes/"+strconv.Itoa(rec.ID)+"/cameras/SN001/record", bytes.NewReader(startBody))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, srv.fleet.recorder.Active(strconv.Itoa(rec.ID), "SN001"))

	stopBody, _ := json.Marshal(map[string]any{"start": false})
	req2 := httptest.NewRequest(http.MethodPost,
		"/nodes/"+strconv.Itoa(rec.ID)+"/cameras/SN001/record", bytes.NewReader(stopBody))
	rr2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr2, req2)
	require.Equal(t, http.StatusOK, rr2.Code)
	assert.False(t, srv.fleet.recorder.Active(strconv.Itoa(rec.ID), "SN001"))
}

func TestHandleToggleRecording_UnknownDatasetRejected(t *testing.T) {
	srv, registry := newTestServer(t)
	rec, err := registry.Create(Record{Name: "cam-node", Address: "127.0.0.1:9001"})
	require.NoError(t, err)

	startBody, _ := json.Marshal(map[string]any{"dataset": "missing", "start": true})
	req := httptest.NewRequest(http.MethodPost,
		"/nodes/"+strconv.Itoa(rec.ID)+"/cameras/SN001/record", bytes.NewReader(startBody))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProxyHandler_ForwardsToNodeAddress(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cameras", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`["SN001"]`))
	}))
	defer upstream.Close()

	address := upstream.Listener.Addr().String()

	srv, registry := newTestServer(t)
	rec, err := registry.Create(Record{Name: "proxied", Address: address})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/nodes/"+strconv.Itoa(rec.ID)+"/cameras", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `["SN001"]`, rr.Body.String())
}

func TestHandleEmitUpdateEventsList_BroadcastsPerNode(t *testing.T) {
	srv, registry := newTestServer(t)
	rec, err := registry.Create(Record{Name: "a", Address: "127.0.0.1:9001"})
	require.NoError(t, err)

	hubSrv := httptest.NewServer(srv.fleet.hub.ServeNamespace("/analytics"))
	defer hubSrv.Close()

	received := make(chan []byte, 1)
	client := eventsocket.NewClient(hubSrv.URL, "/analytics")
	client.On("update_events_list", func(_ *eventsocket.Peer, data []byte) {
		select {
		case received <- data:
		default:
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	require.Eventually(t, func() bool { return srv.fleet.hub.PeerCount("/analytics") == 1 }, time.Second, 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/nodes/emit_update_events_list_events", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	select {
	case data := <-received:
		var payload struct {
			NodeID int `json:"node_id"`
		}
		require.NoError(t, json.Unmarshal(data, &payload))
		assert.Equal(t, rec.ID, payload.NodeID)
	case <-time.After(time.Second):
		t.Fatal("no update_events_list broadcast reached /analytics")
	}
}
