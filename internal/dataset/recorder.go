package dataset

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/brunomcebola/argos/internal/codec"
)

// recorderQueueCapacity bounds each session's queue; under sustained
// overload the oldest unwritten payload is dropped rather than growing the
// queue without bound.
const recorderQueueCapacity = 256

type sessionKey struct {
	nodeID   string
	cameraSN string
}

type recordingSession struct {
	dataset *Dataset

	mu      sync.Mutex
	queue   [][]byte
	dropped uint64

	stopped atomic.Bool
	notify  chan struct{}
	done    chan struct{}
}

// Recorder runs one worker per active recording session: it drains the
// session's queue, decodes each payload into a Frame Tuple, and writes one
// .npy file per non-absent slot into the dataset's raw directory.
type Recorder struct {
	mu       sync.Mutex
	sessions map[sessionKey]*recordingSession

	onWrite func(nodeID, cameraSN string)
	onDrop  func(nodeID, cameraSN string)
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{sessions: make(map[sessionKey]*recordingSession)}
}

// SetMetricsHooks installs callbacks for the metrics collector: onWrite
// fires once per file written, onDrop once per dropped payload.
func (r *Recorder) SetMetricsHooks(onWrite, onDrop func(nodeID, cameraSN string)) {
	r.onWrite = onWrite
	r.onDrop = onDrop
}

// Start begins a recording session for (nodeID, cameraSN) into ds,
// incrementing its active-writer count. A no-op if a session already
// exists for that key.
func (r *Recorder) Start(nodeID, cameraSN string, ds *Dataset) error {
	key := sessionKey{nodeID, cameraSN}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[key]; exists {
		return nil
	}

	atomic.AddInt32(&ds.activeWriters, 1)
	session := &recordingSession{
		dataset: ds,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	r.sessions[key] = session

	go r.worker(key, session)
	return nil
}

// Stop signals the session for (nodeID, cameraSN) to wind down once its
// queue drains. The active-writer count is decremented exactly once, by
// the worker, on actual exit.
func (r *Recorder) Stop(nodeID, cameraSN string) {
	key := sessionKey{nodeID, cameraSN}

	r.mu.Lock()
	session, exists := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if !exists {
		return
	}
	session.stopped.Store(true)
	select {
	case session.notify <- struct{}{}:
	default:
	}
}

// Active reports whether a recording session currently exists for
// (nodeID, cameraSN).
func (r *Recorder) Active(nodeID, cameraSN string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionKey{nodeID, cameraSN}]
	return ok
}

// Enqueue pushes a raw frame payload onto (nodeID, cameraSN)'s queue if a
// session is active. Drop-oldest under sustained overload.
func (r *Recorder) Enqueue(nodeID, cameraSN string, payload []byte) {
	r.mu.Lock()
	session, ok := r.sessions[sessionKey{nodeID, cameraSN}]
	r.mu.Unlock()
	if !ok {
		return
	}

	session.mu.Lock()
	if len(session.queue) >= recorderQueueCapacity {
		session.queue = session.queue[1:]
		session.dropped++
		if r.onDrop != nil {
			r.onDrop(nodeID, cameraSN)
		}
	}
	session.queue = append(session.queue, payload)
	session.mu.Unlock()

	select {
	case session.notify <- struct{}{}:
	default:
	}
}

func (r *Recorder) worker(key sessionKey, session *recordingSession) {
	defer close(session.done)
	defer atomic.AddInt32(&session.dataset.activeWriters, -1)

	for {
		payload, ok := session.pop()
		if ok {
			if err := r.writeFrame(key, session.dataset, payload); err != nil {
				log.Printf("dataset: recorder %s/%s write failed: %v", key.nodeID, key.cameraSN, err)
				continue
			}
			if r.onWrite != nil {
				r.onWrite(key.nodeID, key.cameraSN)
			}
			continue
		}
		if session.stopped.Load() {
			return
		}
		<-session.notify
	}
}

func (s *recordingSession) pop() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	payload := s.queue[0]
	s.queue = s.queue[1:]
	return payload, true
}

func (r *Recorder) writeFrame(key sessionKey, ds *Dataset, payload []byte) error {
	env, err := codec.Decode(payload)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	ts := timestampToken(env.Timestamp.UnixNano())
	for kind, data := range env.Slots {
		if len(data) == 0 {
			continue
		}
		name := fmt.Sprintf("%s_%s_%s_%s.npy", key.nodeID, key.cameraSN, ts, kind)
		path := filepath.Join(ds.rawDir(), name)
		shape := npyShapeForSlot(kind, env.Resolutions[kind], len(data))
		if err := writeNPY(path, npyDtypeForSlot(kind), shape, data); err != nil {
			return err
		}
	}
	return nil
}

// timestampToken renders a wall-clock timestamp with sub-millisecond
// precision, replacing '.' with '_' so it is safe inside a filename.
func timestampToken(nanos int64) string {
	seconds := float64(nanos) / 1e9
	s := strconv.FormatFloat(seconds, 'f', 6, 64)
	return strings.ReplaceAll(s, ".", "_")
}
