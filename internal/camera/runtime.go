package camera

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is a coarse lifecycle marker for a Runtime's acquisition task.
// Loading -> Ready -> Streaming <-> Paused, Stopped (terminal).
type State string

const (
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateStreaming State = "streaming"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// defaultQueueCapacity bounds the internal drop-oldest queue used when no
// external callback has been installed. The source used an unbounded
// queue here; ARGOS bounds it per the drop-oldest design note.
const defaultQueueCapacity = 64

// Callback receives one Frame Tuple per capture, in capture order.
type Callback func(*FrameTuple)

// Runtime owns the single background acquisition task for one camera: it
// waits on the group's run signal, captures through the Driver, and
// dispatches each tuple through the currently-installed callback.
type Runtime struct {
	driver *Driver
	group  *Group

	callback atomic.Pointer[Callback]

	queueMu     sync.Mutex
	queue       []*FrameTuple
	dropped     atomic.Uint64
	usingQueue  atomic.Bool
	stateMu     sync.Mutex
	state       State
	lastErr     error
	killed      atomic.Bool
	done        chan struct{}
	onceCleanup sync.Once
}

// NewRuntime wraps an already-open Driver with a Group and starts the
// acquisition goroutine. The default callback enqueues into the internal
// bounded queue; installing a network callback via SetStreamCallback
// bypasses it.
func NewRuntime(driver *Driver, group *Group) *Runtime {
	r := &Runtime{
		driver: driver,
		group:  group,
		state:  StateReady,
		done:   make(chan struct{}),
	}
	r.usingQueue.Store(true)
	def := Callback(r.enqueue)
	r.callback.Store(&def)
	go r.loop()
	return r
}

func (r *Runtime) enqueue(f *FrameTuple) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	if len(r.queue) >= defaultQueueCapacity {
		// Drop-oldest under sustained overload.
		r.queue = r.queue[1:]
		r.dropped.Add(1)
	}
	r.queue = append(r.queue, f)
}

// NextFrame pops the oldest queued frame, non-blocking. Only meaningful
// when no external callback has been installed; returns nil, false
// otherwise or when the queue is empty.
func (r *Runtime) NextFrame() (*FrameTuple, bool) {
	if !r.usingQueue.Load() {
		return nil, false
	}
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	if len(r.queue) == 0 {
		return nil, false
	}
	f := r.queue[0]
	r.queue = r.queue[1:]
	return f, true
}

// DroppedFrames returns the count of frames dropped from the internal
// queue due to sustained overload.
func (r *Runtime) DroppedFrames() uint64 { return r.dropped.Load() }

// SetStreamCallback swaps in a new callback, applied starting with the
// next capture. When bypassQueue is true the internal queue is bypassed
// and NextFrame reports no frames.
func (r *Runtime) SetStreamCallback(cb Callback, bypassQueue bool) {
	r.callback.Store(&cb)
	r.usingQueue.Store(!bypassQueue)
}

// ResetToQueueCallback restores the default queueing callback.
func (r *Runtime) ResetToQueueCallback() {
	def := Callback(r.enqueue)
	r.callback.Store(&def)
	r.usingQueue.Store(true)
}

func (r *Runtime) loop() {
	defer close(r.done)
	for {
		if !r.group.IsRunning() && r.State() == StateStreaming {
			r.setState(StatePaused, nil)
		}
		if !r.group.waitForRunOrKill(r.killed.Load) {
			r.setState(StateStopped, nil)
			return
		}
		r.setState(StateStreaming, nil)

		frame, err := r.driver.Capture(context.Background())
		if err != nil {
			r.setState(StateStopped, err)
			return
		}

		cb := *r.callback.Load()
		cb(frame)
	}
}

func (r *Runtime) setState(s State, err error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state == StateStopped {
		return
	}
	r.state = s
	if err != nil {
		r.lastErr = err
	}
}

// Start is equivalent to Group.Start(): it is shared across every
// camera in the runtime's group.
func (r *Runtime) Start() { r.group.Start() }

// Pause is equivalent to Group.Pause().
func (r *Runtime) Pause() { r.group.Pause() }

// Stopped reports whether the acquisition task has ended.
func (r *Runtime) Stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Streaming reports whether the run signal is set and the task is alive.
func (r *Runtime) Streaming() bool {
	return r.group.IsRunning() && !r.Stopped()
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

// LastError returns the error that caused a Stopped transition, if any.
func (r *Runtime) LastError() error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.lastErr
}

// Cleanup stops this camera's own acquisition task (groupmates keep
// running) and releases the driver. Idempotent; waits for any in-flight
// capture to return rather than interrupting it.
func (r *Runtime) Cleanup() {
	r.onceCleanup.Do(func() {
		r.killed.Store(true)
		r.group.Broadcast()
		<-r.done
		r.driver.Cleanup()
	})
}
