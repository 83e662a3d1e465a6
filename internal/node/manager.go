// Package node implements the Node Service: it loads the local camera
// fleet from YAML, launches one Camera Runtime per serial grouped per
// groups.yaml, and serves both the HTTP control surface and the
// event-socket frame transport described in the wire protocol.
package node

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/brunomcebola/argos/internal/camera"
	"github.com/brunomcebola/argos/internal/codec"
	"github.com/brunomcebola/argos/internal/eventsocket"
)

// cameraEntry is everything the Manager tracks for one declared serial,
// whether or not it is currently open. A camera that failed to launch has
// runtime == nil but remains listed.
type cameraEntry struct {
	serial    string
	groupName string
	config    CameraFile
	runtime   *camera.Runtime
	lastErr   error
}

// Manager owns every camera this node declares, the groups they belong to,
// and the hub that relays frame events to whatever master session is
// connected.
type Manager struct {
	id        string
	baseDir   string
	camerasDir string

	mu       sync.RWMutex
	entries  map[string]*cameraEntry
	groups   map[string]*camera.Group

	hub  *eventsocket.Hub
	logs *logRing

	onDrop func(serial string) // metrics hook, optional
}

// NewManager constructs an empty Manager. Call Boot to load configs and
// launch cameras.
func NewManager(nodeID, baseDir, camerasDir string, hub *eventsocket.Hub) *Manager {
	return &Manager{
		id:         nodeID,
		baseDir:    baseDir,
		camerasDir: camerasDir,
		entries:    make(map[string]*cameraEntry),
		groups:     make(map[string]*camera.Group),
		hub:        hub,
		logs:       newLogRing(2000),
	}
}

// SetDropHook stores fn as the Manager's frame-drop hook. Nothing in the
// Manager invokes it: cameras launched here stream through the network
// callback, which bypasses the runtime's bounded queue.
func (m *Manager) SetDropHook(fn func(serial string)) {
	m.onDrop = fn
}

func (m *Manager) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	log.Print(line)
	m.logs.Append(line)
}

// Boot reads groups.yaml and, for every declared serial, its per-camera
// config, then launches each camera. A camera that fails to open is
// logged and stays listed with no runtime; the node still starts.
func (m *Manager) Boot() error {
	groupsPath, err := groupsFilePath(m.camerasDir)
	if err != nil {
		return err
	}
	groups, err := LoadGroups(groupsPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for name, serials := range groups {
		g := camera.NewGroup()
		m.groups[name] = g
		for _, serial := range serials {
			m.entries[serial] = &cameraEntry{serial: serial, groupName: name}
		}
	}
	m.mu.Unlock()

	m.mu.RLock()
	serials := make([]string, 0, len(m.entries))
	for s := range m.entries {
		serials = append(serials, s)
	}
	m.mu.RUnlock()

	for _, serial := range serials {
		if err := m.Launch(serial); err != nil {
			m.logf("camera %s failed to launch: %v", serial, err)
		}
	}
	return nil
}

// Launch (re)loads a camera's persisted config and opens it, tearing down
// any previous runtime for the same serial first.
func (m *Manager) Launch(serial string) error {
	m.mu.Lock()
	entry, ok := m.entries[serial]
	if !ok {
		entry = &cameraEntry{serial: serial, groupName: serial}
		m.entries[serial] = entry
	}
	group, ok := m.groups[entry.groupName]
	if !ok {
		group = camera.NewGroup()
		m.groups[entry.groupName] = group
	}
	m.mu.Unlock()

	cf, err := LoadCameraFile(m.camerasDir, serial)
	if err != nil {
		m.mu.Lock()
		entry.lastErr = err
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	old := entry.runtime
	m.mu.Unlock()
	if old != nil {
		old.Cleanup()
	}

	driver, err := camera.Open(serial, cf.StreamConfigs, cf.Alignment)
	if err != nil {
		m.mu.Lock()
		entry.lastErr = err
		entry.runtime = nil
		m.mu.Unlock()
		return err
	}

	resolutions := make(map[camera.Kind]camera.Resolution, len(cf.StreamConfigs))
	for _, sc := range cf.StreamConfigs {
		resolutions[sc.Kind] = sc.Resolution
	}

	runtime := camera.NewRuntime(driver, group)
	runtime.SetStreamCallback(m.networkCallback(serial, resolutions), true)

	m.mu.Lock()
	entry.config = cf
	entry.runtime = runtime
	entry.lastErr = nil
	m.mu.Unlock()

	m.logf("camera %s launched (group %s)", serial, entry.groupName)
	return nil
}

// networkCallback serialises each tuple with the binary codec and emits it
// as an event named exactly the camera's serial, per the wire protocol. If
// no consumer is connected the event-socket transport itself drops it.
func (m *Manager) networkCallback(serial string, resolutions map[camera.Kind]camera.Resolution) camera.Callback {
	return func(f *camera.FrameTuple) {
		env := codec.FromFrameTuple(m.id, serial, f, resolutions)
		data, err := codec.Encode(env)
		if err != nil {
			m.logf("camera %s: encode failed: %v", serial, err)
			return
		}
		m.hub.Broadcast("/", serial, data)
	}
}

// Cameras lists every declared serial, including ones that failed to
// launch.
func (m *Manager) Cameras() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for s := range m.entries {
		out = append(out, s)
	}
	return out
}

// Status reports whether serial is known and, if so, whether it is
// currently operational (runtime alive, not Stopped).
func (m *Manager) Status(serial string) (known, operational bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[serial]
	if !ok {
		return false, false
	}
	if entry.runtime == nil {
		return true, false
	}
	return true, !entry.runtime.Stopped()
}

// Stream toggles a camera's group run signal on or off via that camera's
// runtime.
func (m *Manager) Stream(serial string, start bool) error {
	m.mu.RLock()
	entry, ok := m.entries[serial]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("node: unknown camera %q", serial)
	}
	if entry.runtime == nil {
		return fmt.Errorf("node: camera %q is not operational", serial)
	}
	if start {
		entry.runtime.Start()
	} else {
		entry.runtime.Pause()
	}
	return nil
}

// UpdateConfig persists a new CameraFile for serial and relaunches it.
func (m *Manager) UpdateConfig(serial string, cf CameraFile) error {
	if err := camera.ValidateStreamConfigs(cf.StreamConfigs); err != nil {
		return err
	}
	if err := camera.ValidateAlignment(cf.Alignment, cf.StreamConfigs); err != nil {
		return err
	}
	if err := SaveCameraFile(m.camerasDir, serial, cf); err != nil {
		return err
	}
	return m.Launch(serial)
}

// Logs tails the in-memory log ring.
func (m *Manager) Logs(startLine, nbLines int) []string {
	return m.logs.Tail(startLine, nbLines)
}

// DroppedFrames reports the current drop count for serial, or 0 if
// unknown/not launched.
func (m *Manager) DroppedFrames(serial string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[serial]
	if !ok || entry.runtime == nil {
		return 0
	}
	return entry.runtime.DroppedFrames()
}

// Shutdown cleans up every running camera. Safe to call once at process
// exit.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	runtimes := make([]*camera.Runtime, 0, len(m.entries))
	for _, e := range m.entries {
		if e.runtime != nil {
			runtimes = append(runtimes, e.runtime)
		}
	}
	m.mu.RUnlock()

	for _, r := range runtimes {
		r.Cleanup()
	}
}

func groupsFilePath(camerasDir string) (string, error) {
	return filepath.Join(camerasDir, "groups.yaml"), nil
}
