package node

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce absorbs the burst of Write events most editors/tools generate
// for a single logical save.
const debounce = 100 * time.Millisecond

// pollInterval is the fallback cadence when fsnotify itself fails to
// start (unsupported filesystem, inotify instance limit, ...).
const pollInterval = 60 * time.Second

// WatchConfig watches <camerasDir>/*.yaml for external edits and relaunches
// the affected camera through the same path as PUT /cameras/{sn}/config.
// Falls back to polling mtimes when fsnotify can't be started.
func (m *Manager) WatchConfig(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.logf("config watcher: fsnotify unavailable (%v), falling back to polling", err)
		go m.pollLoop(ctx)
		return
	}
	if err := watcher.Add(m.camerasDir); err != nil {
		m.logf("config watcher: failed to watch %s (%v), falling back to polling", m.camerasDir, err)
		watcher.Close()
		go m.pollLoop(ctx)
		return
	}

	go func() {
		defer watcher.Close()
		pending := make(map[string]*time.Timer)
		relaunch := make(chan string, 16)

		for {
			select {
			case <-ctx.Done():
				return
			case serial := <-relaunch:
				if err := m.Launch(serial); err != nil {
					m.logf("config watcher: relaunch of %s failed: %v", serial, err)
				}
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				serial, isCameraFile := serialFromPath(event.Name)
				if !isCameraFile {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if t, exists := pending[serial]; exists {
					t.Stop()
				}
				s := serial
				pending[s] = time.AfterFunc(debounce, func() { relaunch <- s })
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logf("config watcher: error: %v", err)
			}
		}
	}()
}

func (m *Manager) pollLoop(ctx context.Context) {
	mtimes := make(map[string]time.Time)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries, err := os.ReadDir(m.camerasDir)
			if err != nil {
				m.logf("config watcher: poll readdir failed: %v", err)
				continue
			}
			for _, e := range entries {
				serial, isCameraFile := serialFromPath(e.Name())
				if !isCameraFile {
					continue
				}
				info, err := e.Info()
				if err != nil {
					continue
				}
				prev, seen := mtimes[serial]
				if seen && !info.ModTime().After(prev) {
					continue
				}
				mtimes[serial] = info.ModTime()
				if seen {
					if err := m.Launch(serial); err != nil {
						m.logf("config watcher: poll relaunch of %s failed: %v", serial, err)
					}
				}
			}
		}
	}
}

// serialFromPath extracts the camera serial from a cameras-dir entry name,
// skipping groups.yaml and anything that isn't a <serial>.yaml file.
func serialFromPath(name string) (serial string, ok bool) {
	base := filepath.Base(name)
	if base == "groups.yaml" {
		return "", false
	}
	if !strings.HasSuffix(base, ".yaml") {
		return "", false
	}
	return strings.TrimSuffix(base, ".yaml"), true
}
