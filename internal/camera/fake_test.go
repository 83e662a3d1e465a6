package camera

import (
	"context"
	"sync"
)

// fakeDevice is a minimal in-memory Device used across the package's tests.
// WaitForFrames returns immediately with a zero-length slot per enabled
// kind, so tests never block on real hardware timing.
type fakeDevice struct {
	mu       sync.Mutex
	enabled  []StreamConfig
	started  bool
	stopped  bool
	waitErr  error
	alignCnt int
	waitCnt  int
}

func (d *fakeDevice) EnableStream(cfg StreamConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = append(d.enabled, cfg)
	return nil
}

func (d *fakeDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

func (d *fakeDevice) WaitForFrames(ctx context.Context) (map[Kind][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitCnt++
	if d.waitErr != nil {
		return nil, d.waitErr
	}
	slots := make(map[Kind][]byte, len(d.enabled))
	for _, c := range d.enabled {
		slots[c.Kind] = []byte{0}
	}
	return slots, nil
}

func (d *fakeDevice) Align(frame map[Kind][]byte, target Kind) map[Kind][]byte {
	d.mu.Lock()
	d.alignCnt++
	d.mu.Unlock()
	return frame
}

func (d *fakeDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
}

// fakeBackend serves a fixed set of serials and hands out fakeDevices (or a
// caller-supplied Device, for error-injection tests).
type fakeBackend struct {
	mu      sync.Mutex
	serials []string
	devices map[string]Device
	openErr error
}

func newFakeBackend(serials ...string) *fakeBackend {
	return &fakeBackend{serials: serials, devices: make(map[string]Device)}
}

func (b *fakeBackend) ConnectedSerials() ([]string, error) {
	return b.serials, nil
}

func (b *fakeBackend) Open(serial string) (Device, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if dev, ok := b.devices[serial]; ok {
		return dev, nil
	}
	dev := &fakeDevice{}
	b.devices[serial] = dev
	return dev, nil
}

func singleColorStream() []StreamConfig {
	return []StreamConfig{
		{Kind: KindColor, Format: FormatRGB8, Resolution: Resolution{Width: 640, Height: 480}, FPS: 30},
	}
}
