package camera

import (
	"context"
	"sort"
)

// warmupFrames is the number of composite frames discarded on open while
// auto-exposure settles.
const warmupFrames = 30

// Device is the subset of the underlying depth-sensor SDK a Driver needs.
// A real implementation wraps the vendor SDK (via cgo or a sidecar
// process); DriverBackend.Open resolves a serial to one of these. Tests
// and simulation deployments supply a fake Device.
type Device interface {
	// EnableStream resolves one stream configuration against the empty
	// pipeline config, returning an error if the device cannot satisfy it.
	EnableStream(cfg StreamConfig) error
	// Start begins streaming all enabled configs on one pipeline.
	Start() error
	// WaitForFrames blocks for the next composite frame and splits it
	// into one slot per configured Kind, in kindOrder.
	WaitForFrames(ctx context.Context) (map[Kind][]byte, error)
	// Align warps the non-primary slots of a composite frame to the
	// given alignment kind. A no-op Device may return frame unchanged.
	Align(frame map[Kind][]byte, target Kind) map[Kind][]byte
	// Stop halts the pipeline. Idempotent.
	Stop()
}

// Backend enumerates and opens devices by serial. DriverBackend is the
// package-level var swapped out by tests; production wires it to the
// vendor SDK binding.
type Backend interface {
	ConnectedSerials() ([]string, error)
	Open(serial string) (Device, error)
}

// DriverBackend is the active Backend implementation. It is a package
// variable (rather than a constructor argument threaded through every
// caller) because the underlying SDK binding is process-wide, exactly
// like the source's rs.context() driven device enumeration.
var DriverBackend Backend = noBackend{}

type noBackend struct{}

func (noBackend) ConnectedSerials() ([]string, error) { return nil, nil }
func (noBackend) Open(serial string) (Device, error)  { return nil, ErrCameraUnavailable }

// Driver opens, validates, and drives a single camera by serial.
type Driver struct {
	serial      string
	device      Device
	streams     []StreamConfig
	alignment   *Kind
	orderedKind []Kind
}

// Open validates the camera is enumerated, not already open, and that
// every stream config resolves, then enables all streams, starts the
// pipeline, and warms it up.
func Open(serial string, streams []StreamConfig, alignment *Kind) (*Driver, error) {
	if len(streams) == 0 {
		return nil, newConfigError("at least one stream configuration must be specified")
	}

	seen := map[Kind]bool{}
	for _, s := range streams {
		if seen[s.Kind] {
			return nil, newConfigError("repeated stream type %s", s.Kind)
		}
		seen[s.Kind] = true
	}

	if alignment != nil && !seen[*alignment] {
		return nil, newConfigError("alignment to %s stream is not possible as it is not enabled", *alignment)
	}

	serials, err := DriverBackend.ConnectedSerials()
	if err != nil {
		return nil, err
	}
	found := false
	for _, s := range serials {
		if s == serial {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrCameraUnavailable
	}

	if !openSerials.tryInsert(serial) {
		return nil, ErrAlreadyInstantiated
	}

	device, err := DriverBackend.Open(serial)
	if err != nil {
		openSerials.remove(serial)
		return nil, err
	}

	for _, s := range streams {
		if err := device.EnableStream(s); err != nil {
			device.Stop()
			openSerials.remove(serial)
			return nil, newConfigError("configuration for %s stream is not valid: %v", s.Kind, err)
		}
	}

	if err := device.Start(); err != nil {
		device.Stop()
		openSerials.remove(serial)
		return nil, err
	}

	ctx := context.Background()
	for i := 0; i < warmupFrames; i++ {
		if _, err := device.WaitForFrames(ctx); err != nil {
			device.Stop()
			openSerials.remove(serial)
			return nil, err
		}
	}

	ordered := make([]Kind, 0, len(streams))
	for _, s := range streams {
		ordered = append(ordered, s.Kind)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return kindRank(ordered[i]) < kindRank(ordered[j])
	})

	return &Driver{
		serial:      serial,
		device:      device,
		streams:     streams,
		alignment:   alignment,
		orderedKind: ordered,
	}, nil
}

func kindRank(k Kind) int {
	for i, v := range kindOrder {
		if v == k {
			return i
		}
	}
	return len(kindOrder)
}

// Serial returns the camera's serial number.
func (d *Driver) Serial() string { return d.serial }

// Capture blocks until the next composite frame, applies alignment if
// configured, and returns the resulting Frame Tuple.
func (d *Driver) Capture(ctx context.Context) (*FrameTuple, error) {
	slots, err := d.device.WaitForFrames(ctx)
	if err != nil {
		return nil, err
	}
	if d.alignment != nil {
		slots = d.device.Align(slots, *d.alignment)
	}
	return &FrameTuple{Timestamp: nowFunc(), Slots: slots}, nil
}

// Cleanup stops the pipeline and frees the serial. Idempotent.
func (d *Driver) Cleanup() {
	if d.device != nil {
		d.device.Stop()
	}
	openSerials.remove(d.serial)
}

// nowFunc is a seam for deterministic tests.
var nowFunc = defaultNow
