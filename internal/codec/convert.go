package codec

import (
	"github.com/brunomcebola/argos/internal/camera"
)

// FromFrameTuple flattens a camera.FrameTuple into the wire Envelope for
// the given (node, camera) identity. Absent slots are omitted rather than
// encoded as empty, so a decoder can tell "not configured" apart from
// "configured but zero bytes". resolutions supplies the (width, height) each
// kind was configured at, taken from the camera's own StreamConfig list.
func FromFrameTuple(nodeID, cameraSN string, f *camera.FrameTuple, resolutions map[camera.Kind]camera.Resolution) Envelope {
	slots := make(map[string][]byte, len(f.Slots))
	resMap := make(map[string][2]uint16, len(f.Slots))
	for k, v := range f.Slots {
		slots[string(k)] = v
		if res, ok := resolutions[k]; ok {
			resMap[string(k)] = [2]uint16{uint16(res.Width), uint16(res.Height)}
		}
	}
	return Envelope{
		NodeID:      nodeID,
		CameraSN:    cameraSN,
		Timestamp:   f.Timestamp,
		Slots:       slots,
		Resolutions: resMap,
	}
}

// ToFrameTuple rebuilds a camera.FrameTuple from a decoded Envelope,
// discarding the resolution metadata (only needed on the write path).
func ToFrameTuple(e Envelope) *camera.FrameTuple {
	slots := make(map[camera.Kind][]byte, len(e.Slots))
	for k, v := range e.Slots {
		slots[camera.Kind(k)] = v
	}
	return &camera.FrameTuple{Timestamp: e.Timestamp, Slots: slots}
}
