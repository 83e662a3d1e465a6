// Package camera abstracts the acquisition side of ARGOS: opening a
// depth-sensing camera by serial, validating its stream configuration,
// and producing aligned frame tuples on a background acquisition task.
package camera

import (
	"fmt"
	"time"
)

// Kind identifies one stream inside a composite frame.
type Kind string

const (
	KindColor    Kind = "color"
	KindDepth    Kind = "depth"
	KindFisheye  Kind = "fisheye"
	KindInfrared Kind = "infrared"
	KindPose     Kind = "pose"
)

// kindOrder fixes the canonical slot order of a Frame Tuple.
var kindOrder = []Kind{KindColor, KindDepth, KindFisheye, KindInfrared, KindPose}

func validKind(k Kind) bool {
	for _, v := range kindOrder {
		if v == k {
			return true
		}
	}
	return false
}

// Format is the closed enumeration of pixel/sample layouts a stream may be
// requested in. Named after the underlying depth-sensor SDK's own format
// enum so camera YAML files stay a near-literal translation of it.
type Format string

const (
	FormatAny          Format = "any"
	FormatBGR8         Format = "bgr8"
	FormatBGRA8        Format = "bgra8"
	FormatDisparity16  Format = "disparity16"
	FormatDisparity32  Format = "disparity32"
	FormatDistance     Format = "distance"
	FormatGPIORaw      Format = "gpio_raw"
	FormatINVI         Format = "invi"
	FormatINZI         Format = "inzi"
	FormatMJPEG        Format = "mjpeg"
	FormatMotionRaw    Format = "motion_raw"
	FormatMotionXYZ32F Format = "motion_xyz32f"
	FormatRAW10        Format = "raw10"
	FormatRAW16        Format = "raw16"
	FormatRAW8         Format = "raw8"
	FormatRGB8         Format = "rgb8"
	FormatRGBA8        Format = "rgba8"
	FormatSixDOF       Format = "six_dof"
	FormatUYVY         Format = "uyvy"
	FormatW10          Format = "w10"
	FormatXYZ32F       Format = "xyz32f"
	FormatY10BPack     Format = "y10bpack"
	FormatY12I         Format = "y12i"
	FormatY16          Format = "y16"
	FormatY8           Format = "y8"
	FormatY8I          Format = "y8i"
	FormatYUYV         Format = "yuyv"
	FormatZ16          Format = "z16"
	FormatZ16H         Format = "z16h"
)

var validFormats = map[Format]bool{
	FormatAny: true, FormatBGR8: true, FormatBGRA8: true, FormatDisparity16: true,
	FormatDisparity32: true, FormatDistance: true, FormatGPIORaw: true, FormatINVI: true,
	FormatINZI: true, FormatMJPEG: true, FormatMotionRaw: true, FormatMotionXYZ32F: true,
	FormatRAW10: true, FormatRAW16: true, FormatRAW8: true, FormatRGB8: true,
	FormatRGBA8: true, FormatSixDOF: true, FormatUYVY: true, FormatW10: true,
	FormatXYZ32F: true, FormatY10BPack: true, FormatY12I: true, FormatY16: true,
	FormatY8: true, FormatY8I: true, FormatYUYV: true, FormatZ16: true, FormatZ16H: true,
}

// Resolution is one of the ten standard width x height pairs a stream may
// be configured at.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

var validResolutions = []Resolution{
	{1920, 1080}, {1280, 720}, {960, 540}, {848, 480}, {640, 480},
	{640, 360}, {480, 270}, {424, 240}, {320, 240}, {320, 180},
}

func isValidResolution(r Resolution) bool {
	for _, v := range validResolutions {
		if v == r {
			return true
		}
	}
	return false
}

// FPS is the closed set of supported frame rates.
type FPS int

var validFPS = map[FPS]bool{6: true, 15: true, 30: true, 60: true, 90: true}

// StreamConfig is one (kind, format, resolution, fps) tuple declared for a
// camera.
type StreamConfig struct {
	Kind       Kind       `yaml:"type"`
	Format     Format     `yaml:"format"`
	Resolution Resolution `yaml:"resolution"`
	FPS        FPS        `yaml:"fps"`
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("type=%s, format=%s, resolution=%s, fps=%d", c.Kind, c.Format, c.Resolution, c.FPS)
}

// FrameTuple is a fixed-arity record, one slot per Kind in canonical order.
// A slot is nil when that kind was not configured for the camera.
type FrameTuple struct {
	Timestamp time.Time
	Slots     map[Kind][]byte
}

// Get returns the raw bytes for kind, or nil, false if absent.
func (f *FrameTuple) Get(k Kind) ([]byte, bool) {
	if f.Slots == nil {
		return nil, false
	}
	b, ok := f.Slots[k]
	return b, ok
}
