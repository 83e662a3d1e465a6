package dataset

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
)

// depthColormapMax is the sensor-reported distance, in raw 16-bit units,
// that saturates the colormap. Samples at or above this are rendered as
// the hottest color in the ramp.
const depthColormapMax = 4000

// ReadColorImage decodes the color slot stored at path and encodes it as
// PNG. The raw bytes are interpreted as row-major RGB8, the layout the
// node-side codec always writes a color slot in.
func ReadColorImage(path string, w io.Writer) error {
	arr, err := readNPY(path)
	if err != nil {
		return err
	}
	if len(arr.Shape) < 2 {
		return fmt.Errorf("dataset: %s: color slot has no spatial shape", path)
	}
	height, width := arr.Shape[0], arr.Shape[1]
	channels := 1
	if len(arr.Shape) == 3 {
		channels = arr.Shape[2]
	}
	if channels != 3 || len(arr.Data) < width*height*3 {
		return fmt.Errorf("dataset: %s: unexpected color payload (channels=%d, len=%d)", path, channels, len(arr.Data))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			img.Set(x, y, color.RGBA{R: arr.Data[i], G: arr.Data[i+1], B: arr.Data[i+2], A: 255})
		}
	}
	return png.Encode(w, img)
}

// ReadDepthImage decodes the depth slot stored at path, normalises each
// 16-bit sample against depthColormapMax, maps it through a blue-to-red
// heat ramp, and encodes the result as JPEG. Depth slots are stored raw
// (§4.7); normalisation and colormapping are read-time concerns.
func ReadDepthImage(path string, w io.Writer) error {
	arr, err := readNPY(path)
	if err != nil {
		return err
	}
	if len(arr.Shape) < 2 {
		return fmt.Errorf("dataset: %s: depth slot has no spatial shape", path)
	}
	height, width := arr.Shape[0], arr.Shape[1]
	if len(arr.Data) < width*height*2 {
		return fmt.Errorf("dataset: %s: truncated depth payload", path)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 2
			sample := uint16(arr.Data[i]) | uint16(arr.Data[i+1])<<8
			img.Set(x, y, depthHeatColor(sample))
		}
	}

	return jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
}

// depthHeatColor maps a raw depth sample onto a blue (near) -> red (far)
// ramp, with zero (no return) rendered as black.
func depthHeatColor(sample uint16) color.RGBA {
	if sample == 0 {
		return color.RGBA{A: 255}
	}
	t := float64(sample) / float64(depthColormapMax)
	if t > 1 {
		t = 1
	}
	r := uint8(255 * t)
	b := uint8(255 * (1 - t))
	g := uint8(255 * (1 - absDiff(t, 0.5)*2))
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// slotPath resolves the on-disk path for one stored frame file inside a
// dataset's raw directory. The HTTP layer picks the decoder (color vs
// depth) from the file name's suffix.
func slotPath(d *Dataset, name string) string {
	return filepath.Join(d.rawDir(), name)
}
