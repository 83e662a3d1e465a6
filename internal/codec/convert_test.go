package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brunomcebola/argos/internal/camera"
	"github.com/brunomcebola/argos/internal/codec"
)

func TestFromToFrameTuple_RoundTrip(t *testing.T) {
	ts := time.Now().UTC()
	tuple := &camera.FrameTuple{
		Timestamp: ts,
		Slots: map[camera.Kind][]byte{
			camera.KindColor: {1, 2, 3},
		},
	}

	resolutions := map[camera.Kind]camera.Resolution{
		camera.KindColor: {Width: 640, Height: 480},
	}

	env := codec.FromFrameTuple("node-1", "SN001", tuple, resolutions)
	assert.Equal(t, "node-1", env.NodeID)
	assert.Equal(t, "SN001", env.CameraSN)
	assert.Equal(t, [2]uint16{640, 480}, env.Resolutions["color"])

	back := codec.ToFrameTuple(env)
	got, ok := back.Get(camera.KindColor)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)
}
