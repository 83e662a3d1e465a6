package dataset

import (
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunomcebola/argos/internal/codec"
)

var recordedFileName = regexp.MustCompile(`^1_SN001_[0-9_]+_(color|depth)\.npy$`)

func encodedFrame(t *testing.T, kinds ...string) []byte {
	t.Helper()
	slots := make(map[string][]byte, len(kinds))
	resolutions := make(map[string][2]uint16, len(kinds))
	for _, k := range kinds {
		slots[k] = []byte{1, 2, 3, 4}
		resolutions[k] = [2]uint16{2, 2}
	}
	data, err := codec.Encode(codec.Envelope{
		NodeID:      "1",
		CameraSN:    "SN001",
		Timestamp:   time.Now(),
		Slots:       slots,
		Resolutions: resolutions,
	})
	require.NoError(t, err)
	return data
}

func TestRecorder_StartWritesFramesToRawDir(t *testing.T) {
	registry, err := NewRegistry(t.TempDir())
	require.NoError(t, err)
	ds, err := registry.Create("recording")
	require.NoError(t, err)

	rec := NewRecorder()
	require.NoError(t, rec.Start("1", "SN001", ds))
	rec.Enqueue("1", "SN001", encodedFrame(t, "color"))

	require.Eventually(t, func() bool {
		entries, _ := os.ReadDir(ds.RawDir())
		return len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := os.ReadDir(ds.RawDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, recordedFileName.MatchString(entries[0].Name()))
}

func TestRecorder_StopDecrementsActiveWritersExactlyOnce(t *testing.T) {
	registry, err := NewRegistry(t.TempDir())
	require.NoError(t, err)
	ds, err := registry.Create("stopping")
	require.NoError(t, err)

	rec := NewRecorder()
	require.NoError(t, rec.Start("1", "SN001", ds))
	assert.Equal(t, int32(1), ds.ActiveWriters())

	rec.Stop("1", "SN001")
	require.Eventually(t, func() bool { return ds.ActiveWriters() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), ds.ActiveWriters())

	// Stopping an unknown session is a safe no-op.
	rec.Stop("1", "SN001")
	assert.Equal(t, int32(0), ds.ActiveWriters())
}

func TestRecorder_EnqueueDropsOldestUnderOverload(t *testing.T) {
	registry, err := NewRegistry(t.TempDir())
	require.NoError(t, err)
	ds, err := registry.Create("overloaded")
	require.NoError(t, err)

	rec := NewRecorder()

	var writes, drops atomic.Int64
	rec.SetMetricsHooks(func(string, string) { writes.Add(1) }, func(string, string) { drops.Add(1) })

	// Push more frames than the queue can hold in a single goroutine
	// burst; the worker may drain some of them in the meantime.
	require.NoError(t, rec.Start("1", "SN001", ds))
	for i := 0; i < recorderQueueCapacity+10; i++ {
		rec.Enqueue("1", "SN001", encodedFrame(t, "color"))
	}

	rec.Stop("1", "SN001")
	require.Eventually(t, func() bool { return ds.ActiveWriters() == 0 }, 5*time.Second, 10*time.Millisecond)

	// Regardless of how many the worker drained in the meantime, every
	// enqueued frame was either written or dropped as the oldest entry.
	assert.Equal(t, int64(recorderQueueCapacity+10), writes.Load()+drops.Load())
}

func TestRecorder_ActiveReflectsSessionLifecycle(t *testing.T) {
	registry, err := NewRegistry(t.TempDir())
	require.NoError(t, err)
	ds, err := registry.Create("lifecycle")
	require.NoError(t, err)

	rec := NewRecorder()
	assert.False(t, rec.Active("1", "SN001"))

	require.NoError(t, rec.Start("1", "SN001", ds))
	assert.True(t, rec.Active("1", "SN001"))

	rec.Stop("1", "SN001")
	assert.False(t, rec.Active("1", "SN001"))
}

func TestRecorder_WriteFrameWritesOneFilePerSlot(t *testing.T) {
	registry, err := NewRegistry(t.TempDir())
	require.NoError(t, err)
	ds, err := registry.Create("multi-slot")
	require.NoError(t, err)

	rec := NewRecorder()
	require.NoError(t, rec.Start("1", "SN001", ds))
	rec.Enqueue("1", "SN001", encodedFrame(t, "color", "depth"))

	require.Eventually(t, func() bool {
		entries, _ := os.ReadDir(ds.RawDir())
		return len(entries) == 2
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := os.ReadDir(ds.RawDir())
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[filepath.Ext(e.Name())] = true
		assert.True(t, recordedFileName.MatchString(e.Name()))
	}
	assert.True(t, names[".npy"])
}
