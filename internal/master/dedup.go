package master

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/brunomcebola/argos/internal/codec"
)

// dedupWindow bounds how long a (node, camera, timestamp) key is
// remembered; a frame carrying the same wire timestamp seen again within
// the window is treated as a duplicate delivery rather than a new frame.
const dedupWindow = 2 * time.Second

// dedupCacheSize caps the LRU so a long-running master never grows this
// unbounded; eviction just means an old key can no longer be recognised
// as a duplicate, which is safe (a false negative, never a false positive).
const dedupCacheSize = 4096

// frameDedup suppresses a re-broadcast of the exact same frame seen again
// shortly after the first, guarding fan-out against duplicate delivery
// across a flaky reconnect window.
type frameDedup struct {
	cache *lru.Cache[string, time.Time]
}

func newFrameDedup() *frameDedup {
	c, _ := lru.New[string, time.Time](dedupCacheSize)
	return &frameDedup{cache: c}
}

// isDuplicate decodes data's envelope timestamp and reports whether this
// (nodeID, cameraSN, timestamp) triple was already seen within
// dedupWindow. A malformed payload is never treated as a duplicate — it is
// left to the ordinary decode-failure handling downstream.
func (d *frameDedup) isDuplicate(nodeID int, cameraSN string, data []byte) bool {
	env, err := codec.Decode(data)
	if err != nil {
		return false
	}

	key := fmt.Sprintf("%d|%s|%d", nodeID, cameraSN, env.Timestamp.UnixNano())
	if seenAt, ok := d.cache.Get(key); ok && time.Since(seenAt) < dedupWindow {
		return true
	}
	d.cache.Add(key, time.Now())
	return false
}
