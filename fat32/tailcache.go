package fat32

import "container/list"

// TailCacheSize is the default number of entries kept in a TailCache.
const TailCacheSize = 8

type tailCacheEntry struct {
	key DirentLocation
	tail uint32
}

// TailCache is an optional LRU of (fdi_sector, fdi_offset) -> last known
// tail cluster. On a cache hit, Mount.Open can resume FollowChainFast from
// the cached tail instead of walking from the file's first cluster, which
// is always safe because a stale tail's FAT entry either is still
// ClusterEndOfChain (cache still correct) or points further down the chain
// (the fast walk harmlessly finds the real tail from there).
//
// On a hit, Touch moves the existing entry to the front of the LRU via
// container/list rather than reusing a scratch slot, avoiding the
// uninitialized-read hazard that kind of cache shortcut invites in
// lower-level languages — moot in Go, but the explicit move-to-front is
// also simply the correct LRU semantics.
type TailCache struct {
	capacity int
	order *list.List
	index map[DirentLocation]*list.Element
}

// NewTailCache returns an empty TailCache holding at most capacity entries.
func NewTailCache(capacity int) *TailCache {
	return &TailCache{
		capacity: capacity,
		order: list.New(),
		index: make(map[DirentLocation]*list.Element, capacity),
	}
}

// Lookup returns the cached tail cluster for key, if present.
func (c *TailCache) Lookup(key DirentLocation) (uint32, bool) {
	el, ok := c.index[key]
	if !ok {
		return 0, false
	}
	return el.Value.(*tailCacheEntry).tail, true
}

// Touch records tail as the last-known tail cluster for key, moving the
// entry to the front of the LRU if it already existed:
// "on every successful append, update the entry (move-to-front)."
func (c *TailCache) Touch(key DirentLocation, tail uint32) {
	if el, ok := c.index[key]; ok {
		el.Value.(*tailCacheEntry).tail = tail
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*tailCacheEntry).key)
		}
	}

	el := c.order.PushFront(&tailCacheEntry{key: key, tail: tail})
	c.index[key] = el
}

// Forget drops key's entry, if any. Called when a file is deleted so a
// stale tail cluster can't be handed back for a reused FDI slot.
func (c *TailCache) Forget(key DirentLocation) {
	if el, ok := c.index[key]; ok {
		c.order.Remove(el)
		delete(c.index, key)
	}
}
