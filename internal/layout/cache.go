// internal/layout/cache.go
package layout

import (
	"sync"
	"unsafe"

	"github.com/xkilldash9x/scalpel-layout/internal/dom"
)

const cacheShards = 32

// cacheEntry is one node's most recent layout.
type cacheEntry struct {
	constraints  LayoutConstraints
	result       LayoutResult
	generation   uint64
	dependencies []dom.NodeID
}

// entrySize approximates the bytes held per cached row.
var entrySize = int(unsafe.Sizeof(cacheEntry{}))

type cacheShard struct {
	mu      sync.RWMutex
	entries map[dom.NodeID]cacheEntry
}

// layoutCache is a sharded map from node to its latest layout. Sharding keeps
// parallel child layouts from contending on a single lock.
type layoutCache struct {
	shards [cacheShards]cacheShard
}

func newLayoutCache() *layoutCache {
	c := &layoutCache{}
	for i := range c.shards {
		c.shards[i].entries = make(map[dom.NodeID]cacheEntry)
	}
	return c
}

func (c *layoutCache) shard(id dom.NodeID) *cacheShard {
	return &c.shards[uint32(id)%cacheShards]
}

// lookup returns the row for id when it belongs to gen and was computed
// under equal constraints.
func (c *layoutCache) lookup(id dom.NodeID, gen uint64, cons LayoutConstraints) (LayoutResult, bool) {
	s := c.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || e.generation != gen || !e.constraints.Equal(cons) {
		return LayoutResult{}, false
	}
	return e.result, true
}

// latest returns the row for id when it belongs to gen, regardless of constraints.
func (c *layoutCache) latest(id dom.NodeID, gen uint64) (LayoutResult, bool) {
	s := c.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || e.generation != gen {
		return LayoutResult{}, false
	}
	return e.result, true
}

func (c *layoutCache) store(id dom.NodeID, e cacheEntry) {
	s := c.shard(id)
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
}

// place moves the stored box for id so its margin box starts at (x, y).
// The constraints are kept so a later lookup still hits.
func (c *layoutCache) place(id dom.NodeID, gen uint64, x, y float64) (LayoutResult, bool) {
	s := c.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.generation != gen {
		return LayoutResult{}, false
	}
	e.result.Box.MoveTo(x, y)
	s.entries[id] = e
	return e.result, true
}

func (c *layoutCache) remove(id dom.NodeID) {
	s := c.shard(id)
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

func (c *layoutCache) clear() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.entries = make(map[dom.NodeID]cacheEntry)
		s.mu.Unlock()
	}
}

func (c *layoutCache) len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// countGeneration returns how many rows belong to gen.
func (c *layoutCache) countGeneration(gen uint64) int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			if e.generation == gen {
				n++
			}
		}
		s.mu.RUnlock()
	}
	return n
}

// pruneBefore drops every row older than gen and returns how many went.
func (c *layoutCache) pruneBefore(gen uint64) int {
	removed := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for id, e := range s.entries {
			if e.generation < gen {
				delete(s.entries, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// dependencies returns the children recorded for id.
func (c *layoutCache) dependencies(id dom.NodeID) []dom.NodeID {
	s := c.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	return e.dependencies
}
