package storage

import (
	"sync"

	"github.com/irtery/afina/recycle"
)

// Locked serializes every LRU operation behind a single mutex, held
// for the operation's full duration and released before returning.
// Locked never performs I/O while holding the lock — callers must
// read payloads into a *recycle.Data before calling Put/Set. Get is
// the one exception: it takes the entry's reader reference while
// still holding the lock (see View), so the View it returns can be
// streamed safely after the lock is released, even if a concurrent
// Put/Set/Delete changes or evicts that same entry in the meantime.
type Locked struct {
	mu  sync.Mutex
	lru *LRU
}

// NewLocked wraps lru behind a mutex.
func NewLocked(lru *LRU) *Locked {
	return &Locked{lru: lru}
}

func (c *Locked) Put(key string, value *recycle.Data) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Put(key, value)
}

func (c *Locked) PutIfAbsent(key string, value *recycle.Data) (stored, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.PutIfAbsent(key, value)
}

func (c *Locked) Set(key string, value *recycle.Data) (stored, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Set(key, value)
}

// Get takes the entry's reader reference while the lock is held, so
// the View returned stays valid regardless of what a concurrent
// Put/Set/Delete does to the entry afterward.
func (c *Locked) Get(key string) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

func (c *Locked) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Delete(key)
}

// UsedBytes reports the engine's current byte usage, for metrics and
// maintenance logging.
func (c *Locked) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.UsedBytes()
}

// Evictions reports the running count of entries evicted to make room
// for another Put/Set.
func (c *Locked) Evictions() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Evictions()
}

// Do runs fn with the cache mutex held for its entire duration,
// observing a stable snapshot across multiple operations. fn must not
// perform I/O or block — it is the building block incr/decr and
// append/prepend use to read-modify-write atomically.
func (c *Locked) Do(fn func(l *LRU)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.lru)
}
