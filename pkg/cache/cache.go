// Package cache provides a generic LRU cache with hit/miss statistics and
// msgpack persistence.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// formatVersion is written ahead of persisted entries.
const formatVersion = 1

// ErrVersionMismatch is returned by Load for data written by another format.
var ErrVersionMismatch = errors.New("cache format version mismatch")

// Entry is a cached value with its metadata.
type Entry[V any] struct {
	Key       string    `msgpack:"key"`
	Value     V         `msgpack:"value"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// listItem is an item in the doubly-linked list.
type listItem[V any] struct {
	Entry[V]
	prev *listItem[V]
	next *listItem[V]
}

// list is a doubly-linked list, most recently used at the head.
type list[V any] struct {
	head *listItem[V]
	tail *listItem[V]
	len  int
}

// unlink removes item from the list.
func (l *list[V]) unlink(item *listItem[V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

// pushFront adds an item to the front of the list.
func (l *list[V]) pushFront(item *listItem[V]) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

// moveToFront marks item as most recently used.
func (l *list[V]) moveToFront(item *listItem[V]) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

// Options configures an LRU.
type Options[V any] struct {
	// MaxSize is the maximum number of entries. 0 means unlimited.
	MaxSize int

	// OnEvict is called when an entry is evicted to make room.
	OnEvict func(key string, value V)
}

// Stats reports cache usage.
type Stats struct {
	Length    int   `json:"length"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
	Evictions int64 `json:"evictions"`
}

// HitRate returns hits over lookups, 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// LRU is a size-bounded least recently used cache safe for concurrent use.
type LRU[V any] struct {
	mu        sync.Mutex
	items     map[string]*listItem[V]
	lru       list[V]
	maxSize   int
	onEvict   func(key string, value V)
	hits      int64
	misses    int64
	evictions int64
}

// New creates an LRU cache with the given options.
func New[V any](opts Options[V]) *LRU[V] {
	return &LRU[V]{
		items:   make(map[string]*listItem[V]),
		maxSize: opts.MaxSize,
		onEvict: opts.OnEvict,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.lru.moveToFront(item)
	return item.Value, true
}

// Set stores a value, evicting the least recently used entries if the cache
// is full.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found {
		item.Value = value
		c.lru.moveToFront(item)
		return
	}

	item := &listItem[V]{Entry: Entry[V]{Key: key, Value: value, CreatedAt: time.Now()}}
	c.items[key] = item
	c.lru.pushFront(item)
	c.evictIfNeeded()
}

// Delete removes a key from the cache.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found {
		c.lru.unlink(item)
		delete(c.items, key)
	}
}

// Clear removes all entries. Statistics are kept.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem[V])
	c.lru = list[V]{}
}

// Len returns the number of entries in the cache.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns the keys from most to least recently used.
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for item := c.lru.head; item != nil; item = item.next {
		keys = append(keys, item.Key)
	}
	return keys
}

// Stats returns the current cache statistics.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:    len(c.items),
		HitCount:  c.hits,
		MissCount: c.misses,
		Evictions: c.evictions,
	}
}

// ResetStats resets the statistics counters.
func (c *LRU[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// evictIfNeeded evicts entries while the cache exceeds its limit.
func (c *LRU[V]) evictIfNeeded() {
	for c.maxSize > 0 && c.lru.len > c.maxSize {
		item := c.lru.tail
		c.lru.unlink(item)
		delete(c.items, item.Key)
		c.evictions++
		if c.onEvict != nil {
			c.onEvict(item.Key, item.Value)
		}
	}
}

// snapshot is the persisted form of a cache.
type snapshot[V any] struct {
	Version int        `msgpack:"version"`
	Entries []Entry[V] `msgpack:"entries"` // least recently used first
}

// Save persists the cache to w using msgpack.
func (c *LRU[V]) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := snapshot[V]{Version: formatVersion, Entries: make([]Entry[V], 0, len(c.items))}
	for item := c.lru.tail; item != nil; item = item.prev {
		data.Entries = append(data.Entries, item.Entry)
	}
	if err := msgpack.NewEncoder(w).Encode(&data); err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	return nil
}

// Load replaces the cache contents with entries read from r, keeping their
// recency order. Entries beyond MaxSize are evicted.
func (c *LRU[V]) Load(r io.Reader) error {
	var data snapshot[V]
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}
	if data.Version != formatVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, data.Version, formatVersion)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem[V])
	c.lru = list[V]{}
	for _, entry := range data.Entries {
		item := &listItem[V]{Entry: entry}
		if old, dup := c.items[entry.Key]; dup {
			c.lru.unlink(old)
		}
		c.items[entry.Key] = item
		c.lru.pushFront(item)
	}
	c.evictIfNeeded()
	return nil
}

// PersistToFile saves the cache to path, creating parent directories.
func PersistToFile[V any](c *LRU[V], path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFromFile loads the cache from path. A missing file is not an error.
func LoadFromFile[V any](c *LRU[V], path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}
