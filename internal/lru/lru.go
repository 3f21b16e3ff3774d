// Package lru provides a bounded least-recently-used map with an
// eviction callback.
//
// Cache is not safe for concurrent use; callers hold their own lock.
package lru

// node is an entry of the recency list. The head is the most recently
// used entry, the tail the least.
type node[K comparable, V any] struct {
	key   K
	value V
	prev  *node[K, V]
	next  *node[K, V]
}

// Cache maps keys to values, evicting the least recently used entry
// when more than Capacity entries are stored.
type Cache[K comparable, V any] struct {
	capacity int
	entries  map[K]*node[K, V]
	head     *node[K, V]
	tail     *node[K, V]
	onEvict  func(K, V)

	hits, misses, evictions uint64
}

// New returns a cache holding at most capacity entries. A capacity of 0
// or less means unbounded. onEvict, if not nil, is called for every
// entry dropped by eviction, Remove or Clear.
func New[K comparable, V any](capacity int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacity,
		entries:  make(map[K]*node[K, V]),
		onEvict:  onEvict,
	}
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int { return len(c.entries) }

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	n, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.moveToFront(n)
	return n.value, true
}

// Put stores value under key, replacing and evicting any previous value,
// then trims the cache to its capacity.
func (c *Cache[K, V]) Put(key K, value V) {
	if n, ok := c.entries[key]; ok {
		old := n.value
		n.value = value
		c.moveToFront(n)
		c.evicted(key, old)
		return
	}
	n := &node[K, V]{key: key, value: value}
	c.entries[key] = n
	c.pushFront(n)
	for c.capacity > 0 && len(c.entries) > c.capacity {
		oldest := c.tail
		c.unlink(oldest)
		delete(c.entries, oldest.key)
		c.evictions++
		c.evicted(oldest.key, oldest.value)
	}
}

// Remove drops key. It reports whether key was present.
func (c *Cache[K, V]) Remove(key K) bool {
	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.unlink(n)
	delete(c.entries, key)
	c.evicted(key, n.value)
	return true
}

// Clear drops every entry, oldest first.
func (c *Cache[K, V]) Clear() {
	for n := c.tail; n != nil; n = n.prev {
		c.evicted(n.key, n.value)
	}
	clear(c.entries)
	c.head, c.tail = nil, nil
}

// Stats returns lookup hits, misses and capacity evictions.
func (c *Cache[K, V]) Stats() (hits, misses, evictions uint64) {
	return c.hits, c.misses, c.evictions
}

func (c *Cache[K, V]) evicted(k K, v V) {
	if c.onEvict != nil {
		c.onEvict(k, v)
	}
}

func (c *Cache[K, V]) pushFront(n *node[K, V]) {
	n.prev, n.next = nil, c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *Cache[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
