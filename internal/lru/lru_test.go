package lru

import (
	"slices"
	"testing"
)

func TestCache_Eviction(t *testing.T) {
	var evicted []int
	c := New[int, string](2, func(k int, _ string) { evicted = append(evicted, k) })

	c.Put(1, "a")
	c.Put(2, "b")
	if _, ok := c.Get(1); !ok {
		t.Fatal("Get(1) missing")
	}
	c.Put(3, "c") // evicts 2, the least recently used

	if _, ok := c.Get(2); ok {
		t.Error("Get(2) should have been evicted")
	}
	if !slices.Equal(evicted, []int{2}) {
		t.Errorf("evicted = %v, want [2]", evicted)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	hits, misses, evictions := c.Stats()
	if hits != 1 || misses != 1 || evictions != 1 {
		t.Errorf("Stats() = %d, %d, %d, want 1, 1, 1", hits, misses, evictions)
	}
}

func TestCache_Replace(t *testing.T) {
	var evicted []string
	c := New[int, string](0, func(_ int, v string) { evicted = append(evicted, v) })
	c.Put(1, "old")
	c.Put(1, "new")
	if v, _ := c.Get(1); v != "new" {
		t.Errorf("Get(1) = %q, want new", v)
	}
	if !slices.Equal(evicted, []string{"old"}) {
		t.Errorf("evicted = %v, want [old]", evicted)
	}
}

func TestCache_RemoveAndClear(t *testing.T) {
	var evicted []int
	c := New[int, int](0, func(k, _ int) { evicted = append(evicted, k) })
	for i := range 4 {
		c.Put(i, i)
	}
	if !c.Remove(2) || c.Remove(2) {
		t.Error("Remove(2) should succeed once")
	}
	c.Clear()
	if !slices.Equal(evicted, []int{2, 0, 1, 3}) {
		t.Errorf("evicted = %v, want [2 0 1 3]", evicted)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear", c.Len())
	}

	// Unbounded caches never evict on Put.
	for i := range 100 {
		c.Put(i, i)
	}
	if c.Len() != 100 {
		t.Errorf("Len() = %d, want 100", c.Len())
	}
}
