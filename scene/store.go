package scene

import "github.com/google/uuid"

// Store maps chunk ids to chunks and tracks the current chunk that
// receives polygon insertions. Iteration follows insertion order.
type Store struct {
	chunks  ordered[uuid.UUID, *Chunk]
	current uuid.UUID
	hasCur  bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{chunks: newOrdered[uuid.UUID, *Chunk]()}
}

// Len returns the number of chunks.
func (s *Store) Len() int { return s.chunks.Len() }

// Get returns the chunk with id.
func (s *Store) Get(id uuid.UUID) (*Chunk, bool) {
	return s.chunks.Get(id)
}

// Ensure returns the chunk with id, creating an empty one if missing.
func (s *Store) Ensure(id uuid.UUID) *Chunk {
	if c, ok := s.chunks.Get(id); ok {
		return c
	}
	c := NewChunk(GridPos{}, 0)
	s.chunks.Set(id, c)
	return c
}

// Insert adds or replaces the chunk with id. A nil chunk is stored as
// an empty one.
func (s *Store) Insert(id uuid.UUID, c *Chunk) {
	if c == nil {
		c = NewChunk(GridPos{}, 0)
	}
	c.init()
	s.chunks.Set(id, c)
}

// Remove deletes the chunk with id and unsets the current chunk if it
// was the one removed.
func (s *Store) Remove(id uuid.UUID) bool {
	if s.hasCur && s.current == id {
		s.hasCur = false
	}
	return s.chunks.Delete(id)
}

// RemoveAt deletes the first chunk whose origin equals origin.
func (s *Store) RemoveAt(origin GridPos) bool {
	var found uuid.UUID
	ok := false
	s.chunks.All(func(id uuid.UUID, c *Chunk) bool {
		if c.Origin == origin {
			found, ok = id, true
			return false
		}
		return true
	})
	if !ok {
		return false
	}
	return s.Remove(found)
}

// SetCurrent selects id as the current chunk, creating it if missing.
func (s *Store) SetCurrent(id uuid.UUID) {
	s.Ensure(id)
	s.current, s.hasCur = id, true
}

// Current returns the current chunk id.
func (s *Store) Current() (uuid.UUID, bool) {
	return s.current, s.hasCur
}

// CurrentOrNew returns the current chunk, creating and selecting a
// fresh chunk under a random id when none is selected.
func (s *Store) CurrentOrNew() *Chunk {
	if s.hasCur {
		return s.Ensure(s.current)
	}
	id := uuid.New()
	s.SetCurrent(id)
	c, _ := s.chunks.Get(id)
	return c
}

// Range calls fn for every chunk in insertion order until fn returns
// false.
func (s *Store) Range(fn func(id uuid.UUID, c *Chunk) bool) {
	s.chunks.All(fn)
}

// SetVisible applies visibility to id in every chunk.
func (s *Store) SetVisible(id GeoID, visible bool) (touched2D, touched3D bool) {
	s.chunks.All(func(_ uuid.UUID, c *Chunk) bool {
		a, b := c.SetVisible(id, visible)
		touched2D = touched2D || a
		touched3D = touched3D || b
		return true
	})
	return touched2D, touched3D
}

// Clear removes all chunks and unsets the current chunk.
func (s *Store) Clear() {
	s.chunks.Clear()
	s.hasCur = false
}

// Counts sums polygon and line-strip counts over all chunks.
func (s *Store) Counts() (polys2D, polys3D, lines int) {
	s.chunks.All(func(_ uuid.UUID, c *Chunk) bool {
		a, b, l := c.Counts()
		polys2D += a
		polys3D += b
		lines += l
		return true
	})
	return polys2D, polys3D, lines
}
