package scene

// ordered is an insertion-ordered map. Replacing a key keeps its
// position; deleting compacts the key list. Iteration order is what
// makes batching and BVH construction reproducible.
type ordered[K comparable, V any] struct {
	keys  []K
	index map[K]int
	vals  []V
}

func newOrdered[K comparable, V any]() ordered[K, V] {
	return ordered[K, V]{index: make(map[K]int)}
}

func (o *ordered[K, V]) Len() int { return len(o.keys) }

func (o *ordered[K, V]) Get(k K) (V, bool) {
	if i, ok := o.index[k]; ok {
		return o.vals[i], true
	}
	var zero V
	return zero, false
}

func (o *ordered[K, V]) Set(k K, v V) {
	if o.index == nil {
		o.index = make(map[K]int)
	}
	if i, ok := o.index[k]; ok {
		o.vals[i] = v
		return
	}
	o.index[k] = len(o.keys)
	o.keys = append(o.keys, k)
	o.vals = append(o.vals, v)
}

func (o *ordered[K, V]) Delete(k K) bool {
	i, ok := o.index[k]
	if !ok {
		return false
	}
	delete(o.index, k)
	copy(o.keys[i:], o.keys[i+1:])
	copy(o.vals[i:], o.vals[i+1:])
	o.keys = o.keys[:len(o.keys)-1]
	var zero V
	o.vals[len(o.vals)-1] = zero
	o.vals = o.vals[:len(o.vals)-1]
	for j := i; j < len(o.keys); j++ {
		o.index[o.keys[j]] = j
	}
	return true
}

func (o *ordered[K, V]) Clear() {
	o.keys = o.keys[:0]
	o.vals = o.vals[:0]
	clear(o.index)
}

// All calls fn for every entry in insertion order until fn returns false.
func (o *ordered[K, V]) All(fn func(K, V) bool) {
	for i, k := range o.keys {
		if !fn(k, o.vals[i]) {
			return
		}
	}
}
