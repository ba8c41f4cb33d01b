package nbadet

import (
	"iter"
	"sync"
)

// Hashable is a key with structural equality. Determinizer states, state sets and
// cache requests are all keyed through it.
type Hashable interface {
	Hash() uint64
	Equals(other Hashable) bool
}

// HashMap is a chained hash table over Hashable keys, safe for concurrent use.
type HashMap[T any] struct {
	buckets    []*entry[T]
	size       int
	mask       uint64
	mutex      sync.RWMutex
	emptyValue T
	loadFactor float64
}

type entry[T any] struct {
	key   Hashable
	hash  uint64
	value T
	next  *entry[T]
}

type hashMapOptions struct {
	capacity   int
	loadFactor float64
}

// HashMapOption configures NewHashMap.
type HashMapOption func(*hashMapOptions)

// WithCapacity sets the initial bucket count, rounded up to a power of two.
func WithCapacity(capacity int) HashMapOption {
	return func(o *hashMapOptions) {
		o.capacity = capacity
	}
}

// WithLoadFactor sets the size/buckets ratio above which the table doubles.
func WithLoadFactor(loadFactor float64) HashMapOption {
	return func(o *hashMapOptions) {
		o.loadFactor = loadFactor
	}
}

func NewHashMap[T any](options ...HashMapOption) *HashMap[T] {
	opt := &hashMapOptions{capacity: 1, loadFactor: 0.75}
	for _, o := range options {
		o(opt)
	}
	realCap := 1
	for realCap < opt.capacity {
		realCap <<= 1
	}
	return &HashMap[T]{
		buckets:    make([]*entry[T], realCap),
		mask:       uint64(realCap - 1),
		loadFactor: opt.loadFactor,
	}
}

// Set inserts or replaces the value stored under key.
func (m *HashMap[T]) Set(key Hashable, value T) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.set(key, value)
}

func (m *HashMap[T]) set(key Hashable, value T) {
	hash := key.Hash()
	index := hash & m.mask
	for e := m.buckets[index]; e != nil; e = e.next {
		if e.hash == hash && e.key.Equals(key) {
			e.value = value
			return
		}
	}
	m.buckets[index] = &entry[T]{key: key, hash: hash, value: value, next: m.buckets[index]}
	m.size++
	if float64(m.size)/float64(len(m.buckets)) > m.loadFactor {
		m.resize()
	}
}

func (m *HashMap[T]) Get(key Hashable) (T, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, v, ok := m.lookup(key)
	return v, ok
}

// Intern returns the key already stored that equals key, together with its value.
// If no such key exists, key is stored with value and returned unchanged.
func (m *HashMap[T]) Intern(key Hashable, value T) (Hashable, T, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if k, v, ok := m.lookup(key); ok {
		return k, v, true
	}
	m.set(key, value)
	return key, value, false
}

func (m *HashMap[T]) lookup(key Hashable) (Hashable, T, bool) {
	hash := key.Hash()
	for e := m.buckets[hash&m.mask]; e != nil; e = e.next {
		if e.hash == hash && e.key.Equals(key) {
			return e.key, e.value, true
		}
	}
	return nil, m.emptyValue, false
}

func (m *HashMap[T]) Delete(key Hashable) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	hash := key.Hash()
	index := hash & m.mask
	var prev *entry[T]
	for e := m.buckets[index]; e != nil; prev, e = e, e.next {
		if e.hash == hash && e.key.Equals(key) {
			if prev == nil {
				m.buckets[index] = e.next
			} else {
				prev.next = e.next
			}
			m.size--
			return
		}
	}
}

func (m *HashMap[T]) resize() {
	newCap := len(m.buckets) << 1
	newBuckets := make([]*entry[T], newCap)
	newMask := uint64(newCap - 1)
	for _, head := range m.buckets {
		for e := head; e != nil; e = e.next {
			i := e.hash & newMask
			newBuckets[i] = &entry[T]{key: e.key, hash: e.hash, value: e.value, next: newBuckets[i]}
		}
	}
	m.buckets = newBuckets
	m.mask = newMask
}

func (m *HashMap[T]) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.size
}

// All iterates over a snapshot of the entries in unspecified order.
func (m *HashMap[T]) All() iter.Seq2[Hashable, T] {
	m.mutex.RLock()
	keys := make([]Hashable, 0, m.size)
	values := make([]T, 0, m.size)
	for _, head := range m.buckets {
		for e := head; e != nil; e = e.next {
			keys = append(keys, e.key)
			values = append(values, e.value)
		}
	}
	m.mutex.RUnlock()

	return func(yield func(Hashable, T) bool) {
		for i := range keys {
			if !yield(keys[i], values[i]) {
				return
			}
		}
	}
}
