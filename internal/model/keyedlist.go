package model

import "fmt"

// KeyedList is an ordered collection whose elements are also indexed by key.
// The sequence and the key index are only modified together.
type KeyedList[K comparable, E any] struct {
	items []E
	index map[K]int
	key   func(E) K
}

// NewKeyedList creates an empty list keyed by key
func NewKeyedList[K comparable, E any](key func(E) K) *KeyedList[K, E] {
	return &KeyedList[K, E]{
		index: make(map[K]int),
		key:   key,
	}
}

// Len returns the number of elements
func (l *KeyedList[K, E]) Len() int {
	return len(l.items)
}

// At returns the element at position i
func (l *KeyedList[K, E]) At(i int) E {
	return l.items[i]
}

// Get returns the element stored under k
func (l *KeyedList[K, E]) Get(k K) (E, bool) {
	i, ok := l.index[k]
	if !ok {
		var zero E
		return zero, false
	}
	return l.items[i], true
}

// Has reports whether an element is stored under k
func (l *KeyedList[K, E]) Has(k K) bool {
	_, ok := l.index[k]
	return ok
}

// IndexOf returns the position of the element stored under k, or -1
func (l *KeyedList[K, E]) IndexOf(k K) int {
	if i, ok := l.index[k]; ok {
		return i
	}
	return -1
}

// Append adds e at the end of the list
func (l *KeyedList[K, E]) Append(e E) error {
	k := l.key(e)
	if _, exists := l.index[k]; exists {
		return fmt.Errorf("%w: %v", ErrDuplicateName, k)
	}
	l.index[k] = len(l.items)
	l.items = append(l.items, e)
	return nil
}

// RemoveAt removes and returns the element at position i
func (l *KeyedList[K, E]) RemoveAt(i int) E {
	victim := l.items[i]
	delete(l.index, l.key(victim))
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	for j := i; j < len(l.items); j++ {
		l.index[l.key(l.items[j])] = j
	}
	return victim
}

// Remove removes the element stored under k
func (l *KeyedList[K, E]) Remove(k K) (E, bool) {
	i, ok := l.index[k]
	if !ok {
		var zero E
		return zero, false
	}
	return l.RemoveAt(i), true
}

// Items returns a copy of the elements in order
func (l *KeyedList[K, E]) Items() []E {
	return append([]E(nil), l.items...)
}

// Keys returns the element keys in order
func (l *KeyedList[K, E]) Keys() []K {
	keys := make([]K, len(l.items))
	for i, e := range l.items {
		keys[i] = l.key(e)
	}
	return keys
}

// Rekey moves the element registered under old to its current key. Call it
// after mutating the field the key function reads.
func (l *KeyedList[K, E]) Rekey(old K) error {
	i, ok := l.index[old]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotFound, old)
	}
	k := l.key(l.items[i])
	if k == old {
		return nil
	}
	if _, exists := l.index[k]; exists {
		return fmt.Errorf("%w: %v", ErrDuplicateName, k)
	}
	delete(l.index, old)
	l.index[k] = i
	return nil
}
