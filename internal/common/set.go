package common

// Set keeps unique elements in insertion order.
type Set[T comparable] struct {
	index map[T]int
	order []T
}

func NewSet[T comparable](values ...T) *Set[T] {
	s := &Set[T]{index: make(map[T]int, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts value and reports whether it was new.
func (s *Set[T]) Add(value T) bool {
	if _, found := s.index[value]; found {
		return false
	}
	s.index[value] = len(s.order)
	s.order = append(s.order, value)
	return true
}

func (s *Set[T]) Contains(value T) bool {
	_, found := s.index[value]
	return found
}

func (s *Set[T]) Size() int {
	return len(s.order)
}

// List returns the elements in the order they were first added.
func (s *Set[T]) List() []T {
	return append([]T(nil), s.order...)
}
