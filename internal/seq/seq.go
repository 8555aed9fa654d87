// Package seq holds small generic helpers over ordered slices.
package seq

// Move relocates the element at index from to index to and returns the
// resulting slice. The relative order of every other element is preserved.
//
// When to lies at or beyond the end of s, s is first extended with zero-value
// placeholders so that index to exists; the moved element then lands exactly
// at index to. An out-of-range from or a negative to returns s unchanged.
//
// Move may reallocate; callers must use the returned slice.
func Move[T any](s []T, from, to int) []T {
	if from < 0 || from >= len(s) || to < 0 {
		return s
	}
	if to >= len(s) {
		s = append(s, make([]T, to-len(s)+1)...)
	}
	if from == to {
		return s
	}

	v := s[from]
	if from < to {
		copy(s[from:to], s[from+1:to+1])
	} else {
		copy(s[to+1:from+1], s[to:from])
	}
	s[to] = v
	return s
}

// Each calls fn for every element of s in index order and returns s unchanged
// so calls can be chained. There is no early exit.
func Each[T any](s []T, fn func(T)) []T {
	for i := 0; i < len(s); i++ {
		fn(s[i])
	}
	return s
}
