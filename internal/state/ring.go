package state

// Ring keeps the last Cap() values pushed into it. It is not safe for
// concurrent use; Store guards each ring with its channel's lock.
type Ring[T any] struct {
	buf  []T
	head int // next write position
	size int
}

// NewRing returns an empty ring holding at most capacity values.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when the ring is full.
func (r *Ring[T]) Push(v T) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// At returns the i-th most recent value; 0 is the last one pushed.
func (r *Ring[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.size {
		return zero, false
	}
	idx := (r.head - 1 - i + len(r.buf)) % len(r.buf)
	return r.buf[idx], true
}

// Last returns up to n values, most recent first.
func (r *Ring[T]) Last(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v, _ := r.At(i)
		out = append(out, v)
	}
	return out
}

func (r *Ring[T]) Len() int { return r.size }
func (r *Ring[T]) Cap() int { return len(r.buf) }
