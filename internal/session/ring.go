package session

// ring is a fixed-size circular buffer that overwrites its oldest entry when
// full. It is not safe for concurrent use; Session guards it with its mutex.
type ring[T any] struct {
	buf  []T
	head int // next write position
	n    int
}

func newRing[T any](size int) *ring[T] {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &ring[T]{buf: make([]T, size)}
}

func (r *ring[T]) push(items ...T) {
	for _, it := range items {
		r.buf[r.head] = it
		r.head = (r.head + 1) % len(r.buf)
		if r.n < len(r.buf) {
			r.n++
		}
	}
}

// items returns the contents oldest first.
func (r *ring[T]) items() []T {
	out := make([]T, 0, r.n)
	if r.n < len(r.buf) {
		return append(out, r.buf[:r.n]...)
	}
	out = append(out, r.buf[r.head:]...)
	return append(out, r.buf[:r.head]...)
}

func (r *ring[T]) len() int { return r.n }
