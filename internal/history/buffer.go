// Package history provides the fixed-capacity sample buffers behind charts
// and anomaly baselines.
package history

const (
	// DefaultCapacity is the chart window size.
	DefaultCapacity = 60
	// MaxCapacity bounds long-horizon buffers.
	MaxCapacity = 10_000
	// AnomalyWindow is the baseline length of the bandwidth anomaly check.
	// A series must hold more samples than this before it is scored.
	AnomalyWindow = 100
)

// Buffer is an append-only FIFO ring of samples in chronological order.
// Once full, each Push evicts the oldest sample. A Buffer is not safe for
// concurrent use; its owner serializes access.
type Buffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
}

// New returns an empty buffer. Capacity is clamped to [1, MaxCapacity].
func New[T any](capacity int) *Buffer[T] {
	capacity = clampCapacity(capacity)
	return &Buffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

func clampCapacity(capacity int) int {
	if capacity < 1 {
		return 1
	}
	if capacity > MaxCapacity {
		return MaxCapacity
	}
	return capacity
}

// Push appends a sample, evicting the oldest one when the buffer is full.
func (b *Buffer[T]) Push(sample T) {
	if b.size < b.capacity {
		b.items[(b.head+b.size)%b.capacity] = sample
		b.size++
		return
	}
	b.items[b.head] = sample
	b.head = (b.head + 1) % b.capacity
}

// Len returns the number of stored samples.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the capacity.
func (b *Buffer[T]) Cap() int { return b.capacity }

// IsEmpty reports whether no sample has been pushed.
func (b *Buffer[T]) IsEmpty() bool { return b.size == 0 }

// at returns the i-th oldest sample.
func (b *Buffer[T]) at(i int) T {
	return b.items[(b.head+i)%b.capacity]
}

// Slice returns a copy of the n most recent samples, oldest first. n <= 0 or
// n larger than Len returns everything.
func (b *Buffer[T]) Slice(n int) []T {
	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]T, n)
	start := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.at(start + i)
	}
	return out
}

// Latest returns the newest sample.
func (b *Buffer[T]) Latest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.at(b.size - 1), true
}

// Update replaces the newest sample in place.
func (b *Buffer[T]) Update(fn func(*T)) bool {
	if b.size == 0 {
		return false
	}
	fn(&b.items[(b.head+b.size-1)%b.capacity])
	return true
}

// Max returns the largest sample according to less. Ties keep the oldest.
func (b *Buffer[T]) Max(less func(a, c T) bool) (T, bool) {
	var best T
	if b.size == 0 {
		return best, false
	}
	best = b.at(0)
	for i := 1; i < b.size; i++ {
		if v := b.at(i); less(best, v) {
			best = v
		}
	}
	return best, true
}

// Resize changes the capacity, keeping the most recent samples.
func (b *Buffer[T]) Resize(capacity int) {
	capacity = clampCapacity(capacity)
	if capacity == b.capacity {
		return
	}
	kept := b.Slice(capacity)
	b.items = make([]T, capacity)
	copy(b.items, kept)
	b.head = 0
	b.size = len(kept)
	b.capacity = capacity
}

// MaxFloat returns the largest value of a float buffer, 0 when empty.
func MaxFloat(b *Buffer[float64]) float64 {
	v, _ := b.Max(func(a, c float64) bool { return a < c })
	return v
}
