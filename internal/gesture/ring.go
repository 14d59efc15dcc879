package gesture

// Ring is a fixed-capacity FIFO of labels that keeps a running count per
// label. Pushing into a full ring evicts the oldest entry.
type Ring struct {
	buf    []Label
	head   int // index of the oldest entry
	size   int
	counts map[Label]int
}

// NewRing creates a Ring holding at most capacity labels. Capacity below one
// is raised to one.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		buf:    make([]Label, capacity),
		counts: make(map[Label]int),
	}
}

// Push appends l, evicting the oldest label when full.
func (r *Ring) Push(l Label) {
	if r.size == len(r.buf) {
		old := r.buf[r.head]
		r.counts[old]--
		if r.counts[old] == 0 {
			delete(r.counts, old)
		}
		r.buf[r.head] = l
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.buf[(r.head+r.size)%len(r.buf)] = l
		r.size++
	}
	r.counts[l]++
}

// Count returns how many of the buffered labels equal l.
func (r *Ring) Count(l Label) int {
	return r.counts[l]
}

// Len returns the number of buffered labels.
func (r *Ring) Len() int { return r.size }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Labels returns the buffered labels, oldest first.
func (r *Ring) Labels() []Label {
	out := make([]Label, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Reset empties the ring.
func (r *Ring) Reset() {
	r.head = 0
	r.size = 0
	for k := range r.counts {
		delete(r.counts, k)
	}
}
