package transport

import "sync"

const DefaultRecorderSize = 50

// Recorder keeps the last N exchanges in a ring. It is safe for concurrent
// use since the browser transport records from CDP event goroutines.
type Recorder struct {
	mu    sync.Mutex
	ring  []Exchange
	next  int
	count int
}

func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultRecorderSize
	}
	return &Recorder{ring: make([]Exchange, size)}
}

func (r *Recorder) Record(ex Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring[r.next] = ex
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
}

// Recent returns up to limit exchanges, newest first. limit <= 0 means all.
func (r *Recorder) Recent(limit int) []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Exchange, 0, n)
	idx := r.next
	for i := 0; i < n; i++ {
		idx = (idx - 1 + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
