// Package shmring provides single-producer single-consumer byte rings with
// edge-triggered readiness channels, plus a handle registry so rings can be
// named across module boundaries without sharing pointers in payloads.
package shmring

import "sync/atomic"

// Ring is a single-producer single-consumer byte queue. Capacity is a power
// of two; head and tail are free-running uint32 counters masked on access,
// so the whole buffer is usable and empty never aliases full.
type Ring struct {
	buf  []byte
	mask uint32
	head atomic.Uint32 // consumer position
	tail atomic.Uint32 // producer position

	readable chan struct{} // signalled on the empty to non-empty edge
	writable chan struct{} // signalled on the full to non-full edge
}

// New allocates a ring. Size must be a power of two, at least 2.
func New(size int) *Ring {
	if size < 2 || size&(size-1) != 0 {
		panic("shmring: size must be a power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

// Available reports bytes ready to read.
func (r *Ring) Available() int { return int(r.tail.Load() - r.head.Load()) }

// Space reports bytes that can be written without waiting.
func (r *Ring) Space() int { return len(r.buf) - r.Available() }

// Watermarks exposes the raw counters for diagnostics.
func (r *Ring) Watermarks() (rd, wr uint32) { return r.head.Load(), r.tail.Load() }

// Readable signals the empty to non-empty transition. A receive does not
// guarantee data is still present; recheck, then block again.
func (r *Ring) Readable() <-chan struct{} { return r.readable }

// Writable signals the full to non-full transition.
func (r *Ring) Writable() <-chan struct{} { return r.writable }

// spans maps n counter positions starting at from onto the buffer, split at
// the wrap point. Callers consume a fully before touching b.
func (r *Ring) spans(from, n uint32) (a, b []byte) {
	i := from & r.mask
	first := uint32(len(r.buf)) - i
	if first > n {
		first = n
	}
	a = r.buf[i : i+first]
	if n > first {
		b = r.buf[:n-first]
	}
	return a, b
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ---- Producer side ----

// WriteAcquire exposes the free region as up to two spans. Fill them in
// order, then WriteCommit the byte count.
func (r *Ring) WriteAcquire() (p1, p2 []byte) {
	head := r.head.Load()
	tail := r.tail.Load()
	free := uint32(len(r.buf)) - (tail - head)
	if free == 0 {
		return nil, nil
	}
	return r.spans(tail, free)
}

// WriteCommit publishes n bytes filled through WriteAcquire.
func (r *Ring) WriteCommit(n int) {
	if n <= 0 {
		return
	}
	head := r.head.Load()
	tail := r.tail.Load()
	r.tail.Store(tail + uint32(n))
	if tail == head { // was empty
		wake(r.readable)
	}
}

// TryWriteFrom copies as much of src as fits, returning the count.
func (r *Ring) TryWriteFrom(src []byte) int {
	head := r.head.Load()
	tail := r.tail.Load()
	free := uint32(len(r.buf)) - (tail - head)
	n := uint32(len(src))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}
	a, b := r.spans(tail, n)
	copy(a, src)
	if len(b) > 0 {
		copy(b, src[len(a):])
	}
	r.tail.Store(tail + n)
	if tail == head {
		wake(r.readable)
	}
	return int(n)
}

// ---- Consumer side ----

// ReadAcquire exposes buffered data as up to two spans. Consume them in
// order, then ReadRelease the byte count.
func (r *Ring) ReadAcquire() (p1, p2 []byte) {
	head := r.head.Load()
	tail := r.tail.Load()
	avail := tail - head
	if avail == 0 {
		return nil, nil
	}
	return r.spans(head, avail)
}

// ReadRelease frees n bytes obtained through ReadAcquire.
func (r *Ring) ReadRelease(n int) {
	if n <= 0 {
		return
	}
	head := r.head.Load()
	tail := r.tail.Load()
	r.head.Store(head + uint32(n))
	if tail-head == uint32(len(r.buf)) { // was full
		wake(r.writable)
	}
}

// TryReadInto copies up to len(dst) buffered bytes, returning the count.
func (r *Ring) TryReadInto(dst []byte) int {
	head := r.head.Load()
	tail := r.tail.Load()
	avail := tail - head
	n := uint32(len(dst))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}
	a, b := r.spans(head, n)
	copy(dst, a)
	if len(b) > 0 {
		copy(dst[len(a):], b)
	}
	r.head.Store(head + n)
	if tail-head == uint32(len(r.buf)) {
		wake(r.writable)
	}
	return int(n)
}
