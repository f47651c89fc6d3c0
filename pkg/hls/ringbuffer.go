package hls

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Unbounded marks a RingBuffer with no eviction: every emitted segment
// is retained (event-recording mode).
const Unbounded = -1

// RingBuffer retains up to a fixed number of the most recently emitted
// segments, evicting the oldest on overflow. Capacity 0 disables
// retention entirely; Unbounded disables eviction.
type RingBuffer struct {
	mu       sync.RWMutex
	capacity int
	segments []*Segment
	byIndex  map[int]*Segment
}

// NewRingBuffer creates a RingBuffer with the given capacity (0, a
// positive count, or Unbounded).
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		capacity: capacity,
		byIndex:  make(map[int]*Segment),
	}
}

// Append adds seg to the buffer, evicting the oldest entry if the
// buffer is at capacity. A capacity-0 buffer discards seg immediately.
func (r *RingBuffer) Append(seg *Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capacity == 0 {
		return
	}

	r.segments = append(r.segments, seg)
	r.byIndex[seg.Index] = seg

	if r.capacity != Unbounded && len(r.segments) > r.capacity {
		evicted := r.segments[0]
		r.segments = r.segments[1:]
		delete(r.byIndex, evicted.Index)
	}
}

// Lookup returns the segment with the given index, or false if it has
// been evicted or was never retained.
func (r *RingBuffer) Lookup(index int) (*Segment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seg, ok := r.byIndex[index]
	return seg, ok
}

// Segments returns a snapshot slice of all currently retained segments,
// oldest first.
func (r *RingBuffer) Segments() []*Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Segment, len(r.segments))
	copy(out, r.segments)
	return out
}

// Len returns the number of segments currently retained.
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segments)
}

// Indices returns the index set of all currently retained segments,
// oldest first.
func (r *RingBuffer) Indices() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, len(r.segments))
	for i, s := range r.segments {
		out[i] = s.Index
	}
	return out
}

// Range returns the retained segments whose index lies in
// [fromIndex, toIndex], oldest first. Retained segments are always
// index-sorted (indices are assigned densely and monotonically by the
// Segmenter), so the bounds are located with a binary search rather
// than a linear scan.
func (r *RingBuffer) Range(fromIndex, toIndex int) []*Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lo, _ := slices.BinarySearchFunc(r.segments, fromIndex, func(s *Segment, target int) int {
		return s.Index - target
	})
	hi, found := slices.BinarySearchFunc(r.segments, toIndex, func(s *Segment, target int) int {
		return s.Index - target
	})
	if found {
		hi++
	}
	if lo >= hi {
		return nil
	}
	out := make([]*Segment, hi-lo)
	copy(out, r.segments[lo:hi])
	return out
}
