package server

import (
	"sync"
	"time"
)

// HistoryEntry is an encoded batch frame kept for replay.
type HistoryEntry struct {
	Seq    uint64    // Batch sequence number
	Frame  []byte    // Encoded FrameBatch
	SentAt time.Time // When the frame was queued
}

// History is a ring buffer of recently sent batch frames. A client that
// missed frames asks for every batch after its last seq; the oldest entries
// are overwritten when the buffer is full.
type History struct {
	mu       sync.RWMutex
	entries  []*HistoryEntry
	head     int // Next write position
	count    int
	capacity int
	minSeq   uint64
	maxSeq   uint64
}

// NewHistory creates a history holding up to capacity frames.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{
		entries:  make([]*HistoryEntry, capacity),
		capacity: capacity,
	}
}

// Add stores a frame. Sequence numbers must increase; the frame is copied.
func (h *History) Add(seq uint64, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = &HistoryEntry{
		Seq:    seq,
		Frame:  append([]byte(nil), frame...),
		SentAt: time.Now(),
	}
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}

	h.maxSeq = seq
	if h.count == 1 {
		h.minSeq = seq
	} else if h.count == h.capacity {
		// head now points at the oldest entry
		h.minSeq = h.entries[h.head].Seq
	}
}

// Frames returns the frames for sequences (afterSeq, toSeq] in order, or
// nil when any of them is no longer held.
func (h *History) Frames(afterSeq, toSeq uint64) [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 || afterSeq >= toSeq {
		return nil
	}
	if afterSeq+1 < h.minSeq || toSeq > h.maxSeq {
		return nil
	}

	bySeq := make(map[uint64][]byte, h.count)
	for i := 0; i < h.count; i++ {
		e := h.entries[(h.head-h.count+i+h.capacity)%h.capacity]
		bySeq[e.Seq] = e.Frame
	}

	frames := make([][]byte, 0, toSeq-afterSeq)
	for seq := afterSeq + 1; seq <= toSeq; seq++ {
		f, ok := bySeq[seq]
		if !ok {
			return nil
		}
		frames = append(frames, f)
	}
	return frames
}

// CanRecover reports whether every batch after lastSeq is still held.
func (h *History) CanRecover(lastSeq uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count > 0 && lastSeq+1 >= h.minSeq && lastSeq < h.maxSeq
}

// Len returns the number of held frames.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
