package cubeview

import (
	Ct "github.com/maroda/cubeview/types"
)

// DefaultHistoryCapacity is the number of operations remembered
const DefaultHistoryCapacity = 50

// History is a fixed ring of applied operations.
// Once full, each new record overwrites the oldest.
type History struct {
	Records []Ct.HistoryRecord
	MaxSize int
	Current int // next write position
	Count   int
}

// NewHistory creates a ring of the given capacity; anything below 1 uses the default
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		Records: make([]Ct.HistoryRecord, capacity),
		MaxSize: capacity,
	}
}

// Add records an operation
func (h *History) Add(rec Ct.HistoryRecord) {
	h.Records[h.Current] = rec
	h.Current = (h.Current + 1) % h.MaxSize
	if h.Count < h.MaxSize {
		h.Count++
	}
}

// List returns a copy of the records, oldest first
func (h *History) List() []Ct.HistoryRecord {
	out := make([]Ct.HistoryRecord, h.Count)
	start := (h.Current - h.Count + h.MaxSize) % h.MaxSize
	for i := 0; i < h.Count; i++ {
		out[i] = h.Records[(start+i)%h.MaxSize]
	}
	return out
}

// Last returns the newest record
func (h *History) Last() (Ct.HistoryRecord, bool) {
	if h.Count == 0 {
		return Ct.HistoryRecord{}, false
	}
	return h.Records[(h.Current-1+h.MaxSize)%h.MaxSize], true
}

func (h *History) Len() int { return h.Count }

func (h *History) Cap() int { return h.MaxSize }

// Reset forgets every record
func (h *History) Reset() {
	clear(h.Records)
	h.Current = 0
	h.Count = 0
}
