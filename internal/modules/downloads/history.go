package downloads

import (
	"sync"
	"time"
)

const defaultMaxRecords = 100

// Record is one finished download job of the session
type Record struct {
	JobID       string
	Repo        string
	Tag         string
	Asset       string
	Size        int64
	Destination string
	Success     bool
	Message     string
	Started     time.Time
	Finished    time.Time
}

// Duration returns how long the job ran
func (r Record) Duration() time.Duration {
	if r.Finished.Before(r.Started) {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// History keeps the most recent records of the session in memory
type History struct {
	mu      sync.Mutex
	records []Record
	max     int
}

// NewHistory returns an empty history
func NewHistory() *History {
	return &History{max: defaultMaxRecords}
}

// Add records a finished job, dropping the oldest beyond the limit
func (h *History) Add(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	if len(h.records) > h.max {
		h.records = h.records[len(h.records)-h.max:]
	}
}

// Records returns the records newest first
func (h *History) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.records))
	for i, r := range h.records {
		out[len(h.records)-1-i] = r
	}
	return out
}

// Clear forgets every record
func (h *History) Clear() {
	h.mu.Lock()
	h.records = nil
	h.mu.Unlock()
}

// Len returns the number of records
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
