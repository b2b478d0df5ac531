// Package journal holds the ordered history of analyses for one session.
// Insertion order is chronological order: the last record is always the
// most recent analysis, which the next prompt is built against.
package journal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fleveque/wyckoff-journal/internal/model"
)

var (
	// ErrNotEmpty is returned when restoring into a journal that already has records.
	ErrNotEmpty = errors.New("journal already has records")
	// ErrOutOfOrder is returned when restored records are not chronological.
	ErrOutOfOrder = errors.New("journal records are not in chronological order")
	// ErrMalformed is returned when an export document cannot be decoded.
	ErrMalformed = errors.New("malformed journal document")
)

// Journal is an append-only, in-memory list of AnalysisRecords.
// The HTTP handlers run on separate goroutines, hence the RWMutex.
type Journal struct {
	mu      sync.RWMutex
	records []model.AnalysisRecord
}

// New creates an empty journal. Its lifetime is owned by whoever constructs it.
func New() *Journal {
	return &Journal{}
}

// Append adds a record and returns it as stored. If the record's timestamp is
// earlier than the last one (wall clock moved backwards) it is raised to the
// last timestamp so the order stays non-decreasing.
func (j *Journal) Append(rec model.AnalysisRecord) model.AnalysisRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	if n := len(j.records); n > 0 {
		if last := j.records[n-1].Timestamp; rec.Timestamp.Before(last) {
			rec.Timestamp = last
		}
	}
	j.records = append(j.records, rec)
	return rec
}

// Len returns the number of records.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}

// Last returns the most recent record. ok is false when the journal is empty.
func (j *Journal) Last() (rec model.AnalysisRecord, ok bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if len(j.records) == 0 {
		return model.AnalysisRecord{}, false
	}
	return j.records[len(j.records)-1], true
}

// Records returns a copy of all records, oldest first.
func (j *Journal) Records() []model.AnalysisRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]model.AnalysisRecord, len(j.records))
	copy(out, j.records)
	return out
}

// Newest returns a copy of all records, newest first (display order).
func (j *Journal) Newest() []model.AnalysisRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]model.AnalysisRecord, len(j.records))
	for i, rec := range j.records {
		out[len(j.records)-1-i] = rec
	}
	return out
}

// Restore loads previously exported records into an empty journal.
func (j *Journal) Restore(records []model.AnalysisRecord) error {
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.Before(records[i-1].Timestamp) {
			return fmt.Errorf("record %d: %w", i, ErrOutOfOrder)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.records) > 0 {
		return ErrNotEmpty
	}
	j.records = make([]model.AnalysisRecord, len(records))
	copy(j.records, records)
	return nil
}
