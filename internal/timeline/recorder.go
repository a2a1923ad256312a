// Package timeline accumulates Gantt segments and per-tick snapshots. It is
// purely observational and never influences scheduling.
package timeline

import "github.com/me/rrsim/pkg/model"

// Recorder is an append-only log of timeline entries and iteration snapshots.
type Recorder struct {
	segments   []model.TimelineEntry
	iterations []model.IterationSnapshot
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a Gantt segment.
func (r *Recorder) Record(entry model.TimelineEntry) {
	r.segments = append(r.segments, entry)
}

// Snapshot appends an iteration snapshot.
func (r *Recorder) Snapshot(iter model.IterationSnapshot) {
	r.iterations = append(r.iterations, iter.Clone())
}

// GanttSegments returns a copy of all recorded segments in append order.
func (r *Recorder) GanttSegments() []model.TimelineEntry {
	return append([]model.TimelineEntry{}, r.segments...)
}

// SegmentsSince returns a copy of the segments appended at or after offset.
func (r *Recorder) SegmentsSince(offset int) []model.TimelineEntry {
	if offset >= len(r.segments) {
		return []model.TimelineEntry{}
	}
	return append([]model.TimelineEntry(nil), r.segments[offset:]...)
}

// IterationHistory returns a copy of all snapshots in append order.
func (r *Recorder) IterationHistory() []model.IterationSnapshot {
	out := make([]model.IterationSnapshot, len(r.iterations))
	for i, it := range r.iterations {
		out[i] = it.Clone()
	}
	return out
}

// Latest returns the most recent snapshot.
func (r *Recorder) Latest() (model.IterationSnapshot, bool) {
	if len(r.iterations) == 0 {
		return model.IterationSnapshot{}, false
	}
	return r.iterations[len(r.iterations)-1].Clone(), true
}

// Len returns the number of recorded segments.
func (r *Recorder) Len() int {
	return len(r.segments)
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.segments = nil
	r.iterations = nil
}
