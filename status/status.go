// Package status carries the run's advisory progress reporting: coarse
// human-readable statements plus exactly one terminal status per run.
package status

import (
	"log/slog"
	"sync"
	"time"
)

// Sink receives progress statements and the single terminal status. Sinks
// are advisory, never control flow.
type Sink interface {
	Progress(msg string)
	Terminal(msg string)
}

// LogSink writes statements to the structured logger.
type LogSink struct{}

func (LogSink) Progress(msg string) { slog.Info(msg) }
func (LogSink) Terminal(msg string) { slog.Info(msg, "terminal", true) }

// MultiSink fans statements out to several sinks.
type MultiSink []Sink

// Multi combines sinks into one.
func Multi(sinks ...Sink) MultiSink { return MultiSink(sinks) }

func (m MultiSink) Progress(msg string) {
	for _, s := range m {
		s.Progress(msg)
	}
}

func (m MultiSink) Terminal(msg string) {
	for _, s := range m {
		s.Terminal(msg)
	}
}

// Snapshot is the live run state served by the status API.
type Snapshot struct {
	Phase     string    `json:"phase"`
	Row       int       `json:"row"`
	TotalRows int       `json:"totalRows"`
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"startedAt"`
}

// Tracker holds the snapshot behind a mutex; the pipeline writes it while
// the status API reads it concurrently.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewTracker creates a Tracker in the "starting" phase.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Phase: "starting", StartedAt: time.Now()}}
}

// SetPhase records the pipeline phase.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Phase = phase
}

// SetRows records the total row count for this run.
func (t *Tracker) SetRows(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.TotalRows = total
}

// SetRow records the 1-based row currently being processed.
func (t *Tracker) SetRow(row int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Row = row
}

// Record accounts one finished row.
func (t *Tracker) Record(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Attempted++
	if ok {
		t.snap.Succeeded++
	} else {
		t.snap.Failed++
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
