package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/landrec/models"
)

type fakeSearcher struct {
	failures int // attempts that fail before the first success
	calls    int
	lastRng  models.SearchRange
}

func (s *fakeSearcher) Submit(_ context.Context, r models.SearchRange) error {
	s.calls++
	s.lastRng = r
	if s.calls <= s.failures {
		return errors.New("portal hiccup")
	}
	return nil
}

type fakeRows struct {
	records []*models.RecordEntry
	failAt  map[int]bool
}

func (f *fakeRows) Count(context.Context) (int, error) { return len(f.records), nil }

func (f *fakeRows) Process(_ context.Context, i int) (*models.RecordEntry, error) {
	if f.failAt[i] {
		return nil, errors.New("row exploded")
	}
	return f.records[i], nil
}

type memSink struct {
	pushed []*models.RecordEntry
	closed bool
}

func (s *memSink) Push(_ context.Context, rec *models.RecordEntry) error {
	s.pushed = append(s.pushed, rec)
	return nil
}

func (s *memSink) Close() error {
	s.closed = true
	return nil
}

type fakeExporter struct{ calls int }

func (e *fakeExporter) Export(context.Context) error {
	e.calls++
	return nil
}

type fakeCheckpoint struct {
	cp  *models.Checkpoint
	err error
}

func (f *fakeCheckpoint) Read(context.Context) (*models.Checkpoint, error) { return f.cp, f.err }

type recordingStatus struct {
	progress []string
	terminal []string
}

func (r *recordingStatus) Progress(msg string) { r.progress = append(r.progress, msg) }
func (r *recordingStatus) Terminal(msg string) { r.terminal = append(r.terminal, msg) }

func nRecords(n int) []*models.RecordEntry {
	recs := make([]*models.RecordEntry, n)
	for i := range recs {
		recs[i] = &models.RecordEntry{DocumentNo: fmt.Sprintf("2024-%04d", i)}
	}
	return recs
}

func testOptions() Options {
	return Options{
		Range:          models.SearchRange{StartDate: "07/01/2024", EndDate: "07/31/2024"},
		SearchAttempts: 3,
		SearchBackoff:  time.Millisecond,
	}
}

func TestRun_ZeroRows(t *testing.T) {
	st := &recordingStatus{}
	exp := &fakeExporter{}
	sink := &memSink{}

	p := New(Deps{
		Search:   &fakeSearcher{},
		Rows:     &fakeRows{},
		Sink:     sink,
		Exporter: exp,
		Status:   st,
	}, testOptions())

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.TotalAttempted != 0 {
		t.Errorf("attempted = %d, want 0", outcome.TotalAttempted)
	}
	if len(st.terminal) != 1 || !strings.Contains(st.terminal[0], "no records") {
		t.Errorf("terminal = %v, want a single no-records status", st.terminal)
	}
	if exp.calls != 0 {
		t.Errorf("exporter ran %d times on an empty run", exp.calls)
	}
}

func TestRun_RowFailureIsolation(t *testing.T) {
	st := &recordingStatus{}
	sink := &memSink{}
	rows := &fakeRows{records: nRecords(4), failAt: map[int]bool{1: true}}

	p := New(Deps{Search: &fakeSearcher{}, Rows: rows, Sink: sink, Status: st}, testOptions())

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.Failed != 1 {
		t.Errorf("failed = %d, want 1", outcome.Failed)
	}
	if outcome.Succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", outcome.Succeeded)
	}
	if outcome.TotalAttempted != 4 {
		t.Errorf("attempted = %d, want 4", outcome.TotalAttempted)
	}
	if len(sink.pushed) != 3 {
		t.Errorf("pushed %d records, want 3", len(sink.pushed))
	}
	if !sink.closed {
		t.Error("sink never closed")
	}
}

func TestRun_SearchRetryThenSucceed(t *testing.T) {
	st := &recordingStatus{}
	search := &fakeSearcher{failures: 2}
	sink := &memSink{}

	p := New(Deps{Search: search, Rows: &fakeRows{records: nRecords(2)}, Sink: sink, Status: st}, testOptions())

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if search.calls != 3 {
		t.Errorf("search attempts = %d, want 3", search.calls)
	}
	if outcome.Succeeded != 2 {
		t.Errorf("succeeded = %d, want the full row loop", outcome.Succeeded)
	}
}

func TestRun_SearchRetryExhausted(t *testing.T) {
	st := &recordingStatus{}
	search := &fakeSearcher{failures: 3}

	p := New(Deps{Search: search, Rows: &fakeRows{records: nRecords(2)}, Sink: &memSink{}, Status: st}, testOptions())

	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected a fatal error after exhausted retries")
	}
	var perr *models.PipelineError
	if !errors.As(err, &perr) || perr.Code != models.ErrCodeSearchFailed {
		t.Errorf("error = %v, want code %s", err, models.ErrCodeSearchFailed)
	}
	if len(st.terminal) != 1 || !strings.Contains(st.terminal[0], "fatal") {
		t.Errorf("terminal = %v, want a single fatal status", st.terminal)
	}
}

func TestRun_CheckpointAdjustsStartDate(t *testing.T) {
	search := &fakeSearcher{}
	cp := &fakeCheckpoint{cp: &models.Checkpoint{LastProcessedDate: "06/30/2024"}}

	p := New(Deps{
		Search:     search,
		Rows:       &fakeRows{records: nRecords(1)},
		Sink:       &memSink{},
		Checkpoint: cp,
		Status:     &recordingStatus{},
	}, testOptions())

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if search.lastRng.StartDate != "07/01/2024" {
		t.Errorf("resumed start date = %q, want 07/01/2024", search.lastRng.StartDate)
	}
	if search.lastRng.EndDate != "07/31/2024" {
		t.Errorf("end date = %q, want unchanged", search.lastRng.EndDate)
	}
}

func TestRun_CheckpointReadFailureIsIgnored(t *testing.T) {
	search := &fakeSearcher{}
	cp := &fakeCheckpoint{err: errors.New("state store down")}

	p := New(Deps{
		Search:     search,
		Rows:       &fakeRows{records: nRecords(1)},
		Sink:       &memSink{},
		Checkpoint: cp,
		Status:     &recordingStatus{},
	}, testOptions())

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("checkpoint trouble must not fail the run: %v", err)
	}
	if search.lastRng.StartDate != "07/01/2024" {
		t.Errorf("start date = %q, want the configured range", search.lastRng.StartDate)
	}
}

func TestRun_MaxRowsCap(t *testing.T) {
	opts := testOptions()
	opts.MaxRows = 2

	p := New(Deps{
		Search: &fakeSearcher{},
		Rows:   &fakeRows{records: nRecords(5)},
		Sink:   &memSink{},
		Status: &recordingStatus{},
	}, opts)

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.TotalAttempted != 2 {
		t.Errorf("attempted = %d, want the configured cap", outcome.TotalAttempted)
	}
}

func TestRun_SinkClosedOnEveryExit(t *testing.T) {
	cases := []struct {
		name string
		deps func(sink *memSink) Deps
	}{
		{"success", func(sink *memSink) Deps {
			return Deps{Search: &fakeSearcher{}, Rows: &fakeRows{records: nRecords(1)}, Sink: sink}
		}},
		{"zero rows", func(sink *memSink) Deps {
			return Deps{Search: &fakeSearcher{}, Rows: &fakeRows{}, Sink: sink}
		}},
		{"fatal search", func(sink *memSink) Deps {
			return Deps{Search: &fakeSearcher{failures: 3}, Rows: &fakeRows{}, Sink: sink}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &memSink{}
			deps := tc.deps(sink)
			deps.Status = &recordingStatus{}
			p := New(deps, testOptions())
			_, _ = p.Run(context.Background())
			if !sink.closed {
				t.Error("sink left open")
			}
		})
	}
}

func TestRun_TerminalEmittedExactlyOnce(t *testing.T) {
	cases := []struct {
		name string
		deps func() Deps
	}{
		{"success", func() Deps {
			return Deps{Search: &fakeSearcher{}, Rows: &fakeRows{records: nRecords(1)}, Sink: &memSink{}}
		}},
		{"zero rows", func() Deps {
			return Deps{Search: &fakeSearcher{}, Rows: &fakeRows{}, Sink: &memSink{}}
		}},
		{"fatal search", func() Deps {
			return Deps{Search: &fakeSearcher{failures: 3}, Rows: &fakeRows{}, Sink: &memSink{}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := &recordingStatus{}
			deps := tc.deps()
			deps.Status = st
			p := New(deps, testOptions())
			_, _ = p.Run(context.Background())
			if len(st.terminal) != 1 {
				t.Errorf("terminal emitted %d times, want exactly once: %v", len(st.terminal), st.terminal)
			}
		})
	}
}
