// Package export writes extracted records to a delimited text file. The
// file uses '|' as the field separator (field values routinely contain
// commas) and ';' to join multi-value fields.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/use-agent/landrec/models"
)

// Delimiter separates fields; ListSeparator joins list elements.
const (
	Delimiter     = '|'
	ListSeparator = ";"
)

// Header is the export file's first row.
var Header = []string{
	"documentNo", "recordedDate", "documentType", "consideration", "notes",
	"party1", "party2", "associatedDocuments", "legals", "pdfLocation",
}

// Writer is a streaming record sink backed by a delimited file. Each pushed
// record is written and flushed immediately so a mid-run crash loses at
// most the row in flight. The file (and its header) is created lazily on
// the first push; a run with zero records produces no file.
type Writer struct {
	path  string
	file  *os.File
	csv   *csv.Writer
	count int
}

// NewWriter creates a Writer targeting path. Nothing is written until the
// first Push.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Push appends one record and flushes.
func (w *Writer) Push(_ context.Context, rec *models.RecordEntry) error {
	if w.file == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	if err := w.csv.Write(ToRow(rec)); err != nil {
		return fmt.Errorf("export: write record %s: %w", rec.DocumentNo, err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("export: flush record %s: %w", rec.DocumentNo, err)
	}
	w.count++
	return nil
}

// Count reports how many records have been written.
func (w *Writer) Count() int { return w.count }

// Path reports the target file path.
func (w *Writer) Path() string { return w.path }

// Close flushes and closes the underlying file. Safe to call when nothing
// was ever written.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (w *Writer) open() error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create output dir: %w", err)
		}
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", w.path, err)
	}
	cw := csv.NewWriter(f)
	cw.Comma = Delimiter
	if err := cw.Write(Header); err != nil {
		_ = f.Close()
		return fmt.Errorf("export: write header: %w", err)
	}
	w.file = f
	w.csv = cw
	return nil
}

// ToRow flattens a record into one delimited row, list fields joined with
// ListSeparator.
func ToRow(rec *models.RecordEntry) []string {
	return []string{
		rec.DocumentNo,
		rec.RecordedDate,
		rec.DocumentType,
		rec.Consideration,
		rec.Notes,
		joinList(rec.Party1),
		joinList(rec.Party2),
		joinList(rec.AssociatedDocuments),
		joinList(rec.Legals),
		rec.PDFLocation,
	}
}

// FromRow is the inverse of ToRow for rows whose list elements contain no
// ListSeparator.
func FromRow(row []string) (*models.RecordEntry, error) {
	if len(row) != len(Header) {
		return nil, fmt.Errorf("export: row has %d fields, want %d", len(row), len(Header))
	}
	return &models.RecordEntry{
		DocumentNo:          row[0],
		RecordedDate:        row[1],
		DocumentType:        row[2],
		Consideration:       row[3],
		Notes:               row[4],
		Party1:              splitList(row[5]),
		Party2:              splitList(row[6]),
		AssociatedDocuments: splitList(row[7]),
		Legals:              splitList(row[8]),
		PDFLocation:         row[9],
	}, nil
}

func joinList(items []string) string {
	return strings.Join(items, ListSeparator)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ListSeparator)
}
