package models

import "time"

// DateLayout is the portal's calendar-date format (MM/DD/YYYY). Search
// inputs, checkpoint values and recorded dates all use it.
const DateLayout = "01/02/2006"

// SearchRange is the inclusive recorded-date window submitted to the portal
// search form. It is mutable only before submission; resume logic may
// override StartDate.
type SearchRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// RecordEntry is one search-result row, flattened. It is fully populated by
// the row extractor before being handed to the record sink and never
// mutated afterward.
//
// PDFLocation is an empty string (not nil) when document capture was not
// attempted or failed; otherwise it is a local path or, on a cloud
// deployment, an object URL.
type RecordEntry struct {
	DocumentNo          string   `json:"documentNo"`
	RecordedDate        string   `json:"recordedDate"`
	DocumentType        string   `json:"documentType"`
	Consideration       string   `json:"consideration"`
	Notes               string   `json:"notes"`
	Party1              []string `json:"party1"`
	Party2              []string `json:"party2"`
	AssociatedDocuments []string `json:"associatedDocuments"`
	Legals              []string `json:"legals"`
	PDFLocation         string   `json:"pdfLocation"`
}

// RunOutcome aggregates per-row results across the row loop. It is consumed
// only for the final terminal status.
type RunOutcome struct {
	TotalAttempted int `json:"totalAttempted"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
}

// Checkpoint is the externally persisted resume marker. This core only ever
// reads it.
type Checkpoint struct {
	LastProcessedDate string `json:"lastProcessedDate" firestore:"lastProcessedDate"`
}

// NextStartDate returns the day after the checkpoint date, formatted with
// DateLayout. ok is false when the checkpoint is empty or unparseable, in
// which case the caller keeps its configured start date.
func (c *Checkpoint) NextStartDate() (string, bool) {
	if c == nil || c.LastProcessedDate == "" {
		return "", false
	}
	t, err := time.Parse(DateLayout, c.LastProcessedDate)
	if err != nil {
		return "", false
	}
	return t.AddDate(0, 0, 1).Format(DateLayout), true
}
