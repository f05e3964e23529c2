package scraper

import (
	"testing"

	"github.com/go-rod/rod"
)

// Collapse resolves its row through rowAt on a fresh query instead of any
// handle captured before the capture round-trip re-rendered the list.
func TestRowAt(t *testing.T) {
	rows := []*rod.Element{{}, {}, {}}

	got, err := rowAt(rows, 1)
	if err != nil {
		t.Fatalf("rowAt: %v", err)
	}
	if got != rows[1] {
		t.Error("rowAt returned a different handle than the queried slice")
	}

	for _, index := range []int{-1, 3} {
		if _, err := rowAt(rows, index); err == nil {
			t.Errorf("rowAt(%d) on 3 rows: expected an error", index)
		}
	}
	if _, err := rowAt(nil, 0); err == nil {
		t.Error("rowAt on an empty query must fail")
	}
}
