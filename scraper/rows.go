package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/landrec/config"
	"github.com/use-agent/landrec/models"
)

// RowExtractor walks search-result rows strictly one at a time. For a given
// row the operation order expand → extract → capture → collapse is a hard
// invariant: the detail panel's DOM does not exist before expansion and is
// stale after collapse.
type RowExtractor struct {
	session  *Session
	cfg      config.Portal
	capturer *Capturer // nil disables document capture
}

// NewRowExtractor creates a RowExtractor bound to the session.
func NewRowExtractor(s *Session, cfg config.Portal, capturer *Capturer) *RowExtractor {
	return &RowExtractor{session: s, cfg: cfg, capturer: capturer}
}

// Count returns the number of result rows currently mounted.
func (e *RowExtractor) Count(ctx context.Context) (int, error) {
	p := e.session.Page.Context(ctx)
	rows, err := p.Elements(selResultRow)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Process runs the full row state machine for the row at index and returns
// the populated record. Any failure is reported to the caller for per-row
// accounting; the collapse step is still attempted on the way out.
func (e *RowExtractor) Process(ctx context.Context, index int) (*models.RecordEntry, error) {
	p := e.session.Page.Context(ctx)

	if err := WaitOverlayGone(p, e.cfg.OverlayTimeout); err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "loading overlay never cleared", err)
	}

	// The framework re-renders the list after each capture round-trip, so
	// rows are re-queried per index instead of held across iterations.
	rows, err := p.Elements(selResultRow)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "result rows query failed", err)
	}
	row, err := rowAt(rows, index)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, err.Error(), nil)
	}

	summary, err := row.Timeout(e.cfg.PanelTimeout).Element(selRowSummary)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "row summary not found", err)
	}

	// Collapse runs whatever happens past this point; skipping it would
	// leave the next row's click landing on this row's open panel.
	defer e.collapse(p, index)

	detail, err := e.expand(row, summary)
	if err != nil {
		return nil, err
	}

	rec, err := e.extract(row, detail)
	if err != nil {
		return nil, err
	}

	if e.capturer != nil {
		if has, icon, herr := row.Has(selDocImageIcon); herr == nil && has {
			if visible, verr := icon.Visible(); verr == nil && visible {
				rec.PDFLocation = e.capturer.Capture(ctx, rec.DocumentNo)
			}
		}
	}

	return rec, nil
}

// expand clicks the row summary and waits for the detail panel to show.
func (e *RowExtractor) expand(row, summary *rod.Element) (*rod.Element, error) {
	if err := ClickWithFallback(summary); err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "row expand click failed", err)
	}
	detail, err := row.Timeout(e.cfg.PanelTimeout).Element(selRowDetail)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "detail panel never appeared", err)
	}
	if err := detail.WaitVisible(); err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "detail panel never became visible", err)
	}
	return detail, nil
}

// extract snapshots the detail panel and maps its rendered fields onto a
// record. The document number comes from the row's identifier control, the
// two primary-content values are positional (date first, type second), and
// the remaining fields are section/label lookups on the snapshot.
func (e *RowExtractor) extract(row, detail *rod.Element) (*models.RecordEntry, error) {
	docNoEl, err := row.Timeout(e.cfg.PanelTimeout).Element(selDocNumber)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "document number control not found", err)
	}
	docNoText, err := docNoEl.Text()
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "document number unreadable", err)
	}
	docNo := strings.TrimSpace(docNoText)
	if docNo == "" {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "row has no visible document number", nil)
	}

	html, err := detail.HTML()
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "detail panel snapshot failed", err)
	}
	panel, err := ParsePanel(html)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRowFailed, "detail panel parse failed", err)
	}

	return &models.RecordEntry{
		DocumentNo:          docNo,
		RecordedDate:        panel.PrimaryContent(0),
		DocumentType:        panel.PrimaryContent(1),
		Consideration:       panel.LabelValue(sectionDetails, labelConsideration),
		Notes:               panel.LabelValue(sectionDetails, labelNotes),
		Party1:              panel.SublistItems(sectionParties, markerParty1),
		Party2:              panel.SublistItems(sectionParties, markerParty2),
		AssociatedDocuments: panel.SectionItems(sectionAssociated),
		Legals:              panel.SectionItems(sectionLegals),
		PDFLocation:         "",
	}, nil
}

// collapse re-clicks the row summary and briefly waits for the panel to
// hide. The row is resolved from a fresh query: the capture round-trip
// re-renders the list, and a handle captured before it would be detached.
// Some rows keep the detail node mounted after the framework re-render, so a
// failed hide-wait is not proof of failure; everything here is best-effort
// and only logged.
func (e *RowExtractor) collapse(p *rod.Page, index int) {
	rows, err := p.Elements(selResultRow)
	if err != nil {
		slog.Debug("row collapse: rows query failed", "error", err)
		return
	}
	row, err := rowAt(rows, index)
	if err != nil {
		slog.Debug("row collapse: " + err.Error())
		return
	}
	summary, err := row.Timeout(e.cfg.PanelTimeout).Element(selRowSummary)
	if err != nil {
		slog.Debug("row collapse: summary not found", "error", err)
		return
	}
	if err := ClickWithFallback(summary); err != nil {
		slog.Debug("row collapse click failed", "error", err)
		return
	}
	if has, detail, herr := row.Has(selRowDetail); herr == nil && has {
		if err := detail.Timeout(2 * time.Second).WaitInvisible(); err != nil {
			slog.Debug("detail panel did not hide after collapse", "error", err)
		}
	}
}

// rowAt bounds-checks a freshly queried row slice and hands back the live
// handle at index.
func rowAt(rows []*rod.Element, index int) (*rod.Element, error) {
	if index < 0 || index >= len(rows) {
		return nil, fmt.Errorf("row %d not present after re-render (%d rows)", index, len(rows))
	}
	return rows[index], nil
}
