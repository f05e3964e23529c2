package scraper

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/landrec/config"
	"github.com/use-agent/landrec/models"
)

// SearchController fills the date range on the portal's entry form and
// submits it. Submit performs a single attempt; the orchestrator owns the
// bounded retry and treats exhaustion as fatal.
type SearchController struct {
	session *Session
	cfg     config.Portal
}

// NewSearchController creates a SearchController bound to the session.
func NewSearchController(s *Session, cfg config.Portal) *SearchController {
	return &SearchController{session: s, cfg: cfg}
}

// Submit navigates to the portal entry URL, fills the two date fields,
// clicks the submit control, and waits for the results to settle.
//
// Lifecycle:
//
//  1. Navigate + initial DOM readiness
//  2. Fill dates          – overwrite any default value
//  3. Idle listener setup – MUST be registered before the click, or
//     in-flight requests are missed (false idle)
//  4. Click submit        – scoped to the top form; the page renders two
//     visually distinct submit buttons
//  5. Network idle + settle delay – the results list mounts asynchronously
//     after the network quiesces
func (c *SearchController) Submit(ctx context.Context, r models.SearchRange) error {
	p := c.session.Page.Context(ctx)

	if err := p.Timeout(c.cfg.NavTimeout).Navigate(c.cfg.EntryURL); err != nil {
		return models.NewPipelineError(
			models.ErrCodeSearchFailed,
			"navigation to portal entry failed",
			err,
		)
	}
	if err := p.Timeout(c.cfg.NavTimeout).WaitLoad(); err != nil {
		return models.NewPipelineError(
			models.ErrCodeSearchFailed,
			"portal entry never became ready",
			err,
		)
	}

	if err := c.fillDate(p, selStartDate, r.StartDate); err != nil {
		return models.NewPipelineError(
			models.ErrCodeSearchFailed,
			"start date input not interactable",
			err,
		)
	}
	if err := c.fillDate(p, selEndDate, r.EndDate); err != nil {
		return models.NewPipelineError(
			models.ErrCodeSearchFailed,
			"end date input not interactable",
			err,
		)
	}

	// The idle wait runs on its own deadline so an expiry is observable:
	// WaitRequestIdle returns silently either way.
	idleCtx, cancelIdle := context.WithTimeout(ctx, c.cfg.NavTimeout)
	defer cancelIdle()
	waitIdle := p.Context(idleCtx).WaitRequestIdle(300*time.Millisecond, nil, nil, nil)

	submit, err := p.Timeout(c.cfg.PanelTimeout).Element(selSubmitSearch)
	if err != nil {
		return models.NewPipelineError(
			models.ErrCodeSearchFailed,
			"submit control never became interactable",
			err,
		)
	}
	if err := ClickWithFallback(submit); err != nil {
		return models.NewPipelineError(
			models.ErrCodeSearchFailed,
			"submit click failed",
			err,
		)
	}

	waitIdle()
	if err := idleWaitResult(idleCtx); err != nil {
		return err
	}

	select {
	case <-time.After(c.cfg.SettleDelay):
	case <-ctx.Done():
		return models.NewPipelineError(
			models.ErrCodeSearchFailed,
			"post-submit settle interrupted",
			ctx.Err(),
		)
	}
	return nil
}

// idleWaitResult classifies the idle wait after it returns: a page that
// never reached network quiescence within the deadline is a failed search
// attempt, not a successful submit.
func idleWaitResult(idleCtx context.Context) error {
	if err := idleCtx.Err(); err != nil {
		return models.NewPipelineError(
			models.ErrCodeSearchFailed,
			"post-submit network quiescence never reached",
			err,
		)
	}
	return nil
}

// fillDate selects the input's existing content before typing so any
// default value is overwritten, not appended to.
func (c *SearchController) fillDate(p *rod.Page, selector, value string) error {
	el, err := p.Timeout(c.cfg.PanelTimeout).Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}
