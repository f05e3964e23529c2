package scraper

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Portal selectors. The portal is a generated SPA with no stable ids; these
// class hooks have held across portal releases.
const (
	selLoadingOverlay = ".loading-overlay"
	selResultList     = ".result-list"
	selResultRow      = ".result-list .result-row"
	selRowSummary     = ".row-summary"
	selRowDetail      = ".row-detail"
	selDocNumber      = ".doc-number"
	selDocImageIcon   = ".doc-image-icon"
	selStartDate      = "input[name='beginDate']"
	selEndDate        = "input[name='endDate']"
	selSubmitSearch   = "form.search-form button[type='submit']"
	selOpenDocument   = ".open-document"
	selViewerCanvas   = ".document-viewer canvas"
	selViewerPrint    = ".viewer-toolbar .print-control"
	selViewerBack     = ".viewer-toolbar .back-control"
	selPrintDialog    = ".print-dialog"
	selDialogLabel    = ".print-dialog label"
	selDialogConfirm  = ".print-dialog .confirm-control"
	selPrintIframe    = `iframe[src^="blob:"]`
)

const overlayPollInterval = 250 * time.Millisecond

// WaitOverlayGone waits until the loading overlay is absent or hidden. The
// overlay is transient and animation-driven, so the wait polls rather than
// subscribing to mutation events.
func WaitOverlayGone(page *rod.Page, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		has, el, err := page.Has(selLoadingOverlay)
		if err == nil {
			if !has {
				return nil
			}
			if visible, verr := el.Visible(); verr == nil && !visible {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("loading overlay still visible after %s", timeout)
		}
		time.Sleep(overlayPollInterval)
	}
}

// ClickWithFallback clicks el through the input layer, falling back to a
// DOM-level click when the pointer event is intercepted. The portal
// frequently intercepts pointer events during expand/collapse transitions.
func ClickWithFallback(el *rod.Element) error {
	err := el.Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	slog.Debug("interactive click blocked, falling back to DOM click", "error", err)
	_, err = el.Eval(`() => this.click()`)
	return err
}

// ElementWithExactText returns the first element matching selector whose
// trimmed text equals text. Used to scope controls to a specific row when
// the page renders one control per row with no distinguishing attributes.
func ElementWithExactText(page *rod.Page, selector, text string) (*rod.Element, error) {
	els, err := page.Elements(selector)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		t, terr := el.Text()
		if terr != nil {
			continue
		}
		if strings.TrimSpace(t) == text {
			return el, nil
		}
	}
	return nil, fmt.Errorf("no %q element with text %q (%d candidates)", selector, text, len(els))
}

// waitVisible waits for the first match of selector to appear and become
// visible, bounded by timeout.
func waitVisible(page *rod.Page, selector string, timeout time.Duration) (*rod.Element, error) {
	el, err := page.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(); err != nil {
		return nil, err
	}
	return el, nil
}
