package scraper

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/use-agent/landrec/config"
	"github.com/use-agent/landrec/models"
)

// DocumentStore persists captured document bytes and returns the location
// recorded on the record: a local path, or an object URL on cloud
// deployments.
type DocumentStore interface {
	SaveDocument(ctx context.Context, name string, data []byte) (string, error)
}

// Capturer drives the portal's print workflow to obtain a row's source
// document as bytes, without ever letting a native print dialog open. The
// portal's print feature spawns a nested frame that invokes the native
// dialog on its own; left unsuppressed it blocks the automation thread
// indefinitely.
type Capturer struct {
	session *Session
	cfg     config.Portal
	store   DocumentStore
}

// NewCapturer creates a Capturer bound to the session.
func NewCapturer(s *Session, cfg config.Portal, store DocumentStore) *Capturer {
	return &Capturer{session: s, cfg: cfg, store: store}
}

// printSuppressionJS neutralizes the host page's print entry point and
// wraps the node-insertion primitive so that any iframe attached later has
// its own print entry point neutralized as soon as it loads. Idempotent:
// re-running only re-assigns the host no-op.
const printSuppressionJS = `() => {
	window.print = () => {};
	if (window.__printGuardInstalled) return;
	window.__printGuardInstalled = true;
	const append = Node.prototype.appendChild;
	Node.prototype.appendChild = function (node) {
		const result = append.call(this, node);
		if (node && node.tagName === 'IFRAME') {
			try { if (node.contentWindow) node.contentWindow.print = () => {}; } catch (e) {}
			node.addEventListener('load', () => {
				try { node.contentWindow.print = () => {}; } catch (e) {}
			});
		}
		return result;
	};
}`

// fetchBlobJS reads the blob's bytes inside the page's own script context
// and round-trips them as a base64 data URL; bytes cannot cross the
// automation boundary directly.
const fetchBlobJS = `async (src) => {
	const resp = await fetch(src);
	const blob = await resp.blob();
	return await new Promise((resolve, reject) => {
		const reader = new FileReader();
		reader.onload = () => resolve(reader.result);
		reader.onerror = () => reject(reader.error);
		reader.readAsDataURL(blob);
	});
}`

// Capture obtains the document behind documentNo and returns its stored
// location. It never fails outward: every error degrades to an empty
// location plus a log line, because a missing attachment must not fail the
// parent row. The UI is returned to the results list before Capture
// returns, whatever the outcome.
func (c *Capturer) Capture(ctx context.Context, documentNo string) string {
	p := c.session.Page.Context(ctx)
	defer c.cleanup(p)

	loc, err := c.capture(ctx, p, documentNo)
	if err != nil {
		slog.Warn("document capture failed",
			"documentNo", documentNo,
			"error", models.NewPipelineError(models.ErrCodeCaptureFailed, "capture degraded to empty location", err),
		)
		return ""
	}
	slog.Info("document captured", "documentNo", documentNo, "location", loc)
	return loc
}

func (c *Capturer) capture(ctx context.Context, p *rod.Page, documentNo string) (string, error) {
	// The open control is scoped to the row via an exact document-number
	// match; a page-wide match could open the wrong row's document.
	openCtl, err := ElementWithExactText(p, selOpenDocument, documentNo)
	if err != nil {
		return "", fmt.Errorf("locate document control: %w", err)
	}
	if err := ClickWithFallback(openCtl); err != nil {
		return "", fmt.Errorf("open document viewer: %w", err)
	}

	if _, err := waitVisible(p, selViewerCanvas, c.cfg.PanelTimeout); err != nil {
		return "", fmt.Errorf("viewer canvas never became visible: %w", err)
	}

	// Suppression must be installed before the print control is touched.
	if _, err := p.Eval(printSuppressionJS); err != nil {
		return "", fmt.Errorf("install print suppression: %w", err)
	}

	printCtl, err := waitVisible(p, selViewerPrint, c.cfg.PanelTimeout)
	if err != nil {
		return "", fmt.Errorf("print control never became visible: %w", err)
	}
	if err := ClickWithFallback(printCtl); err != nil {
		return "", fmt.Errorf("print click failed: %w", err)
	}

	if _, err := waitVisible(p, selPrintDialog, c.cfg.PanelTimeout); err != nil {
		return "", fmt.Errorf("print-options dialog never appeared: %w", err)
	}
	if err := selectEntireDocument(p); err != nil {
		return "", fmt.Errorf("select entire-document scope: %w", err)
	}

	// Confirm through script rather than the input layer; a UI click can
	// still be blocked by a not-fully-suppressed native dialog.
	confirm, err := p.Timeout(c.cfg.PanelTimeout).Element(selDialogConfirm)
	if err != nil {
		return "", fmt.Errorf("dialog confirm control not found: %w", err)
	}
	if _, err := confirm.Eval(`() => this.click()`); err != nil {
		return "", fmt.Errorf("dialog confirm failed: %w", err)
	}

	// Dismiss anything the confirmation left behind.
	_ = p.Keyboard.Press(input.Escape)

	frame, err := p.Timeout(c.cfg.CaptureTimeout).Element(selPrintIframe)
	if err != nil {
		return "", fmt.Errorf("print iframe never attached: %w", err)
	}
	attr, err := frame.Attribute("src")
	if err != nil {
		return "", fmt.Errorf("print iframe source unreadable: %w", err)
	}
	src, err := blobSource(attr)
	if err != nil {
		return "", err
	}

	data, err := fetchBlob(p, src)
	if err != nil {
		return "", err
	}

	// A stale iframe must not be mistaken for the next record's capture.
	if _, err := frame.Eval(`() => this.remove()`); err != nil {
		slog.Debug("failed to remove print iframe", "error", err)
	}

	name := SanitizeDocumentName(documentNo) + ".pdf"
	loc, err := c.store.SaveDocument(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("persist document: %w", err)
	}
	return loc, nil
}

// cleanup returns the UI to the results-list state the row loop expects. It
// runs on every capture exit path and swallows everything: the dismissal
// key, the back control, the results-list wait and the overlay wait are all
// best-effort.
func (c *Capturer) cleanup(p *rod.Page) {
	_ = p.Keyboard.Press(input.Escape)

	// A blob frame left behind by a failed capture would satisfy the next
	// row's frame wait immediately and cross-label its document.
	if has, frame, err := p.Has(selPrintIframe); err == nil && has {
		if _, rerr := frame.Eval(`() => this.remove()`); rerr != nil {
			slog.Debug("cleanup: stale print iframe not removed", "error", rerr)
		}
	}

	if has, back, err := p.Has(selViewerBack); err == nil && has {
		if visible, verr := back.Visible(); verr == nil && visible {
			if cerr := ClickWithFallback(back); cerr != nil {
				slog.Debug("cleanup: back control click failed", "error", cerr)
			}
		}
	}

	if _, err := waitVisible(p, selResultList, c.cfg.PanelTimeout); err != nil {
		slog.Debug("cleanup: results list did not reappear", "error", err)
	}
	if err := WaitOverlayGone(p, c.cfg.OverlayTimeout); err != nil {
		slog.Debug("cleanup: loading overlay still visible", "error", err)
	}
}

// selectEntireDocument checks the "entire document" scope radio. The radio
// input is visually obscured by the dialog's styled control, so it is
// force-checked through the DOM: the label is located by text and the radio
// is the label's preceding sibling.
func selectEntireDocument(p *rod.Page) error {
	label, err := ElementWithExactText(p, selDialogLabel, scopeEntireDocument)
	if err != nil {
		return err
	}
	_, err = label.Eval(`() => {
		const radio = this.previousElementSibling;
		if (!radio) throw new Error('no radio before scope label');
		radio.checked = true;
		radio.dispatchEvent(new Event('change', { bubbles: true }));
	}`)
	return err
}

// blobSource validates the frame's src attribute: it must exist and must be
// a same-process blob URL, or the bytes cannot be read from page context.
func blobSource(attr *string) (string, error) {
	if attr == nil {
		return "", fmt.Errorf("print iframe has no source")
	}
	if !strings.HasPrefix(*attr, "blob:") {
		return "", fmt.Errorf("print iframe source is not a same-process blob: %q", *attr)
	}
	return *attr, nil
}

// fetchBlob reads the blob's bytes in the page's script context and decodes
// the resulting data URL.
func fetchBlob(p *rod.Page, src string) ([]byte, error) {
	res, err := p.Eval(fetchBlobJS, src)
	if err != nil {
		return nil, fmt.Errorf("read blob in page context: %w", err)
	}
	return decodeBlobPayload(res.Value.Str())
}

// decodeBlobPayload extracts the base64 payload from a FileReader data URL.
func decodeBlobPayload(dataURL string) ([]byte, error) {
	idx := strings.Index(dataURL, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("unexpected data URL shape (%d bytes)", len(dataURL))
	}
	data, err := base64.StdEncoding.DecodeString(dataURL[idx+len("base64,"):])
	if err != nil {
		return nil, fmt.Errorf("decode blob payload: %w", err)
	}
	return data, nil
}
