package scraper

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/landrec/config"
	"github.com/use-agent/landrec/models"
	"github.com/ysmood/gson"
)

// Session owns the browser process, one isolated browsing context, and the
// single active page shared by every pipeline component. All row operations
// are strictly sequential on that page; nothing else may touch it.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	Page     *rod.Page
}

// Start launches the browser and prepares the single page.
//
// The preferred host binary is tried first; on launch failure the bundled
// engine is used instead. That fallback is the only startup retry — any
// further failure is fatal for the run.
func Start(cfg config.Browser) (*Session, error) {
	l, controlURL, err := launchBrowser(cfg)
	if err != nil {
		return nil, models.NewPipelineError(
			models.ErrCodeFatalInit,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewPipelineError(
			models.ErrCodeFatalInit,
			"failed to connect to browser",
			err,
		)
	}

	// The portal serves an imperfect certificate chain; tolerate it.
	if err := browser.IgnoreCertErrors(true); err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, models.NewPipelineError(
			models.ErrCodeFatalInit,
			"failed to enable invalid-certificate tolerance",
			err,
		)
	}

	incognito, err := browser.Incognito()
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, models.NewPipelineError(
			models.ErrCodeFatalInit,
			"failed to create isolated browsing context",
			err,
		)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, models.NewPipelineError(
			models.ErrCodeFatalInit,
			"failed to open page",
			err,
		)
	}

	// Mask automation fingerprints before the first navigation.
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth",
			"error", evalErr,
		)
	}

	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
		}),
	}.Call(page)

	return &Session{launcher: l, browser: browser, Page: page}, nil
}

// Stop releases the page, the browsing context, and the browser process, in
// that order. Teardown errors are logged and swallowed so they never mask
// the primary run result.
func (s *Session) Stop() {
	if s == nil {
		return
	}
	if s.Page != nil {
		if err := s.Page.Close(); err != nil {
			slog.Warn("teardown: failed to close page", "error", err)
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			slog.Warn("teardown: failed to close browser", "error", err)
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	slog.Info("session stopped")
}

// launchBrowser tries the preferred binary, then the bundled engine.
func launchBrowser(cfg config.Browser) (*launcher.Launcher, string, error) {
	if bin := preferredBin(cfg); bin != "" {
		l := newLauncher(cfg).Bin(bin)
		if u, err := l.Launch(); err == nil {
			return l, u, nil
		} else {
			slog.Warn("preferred browser failed to launch, falling back to bundled engine",
				"bin", bin,
				"error", err,
			)
		}
	}

	l := newLauncher(cfg)
	u, err := l.Launch()
	if err != nil {
		return nil, "", err
	}
	return l, u, nil
}

// preferredBin resolves the configured binary override, then whatever
// browser is installed on the host. Empty means no preferred binary.
func preferredBin(cfg config.Browser) string {
	if cfg.Bin != "" {
		return cfg.Bin
	}
	if path, has := launcher.LookPath(); has {
		return path
	}
	return ""
}

// newLauncher builds a launcher with the fixed stability flags. The portal
// is animation-heavy and the automation must not be deprioritised by the
// browser's background throttling in constrained server environments.
func newLauncher(cfg config.Browser) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true)

	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("no-first-run"))

	return l
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
