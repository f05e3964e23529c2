package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser Browser
	Portal  Portal
	Job     Job
	Export  Export
	Cloud   Cloud
	Status  Status
	Log     Log
}

// Browser controls the Rod browser instance.
type Browser struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// Bin overrides host browser lookup when set. When empty, the launcher
	// prefers an installed browser and falls back to the bundled engine.
	Bin string
}

// Portal controls interaction with the records portal UI.
type Portal struct {
	// EntryURL is the fixed search-page URL.
	EntryURL string

	// SearchAttempts is the number of search submissions before the run
	// is declared fatal.
	SearchAttempts int // default: 3

	// SearchBackoff is the fixed delay between search attempts.
	SearchBackoff time.Duration // default: 5s

	// SettleDelay is slept after network idle; the results list mounts
	// asynchronously after the network quiesces.
	SettleDelay time.Duration // default: 2s

	// OverlayTimeout bounds waiting out the loading overlay.
	OverlayTimeout time.Duration // default: 10s

	// PanelTimeout bounds waiting for a row's detail panel to show or hide.
	PanelTimeout time.Duration // default: 10s

	// CaptureTimeout bounds waiting for the print iframe to attach.
	// Generous because the portal renders the print target slowly.
	CaptureTimeout time.Duration // default: 60s

	// NavTimeout bounds navigation plus initial DOM readiness.
	NavTimeout time.Duration // default: 30s
}

// Job controls the search window and row-loop behavior.
type Job struct {
	// StartDate and EndDate are MM/DD/YYYY calendar dates.
	StartDate string
	EndDate   string

	// MaxRows caps processed rows; 0 processes all rows.
	MaxRows int // default: 0

	// RowsPerSecond paces the row loop; 0 disables pacing.
	RowsPerSecond float64 // default: 0

	// CheckpointFile is a local JSON resume checkpoint, read once at start.
	CheckpointFile string

	// OutputDir receives captured documents.
	OutputDir string // default: "output"
}

// Export controls the delimited export artifact.
type Export struct {
	// Path is the local export file path.
	Path string // default: "output/records.csv"
}

// Cloud controls the optional hosting-platform context. GCSBucket being set
// is what switches the run into cloud mode.
type Cloud struct {
	// GCSBucket receives captured documents and the export artifact.
	GCSBucket string

	// FirestoreProject/Collection/Doc locate the resume checkpoint document.
	FirestoreProject    string
	FirestoreCollection string // default: "landrec"
	FirestoreDoc        string // default: "checkpoint"
}

// Status controls progress reporting.
type Status struct {
	// Addr enables the local status HTTP server when non-empty.
	Addr string

	// Mode is the gin mode: "debug", "release", "test".
	Mode string // default: "release"

	// WebhookURL receives signed progress/terminal events when non-empty.
	WebhookURL    string
	WebhookSecret string
}

// Log controls structured logging.
type Log struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: Browser{
			Headless: envBoolOr("LANDREC_HEADLESS", true),
			Bin:      os.Getenv("LANDREC_BROWSER_BIN"),
		},
		Portal: Portal{
			EntryURL:       envOr("LANDREC_PORTAL_URL", "https://records.county.gov/search"),
			SearchAttempts: envIntOr("LANDREC_SEARCH_ATTEMPTS", 3),
			SearchBackoff:  envDurationOr("LANDREC_SEARCH_BACKOFF", 5*time.Second),
			SettleDelay:    envDurationOr("LANDREC_SETTLE_DELAY", 2*time.Second),
			OverlayTimeout: envDurationOr("LANDREC_OVERLAY_TIMEOUT", 10*time.Second),
			PanelTimeout:   envDurationOr("LANDREC_PANEL_TIMEOUT", 10*time.Second),
			CaptureTimeout: envDurationOr("LANDREC_CAPTURE_TIMEOUT", 60*time.Second),
			NavTimeout:     envDurationOr("LANDREC_NAV_TIMEOUT", 30*time.Second),
		},
		Job: Job{
			StartDate:      os.Getenv("LANDREC_START_DATE"),
			EndDate:        os.Getenv("LANDREC_END_DATE"),
			MaxRows:        envIntOr("LANDREC_MAX_ROWS", 0),
			RowsPerSecond:  envFloatOr("LANDREC_ROWS_PER_SECOND", 0),
			CheckpointFile: os.Getenv("LANDREC_CHECKPOINT_FILE"),
			OutputDir:      envOr("LANDREC_OUTPUT_DIR", "output"),
		},
		Export: Export{
			Path: envOr("LANDREC_EXPORT_PATH", "output/records.csv"),
		},
		Cloud: Cloud{
			GCSBucket:           os.Getenv("LANDREC_GCS_BUCKET"),
			FirestoreProject:    os.Getenv("LANDREC_FIRESTORE_PROJECT"),
			FirestoreCollection: envOr("LANDREC_FIRESTORE_COLLECTION", "landrec"),
			FirestoreDoc:        envOr("LANDREC_FIRESTORE_DOC", "checkpoint"),
		},
		Status: Status{
			Addr:          os.Getenv("LANDREC_STATUS_ADDR"),
			Mode:          envOr("LANDREC_STATUS_MODE", "release"),
			WebhookURL:    os.Getenv("LANDREC_WEBHOOK_URL"),
			WebhookSecret: os.Getenv("LANDREC_WEBHOOK_SECRET"),
		},
		Log: Log{
			Level:  envOr("LANDREC_LOG_LEVEL", "info"),
			Format: envOr("LANDREC_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
