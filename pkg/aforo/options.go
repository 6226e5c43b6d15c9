package aforo

import (
	"net/http"
	"time"

	"github.com/aforolabs/aforo/pkg/ingest"
)

// Option configures an Analyzer.
type Option func(*OptionHolder)

// WithSourceURL sets the URL of the raw occupancy export.
func WithSourceURL(url string) Option {
	return func(o *OptionHolder) {
		o.sourceURL = url
	}
}

// WithGeminiAPIKey sets the Gemini API key for AI-based analysis.
func WithGeminiAPIKey(key string) Option {
	return func(o *OptionHolder) {
		o.geminiAPIKey = key
	}
}

// WithGeminiModel sets the Gemini model to use.
func WithGeminiModel(model string) Option {
	return func(o *OptionHolder) {
		o.geminiModel = model
	}
}

// WithGCPProject sets the GCP project ID for Vertex AI access.
func WithGCPProject(projectID string) Option {
	return func(o *OptionHolder) {
		o.gcpProject = projectID
	}
}

// WithIngestConfig overrides the row validation thresholds.
func WithIngestConfig(cfg ingest.Config) Option {
	return func(o *OptionHolder) {
		o.ingestCfg = &cfg
	}
}

// WithStabilityScale sets the factor applied to the standard deviation in
// the stability score.
func WithStabilityScale(scale int) Option {
	return func(o *OptionHolder) {
		o.stabilityScale = scale
	}
}

// WithMaxMinFromHistory sources summary max/min from the raw per-day
// history instead of the hourly means.
func WithMaxMinFromHistory() Option {
	return func(o *OptionHolder) {
		o.maxMinFromHistory = true
	}
}

// WithRefreshInterval sets the periodic ingestion interval used by Run.
func WithRefreshInterval(interval time.Duration) Option {
	return func(o *OptionHolder) {
		o.refreshInterval = interval
	}
}

// WithHTTPClient sets the HTTP client used for source fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(o *OptionHolder) {
		o.httpClient = client
	}
}

// WithNoCache disables the source and AI response caches.
func WithNoCache() Option {
	return func(o *OptionHolder) {
		o.noCache = true
	}
}

// OptionHolder holds configuration options.
type OptionHolder struct {
	httpClient        *http.Client
	ingestCfg         *ingest.Config
	sourceURL         string
	geminiAPIKey      string
	geminiModel       string
	gcpProject        string
	refreshInterval   time.Duration
	stabilityScale    int
	maxMinFromHistory bool
	noCache           bool
}
