// Package aforo orchestrates the occupancy pipeline: periodic ingestion of
// the raw export, per-day profiling and statistics, the local visit
// recommendation, and the optional AI analysis.
package aforo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aforolabs/aforo/pkg/advice"
	"github.com/aforolabs/aforo/pkg/fetch"
	"github.com/aforolabs/aforo/pkg/gemini"
	"github.com/aforolabs/aforo/pkg/ingest"
	"github.com/aforolabs/aforo/pkg/profile"
	"github.com/aforolabs/aforo/pkg/stats"
)

var (
	// ErrEmptyDataset means no valid rows survived filtering, for the whole
	// batch or for the selected day. The previous good dataset, if any, is
	// retained.
	ErrEmptyDataset = errors.New("no valid occupancy records")

	// ErrAnalysisBusy means an AI analysis call is already in flight; the
	// new request is a no-op.
	ErrAnalysisBusy = errors.New("analysis already in progress")
)

// DefaultRefreshInterval is how often Run re-ingests the source.
const DefaultRefreshInterval = 180 * time.Second

// sourceCacheTTL is deliberately shorter than the refresh interval so a
// periodic cycle always sees fresh data while rapid manual refreshes reuse
// the last download.
const sourceCacheTTL = 60 * time.Second

// geminiCacheTTL bounds how long an identical prompt reuses a previous
// answer.
const geminiCacheTTL = 12 * time.Hour

// analysisClient is the external AI collaborator.
type analysisClient interface {
	Analyze(ctx context.Context, entries []ingest.Entry, day string) (*gemini.Insight, error)
}

// Analyzer owns the current dataset snapshot and runs ingestion cycles.
type Analyzer struct {
	logger            *slog.Logger
	fetcher           *fetch.Fetcher
	gemini            analysisClient
	sourceURL         string
	ingestCfg         ingest.Config
	stabilityScale    int
	maxMinFromHistory bool
	refreshInterval   time.Duration

	mu       sync.RWMutex
	entries  []ingest.Entry
	lastSync time.Time
	insights map[string]*gemini.Insight

	analysisBusy atomic.Bool
}

// New creates an Analyzer with the given options.
func New(logger *slog.Logger, opts ...Option) *Analyzer {
	holder := &OptionHolder{}
	for _, opt := range opts {
		opt(holder)
	}

	ingestCfg := ingest.DefaultConfig()
	if holder.ingestCfg != nil {
		ingestCfg = *holder.ingestCfg
	}
	scale := holder.stabilityScale
	if scale <= 0 {
		scale = advice.DefaultStabilityScale
	}
	interval := holder.refreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	var sourceCache *fetch.Cache
	var aiCache gemini.Cache
	if !holder.noCache {
		sourceCache = fetch.NewCache(sourceCacheTTL)
		aiCache = fetch.NewCache(geminiCacheTTL)
	}

	a := &Analyzer{
		logger:            logger,
		fetcher:           fetch.New(logger, holder.httpClient, sourceCache),
		sourceURL:         holder.sourceURL,
		ingestCfg:         ingestCfg,
		stabilityScale:    scale,
		maxMinFromHistory: holder.maxMinFromHistory,
		refreshInterval:   interval,
		insights:          make(map[string]*gemini.Insight),
	}
	a.gemini = gemini.NewClient(logger, holder.geminiAPIKey, holder.geminiModel, holder.gcpProject, aiCache)
	return a
}

// Refresh runs one ingestion cycle: fetch the export, parse it, and replace
// the current snapshot. On any failure the previous snapshot is retained.
func (a *Analyzer) Refresh(ctx context.Context) error {
	if a.sourceURL == "" {
		return errors.New("no source URL configured")
	}
	text, err := a.fetcher.Fetch(ctx, a.sourceURL)
	if err != nil {
		a.logger.Warn("refresh failed, keeping previous dataset", "error", err)
		return err
	}
	return a.Ingest(text)
}

// Ingest replaces the current snapshot with entries parsed from raw export
// text. It is the whole ingestion cycle minus the transport, usable
// directly for file-based input and in tests.
func (a *Analyzer) Ingest(text string) error {
	entries := ingest.ParseDataset(text, a.ingestCfg)
	if len(entries) == 0 {
		a.logger.Warn("no valid rows in export, keeping previous dataset")
		return ErrEmptyDataset
	}

	a.mu.Lock()
	a.entries = entries
	a.lastSync = time.Now()
	a.mu.Unlock()

	a.logger.Info("dataset replaced", "entries", len(entries))
	return nil
}

// Run refreshes immediately and then on every tick until ctx is done.
func (a *Analyzer) Run(ctx context.Context) {
	if err := a.Refresh(ctx); err != nil {
		a.logger.Warn("initial refresh failed", "error", err)
	}

	ticker := time.NewTicker(a.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				a.logger.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

// Entries returns the current snapshot. The slice is shared; callers must
// not mutate it.
func (a *Analyzer) Entries() []ingest.Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.entries
}

// LastSync reports when the snapshot was last replaced.
func (a *Analyzer) LastSync() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastSync
}

// ProfileFor returns the hourly mean profile for a day. Empty when the day
// has no observations.
func (a *Analyzer) ProfileFor(day string) []profile.HourlyPoint {
	return profile.Build(a.Entries(), day)
}

// SummaryFor returns the day's statistics, or nil when the day is empty.
func (a *Analyzer) SummaryFor(day string) *stats.Summary {
	entries := a.Entries()
	points := profile.Build(entries, day)
	if a.maxMinFromHistory {
		return stats.SummarizeWithHistory(points, profile.History(entries, day))
	}
	return stats.Summarize(points)
}

// RecommendFor returns the local heuristic's recommendation for a day.
func (a *Analyzer) RecommendFor(day string) advice.Recommendation {
	points := a.ProfileFor(day)
	stdDev := 0
	if summary := a.SummaryFor(day); summary != nil {
		stdDev = summary.StdDev
	}
	return advice.Recommend(points, stdDev, a.stabilityScale)
}

// Result assembles everything the presentation layer needs for a day,
// merging any AI insight obtained earlier in the session.
func (a *Analyzer) Result(day string) Outcome {
	day = ingest.NormalizeDayName(day)

	a.mu.RLock()
	insight := a.insights[day]
	a.mu.RUnlock()

	return Outcome{
		Day:     day,
		Profile: a.ProfileFor(day),
		Summary: a.SummaryFor(day),
		Result:  Merge(a.RecommendFor(day), insight),
	}
}

// Analyze asks the AI collaborator for an analysis of the current entry set
// for one day. A single analysis may be in flight at a time; concurrent
// calls return ErrAnalysisBusy without touching shared state. A failed call
// leaves the local heuristic result fully usable.
func (a *Analyzer) Analyze(ctx context.Context, day string) (Outcome, error) {
	if !a.analysisBusy.CompareAndSwap(false, true) {
		return Outcome{}, ErrAnalysisBusy
	}
	defer a.analysisBusy.Store(false)

	entries := a.Entries()
	if len(entries) == 0 {
		return Outcome{}, ErrEmptyDataset
	}

	day = ingest.NormalizeDayName(day)
	insight, err := a.gemini.Analyze(ctx, entries, day)
	if err != nil {
		return a.Result(day), fmt.Errorf("ai analysis: %w", err)
	}

	a.mu.Lock()
	a.insights[day] = insight
	a.mu.Unlock()
	a.logger.Info("ai analysis stored", "day", day, "golden_hour", insight.GoldenHour)

	return a.Result(day), nil
}
