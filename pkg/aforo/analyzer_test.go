package aforo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aforolabs/aforo/pkg/advice"
	"github.com/aforolabs/aforo/pkg/fetch"
	"github.com/aforolabs/aforo/pkg/gemini"
	"github.com/aforolabs/aforo/pkg/ingest"
)

// sampleExport covers two Mondays (10/6, 17/6) and one Tuesday in 2024.
const sampleExport = "fecha,hora,ocupacion\n" +
	"10/6/24,8:15,50\n" +
	"10/6/24,9:05,28\n" +
	"10/6/24,10:20,45\n" +
	"17/6/24,9:30,32\n" +
	"11/6/24,18:00,80\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAI struct {
	insight *gemini.Insight
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeAI) Analyze(ctx context.Context, _ []ingest.Entry, _ string) (*gemini.Insight, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.insight, f.err
}

func validInsight() *gemini.Insight {
	return &gemini.Insight{
		Recommendation: "Ve a las nueve",
		GoldenHour:     "9:20",
		Analysis:       "Mañanas tranquilas.",
		Statistics:     gemini.InsightStats{Mean: 40, Trend: "stable"},
	}
}

func TestIngestAndResult(t *testing.T) {
	a := New(testLogger(), WithNoCache())
	if err := a.Ingest(sampleExport); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	outcome := a.Result("lunes")
	if outcome.Day != "Lunes" {
		t.Errorf("day = %q, want Lunes", outcome.Day)
	}
	// Hours 8, 9 (mean of 28 and 32 = 30), 10.
	if len(outcome.Profile) != 3 {
		t.Fatalf("profile has %d points, want 3", len(outcome.Profile))
	}
	if outcome.Profile[1].Hour != 9 || outcome.Profile[1].Occupancy != 30 {
		t.Errorf("profile[1] = %+v, want hour 9 occupancy 30", outcome.Profile[1])
	}
	if outcome.Summary == nil {
		t.Fatal("expected a summary")
	}
	if outcome.Summary.BestHour != 9 {
		t.Errorf("bestHour = %d, want 9", outcome.Summary.BestHour)
	}
	// Minimum at 9 (30), hour 10 rises to 45.
	if outcome.Result.Local.GoldenHour != "9:15" {
		t.Errorf("local goldenHour = %q, want 9:15", outcome.Result.Local.GoldenHour)
	}
	if outcome.Result.Source != "local" || outcome.Result.Recommendation != NeutralRecommendation {
		t.Errorf("merged = %+v, want neutral local result", outcome.Result)
	}
}

func TestIngestEmptyDataset(t *testing.T) {
	a := New(testLogger(), WithNoCache())
	if err := a.Ingest(sampleExport); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	before := len(a.Entries())

	err := a.Ingest("fecha,hora,ocupacion\nbad,row,here\n")
	if !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("error = %v, want ErrEmptyDataset", err)
	}
	if len(a.Entries()) != before {
		t.Error("empty ingest must retain the previous dataset")
	}
}

func TestResultEmptyDay(t *testing.T) {
	a := New(testLogger(), WithNoCache())
	if err := a.Ingest(sampleExport); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	outcome := a.Result("domingo")
	if len(outcome.Profile) != 0 {
		t.Errorf("expected empty profile, got %v", outcome.Profile)
	}
	if outcome.Summary != nil {
		t.Errorf("expected nil summary, got %+v", outcome.Summary)
	}
	if outcome.Result.Local.Stability != 0 {
		t.Errorf("stability = %d, want 0", outcome.Result.Local.Stability)
	}
}

func TestRefreshKeepsLastKnownGood(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sampleExport))
	}))
	defer srv.Close()

	a := New(testLogger(),
		WithSourceURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithNoCache(),
	)
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	good := len(a.Entries())
	if good == 0 {
		t.Fatal("expected entries after refresh")
	}

	failing.Store(true)
	err := a.Refresh(context.Background())
	if !errors.Is(err, fetch.ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
	if len(a.Entries()) != good {
		t.Error("transport failure must retain the previous dataset")
	}
}

func TestAnalyzePrefersAIResult(t *testing.T) {
	a := New(testLogger(), WithNoCache())
	if err := a.Ingest(sampleExport); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	a.gemini = &fakeAI{insight: validInsight()}

	outcome, err := a.Analyze(context.Background(), "lunes")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if outcome.Result.Source != "ai" {
		t.Errorf("source = %q, want ai", outcome.Result.Source)
	}
	if outcome.Result.GoldenHour != "9:20" {
		t.Errorf("goldenHour = %q, want the AI's 9:20", outcome.Result.GoldenHour)
	}

	// The insight persists for later display-time merges.
	if got := a.Result("Lunes").Result.Source; got != "ai" {
		t.Errorf("later result source = %q, want ai", got)
	}
	// Other days are unaffected.
	if got := a.Result("Martes").Result.Source; got != "local" {
		t.Errorf("other day source = %q, want local", got)
	}
}

func TestAnalyzeFailureLeavesLocalUsable(t *testing.T) {
	a := New(testLogger(), WithNoCache())
	if err := a.Ingest(sampleExport); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	a.gemini = &fakeAI{err: gemini.ErrInvalidResponse}

	outcome, err := a.Analyze(context.Background(), "lunes")
	if !errors.Is(err, gemini.ErrInvalidResponse) {
		t.Errorf("error = %v, want ErrInvalidResponse", err)
	}
	if outcome.Result.Source != "local" {
		t.Errorf("source = %q, want local fallback", outcome.Result.Source)
	}
	if outcome.Result.Local.GoldenHour == "" {
		t.Error("local recommendation must remain usable")
	}
}

func TestAnalyzeBusyFlag(t *testing.T) {
	a := New(testLogger(), WithNoCache())
	if err := a.Ingest(sampleExport); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	fake := &fakeAI{insight: validInsight(), delay: 200 * time.Millisecond}
	a.gemini = fake

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := a.Analyze(context.Background(), "lunes"); err != nil {
			t.Errorf("first Analyze failed: %v", err)
		}
	}()

	time.Sleep(50 * time.Millisecond)
	_, err := a.Analyze(context.Background(), "lunes")
	if !errors.Is(err, ErrAnalysisBusy) {
		t.Errorf("second call error = %v, want ErrAnalysisBusy", err)
	}
	wg.Wait()

	if fake.calls.Load() != 1 {
		t.Errorf("collaborator saw %d calls, want 1", fake.calls.Load())
	}
	// The flag is released once the first call completes.
	if _, err := a.Analyze(context.Background(), "martes"); err != nil {
		t.Errorf("analysis after release failed: %v", err)
	}
}

func TestAnalyzeEmptyDataset(t *testing.T) {
	a := New(testLogger(), WithNoCache())
	a.gemini = &fakeAI{insight: validInsight()}
	if _, err := a.Analyze(context.Background(), "lunes"); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("error = %v, want ErrEmptyDataset", err)
	}
}

func TestMerge(t *testing.T) {
	local := advice.Recommendation{GoldenHour: "7:45", Trend: advice.TrendFalling, Stability: 80}

	merged := Merge(local, nil)
	if merged.GoldenHour != "7:45" || merged.Source != "local" {
		t.Errorf("merged = %+v, want local selection", merged)
	}
	if merged.Recommendation != NeutralRecommendation {
		t.Errorf("recommendation = %q, want neutral text", merged.Recommendation)
	}

	ai := validInsight()
	merged = Merge(local, ai)
	if merged.GoldenHour != "9:20" || merged.Source != "ai" {
		t.Errorf("merged = %+v, want AI selection", merged)
	}
	// The local result is carried along, not overwritten.
	if merged.Local.GoldenHour != "7:45" {
		t.Errorf("local goldenHour lost: %+v", merged.Local)
	}
}
