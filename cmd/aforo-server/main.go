// Package main implements the aforo web server: it keeps the occupancy
// dataset fresh in the background and serves per-day profiles, statistics
// and recommendations as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aforolabs/aforo/pkg/aforo"
	"github.com/aforolabs/aforo/pkg/config"
	"github.com/aforolabs/aforo/pkg/fetch"
	"github.com/aforolabs/aforo/pkg/gemini"
	"github.com/aforolabs/aforo/pkg/ingest"
)

var (
	port         = flag.String("port", "8080", "Port for web server")
	sourceURL    = flag.String("source", "", "URL of the occupancy export (or set AFORO_SOURCE_URL)")
	configFile   = flag.String("config", "", "YAML configuration file")
	geminiAPIKey = flag.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	geminiModel  = flag.String("gemini-model", "", "Gemini model to use (or set GEMINI_MODEL)")
	gcpProject   = flag.String("gcp-project", "", "GCP project ID (or set GCP_PROJECT)")
	logFile      = flag.String("log-file", "", "Rotated log file (default stderr only)")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	version      = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("aforo Server v1.2.0")
		return
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	logger := newLogger(cfg)

	if *sourceURL == "" {
		*sourceURL = os.Getenv("AFORO_SOURCE_URL")
	}
	if *sourceURL == "" {
		*sourceURL = cfg.Source.URL
	}
	if *sourceURL == "" {
		logger.Error("no source URL configured")
		os.Exit(1)
	}
	if *geminiAPIKey == "" {
		*geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if *geminiModel == "" {
		*geminiModel = os.Getenv("GEMINI_MODEL")
	}
	if *geminiModel == "" {
		*geminiModel = cfg.Gemini.Model
	}
	if *gcpProject == "" {
		*gcpProject = os.Getenv("GCP_PROJECT")
	}

	opts := []aforo.Option{
		aforo.WithSourceURL(*sourceURL),
		aforo.WithGeminiAPIKey(*geminiAPIKey),
		aforo.WithGeminiModel(*geminiModel),
		aforo.WithGCPProject(*gcpProject),
		aforo.WithIngestConfig(cfg.Ingest),
		aforo.WithStabilityScale(cfg.Advice.StabilityScale),
		aforo.WithRefreshInterval(cfg.Source.RefreshInterval()),
	}
	if cfg.Advice.MaxMinFromHistory {
		opts = append(opts, aforo.WithMaxMinFromHistory())
	}
	analyzer := aforo.New(logger, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go analyzer.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           newHandler(logger, analyzer),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", *port, "source", *sourceURL)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// newLogger builds a JSON logger, optionally teeing through a rotated file.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if *verbose || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}

	file := *logFile
	if file == "" {
		file = cfg.Logging.File
	}

	var w io.Writer = os.Stderr
	if file != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func newHandler(logger *slog.Logger, analyzer *aforo.Analyzer) http.Handler {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Debug("failed to encode response", "error", err)
		}
	}
	writeError := func(w http.ResponseWriter, status int, msg string) {
		writeJSON(w, status, map[string]string{"error": msg})
	}
	dayParam := func(r *http.Request) string {
		day := r.URL.Query().Get("day")
		if day == "" {
			return ingest.DayNameFor(time.Now())
		}
		return day
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"last_sync": analyzer.LastSync(),
			"entries":   len(analyzer.Entries()),
		})
	})

	mux.HandleFunc("GET /api/profile", func(w http.ResponseWriter, r *http.Request) {
		day := dayParam(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"day":     ingest.NormalizeDayName(day),
			"profile": analyzer.ProfileFor(day),
		})
	})

	mux.HandleFunc("GET /api/summary", func(w http.ResponseWriter, r *http.Request) {
		day := dayParam(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"day":     ingest.NormalizeDayName(day),
			"summary": analyzer.SummaryFor(day),
		})
	})

	mux.HandleFunc("GET /api/recommendation", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, analyzer.Result(dayParam(r)))
	})

	mux.HandleFunc("POST /api/refresh", func(w http.ResponseWriter, r *http.Request) {
		switch err := analyzer.Refresh(r.Context()); {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{
				"last_sync": analyzer.LastSync(),
				"entries":   len(analyzer.Entries()),
			})
		case errors.Is(err, aforo.ErrEmptyDataset):
			// Not a fault: the export parsed to nothing, previous dataset
			// is retained.
			writeJSON(w, http.StatusOK, map[string]any{
				"warning":   "no valid records in export, previous dataset retained",
				"last_sync": analyzer.LastSync(),
			})
		case errors.Is(err, fetch.ErrTransport):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	})

	mux.HandleFunc("POST /api/analyze", func(w http.ResponseWriter, r *http.Request) {
		outcome, err := analyzer.Analyze(r.Context(), dayParam(r))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, outcome)
		case errors.Is(err, aforo.ErrAnalysisBusy):
			writeError(w, http.StatusConflict, "analysis already in progress")
		case errors.Is(err, aforo.ErrEmptyDataset):
			writeError(w, http.StatusNotFound, "no dataset loaded yet")
		case errors.Is(err, gemini.ErrInvalidResponse):
			// Local result is still usable; return it alongside the error.
			writeJSON(w, http.StatusOK, map[string]any{
				"outcome": outcome,
				"error":   err.Error(),
			})
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
	})

	return logRequests(logger, mux)
}

// logRequests is a small access-log middleware.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr)
	})
}
