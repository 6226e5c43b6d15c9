// Package main implements the aforo CLI: fetch the occupancy export,
// profile a day, and print the visit recommendation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/aforolabs/aforo/pkg/aforo"
	"github.com/aforolabs/aforo/pkg/config"
	"github.com/aforolabs/aforo/pkg/histogram"
	"github.com/aforolabs/aforo/pkg/ingest"
)

var (
	sourceURL    = flag.String("source", "", "URL of the occupancy export (or set AFORO_SOURCE_URL)")
	sourceFile   = flag.String("file", "", "Read the export from a local file instead of a URL")
	day          = flag.String("day", "", "Day of week to profile (Spanish name; default today)")
	configFile   = flag.String("config", "", "YAML configuration file")
	geminiAPIKey = flag.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	geminiModel  = flag.String("gemini-model", "", "Gemini model to use (or set GEMINI_MODEL)")
	gcpProject   = flag.String("gcp-project", "", "GCP project ID (or set GCP_PROJECT)")
	noAI         = flag.Bool("no-ai", false, "Skip the AI analysis call")
	noCache      = flag.Bool("no-cache", false, "Disable caching")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	version      = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("aforo CLI v1.2.0")
		return
	}

	// .env is optional; environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if *sourceURL == "" {
		*sourceURL = os.Getenv("AFORO_SOURCE_URL")
	}
	if *sourceURL == "" {
		*sourceURL = cfg.Source.URL
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
	if *gcpProject == "" {
		*gcpProject = cfg.Gemini.GCPProject
	}

	targetDay := *day
	if targetDay == "" {
		targetDay = ingest.DayNameFor(time.Now())
	}

	opts := []aforo.Option{
		aforo.WithSourceURL(*sourceURL),
		aforo.WithGeminiAPIKey(*geminiAPIKey),
		aforo.WithGeminiModel(*geminiModel),
		aforo.WithGCPProject(*gcpProject),
		aforo.WithIngestConfig(cfg.Ingest),
		aforo.WithStabilityScale(cfg.Advice.StabilityScale),
	}
	if cfg.Advice.MaxMinFromHistory {
		opts = append(opts, aforo.WithMaxMinFromHistory())
	}
	if *noCache {
		opts = append(opts, aforo.WithNoCache())
	}

	analyzer := aforo.New(logger, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var err error
	switch {
	case *sourceFile != "":
		var data []byte
		if data, err = os.ReadFile(*sourceFile); err == nil {
			err = analyzer.Ingest(string(data))
		}
	case *sourceURL != "":
		err = analyzer.Refresh(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Usage: %s -source <url> | -file <path> [flags]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	outcome := analyzer.Result(targetDay)
	if !*noAI && (*geminiAPIKey != "" || *gcpProject != "") {
		if outcome, err = analyzer.Analyze(ctx, targetDay); err != nil {
			logger.Warn("ai analysis failed, showing local result", "error", err)
		}
	}

	fmt.Print(histogram.Render(outcome.Day, outcome.Profile, outcome.Summary, outcome.Result.Local))

	merged := outcome.Result
	bold := color.New(color.Bold)
	fmt.Println()
	bold.Printf("Recomendación (%s): ", merged.Source)
	fmt.Println(merged.Recommendation)
	if merged.Analysis != "" {
		fmt.Println(merged.Analysis)
	}
	bold.Print("Hora dorada: ")
	fmt.Println(merged.GoldenHour)
}
