// Package gemini asks Google's Gemini API for an occupancy analysis of the
// validated entry set, decoded strictly against a fixed schema.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/aforolabs/aforo/pkg/ingest"
)

// ErrInvalidResponse marks an AI response that was empty or failed schema
// validation. The result is discarded whole; no field of a bad response is
// ever adopted.
var ErrInvalidResponse = errors.New("invalid analysis response")

// Insight is the structured result of one analysis call.
type Insight struct {
	Recommendation string       `json:"recommendation"`
	GoldenHour     string       `json:"goldenHour"`
	Analysis       string       `json:"analysis"`
	Statistics     InsightStats `json:"statistics"`
}

// InsightStats mirrors the local summary so both can be displayed with the
// same presentation code.
type InsightStats struct {
	Mean         int    `json:"mean"`
	Median       int    `json:"median"`
	Percentile25 int    `json:"percentile25"`
	StdDev       int    `json:"stdDev"`
	Max          int    `json:"max"`
	Min          int    `json:"min"`
	BestHour     int    `json:"bestHour"`
	Trend        string `json:"trend"`
}

// Cache is the response cache used to avoid re-billing identical prompts.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte)
}

// Client calls the Gemini API.
type Client struct {
	logger     *slog.Logger
	cache      Cache
	apiKey     string
	model      string
	gcpProject string
}

// NewClient creates a Gemini client. cache may be nil.
func NewClient(logger *slog.Logger, apiKey, model, gcpProject string, cache Cache) *Client {
	return &Client{
		logger:     logger,
		cache:      cache,
		apiKey:     apiKey,
		model:      model,
		gcpProject: gcpProject,
	}
}

// Analyze submits the day's entries and returns the validated insight.
func (c *Client) Analyze(ctx context.Context, entries []ingest.Entry, day string) (*Insight, error) {
	prompt := BuildPrompt(entries, day)

	cacheKey := fmt.Sprintf("genai:%s:%s", c.model, prompt)
	if cached := c.checkCache(cacheKey); cached != nil {
		return cached, nil
	}

	client, err := c.createClient(ctx)
	if err != nil {
		return nil, err
	}

	modelName, contents, genConfig := c.configureRequest(prompt)

	resp, err := c.callWithRetry(ctx, client, modelName, contents, genConfig)
	if err != nil {
		return nil, err
	}

	insight, err := decodeInsight(resp)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(insight); err == nil {
			c.cache.Set(cacheKey, data)
			c.logger.Debug("cached analysis response", "golden_hour", insight.GoldenHour)
		}
	}
	return insight, nil
}

// checkCache returns a previously validated insight for the same prompt.
func (c *Client) checkCache(cacheKey string) *Insight {
	if c.cache == nil {
		return nil
	}
	data, found := c.cache.Get(cacheKey)
	if !found {
		return nil
	}

	var insight Insight
	if err := json.Unmarshal(data, &insight); err != nil {
		c.logger.Debug("failed to unmarshal cached analysis", "error", err)
		return nil
	}
	if err := validateInsight(&insight); err != nil {
		c.logger.Warn("cached analysis is invalid, fetching fresh", "error", err)
		return nil
	}
	c.logger.Debug("using cached analysis", "golden_hour", insight.GoldenHour)
	return &insight
}

// createClient configures the genai SDK for either the Gemini API or
// Vertex AI, depending on whether an API key is present.
func (c *Client) createClient(ctx context.Context) (*genai.Client, error) {
	var config *genai.ClientConfig
	if c.apiKey != "" {
		config = &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  c.apiKey,
		}
		c.logger.Info("using Gemini API with API key")
	} else {
		projectID := c.projectID()
		config = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  projectID,
			Location: "us-central1",
		}
		c.logger.Info("using Vertex AI with Application Default Credentials", "project", projectID)
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func (c *Client) projectID() string {
	if c.gcpProject != "" {
		return c.gcpProject
	}
	if projectID := os.Getenv("GCP_PROJECT"); projectID != "" {
		return projectID
	}
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}

func (c *Client) configureRequest(prompt string) (string, []*genai.Content, *genai.GenerateContentConfig) {
	modelName := c.model
	if modelName == "" {
		modelName = "gemini-2.5-flash-lite"
	}
	modelName = strings.TrimPrefix(modelName, "models/")

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	maxTokens := int32(2000)
	temperature := float32(0.1)

	genConfig := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  maxTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}
	return modelName, contents, genConfig
}

// responseSchema constrains the model output to the insight shape. Every
// field is required so a thin or truncated answer fails loudly.
func responseSchema() *genai.Schema {
	statsSchema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"mean":         {Type: genai.TypeInteger},
			"median":       {Type: genai.TypeInteger},
			"percentile25": {Type: genai.TypeInteger},
			"stdDev":       {Type: genai.TypeInteger},
			"max":          {Type: genai.TypeInteger},
			"min":          {Type: genai.TypeInteger},
			"bestHour":     {Type: genai.TypeInteger},
			"trend": {
				Type: genai.TypeString,
				Enum: []string{"up", "down", "stable"},
			},
		},
		Required: []string{"mean", "median", "percentile25", "stdDev", "max", "min", "bestHour", "trend"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"recommendation": {
				Type:        genai.TypeString,
				Description: "One short sentence telling the visitor when to go and why",
			},
			"goldenHour": {
				Type:        genai.TypeString,
				Description: "Recommended visiting time as H:MM, deliberately not on the hour",
			},
			"analysis": {
				Type:        genai.TypeString,
				Description: "Two or three sentences describing the day's occupancy pattern",
			},
			"statistics": statsSchema,
		},
		PropertyOrdering: []string{"recommendation", "goldenHour", "analysis", "statistics"},
		Required:         []string{"recommendation", "goldenHour", "analysis", "statistics"},
	}
}

// callWithRetry executes the API call with backoff and jitter on transient
// errors.
func (c *Client) callWithRetry(ctx context.Context, client *genai.Client, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond
	jitter := 50 * time.Millisecond

	for attempt := 0; ; attempt++ {
		resp, err := client.Models.GenerateContent(ctx, modelName, contents, config)
		if err == nil {
			return resp, nil
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("gemini API call failed after %d attempts: %w", maxRetries+1, err)
		}
		if !isTransientError(err) {
			c.logger.Warn("non-transient Gemini API error, giving up", "error", err)
			return nil, fmt.Errorf("non-transient gemini API error: %w", err)
		}

		delay := baseDelay*time.Duration(1<<uint(attempt)) + time.Duration(rand.Int64N(int64(jitter)))
		c.logger.Debug("retrying Gemini API call", "attempt", attempt+1, "delay_ms", delay.Milliseconds(), "error", err.Error())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func isTransientError(err error) bool {
	errStr := strings.ToLower(err.Error())
	transientIndicators := []string{
		"rate limit", "quota", "timeout", "deadline", "unavailable",
		"internal server error", "502", "503", "504",
	}
	for _, indicator := range transientIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// decodeInsight extracts and validates the structured insight. Any missing
// or malformed part fails the whole call.
func decodeInsight(resp *genai.GenerateContentResponse) (*Insight, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no content", ErrInvalidResponse)
	}
	text := candidate.Content.Parts[0].Text
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidResponse)
	}

	var insight Insight
	if err := json.Unmarshal([]byte(text), &insight); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if err := validateInsight(&insight); err != nil {
		return nil, err
	}
	cleanInsight(&insight)
	return &insight, nil
}

func validateInsight(insight *Insight) error {
	switch {
	case strings.TrimSpace(insight.Recommendation) == "":
		return fmt.Errorf("%w: missing recommendation", ErrInvalidResponse)
	case strings.TrimSpace(insight.GoldenHour) == "":
		return fmt.Errorf("%w: missing goldenHour", ErrInvalidResponse)
	case strings.TrimSpace(insight.Analysis) == "":
		return fmt.Errorf("%w: missing analysis", ErrInvalidResponse)
	}
	switch insight.Statistics.Trend {
	case "up", "down", "stable":
	default:
		return fmt.Errorf("%w: bad trend %q", ErrInvalidResponse, insight.Statistics.Trend)
	}
	return nil
}

func cleanInsight(insight *Insight) {
	insight.Recommendation = strings.TrimSpace(insight.Recommendation)
	insight.GoldenHour = strings.TrimSpace(insight.GoldenHour)
	insight.Analysis = strings.TrimSpace(strings.ReplaceAll(insight.Analysis, "\n", " "))
}
