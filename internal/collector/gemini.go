package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/phuslu/log"
	"google.golang.org/genai"

	"FinVision/internal/model"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig carries the credential and transport for Gemini calls. The key
// is passed in explicitly; fetchers never read it from the environment.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func (c GeminiConfig) hasKey() bool { return strings.TrimSpace(c.APIKey) != "" }

func (c GeminiConfig) model() string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return DefaultGeminiModel
}

func (c GeminiConfig) clientConfig() *genai.ClientConfig {
	cc := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(c.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.HTTPClient,
	}
	if c.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.BaseURL}
	}
	return cc
}

// generateFunc performs one GenerateContent call. Swapped out in tests.
type generateFunc func(ctx context.Context, cfg GeminiConfig, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

func requestGemini(ctx context.Context, cfg GeminiConfig, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	client, err := genai.NewClient(ctx, cfg.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client.Models.GenerateContent(ctx, cfg.model(), contents, config)
}

const marketPromptTemplate = `
Fetch the latest live market data for %q.

I need a JSON object containing:
1. "name": The full name of the asset (e.g., Gold Spot, Bitcoin USD).
2. "currentValue": The current price formatted as a string (e.g., "2,340.50").
3. "currency": The currency symbol (e.g. "$").
4. "percentageChange": The 24-hour percentage change as a number (e.g., 1.25 or -0.5).
5. "data": An array of approximately 30 data points representing the daily closing price for the last 30 days. Each point must have "date" (formatted as "MMM DD", e.g. "Oct 25") and "value" (number). Use the search results to approximate the trend accurately.
6. "performance": An array of objects for discrete performance periods: "1M", "6M", "YTD", "1Y". Each object must have "period", "value" (percentage number), and "formattedValue" (string with %% sign).

Format the response as valid JSON. Do not use markdown formatting if possible, or enclose in ` + "```json" + ` blocks.
`

// GeminiFetcher fetches live, search-grounded market data through Gemini.
type GeminiFetcher struct {
	cfg      GeminiConfig
	generate generateFunc
}

// NewGeminiFetcher creates a fetcher. An empty API key is allowed; every call
// then fails with model.ErrCredentialMissing.
func NewGeminiFetcher(cfg GeminiConfig) *GeminiFetcher {
	return &GeminiFetcher{cfg: cfg, generate: requestGemini}
}

func (f *GeminiFetcher) Name() string { return "gemini" }

// FetchAsset issues one grounded request for id and normalizes the answer.
func (f *GeminiFetcher) FetchAsset(ctx context.Context, id model.AssetID) (*model.AssetSnapshot, error) {
	if !f.cfg.hasKey() {
		return nil, model.ErrCredentialMissing
	}
	name := string(id)
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	resp, err := f.generate(ctx, f.cfg, genai.Text(fmt.Sprintf(marketPromptTemplate, name)), config)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini generate content for %s: %w", model.ErrNetwork, name, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: gemini returned no response for %s", model.ErrResponse, name)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("%w: gemini returned no text for %s", model.ErrResponse, name)
	}

	var payload assetPayload
	if err := ParseJSON(text, &payload); err != nil {
		return nil, fmt.Errorf("parse market data for %s: %w", name, err)
	}

	snap := payload.snapshot(strings.ToLower(name), name)
	snap.Sources = groundingSources(resp)
	log.Debug().Str("asset", name).Int("points", len(snap.Series)).Int("sources", len(snap.Sources)).Msg("gemini market data fetched")
	return snap.Normalize(), nil
}

// groundingSources collects web citations from the first candidate, dropping
// entries without a link and keeping one entry per URI.
func groundingSources(resp *genai.GenerateContentResponse) []model.Source {
	sources := []model.Source{}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return sources
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return sources
	}
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = append(sources, model.Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return model.DedupeSources(sources)
}
