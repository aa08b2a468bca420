package collector

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"FinVision/internal/model"
)

func textResponse(text string, chunks ...*genai.GroundingChunk) *genai.GenerateContentResponse {
	cand := &genai.Candidate{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
	}
	if len(chunks) > 0 {
		cand.GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: chunks}
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{cand}}
}

func webChunk(title, uri string) *genai.GroundingChunk {
	return &genai.GroundingChunk{Web: &genai.GroundingChunkWeb{Title: title, URI: uri}}
}

func stubGenerate(resp *genai.GenerateContentResponse, err error, calls *int) generateFunc {
	return func(_ context.Context, _ GeminiConfig, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if calls != nil {
			*calls++
		}
		return resp, err
	}
}

func newTestGemini(resp *genai.GenerateContentResponse, err error, calls *int) *GeminiFetcher {
	f := NewGeminiFetcher(GeminiConfig{APIKey: "test-key"})
	f.generate = stubGenerate(resp, err, calls)
	return f
}

func TestGeminiFetcher_MissingCredential(t *testing.T) {
	calls := 0
	f := NewGeminiFetcher(GeminiConfig{APIKey: "  "})
	f.generate = stubGenerate(textResponse(`{}`), nil, &calls)

	_, err := f.FetchAsset(context.Background(), model.AssetGold)
	if !errors.Is(err, model.ErrCredentialMissing) {
		t.Fatalf("expected ErrCredentialMissing, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no outbound call, got %d", calls)
	}
}

func TestGeminiFetcher_BitcoinWithoutCitations(t *testing.T) {
	text := `{"name":"Bitcoin USD","data":[{"date":"Oct 1","value":60000}],"performance":[]}`
	f := newTestGemini(textResponse(text), nil, nil)

	snap, err := f.FetchAsset(context.Background(), model.AssetBitcoin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Name != "Bitcoin USD" {
		t.Errorf("expected name Bitcoin USD, got %q", snap.Name)
	}
	if snap.ID != "bitcoin" {
		t.Errorf("expected id bitcoin, got %q", snap.ID)
	}
	if len(snap.Series) != 1 || snap.Series[0].Value != 60000 {
		t.Errorf("unexpected series: %+v", snap.Series)
	}
	if snap.Performance == nil || len(snap.Performance) != 0 {
		t.Errorf("expected empty performance, got %+v", snap.Performance)
	}
	if len(snap.Sources) != 0 {
		t.Errorf("expected no sources, got %+v", snap.Sources)
	}
}

func TestGeminiFetcher_Defaults(t *testing.T) {
	f := newTestGemini(textResponse("Here you go: {} hope it helps"), nil, nil)

	snap, err := f.FetchAsset(context.Background(), model.AssetSilver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Name != "Silver" || snap.CurrentValue != "0.00" || snap.Currency != "$" || snap.PercentageChange != 0 {
		t.Errorf("defaults not applied: %+v", snap)
	}
	if snap.Series == nil || snap.Performance == nil {
		t.Error("expected empty, non-nil sequences")
	}
}

func TestGeminiFetcher_NonFiniteNumbers(t *testing.T) {
	text := `{"name":"Gold","percentageChange":"Infinity","data":[{"date":"Oct 1","value":"-Inf"},{"date":"Oct 2","value":"NaN"}],` +
		`"performance":[{"period":"1M","value":"NaN"},{"period":"1Y","value":"Infinity"}]}`
	f := newTestGemini(textResponse(text), nil, nil)

	snap, err := f.FetchAsset(context.Background(), model.AssetGold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.PercentageChange != 0 {
		t.Errorf("expected percentageChange 0, got %v", snap.PercentageChange)
	}
	for _, p := range snap.Series {
		if p.Value != 0 {
			t.Errorf("expected non-finite point to decode as 0, got %v", p.Value)
		}
	}
	for _, p := range snap.Performance {
		if p.Value != 0 || p.FormattedValue != "0.00%" {
			t.Errorf("unexpected performance row %+v", p)
		}
	}
	if _, err := json.Marshal(snap); err != nil {
		t.Errorf("snapshot does not encode: %v", err)
	}
}

func TestGeminiFetcher_SourcesDeduplicated(t *testing.T) {
	text := "```json\n{\"name\":\"Gold Spot\",\"currentValue\":2340.5,\"percentageChange\":\"0.8%\",\"performance\":[{\"period\":\"1M\",\"value\":2.5}]}\n```"
	resp := textResponse(text,
		webChunk("A", "x"),
		webChunk("B", "x"),
		webChunk("", "y"),
		&genai.GroundingChunk{},
		webChunk("no link", ""),
	)
	f := newTestGemini(resp, nil, nil)

	snap, err := f.FetchAsset(context.Background(), model.AssetGold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %+v", snap.Sources)
	}
	if snap.Sources[0].URI != "x" || snap.Sources[0].Title != "B" || snap.Sources[1].URI != "y" {
		t.Errorf("unexpected sources: %+v", snap.Sources)
	}
	if snap.CurrentValue != "2340.5" || snap.PercentageChange != 0.8 {
		t.Errorf("unexpected values: %+v", snap)
	}
	if snap.Performance[0].FormattedValue != "+2.50%" {
		t.Errorf("expected derived formatted value, got %q", snap.Performance[0].FormattedValue)
	}
}

func TestGeminiFetcher_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
		want error
	}{
		{"transport", nil, errors.New("dial tcp: refused"), model.ErrNetwork},
		{"nil response", nil, nil, model.ErrResponse},
		{"empty text", textResponse("   "), nil, model.ErrResponse},
		{"no candidates", &genai.GenerateContentResponse{}, nil, model.ErrResponse},
		{"garbled", textResponse("the market is up today"), nil, model.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestGemini(tt.resp, tt.err, nil)
			_, err := f.FetchAsset(context.Background(), model.AssetGold)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGeminiFetcher_PromptNamesAsset(t *testing.T) {
	f := NewGeminiFetcher(GeminiConfig{APIKey: "k"})
	var prompt string
	var tools []*genai.Tool
	f.generate = func(_ context.Context, _ GeminiConfig, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		prompt = contents[0].Parts[0].Text
		tools = config.Tools
		return textResponse(`{"name":"Gold"}`), nil
	}
	if _, err := f.FetchAsset(context.Background(), model.AssetGold); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, `"Gold"`) {
		t.Errorf("prompt does not name the asset: %s", prompt)
	}
	if len(tools) != 1 || tools[0].GoogleSearch == nil {
		t.Error("expected google search grounding tool")
	}
}

func TestGeminiConfig_Model(t *testing.T) {
	if got := (GeminiConfig{}).model(); got != DefaultGeminiModel {
		t.Errorf("expected default model, got %q", got)
	}
	if got := (GeminiConfig{Model: "gemini-2.0-flash"}).model(); got != "gemini-2.0-flash" {
		t.Errorf("expected configured model, got %q", got)
	}
}
