package collector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"FinVision/internal/model"
)

func newTestVision(resp *genai.GenerateContentResponse, err error) *VisionAnalyzer {
	a := NewVisionAnalyzer(GeminiConfig{APIKey: "test-key"})
	a.generate = stubGenerate(resp, err, nil)
	return a
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestVisionAnalyzer_Success(t *testing.T) {
	text := `{"name":"ACME Corp","currentValue":"12.30","percentageChange":-4.2,"currency":"EUR",
		"data":[{"date":"2021","value":10},{"date":"2022","value":12.3}],
		"performance":[{"period":"2022","value":23,"formattedValue":"+23.00%"}]}`
	var gotConfig *genai.GenerateContentConfig
	var gotContents []*genai.Content
	a := NewVisionAnalyzer(GeminiConfig{APIKey: "k"})
	a.generate = func(_ context.Context, _ GeminiConfig, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotContents, gotConfig = contents, config
		return textResponse(text), nil
	}

	snap, err := a.AnalyzeChart(context.Background(), pngBytes, "image/png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(snap.ID, "custom-") {
		t.Errorf("expected custom- id, got %q", snap.ID)
	}
	if snap.Name != "ACME Corp" || snap.Currency != "EUR" || len(snap.Series) != 2 || len(snap.Performance) != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if gotConfig.ResponseMIMEType != "application/json" || gotConfig.ResponseSchema == nil {
		t.Error("expected structured JSON output config")
	}
	parts := gotContents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/png" {
		t.Errorf("expected inline image part first, got %+v", parts)
	}
}

func TestVisionAnalyzer_FreshIDs(t *testing.T) {
	a := newTestVision(textResponse(`{"name":"x","data":[],"performance":[]}`), nil)
	first, err := a.AnalyzeChart(context.Background(), pngBytes, "image/png")
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.AnalyzeChart(context.Background(), pngBytes, "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Errorf("expected distinct ids, both %q", first.ID)
	}
}

func TestVisionAnalyzer_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
		want error
	}{
		{"network", nil, errors.New("timeout"), model.ErrNetwork},
		{"empty body", textResponse(""), nil, model.ErrBackend},
		{"nil response", nil, nil, model.ErrBackend},
		{"fenced is a contract breach", textResponse("```json\n{\"name\":\"x\"}\n```"), nil, model.ErrBackendContract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestVision(tt.resp, tt.err).AnalyzeChart(context.Background(), pngBytes, "image/png")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestVisionAnalyzer_MissingCredential(t *testing.T) {
	a := NewVisionAnalyzer(GeminiConfig{})
	_, err := a.AnalyzeChart(context.Background(), pngBytes, "image/png")
	if !errors.Is(err, model.ErrCredentialMissing) {
		t.Errorf("expected ErrCredentialMissing, got %v", err)
	}
}

func TestVisionAnalyzer_EmptyImage(t *testing.T) {
	_, err := newTestVision(textResponse(`{}`), nil).AnalyzeChart(context.Background(), nil, "image/png")
	if err == nil {
		t.Error("expected error for empty image")
	}
}
