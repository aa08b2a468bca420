package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"google.golang.org/genai"

	"FinVision/internal/model"
)

const chartSystemPrompt = `
You are an expert financial data analyst. Your job is to digitize financial charts from images.
Extract the approximate data points (X-axis date/label and Y-axis value) from the provided chart image.
Also identify the asset name, current value, and generate a discrete performance table based on the trend visible or explicit table data in the image.
Return the data in a strictly structured JSON format.
`

const chartUserPrompt = "Analyze this chart. Extract the title, a current value estimate, percentage change if visible (or calculate from last 2 points), a series of at least 20 data points representing the line, and a discrete performance table (yearly or period based)."

const customName = "Custom Chart"

// chartSchema constrains the structured output of the digitization call.
var chartSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":             {Type: genai.TypeString, Description: "Name of the asset or chart title"},
		"currentValue":     {Type: genai.TypeString, Description: "Current value displayed or last value"},
		"percentageChange": {Type: genai.TypeNumber, Description: "Overall change percentage shown or calculated"},
		"currency":         {Type: genai.TypeString, Description: "Currency symbol or unit, e.g. $, EUR, %"},
		"data": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"date":  {Type: genai.TypeString},
					"value": {Type: genai.TypeNumber},
				},
			},
		},
		"performance": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"period":         {Type: genai.TypeString},
					"value":          {Type: genai.TypeNumber},
					"formattedValue": {Type: genai.TypeString},
				},
			},
		},
	},
	Required: []string{"name", "data", "performance"},
}

// VisionAnalyzer digitizes chart images with Gemini structured output.
type VisionAnalyzer struct {
	cfg      GeminiConfig
	generate generateFunc
	newID    func() string
}

// NewVisionAnalyzer creates an analyzer. Like the market fetcher it accepts an
// empty key and reports model.ErrCredentialMissing per call.
func NewVisionAnalyzer(cfg GeminiConfig) *VisionAnalyzer {
	return &VisionAnalyzer{cfg: cfg, generate: requestGemini, newID: newCustomID}
}

// newCustomID returns a time-ordered id; uploads have no stable identity.
func newCustomID() string {
	return "custom-" + uuid.Must(uuid.NewV7()).String()
}

// AnalyzeChart sends the image with the fixed instructions and decodes the
// schema-constrained reply. The backend is contracted to emit valid JSON, so a
// decode failure is reported as model.ErrBackendContract.
func (a *VisionAnalyzer) AnalyzeChart(ctx context.Context, image []byte, mimeType string) (*model.AssetSnapshot, error) {
	if !a.cfg.hasKey() {
		return nil, model.ErrCredentialMissing
	}
	if len(image) == 0 {
		return nil, errors.New("analyze chart: empty image")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(chartUserPrompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: chartSystemPrompt}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   chartSchema,
	}

	resp, err := a.generate(ctx, a.cfg, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini analyze chart: %w", model.ErrNetwork, err)
	}
	if resp == nil {
		return nil, model.ErrBackend
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, model.ErrBackend
	}

	var payload assetPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrBackendContract, err)
	}

	snap := payload.snapshot(a.newID(), customName)
	log.Info().Str("id", snap.ID).Str("name", snap.Name).Int("points", len(snap.Series)).Msg("chart digitized")
	return snap.Normalize(), nil
}
