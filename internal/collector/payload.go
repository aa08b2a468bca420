package collector

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"FinVision/internal/calculator"
	"FinVision/internal/model"
)

const (
	defaultCurrentValue = "0.00"
	defaultCurrency     = "$"
)

// flexFloat accepts numbers as well as strings such as "+1.25%" or "2,340.50".
// Anything unreadable or non-finite ("NaN", "Infinity") decodes to zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] != '"' {
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.NewReplacer(",", "", "%", "", "$", "", "€", "", "£", "", " ", "").Replace(s)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		*f = 0
		return nil
	}
	*f = flexFloat(n)
	return nil
}

// flexString accepts strings and bare numbers.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

type pointPayload struct {
	Date  flexString `json:"date"`
	Value flexFloat  `json:"value"`
}

type periodPayload struct {
	Period         flexString `json:"period"`
	Value          flexFloat  `json:"value"`
	FormattedValue string     `json:"formattedValue"`
}

// assetPayload is the JSON shape both Gemini paths are asked to produce.
type assetPayload struct {
	Name             string          `json:"name"`
	CurrentValue     flexString      `json:"currentValue"`
	PercentageChange flexFloat       `json:"percentageChange"`
	Currency         string          `json:"currency"`
	Data             []pointPayload  `json:"data"`
	Performance      []periodPayload `json:"performance"`
}

// snapshot fills absent fields with defaults and converts to the canonical shape.
func (p *assetPayload) snapshot(id, fallbackName string) *model.AssetSnapshot {
	snap := &model.AssetSnapshot{
		ID:               id,
		Name:             strings.TrimSpace(p.Name),
		CurrentValue:     strings.TrimSpace(string(p.CurrentValue)),
		PercentageChange: float64(p.PercentageChange),
		Currency:         strings.TrimSpace(p.Currency),
		Series:           make([]model.DataPoint, 0, len(p.Data)),
		Performance:      make([]model.PerformancePeriod, 0, len(p.Performance)),
	}
	if snap.Name == "" {
		snap.Name = fallbackName
	}
	if snap.CurrentValue == "" {
		snap.CurrentValue = defaultCurrentValue
	}
	if snap.Currency == "" {
		snap.Currency = defaultCurrency
	}
	for _, d := range p.Data {
		snap.Series = append(snap.Series, model.DataPoint{Date: string(d.Date), Value: float64(d.Value)})
	}
	for _, r := range p.Performance {
		formatted := strings.TrimSpace(r.FormattedValue)
		if formatted == "" {
			formatted = calculator.FormatPercent(float64(r.Value))
		}
		snap.Performance = append(snap.Performance, model.PerformancePeriod{
			Period:         string(r.Period),
			Value:          float64(r.Value),
			FormattedValue: formatted,
		})
	}
	return snap
}
