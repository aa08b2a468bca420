package model

import (
	"fmt"
	"strings"
)

// AssetID identifies which asset, and therefore which data source, applies.
type AssetID string

const (
	AssetSilver  AssetID = "Silver"
	AssetGold    AssetID = "Gold"
	AssetBitcoin AssetID = "Bitcoin"
	AssetCustom  AssetID = "Custom"
)

// Standard returns the built-in assets in display order.
func Standard() []AssetID {
	return []AssetID{AssetSilver, AssetGold, AssetBitcoin}
}

// IsCustom reports whether id is the uploaded-chart sentinel.
func (id AssetID) IsCustom() bool { return id == AssetCustom }

// ParseAssetID matches a user supplied name case-insensitively.
func ParseAssetID(s string) (AssetID, error) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "/")
	for _, id := range append(Standard(), AssetCustom) {
		if strings.ToLower(string(id)) == name {
			return id, nil
		}
	}
	switch name {
	case "btc":
		return AssetBitcoin, nil
	case "xau":
		return AssetGold, nil
	case "xag":
		return AssetSilver, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAsset, s)
}

// DataPoint is one point of a price series. Date is a display label only.
type DataPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// PerformancePeriod is one row of the discrete performance table.
type PerformancePeriod struct {
	Period         string  `json:"period"`
	Value          float64 `json:"value"`
	FormattedValue string  `json:"formattedValue"`
}

// Source is a provenance link attached to a live answer.
type Source struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri"`
}

// AssetSnapshot is the render-ready data for one asset.
type AssetSnapshot struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	CurrentValue     string              `json:"currentValue"`
	PercentageChange float64             `json:"percentageChange"`
	Currency         string              `json:"currency"`
	Series           []DataPoint         `json:"data"`
	Performance      []PerformancePeriod `json:"performance"`
	Sources          []Source            `json:"sources,omitempty"`
}

// Normalize replaces nil sequences with empty ones and removes duplicate sources.
func (s *AssetSnapshot) Normalize() *AssetSnapshot {
	if s.Series == nil {
		s.Series = []DataPoint{}
	}
	if s.Performance == nil {
		s.Performance = []PerformancePeriod{}
	}
	if s.Sources != nil {
		s.Sources = DedupeSources(s.Sources)
	}
	return s
}

// Clone returns a deep copy so callers cannot mutate cached state.
func (s *AssetSnapshot) Clone() *AssetSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Series = append([]DataPoint(nil), s.Series...)
	c.Performance = append([]PerformancePeriod(nil), s.Performance...)
	if s.Sources != nil {
		c.Sources = append([]Source(nil), s.Sources...)
	}
	return c.Normalize()
}

// DedupeSources drops entries without a URI and keeps one entry per URI.
// The last entry seen for a URI wins; the position of its first occurrence is kept.
func DedupeSources(in []Source) []Source {
	out := make([]Source, 0, len(in))
	index := make(map[string]int, len(in))
	for _, src := range in {
		uri := strings.TrimSpace(src.URI)
		if uri == "" {
			continue
		}
		src.URI = uri
		if i, ok := index[uri]; ok {
			out[i] = src
			continue
		}
		index[uri] = len(out)
		out = append(out, src)
	}
	return out
}
