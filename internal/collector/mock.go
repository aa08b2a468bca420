package collector

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"FinVision/internal/calculator"
	"FinVision/internal/model"
)

// minSyntheticValue keeps a volatile walk from flipping sign.
const minSyntheticValue = 0.01

// fallbackPoints is the length of the precomputed fallback series.
const fallbackPoints = 90

// GenerateTrend returns points+1 daily values ending today, produced by a
// multiplicative random walk: v[i] = v[i-1] * (1 + drift + U(-vol/2, +vol/2)).
// Output is not reproducible; it is display-quality filler, not market data.
func GenerateTrend(startValue, volatility, drift float64, points int) []model.DataPoint {
	return generateTrend(time.Now(), rand.Float64, startValue, volatility, drift, points)
}

func generateTrend(now time.Time, random func() float64, startValue, volatility, drift float64, points int) []model.DataPoint {
	if points < 0 {
		points = 0
	}
	data := make([]model.DataPoint, 0, points+1)
	value := startValue
	for i := points; i >= 0; i-- {
		date := now.AddDate(0, 0, -i)
		change := (random()-0.5)*volatility + drift
		value *= 1 + change
		if value < minSyntheticValue || math.IsNaN(value) {
			value = minSyntheticValue
		}
		rounded := calculator.Round2(value)
		if rounded < minSyntheticValue {
			rounded = minSyntheticValue
		}
		data = append(data, model.DataPoint{
			Date:  date.Format("Jan 2"),
			Value: rounded,
		})
	}
	return data
}

// trend describes how the synthetic series of one asset is shaped.
type trend struct {
	start, volatility, drift float64
}

type fallbackAsset struct {
	id          string
	name        string
	current     string
	change      float64
	trend       trend
	performance []model.PerformancePeriod
}

var fallbackAssets = map[model.AssetID]fallbackAsset{
	model.AssetSilver: {
		id: "silver", name: "Silver (XAG/USD)", current: "28.45", change: 1.24,
		trend: trend{start: 22, volatility: 0.02, drift: 0.001},
		performance: []model.PerformancePeriod{
			calculator.Period("Oct 2020 - Oct 2021", -4.5),
			calculator.Period("Oct 2021 - Oct 2022", -12.3),
			calculator.Period("Oct 2022 - Oct 2023", 18.2),
			calculator.Period("Oct 2023 - Oct 2024", 32.5),
			calculator.Period("Oct 2024 - Present", 5.1),
		},
	},
	model.AssetGold: {
		id: "gold", name: "Gold (XAU/USD)", current: "2,345.10", change: 0.45,
		trend: trend{start: 2000, volatility: 0.01, drift: 0.0005},
		performance: []model.PerformancePeriod{
			calculator.Period("Oct 2020 - Oct 2021", 2.1),
			calculator.Period("Oct 2021 - Oct 2022", -3.4),
			calculator.Period("Oct 2022 - Oct 2023", 12.5),
			calculator.Period("Oct 2023 - Oct 2024", 15.8),
			calculator.Period("Oct 2024 - Present", 8.4),
		},
	},
	model.AssetBitcoin: {
		id: "bitcoin", name: "Bitcoin (BTC/USD)", current: "67,890.00", change: -2.15,
		trend: trend{start: 55000, volatility: 0.04, drift: 0.002},
		performance: []model.PerformancePeriod{
			calculator.Period("Oct 2020 - Oct 2021", 340.5),
			calculator.Period("Oct 2021 - Oct 2022", -55.2),
			calculator.Period("Oct 2022 - Oct 2023", 85.6),
			calculator.Period("Oct 2023 - Oct 2024", 120.4),
			calculator.Period("Oct 2024 - Present", 12.1),
		},
	},
}

func (a fallbackAsset) snapshot() *model.AssetSnapshot {
	return (&model.AssetSnapshot{
		ID:               a.id,
		Name:             a.name,
		CurrentValue:     a.current,
		PercentageChange: a.change,
		Currency:         "$",
		Series:           GenerateTrend(a.trend.start, a.trend.volatility, a.trend.drift, fallbackPoints),
		Performance:      append([]model.PerformancePeriod(nil), a.performance...),
	}).Normalize()
}

// FallbackSnapshots precomputes the offline table shown when no live data exists.
func FallbackSnapshots() map[model.AssetID]*model.AssetSnapshot {
	out := make(map[model.AssetID]*model.AssetSnapshot, len(fallbackAssets))
	for id, a := range fallbackAssets {
		out[id] = a.snapshot()
	}
	return out
}

// MockFetcher serves freshly generated synthetic snapshots, for development
// without network access.
type MockFetcher struct {
	// Err, when set, is returned instead of data.
	Err error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchAsset(_ context.Context, id model.AssetID) (*model.AssetSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	a, ok := fallbackAssets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownAsset, id)
	}
	snap := a.snapshot()
	snap.Sources = []model.Source{{Title: "Synthetic series", URI: "mock://" + strings.ToLower(string(id))}}
	return snap, nil
}
