package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"FinVision/internal/calculator"
	"FinVision/internal/model"
)

// DefaultHistoryPairs maps assets to the pair served by the local metal-json API.
var DefaultHistoryPairs = map[model.AssetID]string{
	model.AssetSilver: "XAG,EUR",
}

var metalNames = map[string]string{
	"XAG": "Silver",
	"XAU": "Gold",
	"XPT": "Platinum",
	"XPD": "Palladium",
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CHF": "CHF",
}

// HistoryFetcher reads price history from a local metal-json service.
type HistoryFetcher struct {
	BaseURL string
	Pairs   map[model.AssetID]string
	Client  *resty.Client
}

// NewHistoryFetcher creates a fetcher with optional proxy support.
func NewHistoryFetcher(baseURL string, pairs map[model.AssetID]string, proxyURL string) *HistoryFetcher {
	client := resty.New()
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	if len(pairs) == 0 {
		pairs = DefaultHistoryPairs
	}
	return &HistoryFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Pairs:   pairs,
		Client:  client,
	}
}

func (f *HistoryFetcher) Name() string { return "local-history" }

// historyTime accepts RFC3339 or date strings and epoch milliseconds.
type historyTime time.Time

func (h *historyTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				*h = historyTime(t)
				return nil
			}
		}
		return fmt.Errorf("unrecognized time %q", s)
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unrecognized time %s", data)
	}
	if n < 1e11 {
		*h = historyTime(time.Unix(n, 0).UTC())
	} else {
		*h = historyTime(time.UnixMilli(n).UTC())
	}
	return nil
}

type historyRow struct {
	Time  historyTime `json:"time"`
	Value float64     `json:"value"`
}

func (f *HistoryFetcher) endpoint(pair string) string {
	return fmt.Sprintf("%s/metal-json/history/%s", f.BaseURL, pair)
}

// FetchAsset loads the configured pair and derives the change from the first
// and last rows.
func (f *HistoryFetcher) FetchAsset(ctx context.Context, id model.AssetID) (*model.AssetSnapshot, error) {
	pair, ok := f.Pairs[id]
	if !ok {
		return nil, fmt.Errorf("%w: no history pair for %s", model.ErrUnknownAsset, id)
	}
	endpoint := f.endpoint(pair)

	resp, err := f.Client.R().SetContext(ctx).SetHeader("Accept", "application/json").Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: history fetch: %w", model.ErrNetwork, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: history: status %d, body: %s", model.ErrNetwork, resp.StatusCode(), preview(resp.String(), 200))
	}

	var rows []historyRow
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("%w: history decode: %w", model.ErrResponse, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: history for %s is empty", model.ErrResponse, pair)
	}

	series := make([]model.DataPoint, len(rows))
	for i, row := range rows {
		series[i] = model.DataPoint{
			Date:  time.Time(row.Time).Format("Jan 2"),
			Value: row.Value,
		}
	}
	first := rows[0].Value
	last := rows[len(rows)-1].Value
	pct := calculator.PercentChange(first, last)

	base, quote := splitPair(pair)
	return (&model.AssetSnapshot{
		ID:               strings.ToLower(string(id)),
		Name:             pairName(base, quote),
		CurrentValue:     fmt.Sprintf("%g", last),
		PercentageChange: pct,
		Currency:         currencySymbol(quote),
		Series:           series,
		Performance:      []model.PerformancePeriod{calculator.Period("Since Start", pct)},
		Sources:          []model.Source{{Title: "Local metal-json API", URI: endpoint}},
	}).Normalize(), nil
}

func splitPair(pair string) (base, quote string) {
	base, quote, _ = strings.Cut(strings.ToUpper(pair), ",")
	return base, quote
}

func pairName(base, quote string) string {
	name := base
	if n, ok := metalNames[base]; ok {
		name = n
	}
	if quote == "" {
		return name
	}
	return fmt.Sprintf("%s (%s/%s)", name, base, quote)
}

func currencySymbol(code string) string {
	if s, ok := currencySymbols[code]; ok {
		return s
	}
	if code == "" {
		return defaultCurrency
	}
	return code
}
