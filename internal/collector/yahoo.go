package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"FinVision/internal/calculator"
	"FinVision/internal/model"
)

const (
	defaultYahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	yahooSeriesPoints    = 30
)

// YahooFetcher implements Fetcher using the Yahoo Finance chart API. It needs
// no credential.
type YahooFetcher struct {
	ChartURL  string
	Client    *resty.Client
	SymbolMap map[model.AssetID]string // maps asset to Yahoo ticker
	now       func() time.Time
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	client := resty.New().SetHeader("User-Agent", "Mozilla/5.0")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &YahooFetcher{
		ChartURL: defaultYahooChartURL,
		Client:   client,
		SymbolMap: map[model.AssetID]string{
			model.AssetSilver:  "SI=F",
			model.AssetGold:    "GC=F",
			model.AssetBitcoin: "BTC-USD",
		},
		now: time.Now,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency  string `json:"currency"`
				Symbol    string `json:"symbol"`
				ShortName string `json:"shortName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartMeta struct {
	currency string
	name     string
}

func valueAt(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) ([]model.Bar, chartMeta, error) {
	var meta chartMeta
	u := fmt.Sprintf("%s/%s", strings.TrimRight(f.ChartURL, "/"), url.PathEscape(symbol))

	resp, err := f.Client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"interval": interval, "range": rng}).
		Get(u)
	if err != nil {
		return nil, meta, fmt.Errorf("%w: yahoo fetch: %w", model.ErrNetwork, err)
	}
	if resp.IsError() {
		return nil, meta, fmt.Errorf("%w: yahoo: status %d, body: %s", model.ErrNetwork, resp.StatusCode(), preview(resp.String(), 200))
	}

	var chart yahooChart
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, meta, fmt.Errorf("%w: yahoo decode: %w", model.ErrResponse, err)
	}
	if chart.Chart.Error != nil {
		return nil, meta, fmt.Errorf("%w: yahoo api error: %s", model.ErrResponse, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, meta, fmt.Errorf("%w: yahoo: no data returned", model.ErrResponse)
	}

	result := chart.Chart.Result[0]
	meta = chartMeta{currency: result.Meta.Currency, name: result.Meta.ShortName}
	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		c := valueAt(quote.Close, i)
		if c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.Bar{
			Time:  time.Unix(ts, 0).UTC(),
			Close: c,
		})
	}
	if len(bars) == 0 {
		return nil, meta, fmt.Errorf("%w: yahoo: only null bars returned", model.ErrResponse)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, meta, nil
}

// FetchAsset builds a snapshot from one year of daily closes.
func (f *YahooFetcher) FetchAsset(ctx context.Context, id model.AssetID) (*model.AssetSnapshot, error) {
	symbol, ok := f.SymbolMap[id]
	if !ok {
		return nil, fmt.Errorf("%w: no yahoo ticker for %s", model.ErrUnknownAsset, id)
	}
	bars, meta, err := f.fetchChart(ctx, symbol, "1d", "1y")
	if err != nil {
		return nil, err
	}

	recent := bars
	if len(recent) > yahooSeriesPoints {
		recent = recent[len(recent)-yahooSeriesPoints:]
	}
	series := make([]model.DataPoint, len(recent))
	for i, b := range recent {
		series[i] = model.DataPoint{Date: b.Time.Format("Jan 2"), Value: calculator.Round2(b.Close)}
	}

	last := bars[len(bars)-1].Close
	var change float64
	if len(bars) > 1 {
		change = calculator.PercentChange(bars[len(bars)-2].Close, last)
	}

	name := meta.name
	if name == "" {
		name = string(id)
	}
	return (&model.AssetSnapshot{
		ID:               strings.ToLower(string(id)),
		Name:             fmt.Sprintf("%s (%s)", name, symbol),
		CurrentValue:     calculator.FormatPrice(last),
		PercentageChange: change,
		Currency:         currencySymbol(meta.currency),
		Series:           series,
		Performance:      calculator.PeriodReturns(bars, f.now()),
		Sources:          []model.Source{{Title: "Yahoo Finance", URI: "https://finance.yahoo.com/quote/" + url.PathEscape(symbol)}},
	}).Normalize(), nil
}
