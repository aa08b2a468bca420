package calculator

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"FinVision/internal/model"
)

// finite maps NaN and infinities to zero; decimal cannot represent them.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(finite(v)).Round(2).InexactFloat64()
}

// PercentChange returns (last-first)/first*100 rounded to 2dp. A zero base yields 0.
func PercentChange(first, last float64) float64 {
	first, last = finite(first), finite(last)
	if first == 0 {
		return 0
	}
	f := decimal.NewFromFloat(first)
	l := decimal.NewFromFloat(last)
	return l.Sub(f).Div(f).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// FormatPercent renders a signed percentage such as "+5.10%" or "-3.40%".
func FormatPercent(v float64) string {
	d := decimal.NewFromFloat(finite(v)).Round(2)
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

// FormatPrice renders a price with thousands separators, e.g. "2,345.10".
func FormatPrice(v float64) string {
	s := decimal.NewFromFloat(finite(v)).Round(2).StringFixed(2)
	neg := s[0] == '-'
	if neg {
		s = s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var out []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, intPart[i])
	}
	if neg {
		return "-" + string(out) + frac
	}
	return string(out) + frac
}

// Period builds a performance row from a raw percentage.
func Period(label string, pct float64) model.PerformancePeriod {
	v := Round2(pct)
	return model.PerformancePeriod{Period: label, Value: v, FormattedValue: FormatPercent(v)}
}

// PeriodReturns computes the 1M, 6M, YTD and 1Y returns of chronologically
// ordered bars relative to now. Windows not covered by the bars are skipped.
func PeriodReturns(bars []model.Bar, now time.Time) []model.PerformancePeriod {
	out := []model.PerformancePeriod{}
	if len(bars) < 2 {
		return out
	}
	last := bars[len(bars)-1].Close
	windows := []struct {
		label string
		since time.Time
	}{
		{"1M", now.AddDate(0, -1, 0)},
		{"6M", now.AddDate(0, -6, 0)},
		{"YTD", time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())},
		{"1Y", now.AddDate(-1, 0, 0)},
	}
	for _, w := range windows {
		base, ok := closeAtOrAfter(bars, w.since)
		if !ok {
			continue
		}
		out = append(out, Period(w.label, PercentChange(base, last)))
	}
	return out
}

// closeAtOrAfter returns the first close on or after t, provided the bars
// actually reach back that far.
func closeAtOrAfter(bars []model.Bar, t time.Time) (float64, bool) {
	if bars[0].Time.After(t.AddDate(0, 0, 7)) {
		return 0, false
	}
	for _, b := range bars {
		if !b.Time.Before(t) {
			return b.Close, true
		}
	}
	return 0, false
}
