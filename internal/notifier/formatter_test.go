package notifier

import (
	"strings"
	"testing"
	"time"

	"FinVision/internal/dashboard"
	"FinVision/internal/model"
)

func testSnapshot() *model.AssetSnapshot {
	return &model.AssetSnapshot{
		ID:               "gold",
		Name:             "Gold <Spot>",
		CurrentValue:     "2,345.10",
		PercentageChange: 0.52,
		Currency:         "$",
		Series: []model.DataPoint{
			{Date: "Oct 1", Value: 2300},
			{Date: "Oct 2", Value: 2400},
			{Date: "Oct 3", Value: 2350},
		},
		Performance: []model.PerformancePeriod{
			{Period: "1M", Value: 5.1, FormattedValue: "+5.10%"},
		},
		Sources: []model.Source{
			{Title: "A", URI: "https://a"},
			{URI: "https://b"},
			{Title: "C", URI: "https://c"},
			{Title: "D", URI: "https://d"},
		},
	}
}

func TestFormatSnapshot(t *testing.T) {
	msg := FormatSnapshot(testSnapshot())

	for _, want := range []string{
		"<b>Gold &lt;Spot&gt;</b>",
		"Price: $2,345.10 (+0.52%)",
		"Range (3 pts, Oct 1 to Oct 3): 2,300.00 .. 2,400.00, at 50%",
		"1M: +5.10%",
		`<a href="https://a">A</a>`,
		`<a href="https://b">https://b</a>`,
		"and 1 more",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "https://d") {
		t.Error("expected sources beyond the limit to be elided")
	}
}

func TestFormatSnapshot_EmptySeries(t *testing.T) {
	msg := FormatSnapshot(&model.AssetSnapshot{Name: "Custom Chart", CurrentValue: "0.00", Currency: "$"})
	if !strings.Contains(msg, "No price history") {
		t.Errorf("unexpected message:\n%s", msg)
	}
}

func TestFormatSnapshot_EscapesDateLabels(t *testing.T) {
	s := testSnapshot()
	s.Series = []model.DataPoint{
		{Date: "Q1 <est>", Value: 10},
		{Date: "Q2 & Q3", Value: 12},
	}
	msg := FormatSnapshot(s)
	if !strings.Contains(msg, "Q1 &lt;est&gt; to Q2 &amp; Q3") {
		t.Errorf("date labels not escaped:\n%s", msg)
	}
	if strings.Contains(msg, "<est>") {
		t.Errorf("raw label leaked into HTML:\n%s", msg)
	}
}

func TestFormatView(t *testing.T) {
	tests := []struct {
		name string
		view dashboard.View
		want []string
	}{
		{
			"fallback with advisory",
			dashboard.View{Selection: model.AssetGold, Snapshot: testSnapshot(), Fallback: true,
				Message: dashboard.AdvisoryCredentialMissing, MessageKind: dashboard.MessageAdvisory},
			[]string{"offline fallback data", "⚠️ API Key is missing"},
		},
		{
			"loading",
			dashboard.View{Selection: model.AssetSilver, Loading: true, Status: dashboard.StatusFetching},
			[]string{"Loading Silver"},
		},
		{
			"custom error",
			dashboard.View{Selection: model.AssetCustom, Message: dashboard.ErrorChartAnalysis, MessageKind: dashboard.MessageError},
			[]string{"No chart analyzed yet", "❌ Failed to analyze the chart"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatView(tt.view)
			for _, want := range tt.want {
				if !strings.Contains(msg, want) {
					t.Errorf("missing %q in:\n%s", want, msg)
				}
			}
		})
	}
}

func TestFormatDigest(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	msg := FormatDigest([]dashboard.View{
		{Selection: model.AssetGold, Snapshot: testSnapshot(), Status: dashboard.StatusResolved},
		{Selection: model.AssetSilver, Snapshot: &model.AssetSnapshot{Name: "Silver", CurrentValue: "22.00", Currency: "$"}, Fallback: true},
		{Selection: model.AssetBitcoin, Status: dashboard.StatusFetching},
	}, now)

	for _, want := range []string{
		"2026-10-19",
		"<b>Gold &lt;Spot&gt;</b>: $2,345.10 (+0.52%)",
		"<b>Silver</b>: $22.00 (0.00%) [offline]",
		"Bitcoin: unavailable (fetching)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in:\n%s", want, msg)
		}
	}
}
