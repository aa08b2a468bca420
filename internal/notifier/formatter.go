package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"FinVision/internal/calculator"
	"FinVision/internal/dashboard"
	"FinVision/internal/model"
)

const maxSourceLinks = 3

// FormatSnapshot formats one asset snapshot as a Telegram HTML message.
func FormatSnapshot(s *model.AssetSnapshot) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>%s</b>\n\n", html.EscapeString(s.Name)))
	b.WriteString(fmt.Sprintf("Price: %s%s (%s)\n", html.EscapeString(s.Currency), html.EscapeString(s.CurrentValue), calculator.FormatPercent(s.PercentageChange)))

	if high, low, err := calculator.SeriesRange(s.Series); err == nil {
		last := s.Series[len(s.Series)-1]
		pos, _ := calculator.RangePosition(last.Value, high, low)
		b.WriteString(fmt.Sprintf("Range (%d pts, %s to %s): %s .. %s, at %.0f%%\n",
			len(s.Series), html.EscapeString(s.Series[0].Date), html.EscapeString(last.Date),
			calculator.FormatPrice(low), calculator.FormatPrice(high), pos*100))
	} else {
		b.WriteString("No price history\n")
	}

	if len(s.Performance) > 0 {
		b.WriteString("\n📈 <b>Performance:</b>\n")
		for _, p := range s.Performance {
			b.WriteString(fmt.Sprintf("  %s: %s\n", html.EscapeString(p.Period), html.EscapeString(p.FormattedValue)))
		}
	}

	if len(s.Sources) > 0 {
		b.WriteString("\n🔗 <b>Sources:</b>\n")
		for i, src := range s.Sources {
			if i == maxSourceLinks {
				b.WriteString(fmt.Sprintf("  … and %d more\n", len(s.Sources)-maxSourceLinks))
				break
			}
			title := src.Title
			if title == "" {
				title = src.URI
			}
			b.WriteString(fmt.Sprintf("  • <a href=\"%s\">%s</a>\n", html.EscapeString(src.URI), html.EscapeString(title)))
		}
	}

	return b.String()
}

// FormatView formats the dashboard view, including any surfaced message.
func FormatView(v dashboard.View) string {
	var b strings.Builder

	switch {
	case v.Snapshot != nil:
		b.WriteString(FormatSnapshot(v.Snapshot))
		if v.Fallback {
			b.WriteString("\n⚠️ Showing offline fallback data\n")
		}
	case v.Loading:
		b.WriteString(fmt.Sprintf("⏳ Loading %s…\n", v.Selection))
	case v.Selection.IsCustom():
		b.WriteString("No chart analyzed yet. Send a chart image to digitize it.\n")
	default:
		b.WriteString(fmt.Sprintf("No data for %s\n", v.Selection))
	}

	if v.Message != "" {
		icon := "⚠️"
		if v.MessageKind == dashboard.MessageError {
			icon = "❌"
		}
		b.WriteString(fmt.Sprintf("\n%s %s\n", icon, html.EscapeString(v.Message)))
	}
	return b.String()
}

// FormatDigest summarizes every standard asset in one message.
func FormatDigest(views []dashboard.View, now time.Time) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📅 <b>FinVision digest</b> | %s\n\n", now.Format("2006-01-02")))
	for _, v := range views {
		if v.Snapshot == nil {
			b.WriteString(fmt.Sprintf("• %s: unavailable (%s)\n", v.Selection, strings.ToLower(string(v.Status))))
			continue
		}
		s := v.Snapshot
		b.WriteString(fmt.Sprintf("• <b>%s</b>: %s%s (%s)", html.EscapeString(s.Name),
			html.EscapeString(s.Currency), html.EscapeString(s.CurrentValue), calculator.FormatPercent(s.PercentageChange)))
		if v.Fallback {
			b.WriteString(" [offline]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	b.WriteString("• /silver, /gold, /bitcoin: select and show an asset\n")
	b.WriteString("• /refresh: fetch the selected asset again\n")
	b.WriteString("• /view: show the current selection\n")
	b.WriteString("• /digest: summary of all assets\n")
	b.WriteString("• send a chart image to digitize it\n")
	return b.String()
}
