package cost

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatCurrency renders a USD amount. Amounts under a cent keep six decimals so
// per-character and per-request prices stay readable.
func FormatCurrency(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if amount > 0 && amount < 0.01 {
		return fmt.Sprintf("%s$%.6f", sign, amount)
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", amount)
}

func formatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

type reportWriter struct {
	b strings.Builder
}

func (w *reportWriter) section(title string) {
	if w.b.Len() > 0 {
		w.b.WriteByte('\n')
	}
	w.b.WriteString(title)
	w.b.WriteByte('\n')
	w.b.WriteString(strings.Repeat("-", len(title)))
	w.b.WriteByte('\n')
}

func (w *reportWriter) row(label, value string) {
	fmt.Fprintf(&w.b, "  %-22s %s\n", label, value)
}

func (w *reportWriter) shares(values map[string]float64, total float64) {
	if len(values) == 0 {
		w.b.WriteString("  (none)\n")
		return
	}
	for _, k := range sortedKeys(values) {
		share := 0.0
		if total > 0 {
			share = values[k] / total
		}
		w.row(k, fmt.Sprintf("%s (%s)", FormatCurrency(values[k]), formatPercent(share)))
	}
}

// GenerateCostReport renders an estimate as a multi-section text summary.
func GenerateCostReport(est Estimate) string {
	var w reportWriter

	w.section("Per-Request")
	w.row("Cost per request", FormatCurrency(est.CostPerRequest))
	w.row("Cost per session", FormatCurrency(est.CostPerSession))
	w.row("Cost per user", FormatCurrency(est.CostPerUser))

	w.section("Monthly Totals")
	w.row("Monthly users", humanize.Comma(int64(est.MonthlyUsers)))
	w.row("Monthly cost", FormatCurrency(est.MonthlyCost))
	w.row("Cached share", FormatCurrency(est.Breakdown.Cached))
	w.row("Uncached share", FormatCurrency(est.Breakdown.Uncached))

	w.section("By Provider")
	w.shares(est.Breakdown.ByProvider, est.MonthlyCost)

	w.section("By Mode")
	w.shares(est.Breakdown.ByMode, est.MonthlyCost)

	w.section("Optimization Impact")
	w.row("Batching savings", FormatCurrency(est.Breakdown.Batched))
	w.row("Segmentation overhead", FormatCurrency(est.Breakdown.Segmented))
	return w.b.String()
}

// GenerateComparisonReport renders the four scenarios side by side with savings
// relative to the baseline.
func GenerateComparisonReport(cmp Comparison) string {
	var w reportWriter
	base := cmp.Baseline.MonthlyCost
	saved := func(v float64) string {
		if base <= 0 {
			return FormatCurrency(v)
		}
		return fmt.Sprintf("%s (%s)", FormatCurrency(v), formatPercent(v/base))
	}

	w.section("Monthly Cost by Scenario")
	w.row("Baseline", FormatCurrency(cmp.Baseline.MonthlyCost))
	w.row("With caching", FormatCurrency(cmp.WithCaching.MonthlyCost))
	w.row("With batching", FormatCurrency(cmp.WithBatching.MonthlyCost))
	w.row("With all", FormatCurrency(cmp.WithAll.MonthlyCost))

	w.section("Savings")
	w.row("Caching", saved(cmp.Savings.Caching))
	w.row("Batching", saved(cmp.Savings.Batching))
	w.row("Combined", saved(cmp.Savings.Combined))
	w.row("Segmentation overhead", FormatCurrency(cmp.Savings.SegmentationOverhead))
	return w.b.String()
}

// GenerateHistoryReport renders a historical summary.
func GenerateHistoryReport(s HistoricalSummary) string {
	var w reportWriter

	w.section("Period")
	w.row("From", s.Start.Format("2006-01-02"))
	w.row("To", s.End.Format("2006-01-02"))
	w.row("Days", fmt.Sprintf("%.1f", s.Days))

	w.section("Totals")
	w.row("Generations", humanize.Comma(int64(s.TotalRequests)))
	w.row("Characters", humanize.Comma(int64(s.TotalCharacters)))
	w.row("Sessions", humanize.Comma(int64(s.Sessions)))
	w.row("Cache hit rate", formatPercent(s.CacheHitRate))
	w.row("Total cost", FormatCurrency(s.TotalCost))
	w.row("Avg per request", FormatCurrency(s.AvgCostPerRequest))
	w.row("Daily average", FormatCurrency(s.DailyAverage))
	w.row("Monthly projection", FormatCurrency(s.MonthlyProjection))

	w.section("By Provider")
	if len(s.ByProvider) == 0 {
		w.b.WriteString("  (none)\n")
	}
	for _, name := range sortedKeys(s.ByProvider) {
		u := s.ByProvider[name]
		w.row(name, fmt.Sprintf("%s requests, %s chars, %s",
			humanize.Comma(int64(u.Requests)), humanize.Comma(int64(u.Characters)), FormatCurrency(u.Cost)))
	}

	w.section("By Mode")
	if len(s.ByMode) == 0 {
		w.b.WriteString("  (none)\n")
	}
	for _, mode := range sortedKeys(s.ByMode) {
		u := s.ByMode[mode]
		w.row(mode, fmt.Sprintf("%s requests, %s", humanize.Comma(int64(u.Requests)), FormatCurrency(u.Cost)))
	}
	if len(s.Unpriced) > 0 {
		w.section("Unpriced Providers")
		w.row("Providers", strings.Join(s.Unpriced, ", "))
	}
	return w.b.String()
}
