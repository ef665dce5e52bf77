package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"quorum/internal/backtest"
	"quorum/internal/validate"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// WalkForward 把一次验证运行渲染成自包含 HTML：
// 每个策略的逐窗口测试胜率柱状图 + 一致性/衰减比汇总。
func WalkForward(w io.Writer, set *validate.EligibleSet) error {
	if set == nil {
		return fmt.Errorf("report: no eligible set to render")
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = fmt.Sprintf("walk-forward run %s", set.RunID)

	ids := make([]string, 0, len(set.Verdicts))
	for id := range set.Verdicts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	page.AddCharts(summaryChart(ids, set))
	for _, id := range ids {
		v := set.Verdicts[id]
		if len(v.TestWinRates) == 0 {
			continue
		}
		page.AddCharts(windowChart(v))
	}
	return page.Render(w)
}

func summaryChart(ids []string, set *validate.EligibleSet) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros, Width: "1200px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Validation summary",
			Subtitle: fmt.Sprintf("version %d — %d eligible of %d", set.Version, len(set.Strategies), len(set.Verdicts)),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	consistency := make([]opts.BarData, 0, len(ids))
	decay := make([]opts.BarData, 0, len(ids))
	oos := make([]opts.BarData, 0, len(ids))
	for _, id := range ids {
		v := set.Verdicts[id]
		consistency = append(consistency, opts.BarData{Value: round3(v.ConsistencyScore)})
		decay = append(decay, opts.BarData{Value: round3(v.DecayRatio)})
		oos = append(oos, opts.BarData{Value: round3(v.OOSWinRate)})
	}
	bar.SetXAxis(ids).
		AddSeries("consistency", consistency).
		AddSeries("decay ratio", decay).
		AddSeries("oos win rate", oos)
	return bar
}

func windowChart(v validate.Verdict) *charts.Bar {
	bar := charts.NewBar()
	status := "eligible"
	if !v.Passed {
		status = "rejected: " + v.Reason
	}
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros, Width: "1200px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: v.StrategyID, Subtitle: status}),
	)
	labels := make([]string, 0, len(v.TestWinRates))
	data := make([]opts.BarData, 0, len(v.TestWinRates))
	for i, wr := range v.TestWinRates {
		labels = append(labels, fmt.Sprintf("W%d", i))
		data = append(data, opts.BarData{Value: round3(wr)})
	}
	bar.SetXAxis(labels).AddSeries("test win rate", data)
	return bar
}

// EquityCurve 单次回测的累计收益曲线。
func EquityCurve(w io.Writer, result backtest.Result) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros, Width: "1200px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s equity", result.StrategyID),
			Subtitle: fmt.Sprintf("trades=%d win_rate=%.2f sharpe=%.2f max_dd=%.3f",
				result.Metrics.TradeCount, result.Metrics.WinRate, result.Metrics.Sharpe, result.Metrics.MaxDrawdown),
		}),
	)
	labels := make([]string, 0, len(result.Trades))
	data := make([]opts.LineData, 0, len(result.Trades))
	var equity float64
	for i, t := range result.Trades {
		equity += t.PnLPct
		labels = append(labels, fmt.Sprintf("%d", i+1))
		data = append(data, opts.LineData{Value: round3(equity)})
	}
	line.SetXAxis(labels).AddSeries("cumulative pnl", data)
	return line.Render(w)
}

func round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1000) / 1000
}
