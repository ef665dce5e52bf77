package backtest

import (
	"math"
)

// Metrics 一次回测的绩效汇总。
type Metrics struct {
	StrategyID         string  `json:"strategy_id"`
	TradeCount         int     `json:"trade_count"`
	Wins               int     `json:"wins"`
	Losses             int     `json:"losses"`
	WinRate            float64 `json:"win_rate"`
	ProfitFactor       float64 `json:"profit_factor"`
	Sharpe             float64 `json:"sharpe"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	AvgWin             float64 `json:"avg_win"`
	AvgLoss            float64 `json:"avg_loss"`
	TotalReturn        float64 `json:"total_return"`
	Confidence         float64 `json:"confidence"`
	InsufficientSample bool    `json:"insufficient_sample"`
}

func computeMetrics(strategyID string, trades []Trade, minTrades int) Metrics {
	m := Metrics{StrategyID: strategyID, TradeCount: len(trades)}
	if len(trades) == 0 {
		m.InsufficientSample = true
		return m
	}

	var grossProfit, grossLoss, total float64
	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = t.PnLPct
		total += t.PnLPct
		if t.PnLPct > 0 {
			m.Wins++
			grossProfit += t.PnLPct
		} else {
			m.Losses++
			grossLoss += -t.PnLPct
		}
	}
	m.TotalReturn = total
	m.WinRate = float64(m.Wins) / float64(len(trades))
	if m.Wins > 0 {
		m.AvgWin = grossProfit / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = grossLoss / float64(m.Losses)
	}
	m.ProfitFactor = profitFactor(grossProfit, grossLoss)
	m.Sharpe = annualizedSharpe(returns)
	m.MaxDrawdown = maxDrawdown(returns)
	m.Confidence = confidenceScore(m)
	m.InsufficientSample = len(trades) < minTrades
	return m
}

// profitFactor 毛利/毛损。零毛损时：有盈利为 +Inf，否则为 0。
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// annualizedSharpe 逐笔收益率的年化夏普（×√252）。零波动时为 0。
func annualizedSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

// maxDrawdown 累计收益曲线的最大峰谷回撤（收益率单位）。
func maxDrawdown(returns []float64) float64 {
	var equity, peak, maxDD float64
	for _, r := range returns {
		equity += r
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// confidenceScore 0-100 的综合质量分：胜率 30、盈亏比 25、夏普 25、
// 回撤 10、样本量 10。
func confidenceScore(m Metrics) float64 {
	score := clamp01(m.WinRate) * 30

	pf := m.ProfitFactor
	if math.IsInf(pf, 1) {
		pf = 3
	}
	score += clamp01(pf/3) * 25

	score += clamp01(math.Max(m.Sharpe, 0)/2) * 25

	score += (1 - clamp01(m.MaxDrawdown/0.2)) * 10

	score += clamp01(float64(m.TradeCount)/30) * 10
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
