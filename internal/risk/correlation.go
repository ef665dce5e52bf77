package risk

import (
	"fmt"
	"math"
	"strings"
)

// staticCorrelations 主流货币对之间的经验相关系数。键为排序后的 "A|B"。
var staticCorrelations = map[string]float64{
	"EURUSD|GBPUSD": 0.75,
	"EURUSD|USDCHF": -0.85,
	"EURUSD|AUDUSD": 0.60,
	"GBPUSD|USDCHF": -0.70,
	"AUDUSD|NZDUSD": 0.80,
	"USDCAD|USDCHF": 0.55,
	"EURUSD|USDJPY": -0.30,
	"GBPUSD|AUDUSD": 0.55,
}

// CorrelationCheck 限制与现有持仓的相关性敞口。
// 相关系数优先用近端收益率实算，数据不足退回静态表，再退回币种重叠估计。
type CorrelationCheck struct {
	Threshold     float64
	MaxCorrelated int
	MinSamples    int
}

func NewCorrelationCheck(threshold float64, maxCorrelated, minSamples int) *CorrelationCheck {
	if threshold <= 0 {
		threshold = 0.70
	}
	if minSamples <= 0 {
		minSamples = 30
	}
	return &CorrelationCheck{Threshold: threshold, MaxCorrelated: maxCorrelated, MinSamples: minSamples}
}

func (c *CorrelationCheck) Name() string { return "correlation" }

func (c *CorrelationCheck) Evaluate(in Input) CheckResult {
	if in.Signal == nil {
		return fail(c.Name(), "no signal to inspect")
	}
	correlated := 0
	for _, pos := range in.OpenPositions {
		if normalizePair(pos.Pair) == normalizePair(in.Signal.Pair) {
			return fail(c.Name(), fmt.Sprintf("position already open on %s", pos.Pair))
		}
		corr := c.estimate(in, in.Signal.Pair, pos.Pair)
		if math.Abs(corr) >= c.Threshold {
			correlated++
			if correlated > c.MaxCorrelated {
				return fail(c.Name(), fmt.Sprintf("coefficient %.2f with open %s exceeds %.2f",
					corr, pos.Pair, c.Threshold))
			}
		}
	}
	return pass(c.Name())
}

func (c *CorrelationCheck) estimate(in Input, pairA, pairB string) float64 {
	a := in.ReturnsByPair[normalizePair(pairA)]
	b := in.ReturnsByPair[normalizePair(pairB)]
	if len(a) >= c.MinSamples && len(b) >= c.MinSamples {
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		if corr, ok := pearson(a[len(a)-n:], b[len(b)-n:]); ok {
			return corr
		}
	}
	if corr, ok := staticCorrelation(pairA, pairB); ok {
		return corr
	}
	return overlapEstimate(pairA, pairB)
}

func staticCorrelation(pairA, pairB string) (float64, bool) {
	a, b := normalizePair(pairA), normalizePair(pairB)
	if a > b {
		a, b = b, a
	}
	corr, ok := staticCorrelations[a+"|"+b]
	return corr, ok
}

// overlapEstimate 共享币种的货币对给保守的中等相关估计。
// 同侧共享（同 base 或同 quote）记正相关，交叉共享记负相关。
func overlapEstimate(pairA, pairB string) float64 {
	baseA, quoteA := PairCurrencies(pairA)
	baseB, quoteB := PairCurrencies(pairB)
	switch {
	case baseA == baseB || quoteA == quoteB:
		return 0.5
	case baseA == quoteB || quoteA == baseB:
		return -0.5
	default:
		return 0
	}
}

func pearson(a, b []float64) (float64, bool) {
	if len(a) != len(b) || len(a) < 2 {
		return 0, false
	}
	n := float64(len(a))
	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/n, sumB/n
	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}

func normalizePair(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pair), "/", ""))
}
