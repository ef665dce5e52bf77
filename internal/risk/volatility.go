package risk

import (
	"fmt"

	"quorum/internal/market"
	"quorum/internal/market/indicator"
)

// VolatilityCheck 拒绝极端波动环境下的入场。
// 当前波动不得超过 Multiplier × 历史 Percentile 分位。
type VolatilityCheck struct {
	Multiplier float64
	Percentile float64
	Window     int
}

func NewVolatilityCheck(multiplier, percentile float64, window int) *VolatilityCheck {
	if multiplier <= 0 {
		multiplier = 1.5
	}
	if percentile <= 0 {
		percentile = 95
	}
	if window <= 0 {
		window = 20
	}
	return &VolatilityCheck{Multiplier: multiplier, Percentile: percentile, Window: window}
}

func (c *VolatilityCheck) Name() string { return "volatility" }

func (c *VolatilityCheck) Evaluate(in Input) CheckResult {
	closes := market.Closes(in.Candles)
	vols := indicator.RollingStd(indicator.Returns(closes), c.Window)
	if len(vols) == 0 {
		return fail(c.Name(), "insufficient candle history")
	}
	current := vols[len(vols)-1]
	limit := c.Multiplier * indicator.Percentile(vols, c.Percentile)
	if limit > 0 && current > limit {
		return fail(c.Name(), fmt.Sprintf("current %.6f exceeds %.1fx p%.0f limit %.6f",
			current, c.Multiplier, c.Percentile, limit))
	}
	return pass(c.Name())
}
