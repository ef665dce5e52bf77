package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceLevelCheck 校验止损/止盈距离的合理性：
// 距离不得小于 MinPips（点差噪声内的目标没有意义），
// 也不得超过最近 RangeBars 根 K 线高低幅的 MaxRangeMultiple 倍。
// 点值运算走 decimal，避免 0.0001 级别的二进制误差把边界判反。
type PriceLevelCheck struct {
	MinPips          float64
	MaxRangeMultiple float64
	RangeBars        int
	PipSize          decimal.Decimal
}

func NewPriceLevelCheck(minPips, maxRangeMultiple, pipSize float64, rangeBars int) *PriceLevelCheck {
	if minPips <= 0 {
		minPips = 5
	}
	if maxRangeMultiple <= 0 {
		maxRangeMultiple = 3
	}
	if rangeBars <= 0 {
		rangeBars = 50
	}
	if pipSize <= 0 {
		pipSize = 0.0001
	}
	return &PriceLevelCheck{
		MinPips:          minPips,
		MaxRangeMultiple: maxRangeMultiple,
		RangeBars:        rangeBars,
		PipSize:          decimal.NewFromFloat(pipSize),
	}
}

func (c *PriceLevelCheck) Name() string { return "price_level" }

func (c *PriceLevelCheck) Evaluate(in Input) CheckResult {
	if in.Signal == nil {
		return fail(c.Name(), "no signal to inspect")
	}
	if len(in.Candles) < c.RangeBars {
		return fail(c.Name(), fmt.Sprintf("need %d candles for range reference, got %d", c.RangeBars, len(in.Candles)))
	}

	entry := decimal.NewFromFloat((in.Signal.EntryZoneLow + in.Signal.EntryZoneHigh) / 2)
	stop := decimal.NewFromFloat(in.Signal.StopLoss)
	target := decimal.NewFromFloat(in.Signal.TakeProfit)

	stopPips := entry.Sub(stop).Abs().Div(c.PipSize)
	targetPips := entry.Sub(target).Abs().Div(c.PipSize)
	minPips := decimal.NewFromFloat(c.MinPips)
	if stopPips.LessThan(minPips) {
		return fail(c.Name(), fmt.Sprintf("stop distance %s pips below minimum %.1f", stopPips.StringFixed(1), c.MinPips))
	}
	if targetPips.LessThan(minPips) {
		return fail(c.Name(), fmt.Sprintf("target distance %s pips below minimum %.1f", targetPips.StringFixed(1), c.MinPips))
	}

	recent := in.Candles[len(in.Candles)-c.RangeBars:]
	high, low := recent[0].High, recent[0].Low
	for _, bar := range recent {
		if bar.High > high {
			high = bar.High
		}
		if bar.Low < low {
			low = bar.Low
		}
	}
	barRange := decimal.NewFromFloat(high - low)
	if barRange.IsZero() {
		return fail(c.Name(), "flat range reference")
	}
	limit := barRange.Mul(decimal.NewFromFloat(c.MaxRangeMultiple))
	span := stop.Sub(target).Abs()
	if span.GreaterThan(limit) {
		return fail(c.Name(), fmt.Sprintf("level span %s exceeds %.1fx of %d-bar range %s",
			span.String(), c.MaxRangeMultiple, c.RangeBars, barRange.String()))
	}
	return pass(c.Name())
}
