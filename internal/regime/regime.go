package regime

import (
	"fmt"
	"math"

	"quorum/internal/market"
	"quorum/internal/market/indicator"
	"quorum/internal/strategy"

	talib "github.com/markcheno/go-talib"
)

// Label 市场状态标签。
type Label string

const (
	TrendingUp   Label = "trending_up"
	TrendingDown Label = "trending_down"
	Ranging      Label = "ranging"
	Volatile     Label = "volatile"
)

type Config struct {
	ADXThreshold  float64 // 趋势判定的 ADX 下限
	VolMultiplier float64 // 高波动判定：当前波动 > 倍数 × 75 分位
	VolWindow     int     // 滚动波动窗口
	Cutoff        float64 // 策略兼容度准入线
}

func (c Config) withDefaults() Config {
	if c.ADXThreshold <= 0 {
		c.ADXThreshold = 25
	}
	if c.VolMultiplier <= 0 {
		c.VolMultiplier = 1.5
	}
	if c.VolWindow <= 0 {
		c.VolWindow = 20
	}
	if c.Cutoff <= 0 {
		c.Cutoff = 0.6
	}
	return c
}

// Classification 分类结果及其依据。
type Classification struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	ADX        float64 `json:"adx"`
	SMA20      float64 `json:"sma20"`
	SMA50      float64 `json:"sma50"`
	Volatility float64 `json:"volatility"`
	VolP75     float64 `json:"vol_p75"`
	Timestamp  int64   `json:"timestamp"`
}

const minClassifyBars = 80

// Classify 对最新行情分类。高波动优先于趋势判定：
// 当前波动突破 75 分位的放大倍数时，无论 ADX 如何都标记 volatile。
func Classify(candles []market.Candle, cfg Config) (Classification, error) {
	cfg = cfg.withDefaults()
	if len(candles) < minClassifyBars {
		return Classification{}, fmt.Errorf("regime: need at least %d candles, got %d", minClassifyBars, len(candles))
	}
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)

	adx := lastValid(talib.Adx(highs, lows, closes, 14))
	sma20 := lastValid(talib.Sma(closes, 20))
	sma50 := lastValid(talib.Sma(closes, 50))

	vols := indicator.RollingStd(indicator.Returns(closes), cfg.VolWindow)
	curVol := lastValid(vols)
	p75 := indicator.Percentile(vols, 75)

	out := Classification{
		ADX:        adx,
		SMA20:      sma20,
		SMA50:      sma50,
		Volatility: curVol,
		VolP75:     p75,
		Timestamp:  candles[len(candles)-1].CloseTime,
	}

	if p75 > 0 && curVol > cfg.VolMultiplier*p75 {
		out.Label = Volatile
		out.Confidence = clamp01(curVol / p75 / 2)
		return out, nil
	}

	if adx >= cfg.ADXThreshold {
		if sma20 > sma50 {
			out.Label = TrendingUp
		} else {
			out.Label = TrendingDown
		}
		out.Confidence = trendConfidence(adx, sma20, sma50)
		return out, nil
	}

	out.Label = Ranging
	out.Confidence = clamp01(1 - adx/cfg.ADXThreshold)
	if out.Confidence < 0.5 {
		out.Confidence = 0.5
	}
	return out, nil
}

// trendConfidence 融合 ADX 强度与 SMA 间距（相对价格归一化）。
func trendConfidence(adx, sma20, sma50 float64) float64 {
	adxScore := clamp01(adx / 50)
	gapScore := 0.0
	if sma50 > 0 {
		gapScore = clamp01(math.Abs(sma20-sma50) / sma50 * 100)
	}
	return clamp01(0.6*adxScore + 0.4*gapScore)
}

// compatibility 策略类型 × 市场状态的静态兼容度矩阵。
var compatibility = map[strategy.Kind]map[Label]float64{
	strategy.KindEMACross:          {TrendingUp: 0.9, TrendingDown: 0.9, Ranging: 0.3, Volatile: 0.4},
	strategy.KindSMAMomentum:       {TrendingUp: 0.9, TrendingDown: 0.9, Ranging: 0.3, Volatile: 0.4},
	strategy.KindMACDCross:         {TrendingUp: 0.8, TrendingDown: 0.8, Ranging: 0.4, Volatile: 0.4},
	strategy.KindRSIReversal:       {TrendingUp: 0.4, TrendingDown: 0.4, Ranging: 0.9, Volatile: 0.5},
	strategy.KindBollingerBreakout: {TrendingUp: 0.6, TrendingDown: 0.6, Ranging: 0.8, Volatile: 0.5},
	strategy.KindVolumeBreakout:    {TrendingUp: 0.7, TrendingDown: 0.7, Ranging: 0.4, Volatile: 0.7},
	strategy.KindATRBreakout:       {TrendingUp: 0.7, TrendingDown: 0.7, Ranging: 0.3, Volatile: 0.8},
}

// Compatibility 返回兼容度，未知组合保守记 0。
func Compatibility(kind strategy.Kind, label Label) float64 {
	row, ok := compatibility[kind]
	if !ok {
		return 0
	}
	return row[label]
}

// Compatible 按准入线过滤。
func Compatible(kind strategy.Kind, label Label, cutoff float64) bool {
	if cutoff <= 0 {
		cutoff = 0.6
	}
	return Compatibility(kind, label) >= cutoff
}

func lastValid(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) && !math.IsInf(values[i], 0) {
			return values[i]
		}
	}
	return 0
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
