package trend

import (
	"fmt"
	"math"

	"quorum/internal/market"

	talib "github.com/markcheno/go-talib"
)

// Direction 单周期趋势方向。
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

type Config struct {
	WeightDaily float64
	Weight4H    float64
	Weight1H    float64
	MinAligned  int // 判定 aligned 所需同向非中性周期数
}

func (c Config) withDefaults() Config {
	if c.WeightDaily <= 0 && c.Weight4H <= 0 && c.Weight1H <= 0 {
		c.WeightDaily, c.Weight4H, c.Weight1H = 0.5, 0.3, 0.2
	}
	if c.MinAligned <= 0 {
		c.MinAligned = 2
	}
	return c
}

// State 单周期判定：SMA10 对 SMA30、收盘价对两均线的位置。
type State struct {
	Timeframe string    `json:"timeframe"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"`
	SMA10     float64   `json:"sma10"`
	SMA30     float64   `json:"sma30"`
	Close     float64   `json:"close"`
}

// Alignment 多周期汇总。
type Alignment struct {
	Direction        Direction `json:"direction"`
	Aligned          bool      `json:"aligned"`
	CombinedStrength float64   `json:"combined_strength"`
	States           []State   `json:"states"`
}

const minTrendBars = 35

// Analyze 以 1h K 线为输入，内部聚合出 4h 与 1d，逐周期判向后按权重合成。
// 一致性要求至少 MinAligned 个非中性周期同向。
func Analyze(hourly []market.Candle, cfg Config) (Alignment, error) {
	cfg = cfg.withDefaults()
	if len(hourly) < minTrendBars {
		return Alignment{}, fmt.Errorf("trend: need at least %d hourly candles, got %d", minTrendBars, len(hourly))
	}
	if err := market.ValidateSeries(hourly); err != nil {
		return Alignment{}, fmt.Errorf("trend: %w", err)
	}

	tf4h, _ := market.ParseTimeframe("4h")
	tf1d, _ := market.ParseTimeframe("1d")
	fourHour := market.CompleteOnly(market.Resample(hourly, tf4h))
	daily := market.CompleteOnly(market.Resample(hourly, tf1d))

	states := []State{
		classifyTimeframe("1d", daily),
		classifyTimeframe("4h", fourHour),
		classifyTimeframe("1h", hourly),
	}
	return alignStates(states, cfg), nil
}

// alignStates 聚合逐周期判向。同向非中性周期数达到 MinAligned 即判
// aligned，权重只参与 CombinedStrength，不参与方向裁决。
func alignStates(states []State, cfg Config) Alignment {
	weights := map[string]float64{"1d": cfg.WeightDaily, "4h": cfg.Weight4H, "1h": cfg.Weight1H}

	counts := map[Direction]int{}
	var combined float64
	for _, st := range states {
		combined += weights[st.Timeframe] * st.Strength
		if st.Direction != Neutral {
			counts[st.Direction]++
		}
	}

	out := Alignment{States: states, CombinedStrength: combined, Direction: Neutral}
	switch {
	case counts[Bullish] >= cfg.MinAligned:
		out.Direction = Bullish
		out.Aligned = true
	case counts[Bearish] >= cfg.MinAligned:
		out.Direction = Bearish
		out.Aligned = true
	}
	return out
}

// classifyTimeframe 数据不足的周期记中性，不报错（日线往往最短）。
func classifyTimeframe(key string, candles []market.Candle) State {
	st := State{Timeframe: key, Direction: Neutral}
	if len(candles) < minTrendBars {
		return st
	}
	closes := market.Closes(candles)
	sma10 := lastValid(talib.Sma(closes, 10))
	sma30 := lastValid(talib.Sma(closes, 30))
	cl := closes[len(closes)-1]
	st.SMA10, st.SMA30, st.Close = sma10, sma30, cl
	if sma10 == 0 || sma30 == 0 || cl == 0 {
		return st
	}
	switch {
	case sma10 > sma30 && cl > sma10:
		st.Direction = Bullish
	case sma10 < sma30 && cl < sma10:
		st.Direction = Bearish
	default:
		return st
	}
	st.Strength = clamp01(math.Abs(sma10-sma30) / cl * 100)
	return st
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
