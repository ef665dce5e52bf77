package indicator

import (
	"fmt"
	"math"
	"sort"

	"quorum/internal/market"

	talib "github.com/markcheno/go-talib"
)

// Snapshot 一组常用指标的最新值，供 regime/trend 等上层模块消费。
// 所有字段均基于已收盘 K 线计算，NaN/Inf 会被归零。
type Snapshot struct {
	Close      float64
	SMA10      float64
	SMA20      float64
	SMA30      float64
	SMA50      float64
	RSI14      float64
	ATR14      float64
	ADX14      float64
	Volatility float64 // 最近 20 根收益率标准差
}

const minSnapshotBars = 60

// Compute 计算指标快照。K 线不足时返回错误而非半成品。
func Compute(candles []market.Candle) (Snapshot, error) {
	if len(candles) < minSnapshotBars {
		return Snapshot{}, fmt.Errorf("need at least %d candles for indicator snapshot, got %d", minSnapshotBars, len(candles))
	}
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)

	snap := Snapshot{
		Close: last(closes),
		SMA10: last(talib.Sma(closes, 10)),
		SMA20: last(talib.Sma(closes, 20)),
		SMA30: last(talib.Sma(closes, 30)),
		SMA50: last(talib.Sma(closes, 50)),
		RSI14: last(talib.Rsi(closes, 14)),
		ATR14: last(talib.Atr(highs, lows, closes, 14)),
		ADX14: last(talib.Adx(highs, lows, closes, 14)),
	}
	vols := RollingStd(Returns(closes), 20)
	snap.Volatility = last(vols)
	snap.sanitize()
	return snap, nil
}

func (s *Snapshot) sanitize() {
	fields := []*float64{&s.Close, &s.SMA10, &s.SMA20, &s.SMA30, &s.SMA50, &s.RSI14, &s.ATR14, &s.ADX14, &s.Volatility}
	for _, f := range fields {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
		}
	}
}

// Returns 逐根收益率 (p[i]-p[i-1])/p[i-1]，长度为 len(prices)-1。
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (prices[i]-prev)/prev)
	}
	return out
}

// RollingStd 滑动窗口总体标准差；前 window-1 个位置为 NaN，与 talib 输出对齐。
func RollingStd(values []float64, window int) []float64 {
	if window <= 1 || len(values) < window {
		return nil
	}
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := window - 1; i < len(values); i++ {
		out[i] = Std(values[i-window+1 : i+1])
	}
	return out
}

func Std(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Percentile 线性插值分位数，p 取 [0,100]。NaN 输入被忽略。
func Percentile(values []float64, p float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0
	}
	sort.Float64s(clean)
	if p <= 0 {
		return clean[0]
	}
	if p >= 100 {
		return clean[len(clean)-1]
	}
	rank := p / 100 * float64(len(clean)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return clean[lo]
	}
	frac := rank - float64(lo)
	return clean[lo]*(1-frac) + clean[hi]*frac
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}
