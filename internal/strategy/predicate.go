package strategy

import (
	"fmt"
	"math"

	"quorum/internal/market"

	talib "github.com/markcheno/go-talib"
)

// 入场判定被建模为三类谓词之一，由 Kind 决定取哪一类以及喂什么序列：
//
//   crossover: fast 上穿 slow 做多、下穿做空（ema_cross / macd_cross / sma_momentum）
//   threshold: 序列突破上下阈值；reversion 模式低买高卖（rsi_reversal），
//              momentum 模式追随突破方向（volume_breakout / atr_breakout）
//   band:      收盘价突破上下轨（bollinger_breakout）
//
// 所有序列均由因果指标构成，位置 i 的取值只依赖 i 及更早的数据。
type predicateKind int

const (
	predCrossover predicateKind = iota
	predThreshold
	predBand
)

type predicate struct {
	kind predicateKind

	// crossover
	fast, slow []float64

	// threshold
	value        []float64
	lower, upper float64
	momentum     bool

	// band
	closes, bandUpper, bandLower []float64
	breakout                     bool
}

func (p predicate) directionAt(i int) Direction {
	switch p.kind {
	case predCrossover:
		if i < 1 || i >= len(p.fast) || i >= len(p.slow) {
			return DirectionNone
		}
		if !valid(p.fast[i-1], p.fast[i], p.slow[i-1], p.slow[i]) {
			return DirectionNone
		}
		if p.fast[i-1] <= p.slow[i-1] && p.fast[i] > p.slow[i] {
			return DirectionBuy
		}
		if p.fast[i-1] >= p.slow[i-1] && p.fast[i] < p.slow[i] {
			return DirectionSell
		}
		return DirectionNone

	case predThreshold:
		if i < 0 || i >= len(p.value) || !valid(p.value[i]) {
			return DirectionNone
		}
		v := p.value[i]
		if p.momentum {
			if v > p.upper {
				return DirectionBuy
			}
			if v < p.lower {
				return DirectionSell
			}
			return DirectionNone
		}
		if v < p.lower {
			return DirectionBuy
		}
		if v > p.upper {
			return DirectionSell
		}
		return DirectionNone

	case predBand:
		if i < 0 || i >= len(p.closes) || i >= len(p.bandUpper) || i >= len(p.bandLower) {
			return DirectionNone
		}
		if !valid(p.closes[i], p.bandUpper[i], p.bandLower[i]) {
			return DirectionNone
		}
		c := p.closes[i]
		if c >= p.bandUpper[i] {
			if p.breakout {
				return DirectionBuy
			}
			return DirectionSell
		}
		if c <= p.bandLower[i] {
			if p.breakout {
				return DirectionSell
			}
			return DirectionBuy
		}
		return DirectionNone
	}
	return DirectionNone
}

// compile 为 Definition 构建谓词。序列在这里一次性算好，逐根判定零分配。
func compile(def Definition, candles []market.Candle) (predicate, error) {
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)

	switch def.Kind {
	case KindEMACross:
		fast := int(def.Param("fast_period", 12))
		slow := int(def.Param("slow_period", 26))
		if fast >= slow {
			return predicate{}, fmt.Errorf("strategy %s: fast_period must be below slow_period", def.ID)
		}
		return predicate{
			kind: predCrossover,
			fast: talib.Ema(closes, fast),
			slow: talib.Ema(closes, slow),
		}, nil

	case KindSMAMomentum:
		fast := int(def.Param("fast_period", 10))
		slow := int(def.Param("slow_period", 30))
		if fast >= slow {
			return predicate{}, fmt.Errorf("strategy %s: fast_period must be below slow_period", def.ID)
		}
		return predicate{
			kind: predCrossover,
			fast: talib.Sma(closes, fast),
			slow: talib.Sma(closes, slow),
		}, nil

	case KindMACDCross:
		fast := int(def.Param("fast_period", 12))
		slow := int(def.Param("slow_period", 26))
		signal := int(def.Param("signal_period", 9))
		macd, macdSignal, _ := talib.Macd(closes, fast, slow, signal)
		return predicate{
			kind: predCrossover,
			fast: macd,
			slow: macdSignal,
		}, nil

	case KindRSIReversal:
		period := int(def.Param("period", 14))
		return predicate{
			kind:  predThreshold,
			value: talib.Rsi(closes, period),
			lower: def.Param("oversold", 30),
			upper: def.Param("overbought", 70),
		}, nil

	case KindBollingerBreakout:
		period := int(def.Param("period", 20))
		dev := def.Param("std_dev", 2)
		upper, _, lower := talib.BBands(closes, period, dev, dev, talib.SMA)
		return predicate{
			kind:      predBand,
			closes:    closes,
			bandUpper: upper,
			bandLower: lower,
			breakout:  def.Param("fade", 0) == 0,
		}, nil

	case KindVolumeBreakout:
		period := int(def.Param("period", 20))
		mult := def.Param("multiplier", 2)
		volumes := market.Volumes(candles)
		volSMA := talib.Sma(volumes, period)
		value := make([]float64, len(candles))
		for i := range value {
			value[i] = math.NaN()
			if i == 0 || !valid(volSMA[i]) || volSMA[i] == 0 {
				continue
			}
			ratio := volumes[i] / volSMA[i]
			if closes[i] > closes[i-1] {
				value[i] = ratio
			} else if closes[i] < closes[i-1] {
				value[i] = -ratio
			} else {
				value[i] = 0
			}
		}
		return predicate{
			kind:     predThreshold,
			value:    value,
			lower:    -mult,
			upper:    mult,
			momentum: true,
		}, nil

	case KindATRBreakout:
		period := int(def.Param("period", 14))
		mult := def.Param("multiplier", 1.5)
		atr := talib.Atr(highs, lows, closes, period)
		value := make([]float64, len(candles))
		for i := range value {
			value[i] = math.NaN()
			if i == 0 || !valid(atr[i]) || atr[i] == 0 {
				continue
			}
			value[i] = (closes[i] - closes[i-1]) / atr[i]
		}
		return predicate{
			kind:     predThreshold,
			value:    value,
			lower:    -mult,
			upper:    mult,
			momentum: true,
		}, nil
	}
	return predicate{}, fmt.Errorf("unknown strategy kind: %s", def.Kind)
}

func valid(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
